package meower

import "time"

// Post is a post as returned from the Meower API and stream.
type Post struct {
	// ID is the post ID.
	ID string `json:"post_id"`
	// Origin is the chat in which the post was made. It is either a chat ID
	// or a special chat such as "home" or "livechat".
	Origin string `json:"post_origin"`
	// Author is the username of the post's author.
	Author string `json:"u"`
	// Content is the text of the post.
	Content string `json:"p"`
	// Type is 1 for regular posts and 2 for inbox posts.
	Type int `json:"type"`
	// Time holds the creation time.
	Time Timestamp `json:"t"`
	// EditedAt is the time of the last edit in seconds since the Unix epoch,
	// or zero if the post was never edited.
	EditedAt int64 `json:"edited_at"`
	// Attachments is the post's attachments.
	Attachments []Attachment `json:"attachments"`
	// Reactions is the post's reactions.
	Reactions []Reaction `json:"reactions"`
	// ReplyTo is the chain of posts this post replies to.
	// Nil elements are deleted or omitted posts.
	ReplyTo []*Post `json:"reply_to"`
	// IsDeleted indicates that the post is deleted.
	IsDeleted bool `json:"isDeleted"`
}

// Timestamp is a post creation timestamp.
type Timestamp struct {
	// Unix is seconds since the Unix epoch.
	Unix int64 `json:"e"`
}

// Created returns the post's creation time.
func (p *Post) Created() time.Time {
	return time.Unix(p.Time.Unix, 0)
}

// valid checks the fields which identify a post.
func (p *Post) valid() bool {
	if p.ID == "" || p.Author == "" {
		return false
	}
	for _, r := range p.ReplyTo {
		if r != nil && !r.valid() {
			return false
		}
	}
	return true
}

// Attachment is an attachment on a post.
type Attachment struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Mime     string `json:"mime"`
	Size     int64  `json:"size"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// Reaction is a count of a single emoji reacted to a post.
type Reaction struct {
	// Emoji is the emoji reacted with.
	Emoji string `json:"emoji"`
	// Count is the number of users who reacted with the emoji.
	Count int `json:"count"`
	// UserReacted indicates whether the logged in user reacted with the emoji.
	UserReacted bool `json:"user_reacted"`
}

// User is a user profile.
type User struct {
	ID          string  `json:"_id"`
	Avatar      string  `json:"avatar"`
	AvatarColor string  `json:"avatar_color"`
	Banned      bool    `json:"banned"`
	Created     *int64  `json:"created"`
	Flags       int64   `json:"flags"`
	LastSeen    *int64  `json:"last_seen"`
	Lower       string  `json:"lower_username"`
	Level       int     `json:"lvl"`
	Permissions *int64  `json:"permissions"`
	PFP         *int64  `json:"pfp_data"`
	Quote       *string `json:"quote"`
	UUID        *string `json:"uuid"`
}

// Upload is an attachment as returned from the uploads server.
type Upload struct {
	ID         string `json:"id"`
	Bucket     string `json:"bucket"`
	Claimed    bool   `json:"claimed"`
	Filename   string `json:"filename"`
	Hash       string `json:"hash"`
	UploadedAt int64  `json:"uploaded_at"`
	UploadedBy string `json:"uploaded_by"`
}

// File is a file to upload as an attachment.
type File struct {
	// Name is the file name.
	Name string
	// Data is the file content.
	Data []byte
}

// PostOptions is the set of options for creating a post.
type PostOptions struct {
	// Replies is the IDs of posts the new post replies to.
	Replies []string
	// Attachments is the IDs of uploaded attachments.
	Attachments []string
	// Chat is the chat to post in. If empty, the post goes to home.
	Chat string
}

// Settings is a partial update of account settings.
// Nil fields are left unchanged.
type Settings struct {
	PFP              *int     `json:"pfp_data,omitempty"`
	Avatar           *string  `json:"avatar,omitempty"`
	AvatarColor      *string  `json:"avatar_color,omitempty"`
	Quote            *string  `json:"quote,omitempty"`
	UnreadInbox      *bool    `json:"unread_inbox,omitempty"`
	Theme            *string  `json:"theme,omitempty"`
	Layout           *string  `json:"layout,omitempty"`
	SFX              *bool    `json:"sfx,omitempty"`
	BGM              *bool    `json:"bgm,omitempty"`
	BGMSong          *int     `json:"bgm_song,omitempty"`
	Debug            *bool    `json:"debug,omitempty"`
	HideBlockedUsers *bool    `json:"hide_blocked_users,omitempty"`
	FavoritedChats   []string `json:"favorited_chats,omitempty"`
}
