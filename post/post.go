// Package post provides handles to posts whose state is shared by id.
//
// A Store holds the one current state of each post it knows. Every *Post for
// the same id reads that state, so updates and deletions observed through the
// stream are visible through all handles at once.
package post

import (
	"context"
	"errors"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/zephyrtronium/roarbot/event"
	"github.com/zephyrtronium/roarbot/meower"
)

var (
	// ErrNotLoggedIn is returned by operations which need a logged in
	// session when there is none.
	ErrNotLoggedIn = errors.New("not logged in")
	// ErrNotOwner is returned when deleting a post made by another user.
	ErrNotOwner = errors.New("post belongs to someone else")
)

// Session is the connection on whose behalf posts are made and deleted.
type Session interface {
	// Username returns the logged in username, or the empty string if the
	// session is not logged in.
	Username() string
	// CreatePost creates a post.
	CreatePost(ctx context.Context, content string, opts Options) (*Post, error)
	// DeletePost deletes a post by id.
	DeletePost(ctx context.Context, id string) error
}

// Options is the set of options for creating a post.
type Options struct {
	// Replies is the IDs of posts the new post replies to.
	Replies []string
	// Attachments is the IDs of already uploaded attachments.
	Attachments []string
	// Files is files to upload and attach.
	Files []meower.File
	// Chat is the chat to post in. If empty, the post goes to home.
	Chat string
}

// ReplyOptions is the set of options for replying to a post.
// The reply always goes to the chat of the post it replies to.
type ReplyOptions struct {
	// Attachments is the IDs of already uploaded attachments.
	Attachments []string
	// Files is files to upload and attach.
	Files []meower.File
}

// Reaction is a count of one emoji reacted to a post.
type Reaction struct {
	Emoji string
	Count int
	// Reacted is whether the logged in user reacted with the emoji.
	Reacted bool
}

// Store maps post ids to their current state.
// An entry lives as long as any handle or listener refers to it, or while a
// live entry replies to it.
type Store struct {
	mu    sync.Mutex
	posts map[string]*entry
	sess  Session
}

type entry struct {
	// raw is the current state, without ancestors.
	raw meower.Post
	// parents is the ids of the posts this one replies to, with the empty
	// string where the service gave no ancestor. Every parent is in the store
	// while this entry is.
	parents []string
	deleted bool
	// refs is the number of live handles.
	refs int
	// pins is the number of entries whose parents include this one.
	pins    int
	updated event.Topic[*Post]
	removed event.Topic[*Post]
}

// NewStore creates a store whose posts act through sess.
func NewStore(sess Session) *Store {
	return &Store{
		posts: make(map[string]*entry),
		sess:  sess,
	}
}

// Len returns the number of posts in the store.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.posts)
}

// Wrap returns a handle to raw. If the store already holds the post, the
// existing state is kept. Ancestors of raw which the store does not hold are
// added as well, so updates and deletions reach them.
func (s *Store) Wrap(raw *meower.Post) *Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handleLocked(raw.ID, s.insertLocked(raw))
}

// Apply replaces the state of the post with raw and notifies its update
// listeners. Once deleted, a post stays deleted. If raw has no ancestors,
// the known ones are kept.
func (s *Store) Apply(ctx context.Context, raw *meower.Post) *Post {
	s.mu.Lock()
	e := s.posts[raw.ID]
	if e == nil {
		e = s.insertLocked(raw)
	} else {
		e.raw = flat(raw)
		if len(raw.ReplyTo) != 0 {
			old := e.parents
			e.parents = s.adoptLocked(raw.ReplyTo)
			s.unpinLocked(old)
		}
		e.deleted = e.deleted || raw.IsDeleted
	}
	p := s.handleLocked(raw.ID, e)
	s.mu.Unlock()
	e.updated.Publish(ctx, p)
	return p
}

// MarkDeleted marks a post deleted and notifies its delete listeners.
// It reports whether the store held the post.
func (s *Store) MarkDeleted(ctx context.Context, id string) bool {
	s.mu.Lock()
	e := s.posts[id]
	if e == nil {
		s.mu.Unlock()
		return false
	}
	e.deleted = true
	p := s.handleLocked(id, e)
	s.mu.Unlock()
	e.removed.Publish(ctx, p)
	return true
}

// insertLocked returns the entry for raw, creating it and its missing
// ancestors if needed.
func (s *Store) insertLocked(raw *meower.Post) *entry {
	e := s.posts[raw.ID]
	if e != nil {
		return e
	}
	e = &entry{raw: flat(raw), deleted: raw.IsDeleted}
	s.posts[raw.ID] = e
	e.parents = s.adoptLocked(raw.ReplyTo)
	return e
}

// adoptLocked inserts ancestors and pins them.
func (s *Store) adoptLocked(ancestors []*meower.Post) []string {
	ids := make([]string, len(ancestors))
	for i, a := range ancestors {
		if a == nil {
			continue
		}
		s.insertLocked(a).pins++
		ids[i] = a.ID
	}
	return ids
}

// unpinLocked releases ancestors pinned by adoptLocked.
func (s *Store) unpinLocked(ids []string) {
	for _, id := range ids {
		if e := s.posts[id]; e != nil {
			e.pins--
			s.evictLocked(id, e)
		}
	}
}

// evictLocked removes an entry if nothing refers to it.
func (s *Store) evictLocked(id string, e *entry) {
	if e.refs > 0 || e.pins > 0 || e.updated.Len() != 0 || e.removed.Len() != 0 {
		return
	}
	delete(s.posts, id)
	s.unpinLocked(e.parents)
}

func (s *Store) handleLocked(id string, e *entry) *Post {
	e.refs++
	p := &Post{id: id, store: s}
	runtime.AddCleanup(p, s.release, id)
	return p
}

func (s *Store) release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.posts[id]
	if e == nil {
		return
	}
	e.refs--
	s.evictLocked(id, e)
}

// flat copies raw without its ancestors, deeply enough that later changes to
// raw are not observed.
func flat(raw *meower.Post) meower.Post {
	r := *raw
	r.Attachments = slices.Clone(raw.Attachments)
	r.Reactions = slices.Clone(raw.Reactions)
	r.ReplyTo = nil
	return r
}

// rawLocked rebuilds the wire form of a post with its ancestors' current
// states.
func (s *Store) rawLocked(e *entry, seen map[string]bool) meower.Post {
	r := flat(&e.raw)
	r.IsDeleted = e.deleted
	if len(e.parents) == 0 {
		return r
	}
	r.ReplyTo = make([]*meower.Post, len(e.parents))
	for i, id := range e.parents {
		a := s.posts[id]
		if a == nil || seen[id] {
			continue
		}
		seen[id] = true
		c := s.rawLocked(a, seen)
		delete(seen, id)
		r.ReplyTo[i] = &c
	}
	return r
}

// Post is a handle to a post in a Store.
type Post struct {
	id    string
	store *Store
}

// with calls f with the post's entry while holding the store lock.
func (p *Post) with(f func(e *entry)) {
	p.store.mu.Lock()
	defer p.store.mu.Unlock()
	f(p.store.posts[p.id])
}

// ID returns the post ID.
func (p *Post) ID() string {
	return p.id
}

// Author returns the username of the post's author.
func (p *Post) Author() (r string) {
	p.with(func(e *entry) { r = e.raw.Author })
	return r
}

// Content returns the text of the post.
func (p *Post) Content() (r string) {
	p.with(func(e *entry) { r = e.raw.Content })
	return r
}

// Origin returns the chat the post was made in.
func (p *Post) Origin() (r string) {
	p.with(func(e *entry) { r = e.raw.Origin })
	return r
}

// CreatedAt returns the post's creation time.
func (p *Post) CreatedAt() (r time.Time) {
	p.with(func(e *entry) { r = e.raw.Created() })
	return r
}

// EditedAt returns the time of the last edit, if the post was ever edited.
func (p *Post) EditedAt() (t time.Time, ok bool) {
	p.with(func(e *entry) {
		if e.raw.EditedAt != 0 {
			t, ok = time.Unix(e.raw.EditedAt, 0), true
		}
	})
	return t, ok
}

// Reactions returns the reactions to the post.
func (p *Post) Reactions() []Reaction {
	var r []Reaction
	p.with(func(e *entry) {
		r = make([]Reaction, len(e.raw.Reactions))
		for i, v := range e.raw.Reactions {
			r[i] = Reaction{Emoji: v.Emoji, Count: v.Count, Reacted: v.UserReacted}
		}
	})
	return r
}

// Attachments returns the post's attachments.
func (p *Post) Attachments() (r []meower.Attachment) {
	p.with(func(e *entry) { r = slices.Clone(e.raw.Attachments) })
	return r
}

// ReplyTo returns handles to the posts this post replies to.
// Elements are nil where the service gave no ancestor.
func (p *Post) ReplyTo() []*Post {
	var r []*Post
	p.with(func(e *entry) {
		r = make([]*Post, len(e.parents))
		for i, id := range e.parents {
			if a := p.store.posts[id]; a != nil {
				r[i] = p.store.handleLocked(id, a)
			}
		}
	})
	return r
}

// Deleted reports whether the post has been deleted.
func (p *Post) Deleted() (r bool) {
	p.with(func(e *entry) { r = e.deleted })
	return r
}

// Raw returns a copy of the post's current wire state.
func (p *Post) Raw() (r meower.Post) {
	p.with(func(e *entry) { r = p.store.rawLocked(e, map[string]bool{p.id: true}) })
	return r
}

// Reply creates a post replying to p in the same chat.
func (p *Post) Reply(ctx context.Context, content string, opts ReplyOptions) (*Post, error) {
	o := Options{
		Replies:     []string{p.id},
		Attachments: opts.Attachments,
		Files:       opts.Files,
		Chat:        p.Origin(),
	}
	return p.store.sess.CreatePost(ctx, content, o)
}

// Delete deletes the post. Only the post's author can delete it.
func (p *Post) Delete(ctx context.Context) error {
	u := p.store.sess.Username()
	if u == "" {
		return ErrNotLoggedIn
	}
	if !strings.EqualFold(p.Author(), u) {
		return ErrNotOwner
	}
	return p.store.sess.DeletePost(ctx, p.id)
}

// OnUpdate subscribes fn to updates of the post.
// The returned function removes the subscription.
func (p *Post) OnUpdate(fn func(ctx context.Context, p *Post)) (dispose func()) {
	return p.listen(func(e *entry) *event.Topic[*Post] { return &e.updated }, fn)
}

// OnDelete subscribes fn to deletion of the post.
// The returned function removes the subscription.
func (p *Post) OnDelete(fn func(ctx context.Context, p *Post)) (dispose func()) {
	return p.listen(func(e *entry) *event.Topic[*Post] { return &e.removed }, fn)
}

func (p *Post) listen(topic func(e *entry) *event.Topic[*Post], fn func(ctx context.Context, p *Post)) func() {
	var t *event.Topic[*Post]
	p.with(func(e *entry) { t = topic(e) })
	d := t.Subscribe(fn)
	id, s := p.id, p.store
	return func() {
		d()
		// Dropping the last listener may make the entry collectable.
		s.mu.Lock()
		defer s.mu.Unlock()
		if e := s.posts[id]; e != nil {
			s.evictLocked(id, e)
		}
	}
}
