package command

import (
	"context"
	"errors"
	"log/slog"

	"github.com/zephyrtronium/roarbot/bot"
	"github.com/zephyrtronium/roarbot/pattern"
	"github.com/zephyrtronium/roarbot/post"
)

var sayPattern = pattern.MustOf(pattern.Arg{Kind: pattern.Full, Name: "text"})

// Say posts a message in the invoking chat.
//   - text: Message to post.
func Say(ctx context.Context, call *bot.Invocation) error {
	text := call.Args.String(0)
	if text == "" {
		_, err := call.Reply(ctx, "Say what?")
		return err
	}
	p, err := call.Bot.CreatePost(ctx, text, post.Options{Chat: call.Post.Origin()})
	if err != nil {
		return err
	}
	call.Log.InfoContext(ctx, "said", slog.String("id", p.ID()))
	return nil
}

// Unsay deletes the post that the invoking post replies to.
// No arguments.
func Unsay(ctx context.Context, call *bot.Invocation) error {
	var target *post.Post
	for _, p := range call.Post.ReplyTo() {
		if p != nil {
			target = p
			break
		}
	}
	if target == nil {
		_, err := call.Reply(ctx, "Reply to one of my posts to delete it.")
		return err
	}
	err := target.Delete(ctx)
	switch {
	case errors.Is(err, post.ErrNotOwner):
		_, err := call.Reply(ctx, "That's not my post.")
		return err
	case err != nil:
		return err
	}
	call.Log.InfoContext(ctx, "unsaid", slog.String("id", target.ID()))
	return nil
}
