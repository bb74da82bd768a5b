package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zephyrtronium/roarbot/bot"
	"github.com/zephyrtronium/roarbot/meower"
	"github.com/zephyrtronium/roarbot/pattern"
)

var whoisPattern = pattern.MustOf(pattern.Arg{Kind: pattern.String, Name: "user"})

// Whois describes a user's profile.
//   - user: Username to describe.
func Whois(ctx context.Context, call *bot.Invocation) error {
	name := strings.TrimPrefix(call.Args.String(0), "@")
	u, err := call.Bot.User(ctx, name)
	var apierr *meower.Error
	switch {
	case errors.As(err, &apierr) && apierr.Status == 404:
		_, err := call.Reply(ctx, fmt.Sprintf("I don't know anyone named %s.", name))
		return err
	case err != nil:
		return err
	}
	var s strings.Builder
	fmt.Fprintf(&s, "**@%s**", u.ID)
	if u.Banned {
		s.WriteString(" (banned)")
	}
	if u.Quote != nil && *u.Quote != "" {
		fmt.Fprintf(&s, "\n> %s", *u.Quote)
	}
	if u.Created != nil {
		fmt.Fprintf(&s, "\nJoined <t:%d:D>", *u.Created)
	}
	_, err = call.Reply(ctx, s.String())
	return err
}

var colors = map[string]string{
	"red":    "e04040",
	"orange": "f5a442",
	"yellow": "f0e040",
	"green":  "40c040",
	"blue":   "4080f0",
	"purple": "a040e0",
}

var colorPattern = pattern.MustOf(pattern.Arg{
	Kind: pattern.Enum,
	Set:  []string{"red", "orange", "yellow", "green", "blue", "purple"},
	Name: "color",
})

// Color sets the bot's avatar color.
//   - color: Color name.
func Color(ctx context.Context, call *bot.Invocation) error {
	c := colors[call.Args.String(0)]
	if err := call.Bot.SetAccountSettings(ctx, meower.Settings{AvatarColor: &c}); err != nil {
		return err
	}
	_, err := call.Reply(ctx, "My color is now "+call.Args.String(0)+".")
	return err
}
