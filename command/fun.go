package command

import (
	"context"
	"math/rand/v2"

	"gitlab.com/zephyrtronium/pick"

	"github.com/zephyrtronium/roarbot/bot"
	"github.com/zephyrtronium/roarbot/pattern"
)

// Ping replies with a pong.
// No arguments.
func Ping(ctx context.Context, call *bot.Invocation) error {
	_, err := call.Reply(ctx, "Pong!")
	return err
}

var meows = map[string]int{
	"meow":      20,
	"mrrp":      10,
	"mrow":      10,
	"nya":       5,
	"ROAR 🐯":    2,
	"purrrrrrr": 1,
}

// Meow creates a command that replies with a random meow chosen by weight.
// No arguments.
func Meow(weights map[string]int) bot.Func {
	if len(weights) == 0 {
		weights = meows
	}
	d := pick.New(pick.FromMap(weights))
	return func(ctx context.Context, call *bot.Invocation) error {
		_, err := call.Reply(ctx, d.Pick(rand.Uint32()))
		return err
	}
}

var greetPattern = pattern.MustOf(
	pattern.Arg{Kind: pattern.String, Name: "whom"},
	pattern.Arg{Kind: pattern.Full, Name: "greeting", Optional: true},
)

// Greet greets someone.
//   - whom: Who to greet.
//   - greeting: Greeting to use. Defaults to "Hello".
func Greet(ctx context.Context, call *bot.Invocation) error {
	g := call.Args.String(1)
	if g == "" {
		g = "Hello"
	}
	_, err := call.Reply(ctx, g+", "+call.Args.String(0)+"!")
	return err
}
