package command

import (
	"context"

	"github.com/zephyrtronium/roarbot/bot"
	"github.com/zephyrtronium/roarbot/pattern"
)

var addPattern = pattern.MustOf("number", "number")

// Add adds two numbers.
//   - 0: First addend.
//   - 1: Second addend.
func Add(ctx context.Context, call *bot.Invocation) error {
	sum := pattern.Num(call.Args.Number(0) + call.Args.Number(1))
	_, err := call.Reply(ctx, sum.String())
	return err
}
