package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zephyrtronium/roarbot/audit"
	"github.com/zephyrtronium/roarbot/pattern"
	"github.com/zephyrtronium/roarbot/post"
)

// ErrDuplicate is returned when registering a command whose name is taken.
var ErrDuplicate = errors.New("duplicate command")

// Func is a command handler.
type Func func(ctx context.Context, call *Invocation) error

// Invocation is the context of a single command use.
type Invocation struct {
	// Bot is the bot that received the command.
	Bot *Bot
	// Post is the post that invoked the command.
	Post *post.Post
	// Args is the parsed arguments, one per argument in the pattern.
	Args pattern.Values
	// Command is the invoked command.
	Command Command
	// Log is a logger carrying the invocation's trace.
	Log *slog.Logger
}

// Reply replies to the invoking post.
func (call *Invocation) Reply(ctx context.Context, content string) (*post.Post, error) {
	return call.Post.Reply(ctx, content, post.ReplyOptions{})
}

// CommandOptions is the description of a command.
type CommandOptions struct {
	// Pattern is the command's arguments.
	Pattern pattern.Pattern
	// Description is shown in help.
	Description string
	// Category groups the command in help. If empty, it is "None".
	Category string
	// Admin limits the command to admins.
	Admin bool
}

// Command is a registered command.
type Command struct {
	Name        string
	Pattern     pattern.Pattern
	Description string
	Category    string
	Admin       bool

	fn Func
}

// Register adds a command. The error is ErrDuplicate if the name is already
// registered or a *pattern.PatternError if the pattern is invalid.
func (b *Bot) Register(name string, opts CommandOptions, fn Func) error {
	p := opts.Pattern.Clone()
	if err := p.Validate(); err != nil {
		return fmt.Errorf("couldn't register %s: %w", name, err)
	}
	c := &Command{
		Name:        name,
		Pattern:     p,
		Description: opts.Description,
		Category:    opts.Category,
		Admin:       opts.Admin,
		fn:          fn,
	}
	if c.Category == "" {
		c.Category = "None"
	}
	b.cmdmu.Lock()
	if b.names[name] {
		b.cmdmu.Unlock()
		return fmt.Errorf("couldn't register %s: %w", name, ErrDuplicate)
	}
	b.names[name] = true
	b.cmds = append(b.cmds, c)
	b.cmdmu.Unlock()

	d := b.dispatcher(c)
	b.OnPost(d)
	if b.edits {
		b.OnUpdate(d)
	}
	return nil
}

// Commands returns the registered commands in registration order.
func (b *Bot) Commands() []Command {
	b.cmdmu.Lock()
	defer b.cmdmu.Unlock()
	r := make([]Command, len(b.cmds))
	for i, c := range b.cmds {
		r[i] = *c
		r[i].Pattern = c.Pattern.Clone()
	}
	return r
}

// dispatcher creates the post subscriber for a command.
func (b *Bot) dispatcher(c *Command) func(ctx context.Context, p *post.Post) {
	return func(ctx context.Context, p *post.Post) {
		args, ok := parseCommand(b.Username(), c.Name, p.Content())
		if !ok {
			return
		}
		b.enqueue(ctx, func(ctx context.Context) { b.invoke(ctx, c, p, args) })
	}
}

// parseCommand checks whether text mentions the bot followed by the command
// name and returns the remaining words.
func parseCommand(me, name, text string) ([]string, bool) {
	if me == "" {
		return nil, false
	}
	words := strings.Split(text, " ")
	if len(words) < 2 || !strings.EqualFold(words[0], "@"+me) || words[1] != name {
		return nil, false
	}
	return words[2:], true
}

// Outcomes of invocations, as recorded in metrics and audit logs.
const (
	outcomeOK     = "ok"
	outcomeBanned = "banned"
	outcomeAdmin  = "admin"
	outcomeArgs   = "args"
	outcomeError  = "error"
)

// invoke runs a command through its gates.
func (b *Bot) invoke(ctx context.Context, c *Command, p *post.Post, args []string) {
	trace := uuid.NewString()
	author := p.Author()
	log := b.log.With(
		slog.String("trace", trace),
		slog.String("command", c.Name),
		slog.String("author", author),
		slog.String("chat", p.Origin()),
	)
	log.InfoContext(ctx, "command", slog.Any("args", args))
	start := time.Now()
	outcome := b.gates(ctx, log, c, p, args)
	if b.metrics != nil {
		b.metrics.CommandCount.Observe(1, c.Name, outcome)
		b.metrics.HandlerLatency.Observe(time.Since(start).Seconds(), c.Name)
	}
	if b.audit != nil {
		e := audit.Entry{
			Time:    time.Now(),
			Trace:   trace,
			Command: c.Name,
			Author:  author,
			Chat:    p.Origin(),
			Post:    p.ID(),
			Outcome: outcome,
		}
		if err := b.audit.Record(ctx, e); err != nil {
			log.WarnContext(ctx, "couldn't record command", slog.Any("err", err))
		}
	}
}

// gates checks the user and arguments before running the command handler.
// Each step runs isolated. Errors and panics get one generic reply.
func (b *Bot) gates(ctx context.Context, log *slog.Logger, c *Command, p *post.Post, args []string) string {
	refuse := func(outcome, msg string) string {
		if err := isolate(func() error { _, err := p.Reply(ctx, msg, post.ReplyOptions{}); return err }); err != nil {
			b.handleError(ctx, log, p, err)
			return outcomeError
		}
		return outcome
	}
	author := p.Author()
	if b.banned[author] {
		return refuse(outcomeBanned, b.msgs.Banned)
	}
	if c.Admin && !b.admins[author] {
		return refuse(outcomeAdmin, b.msgs.AdminLocked)
	}
	vals, err := pattern.Parse(c.Pattern, args)
	if err != nil {
		var perr *pattern.ParseError
		if errors.As(err, &perr) {
			return refuse(outcomeArgs, b.msgs.Format(perr))
		}
		b.handleError(ctx, log, p, err)
		return outcomeError
	}
	call := &Invocation{
		Bot:     b,
		Post:    p,
		Args:    vals,
		Command: *c,
		Log:     log,
	}
	if err := isolate(func() error { return c.fn(ctx, call) }); err != nil {
		b.handleError(ctx, log, p, err)
		return outcomeError
	}
	return outcomeOK
}

// handleError logs a failed command and tries to tell the user.
func (b *Bot) handleError(ctx context.Context, log *slog.Logger, p *post.Post, err error) {
	log.ErrorContext(ctx, "command failed", slog.String("text", p.Content()), slog.Any("err", err))
	rerr := isolate(func() error { _, err := p.Reply(ctx, b.msgs.Error, post.ReplyOptions{}); return err })
	if rerr != nil {
		log.ErrorContext(ctx, "couldn't send error reply", slog.Any("err", rerr))
	}
}

// PanicError is a panic recovered from a command.
type PanicError struct {
	// Value is the value passed to panic.
	Value any
	// Stack is the stack trace of the panicking goroutine.
	Stack []byte
}

func (err *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", err.Value)
}

// isolate calls f, converting a panic into an error.
func isolate(f func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return f()
}
