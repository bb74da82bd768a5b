// Package bot connects to Meower and dispatches commands addressed to the bot.
package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"

	"github.com/zephyrtronium/roarbot/audit"
	"github.com/zephyrtronium/roarbot/event"
	"github.com/zephyrtronium/roarbot/meower"
	"github.com/zephyrtronium/roarbot/metrics"
	"github.com/zephyrtronium/roarbot/post"
)

// ErrLoggedIn is returned by Login when the bot has already logged in.
var ErrLoggedIn = errors.New("already logged in")

// Remote is the chat service a bot talks to.
type Remote interface {
	// Login exchanges credentials for a token.
	Login(ctx context.Context, username, password string) (string, error)
	// Connect opens a stream with a token.
	Connect(ctx context.Context, token string) (Stream, error)
	CreatePost(ctx context.Context, token, content string, opts meower.PostOptions) (*meower.Post, error)
	DeletePost(ctx context.Context, token, id string) error
	User(ctx context.Context, username string) (*meower.User, error)
	Upload(ctx context.Context, token string, f meower.File) (*meower.Upload, error)
	SetAccountSettings(ctx context.Context, token string, s meower.Settings) error
}

// Stream is a stream of frames from the chat service.
type Stream interface {
	// Recv gets the next frame. It returns io.EOF or a normal closure when
	// the stream ends.
	Recv(ctx context.Context) (*meower.Frame, error)
	Close() error
}

// Meower adapts a Meower client to a Remote.
func Meower(c *meower.Client) Remote {
	return meowerRemote{c}
}

type meowerRemote struct {
	*meower.Client
}

func (r meowerRemote) Connect(ctx context.Context, token string) (Stream, error) {
	s, err := r.Client.Connect(ctx, token)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Recorder records command invocations.
type Recorder interface {
	Record(ctx context.Context, e audit.Entry) error
}

// Config is the configuration of a bot.
type Config struct {
	// Admins is the usernames allowed to use admin commands.
	Admins []string
	// Banned is the usernames not allowed to use any commands.
	Banned []string
	// DisableHelp disables the automatic help command.
	DisableHelp bool
	// Edits makes edited posts invoke commands as well as new ones.
	Edits bool
	// Messages overrides the messages the bot sends. Empty fields use the
	// defaults.
	Messages Messages
	// Log is the logger for the bot. If nil, slog.Default() is used.
	Log *slog.Logger
	// Metrics receives observations of the bot's activity. May be nil.
	Metrics *metrics.Metrics
	// Audit receives command invocations. May be nil.
	Audit Recorder
}

// Bot is a Meower bot.
type Bot struct {
	remote  Remote
	log     *slog.Logger
	metrics *metrics.Metrics
	audit   Recorder
	msgs    Messages
	admins  map[string]bool
	banned  map[string]bool
	edits   bool
	posts   *post.Store

	// mu guards the session.
	mu sync.Mutex
	// pending is the username given to Login, until the stream confirms it.
	pending  string
	username string
	token    string
	stream   Stream
	busy     bool

	// cmdmu guards the command registry.
	cmdmu sync.Mutex
	cmds  []*Command
	names map[string]bool

	login   event.Topic[string]
	created event.Topic[*post.Post]
	updated event.Topic[*post.Post]
	deleted event.Topic[string]

	pool atomic.Pointer[pool]
}

// New creates a bot. Unless cfg.DisableHelp is set, the bot has a help
// command already registered.
func New(remote Remote, cfg Config) *Bot {
	b := &Bot{
		remote:  remote,
		log:     cfg.Log,
		metrics: cfg.Metrics,
		audit:   cfg.Audit,
		msgs:    cfg.Messages.Merge(DefaultMessages),
		admins:  set(cfg.Admins),
		banned:  set(cfg.Banned),
		edits:   cfg.Edits,
		names:   make(map[string]bool),
	}
	if b.log == nil {
		b.log = slog.Default()
	}
	b.posts = post.NewStore(b)
	if !cfg.DisableHelp {
		opts := CommandOptions{Description: b.msgs.HelpDescription}
		if err := b.Register("help", opts, b.help); err != nil {
			panic(fmt.Errorf("bot: couldn't register help: %w", err))
		}
	}
	return b
}

func set(s []string) map[string]bool {
	m := make(map[string]bool, len(s))
	for _, v := range s {
		m[v] = true
	}
	return m
}

// Login logs in and opens the stream. Frames are not processed until Serve
// is called. A bot can log in only once; later calls return ErrLoggedIn.
func (b *Bot) Login(ctx context.Context, username, password string) error {
	b.mu.Lock()
	if b.stream != nil || b.busy {
		b.mu.Unlock()
		return ErrLoggedIn
	}
	b.busy = true
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		b.busy = false
		b.mu.Unlock()
	}()

	tok, err := b.remote.Login(ctx, username, password)
	if err != nil {
		return fmt.Errorf("couldn't log in as %s: %w", username, err)
	}
	s, err := b.remote.Connect(ctx, tok)
	if err != nil {
		return err
	}
	b.log.InfoContext(ctx, "connected", slog.String("username", username))
	b.mu.Lock()
	b.pending, b.token, b.stream = username, tok, s
	b.mu.Unlock()
	return nil
}

// Serve processes frames from the stream until it closes or ctx is canceled.
// Serve waits for running commands to finish before returning.
func (b *Bot) Serve(ctx context.Context) error {
	b.mu.Lock()
	s := b.stream
	b.mu.Unlock()
	if s == nil {
		return post.ErrNotLoggedIn
	}
	defer s.Close()

	// Workers outlive ctx so that work already queued finishes.
	wctx, stop := context.WithCancel(context.WithoutCancel(ctx))
	p := &pool{ctx: wctx, works: make(chan chan func(context.Context), 16)}
	b.pool.Store(p)
	defer func() {
		p.wg.Wait()
		stop()
		b.pool.CompareAndSwap(p, nil)
	}()

	for {
		f, err := s.Recv(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				b.log.InfoContext(ctx, "stream closed", slog.String("reason", "canceled"))
				return nil
			case errors.Is(err, io.EOF), websocket.CloseStatus(err) == websocket.StatusNormalClosure:
				b.log.InfoContext(ctx, "stream closed", slog.String("reason", "remote"))
				return nil
			}
			b.log.ErrorContext(ctx, "stream closed", slog.Any("err", err))
			return fmt.Errorf("stream closed: %w", err)
		}
		b.frame(ctx, f)
	}
}

// frame handles a single frame.
func (b *Bot) frame(ctx context.Context, f *meower.Frame) {
	if b.metrics != nil {
		b.metrics.FrameCount.Observe(1, f.Cmd)
	}
	switch f.Cmd {
	case "auth":
		a, err := f.DecodeAuth()
		if err != nil {
			b.log.WarnContext(ctx, "ignoring malformed frame", slog.String("cmd", f.Cmd), slog.Any("err", err))
			return
		}
		b.mu.Lock()
		b.username = b.pending
		if a.Token != "" {
			b.token = a.Token
		}
		u := b.username
		b.mu.Unlock()
		b.log.InfoContext(ctx, "logged in", slog.String("username", u))
		b.login.Publish(ctx, u)
	case "post", "update_post":
		raw, err := f.DecodePost()
		if err != nil {
			b.log.WarnContext(ctx, "ignoring malformed frame", slog.String("cmd", f.Cmd), slog.Any("err", err))
			return
		}
		if f.Cmd == "post" {
			b.created.Publish(ctx, b.posts.Wrap(raw))
		} else {
			b.updated.Publish(ctx, b.posts.Apply(ctx, raw))
		}
	case "delete_post":
		d, err := f.DecodeDeleted()
		if err != nil {
			b.log.WarnContext(ctx, "ignoring malformed frame", slog.String("cmd", f.Cmd), slog.Any("err", err))
			return
		}
		b.posts.MarkDeleted(ctx, d.ID)
		b.deleted.Publish(ctx, d.ID)
	default:
		b.log.DebugContext(ctx, "ignoring frame", slog.String("cmd", f.Cmd))
	}
}

// OnLogin subscribes fn to the stream confirming the login.
// The returned function removes the subscription.
func (b *Bot) OnLogin(fn func(ctx context.Context, username string)) (dispose func()) {
	return b.login.Subscribe(fn)
}

// OnPost subscribes fn to new posts.
// The returned function removes the subscription.
func (b *Bot) OnPost(fn func(ctx context.Context, p *post.Post)) (dispose func()) {
	return b.created.Subscribe(fn)
}

// OnUpdate subscribes fn to edited posts.
// The returned function removes the subscription.
func (b *Bot) OnUpdate(fn func(ctx context.Context, p *post.Post)) (dispose func()) {
	return b.updated.Subscribe(fn)
}

// OnDelete subscribes fn to deleted posts by id.
// The returned function removes the subscription.
func (b *Bot) OnDelete(fn func(ctx context.Context, id string)) (dispose func()) {
	return b.deleted.Subscribe(fn)
}

// Username returns the logged in username, or the empty string before the
// stream confirms the login.
func (b *Bot) Username() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.username
}

// session returns the token if the bot is logged in.
func (b *Bot) session() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.username == "" {
		return "", post.ErrNotLoggedIn
	}
	return b.token, nil
}

// CreatePost creates a post. Files are uploaded and attached first.
func (b *Bot) CreatePost(ctx context.Context, content string, opts post.Options) (*post.Post, error) {
	tok, err := b.session()
	if err != nil {
		return nil, err
	}
	att := slices.Clone(opts.Attachments)
	for _, f := range opts.Files {
		up, err := b.upload(ctx, tok, f)
		if err != nil {
			return nil, err
		}
		att = append(att, up.ID)
	}
	o := meower.PostOptions{
		Replies:     opts.Replies,
		Attachments: att,
		Chat:        opts.Chat,
	}
	raw, err := b.remote.CreatePost(ctx, tok, content, o)
	if err != nil {
		return nil, err
	}
	if b.metrics != nil {
		b.metrics.PostCount.Observe(1)
	}
	return b.posts.Wrap(raw), nil
}

// DeletePost deletes a post by id.
func (b *Bot) DeletePost(ctx context.Context, id string) error {
	tok, err := b.session()
	if err != nil {
		return err
	}
	return b.remote.DeletePost(ctx, tok, id)
}

// User gets a user's profile.
func (b *Bot) User(ctx context.Context, username string) (*meower.User, error) {
	return b.remote.User(ctx, username)
}

// Upload uploads an attachment.
func (b *Bot) Upload(ctx context.Context, f meower.File) (*meower.Upload, error) {
	if len(f.Data) > meower.MaxUpload {
		return nil, fmt.Errorf("couldn't upload %s: %w", f.Name, meower.ErrTooLarge)
	}
	tok, err := b.session()
	if err != nil {
		return nil, err
	}
	return b.upload(ctx, tok, f)
}

func (b *Bot) upload(ctx context.Context, tok string, f meower.File) (*meower.Upload, error) {
	if len(f.Data) > meower.MaxUpload {
		return nil, fmt.Errorf("couldn't upload %s: %w", f.Name, meower.ErrTooLarge)
	}
	return b.remote.Upload(ctx, tok, f)
}

// SetAccountSettings updates the bot account's settings.
func (b *Bot) SetAccountSettings(ctx context.Context, s meower.Settings) error {
	tok, err := b.session()
	if err != nil {
		return err
	}
	return b.remote.SetAccountSettings(ctx, tok, s)
}
