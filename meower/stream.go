package meower

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/coder/websocket"
	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// Frame is a message received on the stream.
type Frame struct {
	// Cmd is the frame kind, e.g. "auth", "post", "update_post", or
	// "delete_post".
	Cmd string `json:"cmd"`
	// Val is the frame payload. Its shape depends on Cmd.
	Val jsontext.Value `json:"val"`
}

// Auth is the payload of an auth frame.
type Auth struct {
	Token string `json:"token"`
}

// Deleted is the payload of a delete_post frame.
type Deleted struct {
	ID string `json:"post_id"`
}

// DecodeAuth decodes the payload of an auth frame.
func (f *Frame) DecodeAuth() (*Auth, error) {
	var a Auth
	if err := json.Unmarshal(f.Val, &a, json.DiscardUnknownMembers(true)); err != nil {
		return nil, fmt.Errorf("couldn't decode auth frame: %w", err)
	}
	return &a, nil
}

// DecodePost decodes the payload of a post or update_post frame.
func (f *Frame) DecodePost() (*Post, error) {
	var p Post
	if err := json.Unmarshal(f.Val, &p, json.DiscardUnknownMembers(true)); err != nil {
		return nil, fmt.Errorf("couldn't decode %s frame: %w", f.Cmd, err)
	}
	if !p.valid() {
		return nil, fmt.Errorf("couldn't decode %s frame: missing post id or author", f.Cmd)
	}
	return &p, nil
}

// DecodeDeleted decodes the payload of a delete_post frame.
func (f *Frame) DecodeDeleted() (*Deleted, error) {
	var d Deleted
	if err := json.Unmarshal(f.Val, &d, json.DiscardUnknownMembers(true)); err != nil {
		return nil, fmt.Errorf("couldn't decode delete_post frame: %w", err)
	}
	if d.ID == "" {
		return nil, fmt.Errorf("couldn't decode delete_post frame: missing post id")
	}
	return &d, nil
}

// Stream is a connection to the Meower stream server.
type Stream struct {
	conn *websocket.Conn
	log  *slog.Logger
}

// Connect opens a stream authenticated with the given token.
func (c *Client) Connect(ctx context.Context, token string) (*Stream, error) {
	var opts *websocket.DialOptions
	if c.HTTP != nil {
		opts = &websocket.DialOptions{
			HTTPClient: c.HTTP,
		}
	}
	base := c.Server
	if base == "" {
		base = DefaultServer
	}
	u := base + "?" + url.Values{"v": {"1"}, "token": {token}}.Encode()
	log := c.logger()
	log.DebugContext(ctx, "dial stream", slog.String("server", base))
	conn, resp, err := websocket.Dial(ctx, u, opts)
	if err != nil {
		if resp != nil && resp.Body != nil {
			b := make([]byte, 1024)
			n, _ := resp.Body.Read(b)
			b = b[:n]
			return nil, fmt.Errorf("couldn't connect to stream: %w (%s)", err, b)
		}
		return nil, fmt.Errorf("couldn't connect to stream: %w", err)
	}
	conn.SetReadLimit(1 << 20)
	return &Stream{conn: conn, log: log}, nil
}

// Recv gets the next frame.
// Messages which are not JSON objects are skipped.
//
// Note that the context becoming done during a call to Recv will cause the
// connection to close as well.
func (s *Stream) Recv(ctx context.Context) (*Frame, error) {
	for {
		_, m, err := s.conn.Read(ctx)
		if err != nil {
			return nil, err
		}
		var f Frame
		if err := json.Unmarshal(m, &f, json.DiscardUnknownMembers(true)); err != nil {
			s.log.DebugContext(ctx, "skip stream message", slog.String("err", err.Error()))
			continue
		}
		s.log.DebugContext(ctx, "stream frame", slog.String("cmd", f.Cmd))
		return &f, nil
	}
}

// Close closes the stream.
func (s *Stream) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "")
}
