// Package meower implements the parts of the Meower API used by bots.
package meower

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/go-json-experiment/json"
	"golang.org/x/time/rate"
)

// MaxUpload is the largest attachment the uploads server accepts, in bytes.
const MaxUpload = 25 << 20

// Default endpoints.
const (
	DefaultAPI     = "https://api.meower.org"
	DefaultServer  = "wss://server.meower.org"
	DefaultUploads = "https://uploads.meower.org"
)

// Client holds the context for requests to Meower.
type Client struct {
	// HTTP is the HTTP client for performing requests.
	// If nil, http.DefaultClient is used.
	HTTP *http.Client
	// API is the base URL of the REST API. If empty, DefaultAPI is used.
	API string
	// Server is the base URL of the stream server. If empty, DefaultServer
	// is used.
	Server string
	// Uploads is the base URL of the uploads server. If empty,
	// DefaultUploads is used.
	Uploads string
	// Rate limits requests which create or change data. If nil, there is no
	// limit.
	Rate *rate.Limiter
	// Log receives stream diagnostics. If nil, slog.Default() is used.
	Log *slog.Logger
}

func (c *Client) logger() *slog.Logger {
	if c.Log == nil {
		return slog.Default()
	}
	return c.Log
}

// ErrTooLarge is returned when an attachment exceeds MaxUpload.
var ErrTooLarge = errors.New("attachment too large")

// Error is an error response from the Meower API.
type Error struct {
	// Op is the operation that failed.
	Op string
	// Status is the HTTP status code.
	Status int
	// Type is the error type reported by the API, if any.
	Type string
}

func (err *Error) Error() string {
	if err.Type != "" {
		return fmt.Sprintf("couldn't %s: %s (%d)", err.Op, err.Type, err.Status)
	}
	return fmt.Sprintf("couldn't %s: %d %s", err.Op, err.Status, http.StatusText(err.Status))
}

// status is the error envelope shared by API responses.
type status struct {
	Error bool   `json:"error"`
	Type  string `json:"type"`
}

func (c *Client) client() *http.Client {
	if c.HTTP == nil {
		return http.DefaultClient
	}
	return c.HTTP
}

func (c *Client) wait(ctx context.Context) error {
	if c.Rate == nil {
		return nil
	}
	return c.Rate.Wait(ctx)
}

// apiurl creates a URL for the given API endpoint.
func (c *Client) apiurl(ep string, values url.Values) string {
	base := c.API
	if base == "" {
		base = DefaultAPI
	}
	u, err := url.JoinPath(base, ep)
	if err != nil {
		panic("meower: bad url join with " + ep)
	}
	if len(values) == 0 {
		return u
	}
	return u + "?" + values.Encode()
}

// do performs a request and returns the response body.
// The response body is truncated to 2 MB.
func (c *Client) do(ctx context.Context, req *http.Request) (*http.Response, []byte, error) {
	resp, err := c.client().Do(req.WithContext(ctx))
	if err != nil {
		return nil, nil, fmt.Errorf("couldn't %s: %w", req.Method, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return resp, nil, fmt.Errorf("couldn't read response: %w", err)
	}
	return resp, b, nil
}

// reqjson performs an API request with an optional JSON body and decodes an
// API response into u. A response with error set becomes an *Error.
func reqjson[Resp any](ctx context.Context, c *Client, op, method, url, token string, body any, u *Resp) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("couldn't encode request: %w", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, r)
	if err != nil {
		return fmt.Errorf("couldn't make request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Token", token)
	}
	resp, b, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	var s status
	if err := json.Unmarshal(b, &s); err != nil {
		if resp.StatusCode/100 != 2 {
			return &Error{Op: op, Status: resp.StatusCode}
		}
		return fmt.Errorf("couldn't decode JSON response: %w", err)
	}
	if s.Error || resp.StatusCode/100 != 2 {
		return &Error{Op: op, Status: resp.StatusCode, Type: s.Type}
	}
	if u == nil {
		return nil
	}
	if err := json.Unmarshal(b, u, json.DiscardUnknownMembers(true)); err != nil {
		return fmt.Errorf("couldn't decode JSON response: %w", err)
	}
	return nil
}

// Login exchanges a username and password for a token.
// If the API rejects the credentials, the error is an *Error whose Type is
// the reason given by the API.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	body := struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}{username, password}
	var r struct {
		Token string `json:"token"`
	}
	if err := reqjson(ctx, c, "log in", "POST", c.apiurl("/auth/login", nil), "", &body, &r); err != nil {
		return "", err
	}
	if r.Token == "" {
		return "", &Error{Op: "log in", Status: http.StatusOK, Type: "missingToken"}
	}
	return r.Token, nil
}

// CreatePost creates a post.
func (c *Client) CreatePost(ctx context.Context, token, content string, opts PostOptions) (*Post, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	ep := "/home"
	if opts.Chat != "" && opts.Chat != "home" {
		ep = "/posts/" + url.PathEscape(opts.Chat)
	}
	body := struct {
		Content     string   `json:"content"`
		Replies     []string `json:"reply_to,omitempty"`
		Attachments []string `json:"attachments,omitempty"`
	}{content, opts.Replies, opts.Attachments}
	var p Post
	if err := reqjson(ctx, c, "post", "POST", c.apiurl(ep, nil), token, &body, &p); err != nil {
		return nil, err
	}
	if !p.valid() {
		return nil, fmt.Errorf("couldn't post: malformed post in response")
	}
	return &p, nil
}

// DeletePost deletes a post.
func (c *Client) DeletePost(ctx context.Context, token, id string) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, "DELETE", c.apiurl("/posts", url.Values{"id": {id}}), nil)
	if err != nil {
		return fmt.Errorf("couldn't make request: %w", err)
	}
	req.Header.Set("Token", token)
	resp, _, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	if resp.StatusCode/100 != 2 {
		return &Error{Op: "delete post", Status: resp.StatusCode}
	}
	return nil
}

// User gets a user's profile.
func (c *Client) User(ctx context.Context, username string) (*User, error) {
	var u User
	if err := reqjson(ctx, c, "get user", "GET", c.apiurl("/users/"+url.PathEscape(username), nil), "", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Upload uploads an attachment for use in posts.
// Files larger than MaxUpload are rejected with ErrTooLarge without
// contacting the server.
func (c *Client) Upload(ctx context.Context, token string, f File) (*Upload, error) {
	if len(f.Data) > MaxUpload {
		return nil, fmt.Errorf("couldn't upload %s: %w (%d bytes, limit %d)", f.Name, ErrTooLarge, len(f.Data), MaxUpload)
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", f.Name)
	if err != nil {
		return nil, fmt.Errorf("couldn't create form: %w", err)
	}
	if _, err := fw.Write(f.Data); err != nil {
		return nil, fmt.Errorf("couldn't write form: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("couldn't finish form: %w", err)
	}
	base := c.Uploads
	if base == "" {
		base = DefaultUploads
	}
	u, err := url.JoinPath(base, "/attachments")
	if err != nil {
		panic("meower: bad uploads url " + base)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", u, &buf)
	if err != nil {
		return nil, fmt.Errorf("couldn't make request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", token)
	resp, b, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		return nil, &Error{Op: "upload", Status: resp.StatusCode}
	}
	var r Upload
	if err := json.Unmarshal(b, &r, json.DiscardUnknownMembers(true)); err != nil {
		return nil, fmt.Errorf("couldn't decode upload response: %w", err)
	}
	return &r, nil
}

// SetAccountSettings updates the settings of the logged in account.
func (c *Client) SetAccountSettings(ctx context.Context, token string, s Settings) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	b, err := json.Marshal(&s)
	if err != nil {
		return fmt.Errorf("couldn't encode settings: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "PATCH", c.apiurl("/me/config", nil), bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("couldn't make request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Token", token)
	resp, _, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	if resp.StatusCode/100 != 2 {
		return &Error{Op: "set account settings", Status: resp.StatusCode}
	}
	return nil
}
