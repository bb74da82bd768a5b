package meower

import (
	"context"
	"embed"
	"errors"
	"io"
	"net/http"
	"path"
	"strings"
	"testing"

	"github.com/go-json-experiment/json"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"golang.org/x/time/rate"
)

type reqspy struct {
	// got is the first request the round tripper received.
	got *http.Request
	// body is the body of the received request.
	body []byte
	// respond is the response the round tripper returns.
	respond *http.Response
}

func (r *reqspy) RoundTrip(req *http.Request) (*http.Response, error) {
	if r.got != nil {
		return nil, errors.New("already have a request")
	}
	r.got = req
	if req.Body != nil {
		b, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		r.body = b
	}
	return r.respond, nil
}

//go:embed testdata/*.json
var jsonFiles embed.FS

// apiresp creates a reqspy responding with the given testdata document.
func apiresp(status int, file string) *reqspy {
	f, err := jsonFiles.Open(path.Join("testdata/", file))
	if err != nil {
		panic(err)
	}
	return &reqspy{
		respond: &http.Response{
			StatusCode: status,
			Body:       f,
		},
	}
}

// textresp creates a reqspy responding with the given text.
func textresp(status int, body string) *reqspy {
	return &reqspy{
		respond: &http.Response{
			StatusCode: status,
			Body:       io.NopCloser(strings.NewReader(body)),
		},
	}
}

func testClient(spy *reqspy) *Client {
	return &Client{
		HTTP:    &http.Client{Transport: spy},
		API:     "https://api.meower.test",
		Uploads: "https://uploads.meower.test",
	}
}

func TestLogin(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		spy := textresp(200, `{"error":false,"token":"tkn","account":{}}`)
		tok, err := testClient(spy).Login(context.Background(), "roarbot", "hunter2")
		if err != nil {
			t.Fatalf("couldn't log in: %v", err)
		}
		if tok != "tkn" {
			t.Errorf("wrong token: want %q, got %q", "tkn", tok)
		}
		if got := spy.got.URL.String(); got != "https://api.meower.test/auth/login" {
			t.Errorf("request went to the wrong place: %q", got)
		}
		if spy.got.Method != "POST" {
			t.Errorf("wrong method %q", spy.got.Method)
		}
		var body map[string]string
		if err := json.Unmarshal(spy.body, &body); err != nil {
			t.Fatalf("couldn't decode request body %q: %v", spy.body, err)
		}
		want := map[string]string{"username": "roarbot", "password": "hunter2"}
		if diff := cmp.Diff(want, body); diff != "" {
			t.Errorf("wrong request body (+got/-want):\n%s", diff)
		}
	})
	t.Run("rejected", func(t *testing.T) {
		spy := textresp(401, `{"error":true,"type":"invalidCredentials"}`)
		_, err := testClient(spy).Login(context.Background(), "roarbot", "hunter3")
		var apierr *Error
		if !errors.As(err, &apierr) {
			t.Fatalf("wrong error: want *Error, got %v", err)
		}
		if apierr.Type != "invalidCredentials" || apierr.Status != 401 {
			t.Errorf("wrong error contents: %+v", apierr)
		}
	})
	t.Run("rejected-ok-status", func(t *testing.T) {
		spy := textresp(200, `{"error":true,"type":"accountBanned"}`)
		_, err := testClient(spy).Login(context.Background(), "roarbot", "hunter2")
		var apierr *Error
		if !errors.As(err, &apierr) {
			t.Fatalf("wrong error: want *Error, got %v", err)
		}
		if apierr.Type != "accountBanned" {
			t.Errorf("wrong error type %q", apierr.Type)
		}
	})
}

func wantPost() *Post {
	return &Post{
		ID:        "b3e3d1f8-0a4e-4b7e-9d1c-3a8f7c1e2d4b",
		Origin:    "home",
		Author:    "roarbot",
		Content:   "pong",
		Type:      1,
		Time:      Timestamp{Unix: 1729300000},
		Reactions: []Reaction{{Emoji: "🐯", Count: 2}},
		ReplyTo: []*Post{
			{
				ID:      "0c6a1d55-5d0b-4f52-8e0f-4f5fbb1ad1f0",
				Origin:  "home",
				Author:  "tiger",
				Content: "@roarbot ping",
				Type:    1,
				Time:    Timestamp{Unix: 1729299990},
			},
			nil,
		},
	}
}

func TestCreatePost(t *testing.T) {
	cases := []struct {
		name string
		chat string
		url  string
	}{
		{"default", "", "https://api.meower.test/home"},
		{"home", "home", "https://api.meower.test/home"},
		{"chat", "livechat", "https://api.meower.test/posts/livechat"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			spy := apiresp(200, "post.json")
			opts := PostOptions{Replies: []string{"0c6a1d55-5d0b-4f52-8e0f-4f5fbb1ad1f0"}, Chat: c.chat}
			p, err := testClient(spy).CreatePost(context.Background(), "tkn", "pong", opts)
			if err != nil {
				t.Fatalf("couldn't post: %v", err)
			}
			if diff := cmp.Diff(wantPost(), p, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("wrong post (+got/-want):\n%s", diff)
			}
			if got := spy.got.URL.String(); got != c.url {
				t.Errorf("request went to the wrong place: want %q, got %q", c.url, got)
			}
			if got := spy.got.Header.Get("Token"); got != "tkn" {
				t.Errorf("wrong token header %q", got)
			}
			var body struct {
				Content     string   `json:"content"`
				Replies     []string `json:"reply_to"`
				Attachments []string `json:"attachments"`
			}
			if err := json.Unmarshal(spy.body, &body); err != nil {
				t.Fatalf("couldn't decode request body %q: %v", spy.body, err)
			}
			if body.Content != "pong" {
				t.Errorf("wrong content %q", body.Content)
			}
			if diff := cmp.Diff(opts.Replies, body.Replies); diff != "" {
				t.Errorf("wrong replies (+got/-want):\n%s", diff)
			}
		})
	}
	t.Run("error", func(t *testing.T) {
		spy := apiresp(200, "error.json")
		_, err := testClient(spy).CreatePost(context.Background(), "tkn", "pong", PostOptions{})
		var apierr *Error
		if !errors.As(err, &apierr) {
			t.Fatalf("wrong error: want *Error, got %v", err)
		}
		if apierr.Type != "Unauthorized" {
			t.Errorf("wrong error type %q", apierr.Type)
		}
	})
	t.Run("malformed", func(t *testing.T) {
		spy := textresp(200, `{"error":false,"p":"no id"}`)
		_, err := testClient(spy).CreatePost(context.Background(), "tkn", "pong", PostOptions{})
		if err == nil {
			t.Error("no error for post without id")
		}
	})
	t.Run("limited", func(t *testing.T) {
		spy := apiresp(200, "post.json")
		cl := testClient(spy)
		cl.Rate = rate.NewLimiter(0, 0)
		_, err := cl.CreatePost(context.Background(), "tkn", "pong", PostOptions{})
		if err == nil {
			t.Error("no error from exhausted limiter")
		}
		if spy.got != nil {
			t.Error("request made despite limiter")
		}
	})
}

func TestDeletePost(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		spy := textresp(200, `{"error":false}`)
		if err := testClient(spy).DeletePost(context.Background(), "tkn", "p1"); err != nil {
			t.Fatalf("couldn't delete: %v", err)
		}
		if got := spy.got.URL.String(); got != "https://api.meower.test/posts?id=p1" {
			t.Errorf("request went to the wrong place: %q", got)
		}
		if spy.got.Method != "DELETE" {
			t.Errorf("wrong method %q", spy.got.Method)
		}
		if got := spy.got.Header.Get("Token"); got != "tkn" {
			t.Errorf("wrong token header %q", got)
		}
	})
	t.Run("status", func(t *testing.T) {
		spy := textresp(403, `forbidden`)
		err := testClient(spy).DeletePost(context.Background(), "tkn", "p1")
		var apierr *Error
		if !errors.As(err, &apierr) {
			t.Fatalf("wrong error: want *Error, got %v", err)
		}
		if apierr.Status != 403 {
			t.Errorf("wrong status %d", apierr.Status)
		}
	})
}

func TestUser(t *testing.T) {
	spy := apiresp(200, "user.json")
	u, err := testClient(spy).User(context.Background(), "tiger")
	if err != nil {
		t.Fatalf("couldn't get user: %v", err)
	}
	if got := spy.got.URL.String(); got != "https://api.meower.test/users/tiger" {
		t.Errorf("request went to the wrong place: %q", got)
	}
	created, seen, perms, pfp := int64(1650000000), int64(1729300000), int64(0), int64(3)
	quote, uuid := "rawr", "5c1f1a0e-7f1e-4d2b-a8a4-6bde5c3b7e11"
	want := &User{
		ID:          "tiger",
		AvatarColor: "f5a442",
		Created:     &created,
		LastSeen:    &seen,
		Lower:       "tiger",
		Permissions: &perms,
		PFP:         &pfp,
		Quote:       &quote,
		UUID:        &uuid,
	}
	if diff := cmp.Diff(want, u); diff != "" {
		t.Errorf("wrong user (+got/-want):\n%s", diff)
	}
}

func TestUpload(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		spy := apiresp(200, "upload.json")
		f := File{Name: "roar.png", Data: []byte("\x89PNG")}
		u, err := testClient(spy).Upload(context.Background(), "tkn", f)
		if err != nil {
			t.Fatalf("couldn't upload: %v", err)
		}
		want := &Upload{
			ID:         "Zk3j9sQwXk2pB0mN",
			Bucket:     "attachments",
			Filename:   "roar.png",
			Hash:       "d41d8cd98f00b204e9800998ecf8427e",
			UploadedAt: 1729300000,
			UploadedBy: "roarbot",
		}
		if diff := cmp.Diff(want, u); diff != "" {
			t.Errorf("wrong upload (+got/-want):\n%s", diff)
		}
		if got := spy.got.URL.String(); got != "https://uploads.meower.test/attachments" {
			t.Errorf("request went to the wrong place: %q", got)
		}
		if got := spy.got.Header.Get("Authorization"); got != "tkn" {
			t.Errorf("wrong authorization header %q", got)
		}
		if !strings.Contains(string(spy.body), `name="file"; filename="roar.png"`) {
			t.Errorf("form doesn't hold the file:\n%s", spy.body)
		}
		if !strings.Contains(string(spy.body), "\x89PNG") {
			t.Errorf("form doesn't hold the file data:\n%q", spy.body)
		}
	})
	t.Run("too-large", func(t *testing.T) {
		spy := apiresp(200, "upload.json")
		f := File{Name: "big.bin", Data: make([]byte, MaxUpload+1)}
		_, err := testClient(spy).Upload(context.Background(), "tkn", f)
		if !errors.Is(err, ErrTooLarge) {
			t.Errorf("wrong error: want ErrTooLarge, got %v", err)
		}
		if spy.got != nil {
			t.Error("request made for oversized file")
		}
	})
	t.Run("exactly-max", func(t *testing.T) {
		spy := apiresp(200, "upload.json")
		f := File{Name: "big.bin", Data: make([]byte, MaxUpload)}
		if _, err := testClient(spy).Upload(context.Background(), "tkn", f); err != nil {
			t.Errorf("couldn't upload file at the limit: %v", err)
		}
	})
}

func TestSetAccountSettings(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		spy := textresp(200, `{"error":false}`)
		color, quote := "ffaa00", "rawr"
		s := Settings{AvatarColor: &color, Quote: &quote}
		if err := testClient(spy).SetAccountSettings(context.Background(), "tkn", s); err != nil {
			t.Fatalf("couldn't set settings: %v", err)
		}
		if spy.got.Method != "PATCH" {
			t.Errorf("wrong method %q", spy.got.Method)
		}
		if got := spy.got.URL.String(); got != "https://api.meower.test/me/config" {
			t.Errorf("request went to the wrong place: %q", got)
		}
		var body map[string]any
		if err := json.Unmarshal(spy.body, &body); err != nil {
			t.Fatalf("couldn't decode request body %q: %v", spy.body, err)
		}
		want := map[string]any{"avatar_color": "ffaa00", "quote": "rawr"}
		if diff := cmp.Diff(want, body); diff != "" {
			t.Errorf("wrong request body (+got/-want):\n%s", diff)
		}
	})
	t.Run("status", func(t *testing.T) {
		spy := textresp(500, ``)
		err := testClient(spy).SetAccountSettings(context.Background(), "tkn", Settings{})
		var apierr *Error
		if !errors.As(err, &apierr) || apierr.Status != 500 {
			t.Errorf("wrong error: %v", err)
		}
	})
}
