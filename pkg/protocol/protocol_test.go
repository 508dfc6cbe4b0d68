package protocol

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		line    string
		want    string
		args    int
		wantErr bool
	}{
		{name: "minimal", line: "VERTEX:on:lamp:JARVIS", want: "VERTEX:ON:LAMP:JARVIS"},
		{name: "args", line: "VERTEX:SET:BRIGHTNESS:40:JARVIS", want: "VERTEX:SET:BRIGHTNESS:40:JARVIS", args: 1},
		{name: "hex id", line: "0A:OK:LAMP:ON:VERTEX", want: "0A:OK:LAMP:ON:VERTEX", args: 1},
		{name: "trailing newline", line: "JARVIS:OK:DOOR:LOCK\n", want: "JARVIS:OK:DOOR:LOCK"},
		{name: "empty", line: "  ", wantErr: true},
		{name: "too short", line: "A:B:C", wantErr: true},
		{name: "whitespace", line: "A:SET:SCENE:movie night:B", wantErr: true},
		{name: "bad arg", line: "A:SET:SCENE:x/y:B", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			m, err := Parse(tc.line)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.line)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse %q: %v", tc.line, err)
			}
			if m.String() != tc.want {
				t.Fatalf("got %q, want %q", m.String(), tc.want)
			}
			if len(m.Args) != tc.args {
				t.Fatalf("got %d args, want %d", len(m.Args), tc.args)
			}
		})
	}
}

func TestMessageErr(t *testing.T) {
	t.Parallel()

	ok, _ := Parse("JARVIS:OK:LAMP:VERTEX")
	if !ok.OK() || ok.Err() != nil {
		t.Fatalf("OK reply reported as failure")
	}
	bad, _ := Parse("JARVIS:ERR:SCENE:unknown:VERTEX")
	if err := bad.Err(); err == nil || !strings.Contains(err.Error(), "unknown") {
		t.Fatalf("unexpected err %v", err)
	}
}

func TestToken(t *testing.T) {
	t.Parallel()

	if got := Token("  movie   night! "); got != "movie_night" {
		t.Fatalf("got %q", got)
	}
}

// hub answers every request with OK and pushes one unsolicited event first.
func hub(t *testing.T) *httptest.Server {
	t.Helper()
	up := ws.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(ws.TextMessage, []byte("ALL:EVT:DOOR:OPEN:VERTEX"))
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			req, err := Parse(string(data))
			if err != nil {
				continue
			}
			if req.Noun == "SILENT" {
				continue
			}
			reply := Message{To: req.From, Verb: "OK", Noun: req.Noun, Args: req.Args, From: req.To}
			_ = conn.WriteMessage(ws.TextMessage, []byte(reply.String()))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRequestRoundTrip(t *testing.T) {
	t.Parallel()

	srv := hub(t)
	events := make(chan *Message, 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p, err := New(ctx, Config{
		Shard:     "JARVIS",
		URL:       "ws" + strings.TrimPrefix(srv.URL, "http"),
		Timeout:   200 * time.Millisecond,
		OnMessage: func(m *Message) { events <- m },
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	go p.Run(ctx)

	select {
	case ev := <-events:
		if ev.Noun != "DOOR" {
			t.Fatalf("unexpected event %v", ev.String())
		}
	case <-time.After(time.Second):
		t.Fatalf("broadcast not delivered")
	}

	resp, err := p.Request(ctx, "VERTEX", "set", "brightness", "40")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.String() != "JARVIS:OK:BRIGHTNESS:40:VERTEX" {
		t.Fatalf("unexpected reply %q", resp.String())
	}

	if _, err := p.Request(ctx, "VERTEX", "get", "silent"); !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestInvalidShard(t *testing.T) {
	t.Parallel()

	if _, err := New(context.Background(), Config{Shard: "bad shard", URL: "ws://127.0.0.1:1"}); err == nil {
		t.Fatalf("expected invalid shard error")
	}
}
