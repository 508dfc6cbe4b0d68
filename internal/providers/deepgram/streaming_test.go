package deepgram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"jarvis/internal/domain"
	"jarvis/internal/ports"
)

type fakeCapture struct {
	frames chan []float32
	done   chan struct{}
}

func (c *fakeCapture) Frames() <-chan []float32 { return c.frames }
func (c *fakeCapture) Err() error              { <-c.done; return nil }

// fakeSource emits one loud frame, then holds the stream open until ctx ends.
type fakeSource struct{}

func (fakeSource) Open(ctx context.Context) (ports.AudioCapture, error) {
	c := &fakeCapture{frames: make(chan []float32, 1), done: make(chan struct{})}
	c.frames <- []float32{0.5, -0.5, 1, -1}
	go func() {
		<-ctx.Done()
		close(c.frames)
		close(c.done)
	}()
	return c, nil
}

func TestNewRecognizerDefaults(t *testing.T) {
	t.Parallel()

	r := NewRecognizer(Config{}, fakeSource{})
	if r.cfg.APIBaseURL != "https://api.deepgram.com/v1" {
		t.Fatalf("unexpected base url: %q", r.cfg.APIBaseURL)
	}
	if r.cfg.Model != "nova-2" || r.cfg.SampleRate != 16000 {
		t.Fatalf("unexpected defaults: %+v", r.cfg)
	}
}

func TestStartRequiresAPIKey(t *testing.T) {
	t.Parallel()

	if _, err := NewRecognizer(Config{}, fakeSource{}).Start(context.Background()); err == nil {
		t.Fatalf("expected missing key error")
	}
}

func TestBuildListenURL(t *testing.T) {
	t.Parallel()

	url, err := buildListenURL(Config{APIBaseURL: "http://localhost:8080/v1/", Model: "m", Language: "en-US", SampleRate: 16000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"ws://localhost:8080/v1/listen", "encoding=linear16", "sample_rate=16000", "language=en-US", "interim_results=true"} {
		if !strings.Contains(url, want) {
			t.Fatalf("expected %q in url: %s", want, url)
		}
	}
}

func TestLinear16(t *testing.T) {
	t.Parallel()

	got := linear16([]float32{1, -1, 2})
	want := []byte{0xff, 0x7f, 0x01, 0x80, 0xff, 0x7f}
	if string(got) != string(want) {
		t.Fatalf("got % x, want % x", got, want)
	}
}

func deepgramServer(t *testing.T, status int, replies ...string) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if status != 0 {
			w.WriteHeader(status)
			return
		}
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if kind, _, err := conn.ReadMessage(); err != nil || kind != websocket.BinaryMessage {
			return
		}
		for _, reply := range replies {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(reply))
		}
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		time.Sleep(50 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestStreamingTranscripts(t *testing.T) {
	t.Parallel()

	srv := deepgramServer(t, 0,
		`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"hey jar"}]}}`,
		`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"hey jarvis"}]}}`,
		`{"type":"Metadata"}`,
	)

	r := NewRecognizer(Config{APIKey: "secret", APIBaseURL: srv.URL}, fakeSource{})
	sess, err := r.Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	var got []domain.TranscriptEvent
	for ev := range sess.Events() {
		got = append(got, ev)
	}
	if err := sess.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("got %d events, want 2: %+v", len(got), got)
	}
	if got[0].IsFinal() || got[0].Text != "hey jar" {
		t.Fatalf("unexpected partial %+v", got[0])
	}
	if !got[1].IsFinal() || got[1].Text != "hey jarvis" {
		t.Fatalf("unexpected final %+v", got[1])
	}
}

func TestProviderErrorEndsSession(t *testing.T) {
	t.Parallel()

	srv := deepgramServer(t, 0, `{"type":"Error","message":"quota exceeded"}`)
	sess, err := NewRecognizer(Config{APIKey: "secret", APIBaseURL: srv.URL}, fakeSource{}).Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	for range sess.Events() {
	}
	if err := sess.Wait(); err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestRejectedKeyIsPermissionDenied(t *testing.T) {
	t.Parallel()

	srv := deepgramServer(t, 0)
	_, err := NewRecognizer(Config{APIKey: "wrong", APIBaseURL: srv.URL}, fakeSource{}).Start(context.Background())
	if !errors.Is(err, ports.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
}

func TestCloseStopsSession(t *testing.T) {
	t.Parallel()

	srv := deepgramServer(t, 0)
	sess, err := NewRecognizer(Config{APIKey: "secret", APIBaseURL: srv.URL}, fakeSource{}).Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- sess.Close() }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("close did not return")
	}
	if _, ok := <-sess.Events(); ok {
		t.Fatalf("events channel still open")
	}
}
