package home

import (
	"context"
	"errors"
	"strings"
	"testing"

	"jarvis/pkg/protocol"
)

type fakeRequester struct {
	sent  []string
	reply func(to, verb, noun string, args []string) (*protocol.Message, error)
}

func (f *fakeRequester) Request(_ context.Context, to, verb, noun string, args ...string) (*protocol.Message, error) {
	f.sent = append(f.sent, strings.Join(append([]string{to, verb, noun}, args...), ":"))
	if f.reply != nil {
		return f.reply(to, verb, noun, args)
	}
	return &protocol.Message{To: "JARVIS", Verb: "OK", Noun: noun, From: to}, nil
}

func TestLights(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value string
		want  string
	}{
		{"on", "VERTEX:ON:LAMP"},
		{"OFF", "VERTEX:OFF:LAMP"},
		{"40%", "VERTEX:SET:BRIGHTNESS:40"},
		{"warm white", "VERTEX:SET:COLOR:warm_white"},
	}
	for _, tc := range tests {
		f := &fakeRequester{}
		h := NewHub(f, Config{})
		got, err := h.Lights(context.Background(), tc.value)
		if err != nil {
			t.Fatalf("lights %q: %v", tc.value, err)
		}
		if got != "" {
			t.Fatalf("lights %q returned %q, want empty confirmation", tc.value, got)
		}
		if len(f.sent) != 1 || f.sent[0] != tc.want {
			t.Fatalf("lights %q sent %v, want %s", tc.value, f.sent, tc.want)
		}
	}
}

func TestLightsRejectsBadBrightness(t *testing.T) {
	t.Parallel()

	f := &fakeRequester{}
	if _, err := NewHub(f, Config{}).Lights(context.Background(), "140%"); err == nil {
		t.Fatalf("expected range error")
	}
	if len(f.sent) != 0 {
		t.Fatalf("nothing should be sent, got %v", f.sent)
	}
}

func TestLightStatus(t *testing.T) {
	t.Parallel()

	f := &fakeRequester{reply: func(to, _, noun string, _ []string) (*protocol.Message, error) {
		return &protocol.Message{To: "JARVIS", Verb: "OK", Noun: noun, Args: []string{"ON", "60"}, From: to}, nil
	}}
	got, err := NewHub(f, Config{LightsNode: "DESK"}).LightStatus(context.Background())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if got != "The lights are on at 60 percent." {
		t.Fatalf("got %q", got)
	}
	if f.sent[0] != "DESK:GET:LAMP" {
		t.Fatalf("sent %v", f.sent)
	}
}

func TestSceneAndLockUseTheirNodes(t *testing.T) {
	t.Parallel()

	f := &fakeRequester{}
	h := NewHub(f, Config{LockNode: "FRONT"})

	got, err := h.Scene(context.Background(), "movie night")
	if err != nil {
		t.Fatalf("scene: %v", err)
	}
	if got != "Movie Night scene activated." {
		t.Fatalf("got %q", got)
	}
	if _, err := h.Lock(context.Background()); err != nil {
		t.Fatalf("lock: %v", err)
	}

	want := []string{"VERTEX:SET:SCENE:movie_night", "FRONT:LOCK:DOOR"}
	for i := range want {
		if f.sent[i] != want[i] {
			t.Fatalf("sent %v, want %v", f.sent, want)
		}
	}
}

func TestHubErrors(t *testing.T) {
	t.Parallel()

	refused := &fakeRequester{reply: func(to, _, noun string, _ []string) (*protocol.Message, error) {
		return &protocol.Message{To: "JARVIS", Verb: "ERR", Noun: noun, Args: []string{"jammed"}, From: to}, nil
	}}
	if _, err := NewHub(refused, Config{}).Lock(context.Background()); err == nil || !strings.Contains(err.Error(), "jammed") {
		t.Fatalf("expected hub refusal, got %v", err)
	}

	down := &fakeRequester{reply: func(string, string, string, []string) (*protocol.Message, error) {
		return nil, protocol.ErrTimeout
	}}
	if _, err := NewHub(down, Config{}).Lights(context.Background(), "on"); !errors.Is(err, protocol.ErrTimeout) {
		t.Fatalf("expected wrapped timeout, got %v", err)
	}
}
