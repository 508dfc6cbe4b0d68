package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"jarvis/internal/bus"
)

type fakePublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	return nil
}

func TestBridgeForwardsBusMessages(t *testing.T) {
	t.Parallel()

	b := bus.New()
	msgs, cancel := b.Subscribe()
	pub := &fakePublisher{}

	done := make(chan struct{})
	go func() {
		NewBridge(pub, "home.jarvis.").Run(context.Background(), msgs)
		close(done)
	}()

	b.Publish(bus.Message{Kind: bus.KindState, From: "session", State: "listening"})
	b.Publish(bus.Message{Kind: bus.KindResponse, From: "session", Content: "Lights on."})
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("bridge did not stop after the subscription closed")
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.subjects) != 2 || pub.subjects[0] != "home.jarvis.state" || pub.subjects[1] != "home.jarvis.response" {
		t.Fatalf("unexpected subjects %v", pub.subjects)
	}
	var m bus.Message
	if err := json.Unmarshal(pub.payloads[1], &m); err != nil || m.Content != "Lights on." {
		t.Fatalf("unexpected payload %s (%v)", pub.payloads[1], err)
	}
}

func TestHandleCommand(t *testing.T) {
	t.Parallel()

	run := func(_ context.Context, text string) (string, error) {
		if text == "fail" {
			return "", errors.New("assistant busy")
		}
		return "echo " + text, nil
	}

	tests := []struct {
		in   string
		want commandReply
	}{
		{" what time is it ", commandReply{Response: "echo what time is it"}},
		{"fail", commandReply{Error: "assistant busy"}},
		{"   ", commandReply{Error: "empty command"}},
	}
	for _, tc := range tests {
		var got commandReply
		if err := json.Unmarshal(handleCommand(context.Background(), run, []byte(tc.in)), &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got != tc.want {
			t.Fatalf("%q: got %+v, want %+v", tc.in, got, tc.want)
		}
	}
}
