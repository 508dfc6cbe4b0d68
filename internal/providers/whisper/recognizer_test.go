package whisper

import (
	"context"
	"errors"
	"testing"
	"time"

	"jarvis/internal/ports"
)

type scriptCapture struct {
	frames chan []float32
	err    error
}

func (c *scriptCapture) Frames() <-chan []float32 { return c.frames }
func (c *scriptCapture) Err() error              { return c.err }

// scriptSource plays utterances, each a voiced frame followed by enough
// silence to end it, then closes the stream.
type scriptSource struct {
	utterances int
	err        error
}

func (s scriptSource) Open(context.Context) (ports.AudioCapture, error) {
	c := &scriptCapture{frames: make(chan []float32, 128), err: s.err}
	go func() {
		defer close(c.frames)
		loud := make([]float32, 320)
		for i := range loud {
			loud[i] = 0.5
		}
		for range s.utterances {
			c.frames <- loud
			for range 30 {
				c.frames <- make([]float32, 320)
			}
		}
	}()
	return c, nil
}

func TestUtterancesBecomeFinalTranscripts(t *testing.T) {
	t.Parallel()

	replies := []string{" Hey Jarvis ", "[BLANK_AUDIO]", "what time is it"}
	calls := 0
	tr := func(_ context.Context, pcm []float32) (string, error) {
		if len(pcm) != 320*31 {
			t.Errorf("utterance has %d samples", len(pcm))
		}
		r := replies[calls]
		calls++
		return r, nil
	}

	sess, err := NewRecognizer(scriptSource{utterances: 3}, tr).Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	var got []string
	for ev := range sess.Events() {
		if !ev.IsFinal() {
			t.Fatalf("whisper emits only finals, got %+v", ev)
		}
		got = append(got, ev.Text)
	}
	if err := sess.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if len(got) != 2 || got[0] != "Hey Jarvis" || got[1] != "what time is it" {
		t.Fatalf("unexpected transcripts %q", got)
	}
}

func TestTranscriptionErrorsAreSkipped(t *testing.T) {
	t.Parallel()

	tr := func(context.Context, []float32) (string, error) { return "", errors.New("decoder busy") }
	sess, err := NewRecognizer(scriptSource{utterances: 1}, tr).Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	for range sess.Events() {
		t.Fatalf("no event expected")
	}
	if err := sess.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

func TestDeviceErrorSurfacesFromWait(t *testing.T) {
	t.Parallel()

	boom := errors.New("device unplugged")
	tr := func(context.Context, []float32) (string, error) { return "", nil }
	sess, err := NewRecognizer(scriptSource{err: boom}, tr).Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- sess.Wait() }()
	select {
	case err := <-done:
		if !errors.Is(err, boom) {
			t.Fatalf("expected device error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("session did not end")
	}
}

func TestIsNoise(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"[BLANK_AUDIO]", "(music)", " [Silence]. "} {
		if !isNoise(s) {
			t.Fatalf("%q should be noise", s)
		}
	}
	if isNoise("lights on") {
		t.Fatalf("speech flagged as noise")
	}
}
