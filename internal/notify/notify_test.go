package notify

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/faiface/beep"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"jarvis/internal/ports"
)

type fakePlayer struct {
	mu      sync.Mutex
	samples []int
	played  chan struct{}
}

func newFakePlayer() *fakePlayer {
	return &fakePlayer{played: make(chan struct{}, 8)}
}

func (p *fakePlayer) Play(_ context.Context, s beep.Streamer, _ beep.Format) error {
	buf := make([][2]float64, 512)
	total := 0
	for {
		n, ok := s.Stream(buf)
		total += n
		if !ok {
			break
		}
	}
	p.mu.Lock()
	p.samples = append(p.samples, total)
	p.mu.Unlock()
	p.played <- struct{}{}
	return nil
}

func (p *fakePlayer) wait(t *testing.T) int {
	t.Helper()
	select {
	case <-p.played:
	case <-time.After(time.Second):
		t.Fatalf("cue not played")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.samples[len(p.samples)-1]
}

func TestBuiltInCues(t *testing.T) {
	t.Parallel()

	p := newFakePlayer()
	c := NewCues(p, "", nil)

	c.Play(ports.CueWake)
	got := p.wait(t)
	want := int(0.070*cueRate) + int(0.110*cueRate)
	if got != want {
		t.Fatalf("wake cue has %d samples, want %d", got, want)
	}
	for cue := range tones {
		if len(c.samples(cue)) == 0 {
			t.Fatalf("cue %s renders no audio", cue)
		}
	}
}

func TestDisabledCuesAreSilent(t *testing.T) {
	t.Parallel()

	p := newFakePlayer()
	c := NewCues(p, "", func() bool { return false })
	c.Play(ports.CueSuccess)

	select {
	case <-p.played:
		t.Fatalf("disabled cue was played")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCueFileOverridesTone(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	f, err := os.Create(filepath.Join(dir, "error.wav"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	enc := wav.NewEncoder(f, cueRate, 16, 1, 1)
	if err := enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: cueRate},
		Data:           make([]int, 1234),
		SourceBitDepth: 16,
	}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	enc.Close()
	f.Close()

	c := NewCues(newFakePlayer(), dir, nil)
	if got := len(c.samples(ports.CueError)); got != 1234 {
		t.Fatalf("error cue has %d samples, want 1234 from file", got)
	}
	if got := len(c.samples(ports.CueSuccess)); got == 0 || got == 1234 {
		t.Fatalf("success cue should use the built-in tone, got %d samples", got)
	}
}

func TestDesktopNotify(t *testing.T) {
	t.Parallel()

	var got string
	d := NewDesktop("Jarvis", "")
	d.run = func(_ context.Context, name string, args ...string) error {
		got = name + " " + strings.Join(args, " ")
		return nil
	}

	if err := d.Notify(context.Background(), "Timer", "Tea is ready"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if got != "notify-send --app-name Jarvis Timer Tea is ready" {
		t.Fatalf("unexpected command %q", got)
	}
}
