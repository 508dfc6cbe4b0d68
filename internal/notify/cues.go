package notify

import (
	"context"
	log "log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/faiface/beep"

	"jarvis/internal/ports"
	"jarvis/pkg/audioconv"
)

type Player interface {
	Play(ctx context.Context, s beep.Streamer, format beep.Format) error
}

type note struct {
	freq float64
	dur  time.Duration
}

// Built-in chimes used when no sound file is installed for a cue.
var tones = map[ports.Cue][]note{
	ports.CueStartup:    {{523, 90 * time.Millisecond}, {659, 90 * time.Millisecond}, {784, 160 * time.Millisecond}},
	ports.CueWake:       {{880, 70 * time.Millisecond}, {1175, 110 * time.Millisecond}},
	ports.CueProcessing: {{660, 60 * time.Millisecond}},
	ports.CueSuccess:    {{784, 70 * time.Millisecond}, {1047, 120 * time.Millisecond}},
	ports.CueError:      {{440, 120 * time.Millisecond}, {311, 180 * time.Millisecond}},
}

const cueRate = 16000

var cueFormat = beep.Format{SampleRate: cueRate, NumChannels: 2, Precision: 2}

// Cues plays short sound effects. Files named <cue>.wav|.mp3|.ogg in dir
// override the built-in chimes.
type Cues struct {
	player  Player
	dir     string
	enabled func() bool
	log     *log.Logger

	mu    sync.Mutex
	cache map[ports.Cue][]float32
}

// NewCues returns a cue player. enabled may be nil.
func NewCues(player Player, dir string, enabled func() bool) *Cues {
	return &Cues{
		player:  player,
		dir:     dir,
		enabled: enabled,
		log:     log.Default().With("component", "cues"),
		cache:   make(map[ports.Cue][]float32),
	}
}

func (c *Cues) Play(cue ports.Cue) {
	if c.enabled != nil && !c.enabled() {
		return
	}

	samples := c.samples(cue)
	if len(samples) == 0 {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.player.Play(ctx, pcm(samples), cueFormat); err != nil {
			c.log.Debug("Failed to play cue", "cue", cue, "err", err)
		}
	}()
}

func (c *Cues) samples(cue ports.Cue) []float32 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.cache[cue]; ok {
		return s
	}

	s := c.load(cue)
	if s == nil {
		s = synth(tones[cue])
	}
	c.cache[cue] = s
	return s
}

func (c *Cues) load(cue ports.Cue) []float32 {
	if c.dir == "" {
		return nil
	}
	for _, ext := range []string{".wav", ".mp3", ".ogg", ".opus"} {
		path := filepath.Join(c.dir, string(cue)+ext)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		s, err := audioconv.DecodeFile(context.Background(), path, audioconv.Options{SampleRate: cueRate})
		if err != nil {
			c.log.Warn("Failed to decode cue", "path", path, "err", err)
			continue
		}
		return s
	}
	return nil
}

// synth renders notes as sine tones with a short fade at both ends.
func synth(notes []note) []float32 {
	const (
		amp  = 0.25
		fade = 0.008
	)

	var out []float32
	for _, n := range notes {
		total := int(n.dur.Seconds() * cueRate)
		ramp := int(fade * cueRate)
		for i := 0; i < total; i++ {
			env := 1.0
			if i < ramp {
				env = float64(i) / float64(ramp)
			} else if total-i < ramp {
				env = float64(total-i) / float64(ramp)
			}
			out = append(out, float32(amp*env*math.Sin(2*math.Pi*n.freq*float64(i)/cueRate)))
		}
	}
	return out
}

// pcm adapts mono samples to a stereo beep stream.
func pcm(samples []float32) beep.Streamer {
	pos := 0
	return beep.StreamerFunc(func(buf [][2]float64) (int, bool) {
		if pos >= len(samples) {
			return 0, false
		}
		n := 0
		for n < len(buf) && pos < len(samples) {
			v := float64(samples[pos])
			buf[n][0], buf[n][1] = v, v
			n++
			pos++
		}
		return n, true
	})
}
