package audio

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
)

// OutputRate is the sample rate the shared speaker is opened at.
const OutputRate beep.SampleRate = 44100

// Player plays beep streams on the default output device. Streams with a
// different sample rate are resampled.
type Player struct {
	once    sync.Once
	initErr error
}

func NewPlayer() *Player {
	return &Player{}
}

func (p *Player) init() error {
	p.once.Do(func() {
		p.initErr = speaker.Init(OutputRate, OutputRate.N(time.Second/10))
	})
	return p.initErr
}

// Play blocks until s is drained or ctx is done.
func (p *Player) Play(ctx context.Context, s beep.Streamer, format beep.Format) error {
	if err := p.init(); err != nil {
		return fmt.Errorf("init speaker: %w", err)
	}

	if format.SampleRate != OutputRate {
		s = beep.Resample(4, format.SampleRate, OutputRate, s)
	}

	done := make(chan struct{})
	ctrl := &beep.Ctrl{Streamer: beep.Seq(s, beep.Callback(func() { close(done) }))}
	speaker.Play(ctrl)

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Lock()
		ctrl.Streamer = nil
		speaker.Unlock()
		return ctx.Err()
	}
}

// PlayMP3 decodes and plays an MP3 stream, closing rc when done.
func (p *Player) PlayMP3(ctx context.Context, rc io.ReadCloser) error {
	s, format, err := mp3.Decode(rc)
	if err != nil {
		rc.Close()
		return fmt.Errorf("decode mp3: %w", err)
	}
	defer s.Close()

	return p.Play(ctx, s, format)
}
