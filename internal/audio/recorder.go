package audio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gordonklaus/portaudio"

	"jarvis/internal/ports"
	"jarvis/pkg/vad"
)

const (
	SampleRate = 16000
	FrameSize  = 320 // 20ms
)

// Mic reads the default input device. Init must be called once before use.
type Mic struct{}

func NewMic() *Mic { return &Mic{} }

func (m *Mic) Init() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("init portaudio: %w", err)
	}
	return nil
}

func (m *Mic) Close() {
	portaudio.Terminate()
}

// Capture is a running microphone stream.
type Capture struct {
	frames chan []float32
	done   chan struct{}
	err    error
}

// Frames delivers 20ms mono frames at SampleRate. It is closed when the
// stream stops.
func (c *Capture) Frames() <-chan []float32 { return c.frames }

// Err blocks until the stream has stopped and reports why.
func (c *Capture) Err() error {
	<-c.done
	return c.err
}

// Stream captures until ctx is done or the device fails.
func (m *Mic) Stream(ctx context.Context) (*Capture, error) {
	buf := make([]float32, FrameSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, SampleRate, len(buf), buf)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("start input: %w", err)
	}

	c := &Capture{
		frames: make(chan []float32, 64),
		done:   make(chan struct{}),
	}

	go func() {
		defer close(c.done)
		defer close(c.frames)
		defer stream.Close()
		defer stream.Stop()

		for ctx.Err() == nil {
			if err := stream.Read(); err != nil {
				c.err = fmt.Errorf("read input: %w", err)
				return
			}
			frame := append([]float32(nil), buf...)
			select {
			case c.frames <- frame:
			case <-ctx.Done():
			}
		}
	}()

	return c, nil
}

// Open implements ports.AudioSource.
func (m *Mic) Open(ctx context.Context) (ports.AudioCapture, error) {
	c, err := m.Stream(ctx)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// RecordUtterance records from the first voiced frame until 600ms of
// silence, or maxDur.
func (m *Mic) RecordUtterance(ctx context.Context, maxDur time.Duration) ([]float32, error) {
	if maxDur <= 0 {
		maxDur = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, maxDur)
	defer cancel()

	capture, err := m.Stream(ctx)
	if err != nil {
		return nil, err
	}

	var u vad.Utterance
	for frame := range capture.Frames() {
		if u.Push(frame) {
			cancel()
		}
	}
	if err := capture.Err(); err != nil {
		return nil, err
	}

	if len(u.Samples) == 0 {
		return nil, errors.New("no speech recorded")
	}
	return u.Samples, nil
}

// WriteWAV stores mono samples as 16-bit PCM.
func WriteWAV(path string, samples []float32, sampleRate int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	defer f.Close()

	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(math.Round(float64(max(-1, min(1, s))) * 32767))
	}

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finish wav: %w", err)
	}
	return nil
}
