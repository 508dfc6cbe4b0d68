// Package whisper turns offline whisper transcription into a streaming
// recognizer by segmenting microphone audio on silence.
package whisper

import (
	"context"
	"errors"
	log "log/slog"
	"strings"
	"sync"

	"jarvis/internal/domain"
	"jarvis/internal/ports"
	"jarvis/pkg/vad"
)

// TranscribeFunc decodes one utterance of mono 16 kHz samples.
type TranscribeFunc func(ctx context.Context, pcm16k []float32) (string, error)

type Recognizer struct {
	src ports.AudioSource
	tr  TranscribeFunc
	log *log.Logger
}

func NewRecognizer(src ports.AudioSource, tr TranscribeFunc) *Recognizer {
	return &Recognizer{src: src, tr: tr, log: log.Default().With("component", "whisper")}
}

func (r *Recognizer) Start(ctx context.Context) (ports.TranscriptionSession, error) {
	ctx, cancel := context.WithCancel(ctx)
	capture, err := r.src.Open(ctx)
	if err != nil {
		cancel()
		return nil, err
	}

	s := &session{
		cancel: cancel,
		events: make(chan domain.TranscriptEvent, 16),
		done:   make(chan struct{}),
	}
	go s.run(ctx, capture, r.tr, r.log)
	return s, nil
}

type session struct {
	cancel context.CancelFunc
	events chan domain.TranscriptEvent
	done   chan struct{}

	mu  sync.Mutex
	err error
}

func (s *session) run(ctx context.Context, capture ports.AudioCapture, tr TranscribeFunc, lg *log.Logger) {
	defer close(s.done)
	defer close(s.events)

	var u vad.Utterance
	for frame := range capture.Frames() {
		if !u.Push(frame) {
			continue
		}
		samples := u.Samples
		u.Reset()

		text, err := tr(ctx, samples)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			lg.Warn("Transcription failed", "err", err)
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" || isNoise(text) {
			continue
		}
		select {
		case s.events <- domain.TranscriptEvent{Kind: domain.TranscriptKindFinal, Text: text}:
		case <-ctx.Done():
		}
	}

	// Drain so the capture goroutine can exit.
	for range capture.Frames() {
	}
	if err := capture.Err(); err != nil && !errors.Is(err, context.Canceled) {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
	}
}

// whisper renders non-speech as bracketed annotations.
func isNoise(text string) bool {
	t := strings.Trim(text, " .")
	return (strings.HasPrefix(t, "[") && strings.HasSuffix(t, "]")) ||
		(strings.HasPrefix(t, "(") && strings.HasSuffix(t, ")"))
}

func (s *session) Events() <-chan domain.TranscriptEvent { return s.events }

func (s *session) Wait() error {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *session) Close() error {
	s.cancel()
	return s.Wait()
}
