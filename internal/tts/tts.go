package tts

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"time"
)

var ErrNoBackends = errors.New("no speech backends configured")

// Backend renders text as audible speech and returns once playback ends.
type Backend interface {
	Name() string
	Say(ctx context.Context, text string) error
}

// Chain tries backends in order; the first success wins.
type Chain struct {
	backends []Backend
	log      *log.Logger
}

func NewChain(backends ...Backend) (*Chain, error) {
	if len(backends) == 0 {
		return nil, ErrNoBackends
	}
	return &Chain{
		backends: backends,
		log:      log.Default().With("component", "tts.chain"),
	}, nil
}

func (c *Chain) Name() string {
	names := make([]string, len(c.backends))
	for i, b := range c.backends {
		names[i] = b.Name()
	}
	return strings.Join(names, ",")
}

func (c *Chain) Say(ctx context.Context, text string) error {
	var errs []error

	for i, b := range c.backends {
		err := b.Say(ctx, text)
		if err == nil {
			if i > 0 {
				c.log.Info("Fallback backend succeeded", "backend", b.Name())
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
		c.log.Warn("Backend failed, trying next", "backend", b.Name(), "err", err)
	}

	return &ChainError{Errors: errs}
}

// ChainError aggregates the failures of every backend in a chain.
type ChainError struct {
	Errors []error
}

func (e *ChainError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "tts chain: no errors recorded"
	case 1:
		return fmt.Sprintf("tts chain: %v", e.Errors[0])
	}
	return fmt.Sprintf("tts chain: all %d backends failed, last error: %v", len(e.Errors), e.Errors[len(e.Errors)-1])
}

func (e *ChainError) Unwrap() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e.Errors[len(e.Errors)-1]
}

type Ducker interface {
	DuckOthers(ctx context.Context, factor float64, duration time.Duration) error
	UnduckOthers(ctx context.Context, duration time.Duration) error
}

// Speaker lowers other audio while a backend speaks.
type Speaker struct {
	backend Backend
	ducker  Ducker
	factor  float64
	fade    time.Duration
	log     *log.Logger
}

// NewSpeaker wraps backend. ducker may be nil.
func NewSpeaker(backend Backend, ducker Ducker) *Speaker {
	return &Speaker{
		backend: backend,
		ducker:  ducker,
		factor:  0.3,
		fade:    150 * time.Millisecond,
		log:     log.Default().With("component", "tts"),
	}
}

func (s *Speaker) Speak(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if s.ducker != nil {
		if err := s.ducker.DuckOthers(ctx, s.factor, s.fade); err != nil {
			s.log.Debug("Failed to duck", "err", err)
		}
		defer func() {
			// Restore even when the speech was cancelled.
			if err := s.ducker.UnduckOthers(context.WithoutCancel(ctx), s.fade); err != nil {
				s.log.Debug("Failed to unduck", "err", err)
			}
		}()
	}

	s.log.Info("Speaking", "backend", s.backend.Name(), "chars", len(text))
	if err := s.backend.Say(ctx, text); err != nil {
		return fmt.Errorf("speak: %w", err)
	}
	return nil
}
