package wake

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"jarvis/internal/domain"
	"jarvis/internal/ports"
)

// DefaultPhrases are the accepted spellings of the wake phrase.
var DefaultPhrases = []string{"hey jarvis", "a jarvis", "hey travis", "hey jervis", "hi jarvis"}

var ErrStreamEnded = errors.New("recognition stream ended")

type Config struct {
	Phrases        []string
	SilenceTimeout time.Duration
	RestartDelay   time.Duration
}

func (c Config) withDefaults() Config {
	if len(c.Phrases) == 0 {
		c.Phrases = DefaultPhrases
	}
	phrases := make([]string, 0, len(c.Phrases))
	for _, p := range c.Phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			phrases = append(phrases, p)
		}
	}
	c.Phrases = phrases
	if c.SilenceTimeout <= 0 {
		c.SilenceTimeout = 3 * time.Second
	}
	if c.RestartDelay <= 0 {
		c.RestartDelay = 500 * time.Millisecond
	}
	return c
}

type EventKind int

const (
	EventWake EventKind = iota
	EventCommand
	EventError
	EventFatal
)

func (k EventKind) String() string {
	switch k {
	case EventWake:
		return "wake"
	case EventCommand:
		return "command"
	case EventError:
		return "error"
	case EventFatal:
		return "fatal"
	}
	return "unknown"
}

type Event struct {
	Kind EventKind
	Text string
	Err  error
}

// Engine turns a transcript stream into wake and command events.
// One goroutine owns the capture state, the silence timer and the session.
type Engine struct {
	cfg    Config
	rec    ports.Recognizer
	events chan Event
	log    *log.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(rec ports.Recognizer, cfg Config) *Engine {
	return &Engine{
		cfg:    cfg.withDefaults(),
		rec:    rec,
		events: make(chan Event, 16),
		log:    log.Default().With("component", "wake"),
	}
}

func (e *Engine) Events() <-chan Event {
	return e.events
}

func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancel != nil
}

// Start opens the recognizer and begins scanning for the wake phrase.
// Permission denial is returned directly and leaves the engine stopped.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancel != nil {
		return nil
	}

	sess, err := e.rec.Start(ctx)
	if errors.Is(err, ports.ErrPermissionDenied) {
		return fmt.Errorf("start recognizer: %w", err)
	}
	if err != nil {
		e.log.Warn("Recognizer failed to start, retrying", "err", err)
		sess = nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	e.cancel = cancel
	e.done = done

	go e.run(runCtx, sess, done)

	e.log.Info("Listening for wake phrase", "phrases", e.cfg.Phrases)
	return nil
}

// Stop tears down the session and timers. Safe to call in any state.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.cancel, e.done = nil, nil
	e.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	e.log.Info("Stopped listening")
}

type capture struct {
	commandMode bool
	buffer      string

	timer  *time.Timer
	timerC <-chan time.Time
}

func (c *capture) resetTimer(d time.Duration) {
	c.stopTimer()
	c.timer = time.NewTimer(d)
	c.timerC = c.timer.C
}

func (c *capture) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = nil
	c.timerC = nil
}

func (c *capture) reset() {
	c.stopTimer()
	c.commandMode = false
	c.buffer = ""
}

func (e *Engine) run(ctx context.Context, sess ports.TranscriptionSession, done chan struct{}) {
	defer close(done)

	var c capture
	defer func() {
		c.stopTimer()
		if sess != nil {
			_ = sess.Close()
		}
		e.mu.Lock()
		if e.done == done {
			e.cancel, e.done = nil, nil
		}
		e.mu.Unlock()
	}()

	if sess == nil {
		var ok bool
		if sess, ok = e.restart(ctx, &c); !ok {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-sess.Events():
			if ok {
				e.handle(ctx, &c, ev)
				continue
			}

			err := sess.Wait()
			_ = sess.Close()
			sess = nil

			if errors.Is(err, ports.ErrPermissionDenied) {
				e.emit(ctx, Event{Kind: EventFatal, Err: err})
				return
			}
			if err == nil {
				err = ErrStreamEnded
			}
			e.log.Warn("Recognition stream stopped", "err", err)
			e.emit(ctx, Event{Kind: EventError, Err: err})

			if c.commandMode {
				e.finalize(ctx, &c)
			}
			if sess, ok = e.restart(ctx, &c); !ok {
				return
			}

		case <-c.timerC:
			e.finalize(ctx, &c)

			// The recognizer may keep returning the stale transcript,
			// which would re-trigger the wake phrase.
			_ = sess.Close()
			sess = nil
			var ok bool
			if sess, ok = e.open(ctx, &c); !ok {
				return
			}
		}
	}
}

// open starts a fresh session, falling back to the delayed restart loop.
func (e *Engine) open(ctx context.Context, c *capture) (ports.TranscriptionSession, bool) {
	sess, err := e.rec.Start(ctx)
	if err == nil {
		return sess, true
	}
	if errors.Is(err, ports.ErrPermissionDenied) {
		e.emit(ctx, Event{Kind: EventFatal, Err: err})
		return nil, false
	}
	e.emit(ctx, Event{Kind: EventError, Err: err})
	return e.restart(ctx, c)
}

// restart waits RestartDelay between attempts until a session opens.
func (e *Engine) restart(ctx context.Context, c *capture) (ports.TranscriptionSession, bool) {
	c.reset()
	for {
		select {
		case <-ctx.Done():
			return nil, false
		case <-time.After(e.cfg.RestartDelay):
		}

		sess, err := e.rec.Start(ctx)
		if err == nil {
			e.log.Debug("Recognizer restarted")
			return sess, true
		}
		if errors.Is(err, ports.ErrPermissionDenied) {
			e.emit(ctx, Event{Kind: EventFatal, Err: err})
			return nil, false
		}
		e.log.Warn("Recognizer restart failed", "err", err)
		e.emit(ctx, Event{Kind: EventError, Err: err})
	}
}

func (e *Engine) handle(ctx context.Context, c *capture, ev domain.TranscriptEvent) {
	if !c.commandMode {
		if !containsAny(strings.ToLower(ev.Text), e.cfg.Phrases) {
			return
		}
		e.log.Info("Wake phrase detected", "text", ev.Text)
		c.commandMode = true
		c.buffer = ""
		c.resetTimer(e.cfg.SilenceTimeout)
		e.emit(ctx, Event{Kind: EventWake, Text: ev.Text})
	}

	text := StripWake(ev.Text, e.cfg.Phrases)
	if text != "" && text != c.buffer {
		c.buffer = text
		c.resetTimer(e.cfg.SilenceTimeout)
	}

	if ev.IsFinal() && c.buffer != "" {
		e.finalize(ctx, c)
	}
}

// finalize emits the buffered command if there is one and returns to wake scanning.
func (e *Engine) finalize(ctx context.Context, c *capture) {
	text := c.buffer
	c.reset()
	if text == "" {
		e.log.Debug("Capture window closed without a command")
		return
	}
	e.log.Info("Command captured", "text", text)
	e.emit(ctx, Event{Kind: EventCommand, Text: text})
}

func (e *Engine) emit(ctx context.Context, ev Event) {
	select {
	case e.events <- ev:
	case <-ctx.Done():
	}
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// StripWake returns the text after the last wake phrase occurrence, trimmed.
// Text without a wake phrase is returned trimmed.
func StripWake(text string, phrases []string) string {
	cut := -1
	for _, p := range phrases {
		if end := lastMatchEnd(text, strings.ToLower(p)); end > cut {
			cut = end
		}
	}
	if cut >= 0 {
		text = text[cut:]
	}
	return strings.Trim(text, " \t\r\n,.!?")
}

// lastMatchEnd returns the byte offset in text just past the last
// case-insensitive occurrence of phrase, or -1. Offsets index text itself,
// since lowering can change the byte length of a rune.
func lastMatchEnd(text, phrase string) int {
	if phrase == "" {
		return -1
	}
	for i := len(text); i >= 0; i-- {
		if i < len(text) && !utf8.RuneStart(text[i]) {
			continue
		}
		j := i
		matched := true
		for _, pr := range phrase {
			r, size := utf8.DecodeRuneInString(text[j:])
			if size == 0 || unicode.ToLower(r) != pr {
				matched = false
				break
			}
			j += size
		}
		if matched {
			return j
		}
	}
	return -1
}
