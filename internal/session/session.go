package session

import (
	"context"
	"errors"
	log "log/slog"
	"strings"
	"sync"
	"time"

	"jarvis/internal/bus"
	"jarvis/internal/dispatch"
	"jarvis/internal/domain"
	"jarvis/internal/ports"
	"jarvis/internal/respond"
	"jarvis/internal/wake"
)

var (
	ErrBusy         = errors.New("assistant is busy")
	ErrNotListening = errors.New("assistant is not listening")
	ErrEmptyCommand = errors.New("empty command")
	ErrClosed       = errors.New("session closed")
)

type WakeSource interface {
	Start(ctx context.Context) error
	Stop()
	Events() <-chan wake.Event
}

type Handler interface {
	Handle(ctx context.Context, text string) dispatch.Result
}

type Publisher interface {
	Publish(m bus.Message)
}

type PersonalitySource interface {
	Personality() domain.Personality
}

type Deps struct {
	Wake    WakeSource
	Handler Handler
	Speaker ports.Speaker
	Bus     Publisher

	// Optional.
	Cues        ports.Cues
	Personality PersonalitySource
}

type Config struct {
	// Greet speaks a time-of-day greeting after a successful start.
	Greet bool
	Now   func() time.Time
}

var allowed = map[domain.AppState]map[domain.AppState]bool{
	domain.StateIdle: {
		domain.StateListening: true,
	},
	domain.StateListening: {
		domain.StateWakeDetected: true,
		domain.StateProcessing:   true,
		domain.StateSpeaking:     true,
		domain.StateIdle:         true,
	},
	domain.StateWakeDetected: {
		domain.StateListening:  true,
		domain.StateProcessing: true,
		domain.StateIdle:       true,
	},
	domain.StateProcessing: {
		domain.StateSpeaking: true,
		domain.StateIdle:     true,
	},
	domain.StateSpeaking: {
		domain.StateListening: true,
		domain.StateIdle:      true,
	},
}

// Session owns the assistant state. All transitions happen on the goroutine
// running Run; public methods submit operations to it.
type Session struct {
	deps   Deps
	cfg    Config
	ops    chan func()
	closed chan struct{}
	log    *log.Logger

	mu    sync.RWMutex
	state domain.AppState

	// Owned by the Run goroutine.
	ctx        context.Context
	work       context.Context
	cancelWork context.CancelFunc
	ackCancel  context.CancelFunc
	gen        uint64
}

func New(deps Deps, cfg Config) *Session {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Session{
		deps:   deps,
		cfg:    cfg,
		ops:    make(chan func()),
		closed: make(chan struct{}),
		state:  domain.StateIdle,
		log:    log.Default().With("component", "session"),
	}
}

func (s *Session) State() domain.AppState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Run processes operations and wake events until ctx is done.
func (s *Session) Run(ctx context.Context) {
	s.ctx = ctx
	s.work, s.cancelWork = context.WithCancel(ctx)
	s.cancelWork()

	events := s.deps.Wake.Events()
	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			close(s.closed)
			return
		case op := <-s.ops:
			op()
		case ev := <-events:
			s.onWake(ev)
		}
	}
}

func (s *Session) Start(ctx context.Context) error {
	errc := make(chan error, 1)
	if err := s.do(ctx, func() { errc <- s.start() }); err != nil {
		return err
	}
	return <-errc
}

// Stop cancels in-flight work, speaks a goodbye and returns to idle.
func (s *Session) Stop(ctx context.Context) error {
	errc := make(chan error, 1)
	if err := s.do(ctx, func() { errc <- s.stop(ctx) }); err != nil {
		return err
	}
	return <-errc
}

// Submit dispatches a typed command as if it had been spoken after the wake
// phrase and waits for its result.
func (s *Session) Submit(ctx context.Context, text string) (dispatch.Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return dispatch.Result{}, ErrEmptyCommand
	}

	waiter := make(chan dispatch.Result, 1)
	errc := make(chan error, 1)
	if err := s.do(ctx, func() { errc <- s.command(text, waiter) }); err != nil {
		return dispatch.Result{}, err
	}
	if err := <-errc; err != nil {
		return dispatch.Result{}, err
	}

	select {
	case res := <-waiter:
		return res, nil
	case <-ctx.Done():
		return dispatch.Result{}, ctx.Err()
	case <-s.closed:
		return dispatch.Result{}, ErrClosed
	}
}

// Announce speaks text when the assistant is idle-listening.
func (s *Session) Announce(ctx context.Context, text string) error {
	errc := make(chan error, 1)
	if err := s.do(ctx, func() { errc <- s.announce(text) }); err != nil {
		return err
	}
	return <-errc
}

func (s *Session) do(ctx context.Context, op func()) error {
	select {
	case s.ops <- op:
		return nil
	case <-s.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post delivers a completion from a worker goroutine back to Run.
func (s *Session) post(op func()) {
	select {
	case s.ops <- op:
	case <-s.closed:
	}
}

func (s *Session) start() error {
	if s.State() != domain.StateIdle {
		return nil
	}

	if err := s.deps.Wake.Start(s.ctx); err != nil {
		s.log.Error("Failed to start listening", "err", err)
		s.publish(bus.Message{Kind: bus.KindError, Content: err.Error()})
		if errors.Is(err, ports.ErrPermissionDenied) {
			s.say(respond.PermissionDenied(s.personality()))
		}
		return err
	}

	s.work, s.cancelWork = context.WithCancel(s.ctx)
	s.transition(domain.StateListening)
	s.cue(ports.CueStartup)

	if s.cfg.Greet {
		_ = s.announce(respond.Greeting(s.personality(), s.cfg.Now()))
	}
	return nil
}

func (s *Session) stop(ctx context.Context) error {
	if s.State() == domain.StateIdle {
		return nil
	}

	s.halt()

	goodbye := respond.Goodbye(s.personality())
	s.publish(bus.Message{Kind: bus.KindResponse, Content: goodbye})
	if err := s.deps.Speaker.Speak(ctx, goodbye); err != nil {
		s.log.Warn("Failed to speak goodbye", "err", err)
	}

	s.transition(domain.StateIdle)
	return nil
}

func (s *Session) shutdown() {
	if s.State() == domain.StateIdle {
		return
	}
	s.halt()
	s.transition(domain.StateIdle)
}

// halt invalidates pending completions and releases the recognizer.
func (s *Session) halt() {
	s.gen++
	s.cancelWork()
	s.ackCancel = nil
	s.deps.Wake.Stop()
}

func (s *Session) onWake(ev wake.Event) {
	switch ev.Kind {
	case wake.EventWake:
		s.wakeDetected()
	case wake.EventCommand:
		if err := s.command(ev.Text, nil); err != nil {
			s.log.Info("Dropped command", "text", ev.Text, "reason", err)
		}
	case wake.EventError:
		s.log.Warn("Recognizer error", "err", ev.Err)
		s.publish(bus.Message{Kind: bus.KindError, Content: errString(ev.Err)})
	case wake.EventFatal:
		s.log.Error("Recognizer unavailable", "err", ev.Err)
		s.publish(bus.Message{Kind: bus.KindError, Content: errString(ev.Err)})
		if s.State() != domain.StateIdle {
			s.halt()
			s.transition(domain.StateIdle)
		}
		s.say(respond.PermissionDenied(s.personality()))
	}
}

func (s *Session) wakeDetected() {
	if s.State() != domain.StateListening {
		s.log.Debug("Ignoring wake", "state", s.State())
		return
	}

	s.transition(domain.StateWakeDetected)
	s.cue(ports.CueWake)
	s.publish(bus.Message{Kind: bus.KindWake})

	s.gen++
	gen := s.gen
	ctx, cancel := context.WithCancel(s.work)
	s.ackCancel = cancel

	ack := respond.Acknowledgement(s.personality())
	go func() {
		defer cancel()
		err := s.deps.Speaker.Speak(ctx, ack)
		s.post(func() { s.acked(gen, err) })
	}()
}

func (s *Session) acked(gen uint64, err error) {
	if err != nil && !errors.Is(err, context.Canceled) {
		s.log.Warn("Failed to speak acknowledgement", "err", err)
	}
	if gen != s.gen || s.State() != domain.StateWakeDetected {
		return
	}
	s.ackCancel = nil
	s.transition(domain.StateListening)
}

func (s *Session) command(text string, waiter chan<- dispatch.Result) error {
	switch s.State() {
	case domain.StateListening, domain.StateWakeDetected:
	case domain.StateIdle:
		return ErrNotListening
	default:
		return ErrBusy
	}

	if s.ackCancel != nil {
		s.ackCancel()
		s.ackCancel = nil
	}

	s.gen++
	gen := s.gen
	s.transition(domain.StateProcessing)
	s.cue(ports.CueProcessing)
	s.publish(bus.Message{Kind: bus.KindCommand, Content: text})

	ctx := s.work
	go func() {
		res := s.deps.Handler.Handle(ctx, text)
		s.post(func() { s.handled(gen, res, waiter) })
	}()
	return nil
}

func (s *Session) handled(gen uint64, res dispatch.Result, waiter chan<- dispatch.Result) {
	if waiter != nil {
		waiter <- res
	}
	if gen != s.gen || s.State() != domain.StateProcessing {
		return
	}

	s.publish(bus.Message{
		Kind:    bus.KindResponse,
		Intent:  string(res.Command.Intent),
		Content: res.Response,
	})
	if res.Command.Status == domain.StatusSuccess {
		s.cue(ports.CueSuccess)
	} else {
		s.cue(ports.CueError)
	}

	s.transition(domain.StateSpeaking)
	if res.Spoken {
		s.transition(domain.StateListening)
		return
	}
	s.speak(res.Response)
}

func (s *Session) announce(text string) error {
	if s.State() != domain.StateListening {
		return ErrBusy
	}
	s.gen++
	s.transition(domain.StateSpeaking)
	s.speak(text)
	return nil
}

// speak plays text and returns to listening once playback ends.
func (s *Session) speak(text string) {
	gen := s.gen
	ctx := s.work
	go func() {
		err := s.deps.Speaker.Speak(ctx, text)
		s.post(func() { s.spoken(gen, err) })
	}()
}

func (s *Session) spoken(gen uint64, err error) {
	if err != nil && !errors.Is(err, context.Canceled) {
		s.log.Warn("Failed to speak", "err", err)
		s.cue(ports.CueError)
	}
	if gen != s.gen || s.State() != domain.StateSpeaking {
		return
	}
	s.transition(domain.StateListening)
}

// say speaks outside the state machine, for messages emitted while idle.
func (s *Session) say(text string) {
	ctx := s.ctx
	go func() {
		if err := s.deps.Speaker.Speak(ctx, text); err != nil {
			s.log.Warn("Failed to speak", "err", err)
		}
	}()
}

func (s *Session) transition(to domain.AppState) bool {
	from := s.State()
	if from == to {
		return true
	}
	if !allowed[from][to] {
		s.log.Warn("Rejected transition", "from", from, "to", to)
		return false
	}

	s.mu.Lock()
	s.state = to
	s.mu.Unlock()

	s.log.Debug("State changed", "from", from, "to", to)
	s.publish(bus.Message{Kind: bus.KindState, State: string(to)})
	return true
}

func (s *Session) publish(m bus.Message) {
	if s.deps.Bus == nil {
		return
	}
	m.From = "session"
	s.deps.Bus.Publish(m)
}

func (s *Session) cue(c ports.Cue) {
	if s.deps.Cues != nil {
		s.deps.Cues.Play(c)
	}
}

func (s *Session) personality() domain.Personality {
	if s.deps.Personality == nil {
		return domain.PersonalityProfessional
	}
	return s.deps.Personality.Personality()
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
