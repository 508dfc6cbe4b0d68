package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"jarvis/internal/bus"
	"jarvis/internal/dispatch"
	"jarvis/internal/domain"
	"jarvis/internal/ports"
	"jarvis/internal/wake"
)

type fakeWake struct {
	mu       sync.Mutex
	events   chan wake.Event
	startErr error
	starts   int
	stops    int
}

func newFakeWake() *fakeWake {
	return &fakeWake{events: make(chan wake.Event, 8)}
}

func (f *fakeWake) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.starts++
	return nil
}

func (f *fakeWake) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *fakeWake) Events() <-chan wake.Event { return f.events }

func (f *fakeWake) stopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

type fakeHandler struct {
	mu      sync.Mutex
	calls   []string
	release chan struct{}
	spoken  bool
}

func (h *fakeHandler) Handle(ctx context.Context, text string) dispatch.Result {
	h.mu.Lock()
	h.calls = append(h.calls, text)
	release := h.release
	h.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
		}
	}
	cmd := domain.NewCommand(text, domain.IntentTime, time.Now())
	cmd.Status = domain.StatusSuccess
	return dispatch.Result{Command: cmd, Response: "reply to " + text, Spoken: h.spoken}
}

func (h *fakeHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

type fakeSpeaker struct {
	mu   sync.Mutex
	said []string
	hook func(ctx context.Context, text string) error
}

func (f *fakeSpeaker) Speak(ctx context.Context, text string) error {
	f.mu.Lock()
	f.said = append(f.said, text)
	hook := f.hook
	f.mu.Unlock()
	if hook != nil {
		return hook(ctx, text)
	}
	return nil
}

func (f *fakeSpeaker) spoken() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.said...)
}

type fixture struct {
	s       *Session
	wake    *fakeWake
	handler *fakeHandler
	speaker *fakeSpeaker
	states  <-chan bus.Message
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	b := bus.New()
	msgs, unsubscribe := b.Subscribe()

	f := &fixture{
		wake:    newFakeWake(),
		handler: &fakeHandler{},
		speaker: &fakeSpeaker{},
		states:  msgs,
	}
	f.s = New(Deps{
		Wake:    f.wake,
		Handler: f.handler,
		Speaker: f.speaker,
		Bus:     b,
	}, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.s.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		unsubscribe()
	})
	return f
}

func waitState(t *testing.T, s *Session, want domain.AppState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.State() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("state %s, want %s", s.State(), want)
}

func (f *fixture) expectStates(t *testing.T, want ...domain.AppState) {
	t.Helper()
	for _, w := range want {
		for {
			select {
			case m := <-f.states:
				if m.Kind != bus.KindState {
					continue
				}
				if m.State != string(w) {
					t.Fatalf("transition to %s, want %s", m.State, w)
				}
			case <-time.After(2 * time.Second):
				t.Fatalf("timed out waiting for %s", w)
			}
			break
		}
	}
}

func TestWakeThenCommand(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	if err := f.s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.expectStates(t, domain.StateListening)

	f.wake.events <- wake.Event{Kind: wake.EventWake, Text: "hey jarvis"}
	f.expectStates(t, domain.StateWakeDetected, domain.StateListening)

	f.wake.events <- wake.Event{Kind: wake.EventCommand, Text: "what time is it"}
	f.expectStates(t, domain.StateProcessing, domain.StateSpeaking, domain.StateListening)

	said := f.speaker.spoken()
	if len(said) != 2 || said[1] != "reply to what time is it" {
		t.Fatalf("unexpected speech: %q", said)
	}
}

func TestAlreadySpokenResponseIsNotRepeated(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.handler.spoken = true
	ctx := context.Background()

	if err := f.s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.expectStates(t, domain.StateListening)

	res, err := f.s.Submit(ctx, "showtime")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Response != "reply to showtime" {
		t.Fatalf("unexpected response: %q", res.Response)
	}
	f.expectStates(t, domain.StateProcessing, domain.StateSpeaking, domain.StateListening)

	if said := f.speaker.spoken(); len(said) != 0 {
		t.Fatalf("response spoken again: %q", said)
	}
}

func TestCommandsDroppedWhileBusy(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.handler.release = make(chan struct{})
	ctx := context.Background()

	if err := f.s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	results := make(chan error, 1)
	go func() {
		_, err := f.s.Submit(ctx, "first")
		results <- err
	}()
	waitState(t, f.s, domain.StateProcessing)

	if _, err := f.s.Submit(ctx, "second"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	f.wake.events <- wake.Event{Kind: wake.EventCommand, Text: "third"}
	f.wake.events <- wake.Event{Kind: wake.EventWake}

	close(f.handler.release)
	if err := <-results; err != nil {
		t.Fatalf("first submit: %v", err)
	}
	waitState(t, f.s, domain.StateListening)

	if n := f.handler.count(); n != 1 {
		t.Fatalf("handler called %d times, want 1", n)
	}
}

func TestCommandCancelsAcknowledgement(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ackCancelled := make(chan struct{})
	var calls atomic.Int32
	f.speaker.hook = func(ctx context.Context, _ string) error {
		if calls.Add(1) > 1 {
			return nil
		}
		<-ctx.Done()
		close(ackCancelled)
		return ctx.Err()
	}

	if err := f.s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.wake.events <- wake.Event{Kind: wake.EventWake}
	waitState(t, f.s, domain.StateWakeDetected)

	f.wake.events <- wake.Event{Kind: wake.EventCommand, Text: "open the pod bay doors"}

	select {
	case <-ackCancelled:
	case <-time.After(2 * time.Second):
		t.Fatalf("acknowledgement was not cancelled")
	}
	waitState(t, f.s, domain.StateListening)
	if f.handler.count() != 1 {
		t.Fatalf("command not handled")
	}
}

func TestStopSpeaksGoodbye(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	if err := f.s.Stop(ctx); err != nil {
		t.Fatalf("stop while idle: %v", err)
	}
	if len(f.speaker.spoken()) != 0 {
		t.Fatalf("idle stop must be silent")
	}

	if err := f.s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := f.s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if f.s.State() != domain.StateIdle {
		t.Fatalf("state %s after stop", f.s.State())
	}
	said := f.speaker.spoken()
	if len(said) != 1 || said[0] == "" {
		t.Fatalf("expected goodbye, got %q", said)
	}
	if f.wake.stopCount() != 1 {
		t.Fatalf("wake engine not stopped")
	}

	if _, err := f.s.Submit(ctx, "hello"); !errors.Is(err, ErrNotListening) {
		t.Fatalf("expected ErrNotListening, got %v", err)
	}
}

func TestStopDuringProcessingReturnsIdle(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.handler.release = make(chan struct{})
	ctx := context.Background()

	if err := f.s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.wake.events <- wake.Event{Kind: wake.EventCommand, Text: "weather"}
	waitState(t, f.s, domain.StateProcessing)

	if err := f.s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	waitState(t, f.s, domain.StateIdle)

	// The cancelled handler completes but must not move the session.
	time.Sleep(20 * time.Millisecond)
	if f.s.State() != domain.StateIdle {
		t.Fatalf("stale completion changed state to %s", f.s.State())
	}
}

func TestStartPermissionDenied(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.wake.startErr = fmt.Errorf("mic: %w", ports.ErrPermissionDenied)

	err := f.s.Start(context.Background())
	if !errors.Is(err, ports.ErrPermissionDenied) {
		t.Fatalf("expected permission error, got %v", err)
	}
	if f.s.State() != domain.StateIdle {
		t.Fatalf("state %s, want idle", f.s.State())
	}
}

func TestFatalRecognizerErrorGoesIdle(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	if err := f.s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.wake.events <- wake.Event{Kind: wake.EventFatal, Err: ports.ErrPermissionDenied}
	waitState(t, f.s, domain.StateIdle)
}

func TestAnnounceOnlyWhenListening(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	if err := f.s.Announce(ctx, "Timer done"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy while idle, got %v", err)
	}
	if err := f.s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.expectStates(t, domain.StateListening)
	if err := f.s.Announce(ctx, "Timer done"); err != nil {
		t.Fatalf("announce: %v", err)
	}
	f.expectStates(t, domain.StateSpeaking, domain.StateListening)
}

func TestTransitionTableRejectsInvalid(t *testing.T) {
	t.Parallel()

	s := New(Deps{Wake: newFakeWake()}, Config{})
	if s.transition(domain.StateSpeaking) {
		t.Fatalf("idle -> speaking must be rejected")
	}
	if !s.transition(domain.StateListening) {
		t.Fatalf("idle -> listening must be allowed")
	}
	if !s.transition(domain.StateWakeDetected) {
		t.Fatalf("listening -> wake_detected must be allowed")
	}
	if s.transition(domain.StateSpeaking) {
		t.Fatalf("wake_detected -> speaking must be rejected")
	}
}
