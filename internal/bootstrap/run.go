package bootstrap

import (
	"context"
	"errors"
	"sync"

	"jarvis/internal/bus"
	"jarvis/internal/ipc"
	"jarvis/internal/ports"
	"jarvis/internal/respond"
	"jarvis/internal/session"
	"jarvis/internal/telemetry"
	"jarvis/internal/timer"
)

// Run starts every background loop and blocks until ctx is done or a server
// fails, then stops every loop before returning.
func (s *Services) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	spawn := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	spawn(func() { s.Session.Run(ctx) })
	spawn(func() { s.monitor.Run(ctx) })
	spawn(func() { s.watchTimers(ctx) })

	if s.hub != nil {
		spawn(func() { s.hub.Run(ctx) })
	}

	errc := make(chan error, 2)
	spawn(func() {
		if err := s.ipc.Serve(ctx); err != nil {
			errc <- err
		}
	})
	if s.api != nil {
		spawn(func() {
			if err := s.api.Serve(ctx); err != nil {
				errc <- err
			}
		})
	}

	if s.nats != nil {
		msgs, unsubscribe := s.Bus.Subscribe()
		bridge := telemetry.NewBridge(s.nats, s.Config.NATS.Subject)
		spawn(func() {
			defer unsubscribe()
			bridge.Run(ctx, msgs)
		})
		if err := s.nats.ServeCommands(ctx, s.Config.NATS.Subject+".commands", s.submit); err != nil {
			s.log.Warn("NATS commands disabled", "err", err)
		}
	}

	if s.Settings.StartupSound() {
		s.cues.Play(ports.CueStartup)
	}
	if s.opts.AutoListen {
		if err := s.Session.Start(ctx); err != nil {
			s.log.Error("Failed to start listening", "err", err)
		}
	}

	s.log.Info("Boot up - successful")

	var err error
	select {
	case <-ctx.Done():
	case err = <-errc:
		s.log.Error("Server failed", "err", err)
	}

	// A failed server stops the rest of the graph.
	cancel()
	wg.Wait()
	return err
}

// Close releases devices and connections in reverse order of creation.
func (s *Services) Close() {
	s.Timers.StopAll()
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.log.Debug("Close failed", "err", err)
		}
	}
	s.closers = nil
}

func (s *Services) submit(ctx context.Context, text string) (string, error) {
	res, err := s.Session.Submit(ctx, text)
	if err != nil {
		return "", err
	}
	return res.Response, nil
}

// watchTimers announces finished timers on the desktop and, when the
// assistant is listening, out loud.
func (s *Services) watchTimers(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-s.Timers.Done():
			if !ok {
				return
			}
			s.timerDone(ctx, t)
		}
	}
}

func (s *Services) timerDone(ctx context.Context, t timer.Timer) {
	text := respond.TimerDone(t.Label)
	s.Bus.Publish(bus.Message{Kind: bus.KindTimer, From: "timer", Content: text})

	if err := s.notifier.Notify(ctx, "Jarvis", text); err != nil {
		s.log.Debug("Timer notification failed", "err", err)
	}

	err := s.Session.Announce(ctx, text)
	switch {
	case err == nil:
	case errors.Is(err, session.ErrNotListening), errors.Is(err, session.ErrBusy):
		s.cues.Play(ports.CueSuccess)
	default:
		s.log.Warn("Failed to announce timer", "id", t.ID, "err", err)
	}
}

func (s *Services) handleControl(ctx context.Context, msg ipc.ControlMessage) ipc.Reply {
	var err error
	reply := ipc.Reply{}

	switch msg.Cmd {
	case ipc.CmdListen:
		err = s.Session.Start(ctx)
	case ipc.CmdStop:
		err = s.Session.Stop(ctx)
	case ipc.CmdCommand:
		reply.Response, err = s.submit(ctx, msg.Text)
	case ipc.CmdStatus:
	default:
		return ipc.Reply{Error: "unknown command " + msg.Cmd}
	}

	if err != nil {
		reply.Error = err.Error()
		return reply
	}
	reply.OK = true
	reply.State = string(s.Session.State())
	return reply
}
