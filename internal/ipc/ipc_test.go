package ipc

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "j.sock")
	srv, err := Listen(path, func(_ context.Context, msg ControlMessage) Reply {
		switch msg.Cmd {
		case CmdCommand:
			return Reply{OK: true, Response: "echo " + msg.Text}
		case CmdStatus:
			return Reply{OK: true, State: "listening"}
		}
		return Reply{Error: "unknown command"}
	})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ctx) }()

	reqCtx, reqCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer reqCancel()

	r, err := Send(reqCtx, path, ControlMessage{Cmd: CmdCommand, Text: "what time is it"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !r.OK || r.Response != "echo what time is it" {
		t.Fatalf("unexpected reply %+v", r)
	}

	r, _ = Send(reqCtx, path, ControlMessage{Cmd: CmdStatus})
	if r.State != "listening" {
		t.Fatalf("unexpected status %+v", r)
	}
	r, _ = Send(reqCtx, path, ControlMessage{Cmd: "dance"})
	if r.OK || r.Error == "" {
		t.Fatalf("expected error reply, got %+v", r)
	}

	cancel()
	select {
	case err := <-served:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("server did not stop")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("socket not removed: %v", err)
	}
}

func TestSendWithoutDaemon(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "missing.sock")
	if _, err := Send(context.Background(), path, ControlMessage{Cmd: CmdStatus}); err == nil {
		t.Fatalf("expected dial error")
	}
}
