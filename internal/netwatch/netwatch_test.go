package netwatch

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
)

type fakeDialer struct {
	mu sync.Mutex
	up map[string]bool
}

func (d *fakeDialer) set(addr string, up bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.up[addr] = up
}

func (d *fakeDialer) DialContext(_ context.Context, _, addr string) (net.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.up[addr] {
		c, s := net.Pipe()
		s.Close()
		return c, nil
	}
	return nil, errors.New("connection refused")
}

func TestProbeFlipsState(t *testing.T) {
	t.Parallel()

	d := &fakeDialer{up: map[string]bool{}}
	var changes []bool
	m := New(Config{Targets: []string{"a:1", "b:2"}, OnChange: func(on bool) { changes = append(changes, on) }}, d)

	if !m.Online() {
		t.Fatalf("monitor should start optimistic")
	}
	if m.Probe(context.Background()) || m.Online() {
		t.Fatalf("expected offline with no reachable target")
	}

	d.set("b:2", true)
	if !m.Probe(context.Background()) || !m.Online() {
		t.Fatalf("second target should count")
	}
	m.Probe(context.Background())

	if len(changes) != 2 || changes[0] || !changes[1] {
		t.Fatalf("unexpected change callbacks %v", changes)
	}
}

func TestCancelledProbeKeepsState(t *testing.T) {
	t.Parallel()

	m := New(Config{Targets: []string{"a:1"}}, &fakeDialer{up: map[string]bool{}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m.Probe(ctx)
	if !m.Online() {
		t.Fatalf("cancelled probe must not mark offline")
	}
}
