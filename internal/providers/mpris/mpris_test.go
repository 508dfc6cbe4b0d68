package mpris

import (
	"context"
	"errors"
	"testing"
)

type fakeBus struct {
	names []string
	calls []string
	args  []any
}

func (b *fakeBus) Names(context.Context) ([]string, error) { return b.names, nil }

func (b *fakeBus) Call(_ context.Context, dest, method string, args ...any) error {
	b.calls = append(b.calls, dest+" "+method)
	b.args = append(b.args, args...)
	return nil
}

func TestPicksPreferredPlayer(t *testing.T) {
	t.Parallel()

	bus := &fakeBus{names: []string{"org.freedesktop.Notifications", "org.mpris.MediaPlayer2.vlc", "org.mpris.MediaPlayer2.spotify"}}
	p := &Player{bus: bus, preferred: "spotify"}

	if _, err := p.Pause(context.Background()); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if bus.calls[0] != "org.mpris.MediaPlayer2.spotify org.mpris.MediaPlayer2.Player.Pause" {
		t.Fatalf("unexpected call %q", bus.calls[0])
	}

	p.preferred = ""
	if _, err := p.Next(context.Background()); err != nil {
		t.Fatalf("next: %v", err)
	}
	if bus.calls[1] != "org.mpris.MediaPlayer2.spotify org.mpris.MediaPlayer2.Player.Next" {
		t.Fatalf("sorted first player expected, got %q", bus.calls[1])
	}
}

func TestPlayQueryOnSpotify(t *testing.T) {
	t.Parallel()

	bus := &fakeBus{names: []string{"org.mpris.MediaPlayer2.spotify"}}
	p := &Player{bus: bus}

	got, err := p.Play(context.Background(), "daft punk")
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	if got != "Playing daft punk." {
		t.Fatalf("got %q", got)
	}
	if bus.args[0] != "spotify:search:daft%20punk" {
		t.Fatalf("unexpected uri %v", bus.args[0])
	}

	if got, _ := p.Play(context.Background(), ""); got != "" {
		t.Fatalf("resume should use the canned confirmation, got %q", got)
	}
	if bus.calls[1] != "org.mpris.MediaPlayer2.spotify org.mpris.MediaPlayer2.Player.Play" {
		t.Fatalf("unexpected call %q", bus.calls[1])
	}
}

func TestNoPlayer(t *testing.T) {
	t.Parallel()

	p := &Player{bus: &fakeBus{names: []string{"org.freedesktop.DBus"}}}
	if _, err := p.Pause(context.Background()); !errors.Is(err, ErrNoPlayer) {
		t.Fatalf("expected ErrNoPlayer, got %v", err)
	}
}
