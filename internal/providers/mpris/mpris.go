// Package mpris controls desktop media players over the D-Bus MPRIS interface.
package mpris

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/godbus/dbus/v5"
)

const (
	busPrefix   = "org.mpris.MediaPlayer2."
	objectPath  = "/org/mpris/MediaPlayer2"
	playerIface = "org.mpris.MediaPlayer2.Player"
)

var ErrNoPlayer = errors.New("no media player is running")

type caller interface {
	Names(ctx context.Context) ([]string, error)
	Call(ctx context.Context, dest, method string, args ...any) error
}

// Player implements ports.Media against the first running MPRIS player,
// preferring the configured one.
type Player struct {
	bus       caller
	preferred string
}

// Connect opens the session bus.
func Connect(preferred string) (*Player, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	return &Player{bus: sessionBus{conn}, preferred: preferred}, nil
}

func (p *Player) Close() error {
	if c, ok := p.bus.(sessionBus); ok {
		return c.conn.Close()
	}
	return nil
}

func (p *Player) Play(ctx context.Context, query string) (string, error) {
	dest, err := p.pick(ctx)
	if err != nil {
		return "", err
	}

	query = strings.TrimSpace(query)
	if query != "" && strings.Contains(dest, "spotify") {
		uri := "spotify:search:" + url.PathEscape(query)
		if err := p.bus.Call(ctx, dest, playerIface+".OpenUri", uri); err != nil {
			return "", fmt.Errorf("open %q: %w", query, err)
		}
		return fmt.Sprintf("Playing %s.", query), nil
	}

	if err := p.bus.Call(ctx, dest, playerIface+".Play"); err != nil {
		return "", fmt.Errorf("play: %w", err)
	}
	return "", nil
}

func (p *Player) Pause(ctx context.Context) (string, error) {
	return "", p.simple(ctx, "Pause")
}

func (p *Player) Next(ctx context.Context) (string, error) {
	return "", p.simple(ctx, "Next")
}

func (p *Player) simple(ctx context.Context, method string) error {
	dest, err := p.pick(ctx)
	if err != nil {
		return err
	}
	if err := p.bus.Call(ctx, dest, playerIface+"."+method); err != nil {
		return fmt.Errorf("%s: %w", strings.ToLower(method), err)
	}
	return nil
}

func (p *Player) pick(ctx context.Context) (string, error) {
	names, err := p.bus.Names(ctx)
	if err != nil {
		return "", fmt.Errorf("list bus names: %w", err)
	}

	var players []string
	for _, n := range names {
		if strings.HasPrefix(n, busPrefix) {
			players = append(players, n)
		}
	}
	if len(players) == 0 {
		return "", ErrNoPlayer
	}
	slices.Sort(players)

	if p.preferred != "" {
		for _, n := range players {
			if strings.HasPrefix(strings.TrimPrefix(n, busPrefix), p.preferred) {
				return n, nil
			}
		}
	}
	return players[0], nil
}

type sessionBus struct {
	conn *dbus.Conn
}

func (b sessionBus) Names(ctx context.Context) ([]string, error) {
	var names []string
	err := b.conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.ListNames", 0).Store(&names)
	return names, err
}

func (b sessionBus) Call(ctx context.Context, dest, method string, args ...any) error {
	return b.conn.Object(dest, objectPath).CallWithContext(ctx, method, 0, args...).Err
}
