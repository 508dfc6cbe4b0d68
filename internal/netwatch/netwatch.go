// Package netwatch tracks whether cloud services are reachable by probing TCP
// endpoints on an interval.
package netwatch

import (
	"context"
	log "log/slog"
	"net"
	"sync/atomic"
	"time"
)

type Dialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

type Config struct {
	Targets  []string // host:port; any one answering means online
	Interval time.Duration
	Timeout  time.Duration
	// OnChange is called from the probe loop when reachability flips.
	OnChange func(online bool)
}

// Monitor implements ports.Connectivity.
type Monitor struct {
	cfg    Config
	dialer Dialer
	online atomic.Bool
	log    *log.Logger
}

func New(cfg Config, dialer Dialer) *Monitor {
	if len(cfg.Targets) == 0 {
		cfg.Targets = []string{"1.1.1.1:443", "8.8.8.8:53"}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if dialer == nil {
		dialer = &net.Dialer{}
	}
	m := &Monitor{cfg: cfg, dialer: dialer, log: log.Default().With("component", "netwatch")}
	// Assume online until the first probe says otherwise.
	m.online.Store(true)
	return m
}

func (m *Monitor) Online() bool {
	return m.online.Load()
}

// Run probes immediately and then every Interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	t := time.NewTicker(m.cfg.Interval)
	defer t.Stop()

	for {
		m.Probe(ctx)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// Probe checks the targets once and updates the state.
func (m *Monitor) Probe(ctx context.Context) bool {
	up := false
	for _, addr := range m.cfg.Targets {
		pctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
		conn, err := m.dialer.DialContext(pctx, "tcp", addr)
		cancel()
		if err == nil {
			conn.Close()
			up = true
			break
		}
		m.log.Debug("Probe failed", "addr", addr, "err", err)
	}

	if ctx.Err() != nil {
		return m.Online()
	}
	if prev := m.online.Swap(up); prev != up {
		if up {
			m.log.Info("Network is reachable again")
		} else {
			m.log.Warn("Network unreachable, switching to offline mode")
		}
		if m.cfg.OnChange != nil {
			m.cfg.OnChange(up)
		}
	}
	return up
}
