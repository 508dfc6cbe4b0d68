// Package telemetry mirrors assistant events onto NATS and accepts spoken-style
// commands as NATS requests.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	log "log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"jarvis/internal/bus"
)

type Publisher interface {
	Publish(subject string, data []byte) error
}

// CommandFunc runs a text command and returns the spoken response.
type CommandFunc func(ctx context.Context, text string) (string, error)

type commandReply struct {
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Bridge forwards bus messages to <prefix>.<kind>.
type Bridge struct {
	pub    Publisher
	prefix string
	log    *log.Logger
}

func NewBridge(pub Publisher, prefix string) *Bridge {
	if prefix == "" {
		prefix = "jarvis.events"
	}
	return &Bridge{pub: pub, prefix: strings.TrimSuffix(prefix, "."), log: log.Default().With("component", "telemetry")}
}

// Run forwards until the subscription closes or ctx is done.
func (b *Bridge) Run(ctx context.Context, msgs <-chan bus.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-msgs:
			if !ok {
				return
			}
			b.forward(m)
		}
	}
}

func (b *Bridge) forward(m bus.Message) {
	data, err := json.Marshal(m)
	if err != nil {
		b.log.Warn("Failed to encode event", "kind", m.Kind, "err", err)
		return
	}
	if err := b.pub.Publish(b.prefix+"."+string(m.Kind), data); err != nil {
		b.log.Debug("Publish failed", "kind", m.Kind, "err", err)
	}
}

// Conn owns the NATS connection.
type Conn struct {
	nc  *nats.Conn
	sub *nats.Subscription
}

func Connect(url string) (*Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("jarvis"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("NATS disconnected", "err", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &Conn{nc: nc}, nil
}

func (c *Conn) Publish(subject string, data []byte) error {
	return c.nc.Publish(subject, data)
}

// ServeCommands answers requests on subject with the command's response.
func (c *Conn) ServeCommands(ctx context.Context, subject string, run CommandFunc) error {
	sub, err := c.nc.Subscribe(subject, func(m *nats.Msg) {
		if m.Reply == "" {
			go handleCommand(ctx, run, m.Data)
			return
		}
		go func() {
			if err := m.Respond(handleCommand(ctx, run, m.Data)); err != nil {
				log.Debug("NATS reply failed", "err", err)
			}
		}()
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.sub = sub
	return nil
}

func handleCommand(ctx context.Context, run CommandFunc, data []byte) []byte {
	var r commandReply
	text := strings.TrimSpace(string(data))
	if text == "" {
		r.Error = "empty command"
	} else if resp, err := run(ctx, text); err != nil {
		r.Error = err.Error()
	} else {
		r.Response = resp
	}
	out, _ := json.Marshal(r)
	return out
}

func (c *Conn) Close() {
	if c.sub != nil {
		_ = c.sub.Unsubscribe()
	}
	if err := c.nc.Drain(); err != nil {
		c.nc.Close()
	}
}
