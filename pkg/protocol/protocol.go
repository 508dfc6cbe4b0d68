// Package protocol implements the hub line protocol:
//
//	TO:VERB:NOUN[:ARG...]:FROM
//
// Frames are single-line tokens separated by colons, exchanged over a
// WebSocket connection to the hub.
package protocol

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"regexp"
	"strings"
	"sync"
	"time"
)

const Broadcast = "ALL"

var (
	ErrTimeout = errors.New("hub did not reply in time")
	ErrClosed  = errors.New("protocol closed")
)

type Config struct {
	Shard          string
	URL            string
	ReconnectDelay time.Duration
	Timeout        time.Duration
	// OnMessage receives frames that are not replies to a pending request.
	OnMessage func(*Message)
}

// Protocol exchanges frames with the hub on behalf of one shard.
type Protocol struct {
	ws        *WebSocket
	shard     string
	timeout   time.Duration
	onMessage func(*Message)

	reqMu sync.Mutex // one request in flight

	waiterMu sync.Mutex
	waiter   chan *Message
}

func New(ctx context.Context, cfg Config) (*Protocol, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if !isToken(cfg.Shard) {
		return nil, fmt.Errorf("invalid shard name %q", cfg.Shard)
	}

	ws, err := Dial(ctx, cfg.URL, cfg.ReconnectDelay)
	if err != nil {
		return nil, err
	}

	return &Protocol{
		ws:        ws,
		shard:     cfg.Shard,
		timeout:   cfg.Timeout,
		onMessage: cfg.OnMessage,
	}, nil
}

func (p *Protocol) Close() error {
	return p.ws.Close()
}

// Transmit sends m with FROM set to this shard.
func (p *Protocol) Transmit(m Message) error {
	m.From = p.shard
	frame := m.String()
	if _, err := Parse(frame); err != nil {
		return fmt.Errorf("refusing to send malformed frame: %w", err)
	}
	if err := p.ws.Write([]byte(frame)); err != nil {
		return fmt.Errorf("transmit %q: %w", frame, err)
	}
	return nil
}

// Request sends a frame and waits for the next frame addressed to this shard.
func (p *Protocol) Request(ctx context.Context, to, verb, noun string, args ...string) (*Message, error) {
	p.reqMu.Lock()
	defer p.reqMu.Unlock()

	w := p.installWaiter()
	defer p.clearWaiter()

	msg := Message{To: to, Verb: strings.ToUpper(verb), Noun: strings.ToUpper(noun), Args: args}
	if err := p.Transmit(msg); err != nil {
		return nil, err
	}

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case resp, ok := <-w:
		if !ok {
			return nil, ErrClosed
		}
		return resp, nil
	case <-timer.C:
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run reads frames until ctx is done, reconnecting when the hub drops.
func (p *Protocol) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		p.ws.Close()
	}()

	for ctx.Err() == nil {
		in := p.ws.Read()
		switch in.Kind {
		case ConnClosed, ReadFailed:
			if ctx.Err() != nil {
				return
			}
			if in.Kind == ReadFailed {
				log.Error("Failed to read from hub", "err", in.Err)
			}
			// gorilla connections are unusable after any read error.
			log.Warn("Hub connection lost, reconnecting", "url", p.ws.URL())
			if err := p.ws.Reconnect(ctx); err != nil {
				return
			}
			log.Info("Reconnected to hub")

		case ReadOK:
			if !p.addressedToUs(in.Msg) {
				continue
			}
			msg, err := Parse(string(in.Msg))
			if err != nil {
				log.Warn("Failed to parse hub frame", "msg", string(in.Msg), "err", err)
				continue
			}
			p.deliver(msg)
		}
	}
}

func (p *Protocol) deliver(msg *Message) {
	p.waiterMu.Lock()
	w := p.waiter
	if w != nil {
		select {
		case w <- msg:
			p.waiterMu.Unlock()
			return
		default:
		}
	}
	p.waiterMu.Unlock()

	if p.onMessage != nil {
		p.onMessage(msg)
	}
}

func (p *Protocol) installWaiter() chan *Message {
	p.waiterMu.Lock()
	defer p.waiterMu.Unlock()
	p.waiter = make(chan *Message, 1)
	return p.waiter
}

func (p *Protocol) clearWaiter() {
	p.waiterMu.Lock()
	defer p.waiterMu.Unlock()
	p.waiter = nil
}

func (p *Protocol) addressedToUs(frame []byte) bool {
	to, _, _ := strings.Cut(string(frame), ":")
	return to == p.shard || to == Broadcast
}

var (
	tokenRe = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
	hexIDRe = regexp.MustCompile(`^[0-9A-F]{2}$`)
)

func isToken(s string) bool {
	return tokenRe.MatchString(s)
}

func isHexID(s string) bool {
	return hexIDRe.MatchString(strings.ToUpper(s))
}

// Token turns free text into an argument token ("movie night" -> "movie_night").
func Token(s string) string {
	s = strings.Join(strings.Fields(strings.TrimSpace(s)), "_")
	var b strings.Builder
	for _, r := range s {
		if tokenRe.MatchString(string(r)) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Parse decodes a frame.
func Parse(line string) (*Message, error) {
	s := strings.TrimSpace(line)
	if s == "" {
		return nil, errors.New("empty message")
	}
	if strings.ContainsAny(s, " \t\r\n") {
		return nil, errors.New("invalid whitespace present")
	}
	parts := strings.Split(s, ":")
	if len(parts) < 4 {
		return nil, fmt.Errorf("too few fields: got %d, want >= 4", len(parts))
	}

	to := parts[0]
	verb := parts[1]
	noun := parts[2]
	from := parts[len(parts)-1]
	args := append([]string(nil), parts[3:len(parts)-1]...)

	if !isToken(to) && !isHexID(to) {
		return nil, fmt.Errorf("invalid TO token: %q", to)
	}
	if !isToken(from) && !isHexID(from) {
		return nil, fmt.Errorf("invalid FROM token: %q", from)
	}
	if !isToken(noun) || !isToken(verb) {
		return nil, fmt.Errorf("invalid NOUN/VERB: %q %q", noun, verb)
	}
	for i, a := range args {
		if !isToken(a) {
			return nil, fmt.Errorf("invalid ARG[%d]: %q", i, a)
		}
	}

	return &Message{
		To:   to,
		Verb: strings.ToUpper(verb),
		Noun: strings.ToUpper(noun),
		Args: args,
		From: from,
	}, nil
}

type Message struct {
	To   string
	Verb string
	Noun string
	Args []string
	From string
}

func (m *Message) String() string {
	parts := make([]string, 0, 4+len(m.Args))
	parts = append(parts, m.To, m.Verb, m.Noun)
	parts = append(parts, m.Args...)
	parts = append(parts, m.From)
	return strings.Join(parts, ":")
}

func (m *Message) OK() bool {
	return m.Verb == "OK"
}

// Err returns the hub's refusal as an error, or nil for an OK reply.
func (m *Message) Err() error {
	if m.Verb != "ERR" {
		return nil
	}
	if len(m.Args) > 0 {
		return fmt.Errorf("hub error %s: %s", m.Noun, strings.Join(m.Args, " "))
	}
	return fmt.Errorf("hub error %s", m.Noun)
}
