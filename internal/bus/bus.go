package bus

import (
	log "log/slog"
	"sync"
	"time"
)

type Kind string

const (
	KindState    Kind = "state"
	KindWake     Kind = "wake"
	KindCommand  Kind = "command"
	KindResponse Kind = "response"
	KindTimer    Kind = "timer"
	KindError    Kind = "error"
	KindHub      Kind = "hub"
)

// Message is what the assistant announces to observers (API clients, telemetry).
type Message struct {
	Kind    Kind      `json:"kind"`
	From    string    `json:"from"`
	State   string    `json:"state,omitempty"`
	Intent  string    `json:"intent,omitempty"`
	Content string    `json:"content,omitempty"`
	Time    time.Time `json:"time"`
}

const defaultBuffer = 32

type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Message
	nextID int
	now    func() time.Time
}

func New() *Bus {
	return &Bus{
		subs: make(map[int]chan Message),
		now:  time.Now,
	}
}

// Publish never blocks; a subscriber whose buffer is full misses the message.
func (b *Bus) Publish(m Message) {
	if m.Time.IsZero() {
		m.Time = b.now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subs {
		select {
		case ch <- m:
		default:
			log.Debug("Dropped bus message", "subscriber", id, "kind", m.Kind)
		}
	}
}

// Subscribe returns a message channel and a function that closes it.
func (b *Bus) Subscribe() (<-chan Message, func()) {
	ch := make(chan Message, defaultBuffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}
