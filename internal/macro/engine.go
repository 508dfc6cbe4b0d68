package macro

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"sync"

	"jarvis/internal/domain"
	"jarvis/internal/ports"
)

var ErrNoSuchProtocol = errors.New("no such protocol")

// Engine owns the protocol list. All mutations go through its methods.
type Engine struct {
	mu        sync.RWMutex
	protocols []domain.Protocol
	store     ports.ProtocolStore
	log       *log.Logger
}

func NewEngine(store ports.ProtocolStore) *Engine {
	return &Engine{
		store: store,
		log:   log.Default().With("component", "macro"),
	}
}

// DefaultProtocols returns the seed macros installed on first run.
func DefaultProtocols() []domain.Protocol {
	return []domain.Protocol{
		domain.NewProtocol("House Party", "party mode", []domain.Action{
			{Type: domain.ActionLights, Value: "purple"},
			{Type: domain.ActionVolume, Value: "100"},
			{Type: domain.ActionSay, Value: "Let's rock, sir."},
		}, nil),
		domain.NewProtocol("Goodnight", "goodnight protocol", []domain.Action{
			{Type: domain.ActionLights, Value: "off"},
			{Type: domain.ActionVolume, Value: "0"},
			{Type: domain.ActionSay, Value: "Sleep well, sir. Monitoring perimeter."},
		}, nil),
	}
}

// Load reads protocols from the store, seeding defaults when it is empty.
func (e *Engine) Load(ctx context.Context) error {
	loaded, err := e.store.LoadProtocols(ctx)
	if err != nil {
		return fmt.Errorf("load protocols: %w", err)
	}

	if len(loaded) == 0 {
		loaded = DefaultProtocols()
		if err := e.store.SaveProtocols(ctx, loaded); err != nil {
			e.log.Warn("Failed to persist default protocols", "err", err)
		}
		e.log.Info("Installed default protocols", "count", len(loaded))
	}

	e.mu.Lock()
	e.protocols = loaded
	e.mu.Unlock()

	return nil
}

func (e *Engine) Protocols() []domain.Protocol {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]domain.Protocol(nil), e.protocols...)
}

// Add appends p and persists the list. Trigger phrases are not deduplicated.
func (e *Engine) Add(ctx context.Context, p domain.Protocol) error {
	e.mu.Lock()
	e.protocols = append(e.protocols, p)
	snapshot := append([]domain.Protocol(nil), e.protocols...)
	e.mu.Unlock()

	e.log.Info("Added protocol", "name", p.Name, "trigger", p.TriggerPhrase)

	if err := e.store.SaveProtocols(ctx, snapshot); err != nil {
		return fmt.Errorf("save protocols: %w", err)
	}
	return nil
}

// Remove deletes the protocol at index and persists the list.
func (e *Engine) Remove(ctx context.Context, index int) error {
	e.mu.Lock()
	if index < 0 || index >= len(e.protocols) {
		e.mu.Unlock()
		return fmt.Errorf("%w: index %d", ErrNoSuchProtocol, index)
	}
	e.protocols = append(e.protocols[:index:index], e.protocols[index+1:]...)
	snapshot := append([]domain.Protocol(nil), e.protocols...)
	e.mu.Unlock()

	if err := e.store.SaveProtocols(ctx, snapshot); err != nil {
		return fmt.Errorf("save protocols: %w", err)
	}
	return nil
}

// RemoveByID deletes the protocol with the given id.
func (e *Engine) RemoveByID(ctx context.Context, id string) error {
	e.mu.RLock()
	index := -1
	for i, p := range e.protocols {
		if p.ID == id {
			index = i
			break
		}
	}
	e.mu.RUnlock()

	if index < 0 {
		return fmt.Errorf("%w: %s", ErrNoSuchProtocol, id)
	}
	return e.Remove(ctx, index)
}

// CheckTrigger returns the protocol whose trigger phrase is the longest
// substring of text. Equal lengths resolve to the earliest registered.
func (e *Engine) CheckTrigger(text string) (domain.Protocol, bool) {
	lower := strings.ToLower(text)

	e.mu.RLock()
	defer e.mu.RUnlock()

	best := -1
	bestLen := 0
	for i, p := range e.protocols {
		trigger := strings.ToLower(p.TriggerPhrase)
		if trigger == "" || !strings.Contains(lower, trigger) {
			continue
		}
		if len(trigger) > bestLen {
			best = i
			bestLen = len(trigger)
		}
	}

	if best < 0 {
		return domain.Protocol{}, false
	}
	return e.protocols[best], true
}
