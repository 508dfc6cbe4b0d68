package memory

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"sync"
	"time"

	"jarvis/internal/domain"
	"jarvis/internal/ports"
)

var (
	ErrEmptyFact = errors.New("empty fact")
	ErrNotFound  = errors.New("fact not found")
)

// Manager owns the remembered facts about the user.
type Manager struct {
	mu    sync.RWMutex
	facts []domain.Fact
	store ports.FactStore
	now   func() time.Time
	log   *log.Logger
}

func NewManager(store ports.FactStore) *Manager {
	return &Manager{
		store: store,
		now:   time.Now,
		log:   log.Default().With("component", "memory"),
	}
}

func (m *Manager) Load(ctx context.Context) error {
	facts, err := m.store.LoadFacts(ctx)
	if err != nil {
		return fmt.Errorf("load facts: %w", err)
	}
	m.mu.Lock()
	m.facts = facts
	m.mu.Unlock()
	return nil
}

func (m *Manager) Remember(ctx context.Context, content string) (domain.Fact, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.Fact{}, ErrEmptyFact
	}

	f := domain.NewFact(content, m.now())

	m.mu.Lock()
	m.facts = append(m.facts, f)
	snapshot := append([]domain.Fact(nil), m.facts...)
	m.mu.Unlock()

	m.log.Info("Remembered fact", "content", content)
	return f, m.save(ctx, snapshot)
}

func (m *Manager) Facts() []domain.Fact {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.Fact(nil), m.facts...)
}

func (m *Manager) Forget(ctx context.Context, id string) error {
	m.mu.Lock()
	idx := -1
	for i, f := range m.facts {
		if f.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return ErrNotFound
	}
	m.facts = append(m.facts[:idx:idx], m.facts[idx+1:]...)
	snapshot := append([]domain.Fact(nil), m.facts...)
	m.mu.Unlock()

	return m.save(ctx, snapshot)
}

func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.facts = nil
	m.mu.Unlock()
	return m.save(ctx, nil)
}

// ContextPrompt renders the facts for the conversational system prompt.
func (m *Manager) ContextPrompt() string {
	facts := m.Facts()
	if len(facts) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("[USER MEMORIES]\nYou know the following facts about the user. Use them to personalize your responses:\n")
	for _, f := range facts {
		b.WriteString("- ")
		b.WriteString(f.Content)
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Manager) save(ctx context.Context, facts []domain.Fact) error {
	if err := m.store.SaveFacts(ctx, facts); err != nil {
		return fmt.Errorf("save facts: %w", err)
	}
	return nil
}
