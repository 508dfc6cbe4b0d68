package dispatch

import (
	"sync"

	"jarvis/internal/domain"
)

const DefaultHistoryCap = 50

// History is the bounded command log, newest first.
type History struct {
	mu    sync.RWMutex
	cap   int
	items []domain.Command
}

func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCap
	}
	return &History{cap: capacity}
}

// Add prepends cmd and evicts the oldest entries beyond capacity.
func (h *History) Add(cmd domain.Command) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.items = append([]domain.Command{cmd}, h.items...)
	if len(h.items) > h.cap {
		h.items = h.items[:h.cap]
	}
}

func (h *History) SetStatus(id string, status domain.CommandStatus) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i := range h.items {
		if h.items[i].ID == id {
			h.items[i].Status = status
			return true
		}
	}
	return false
}

func (h *History) List() []domain.Command {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]domain.Command(nil), h.items...)
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.items)
}

func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = nil
}
