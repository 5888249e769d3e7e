package correlate

import (
	"slices"
	"sync"

	"github.com/piotrzwolinski/synapseos-sub000/internal/domain"
)

// History is the visible message list of a session. Background completions write
// to it from their own goroutines, so every access goes through the mutex.
type History struct {
	mu       sync.Mutex
	messages []domain.Message
}

// NewHistory returns an empty history.
func NewHistory() *History {
	return &History{}
}

// Append adds msg to the end of the history.
func (h *History) Append(msg domain.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, msg)
}

// Messages returns a copy of the history in display order.
func (h *History) Messages() []domain.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.messages)
}

// Get returns the message with the given id.
func (h *History) Get(id string) (domain.Message, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, m := range h.messages {
		if m.ID == id {
			return m, true
		}
	}
	return domain.Message{}, false
}

// Len returns the number of messages.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.messages)
}

// Clear removes every message.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = nil
}

// ByID addresses messages by message id.
func (h *History) ByID() Target[domain.Message] {
	return TargetFunc[domain.Message](func(id string, fn func(*domain.Message)) bool {
		return h.update(func(m *domain.Message) bool { return m.ID == id }, fn)
	})
}

// ByCorrelation addresses messages by correlation id.
func (h *History) ByCorrelation() Target[domain.Message] {
	return TargetFunc[domain.Message](func(cid string, fn func(*domain.Message)) bool {
		if cid == "" {
			return false
		}
		return h.update(func(m *domain.Message) bool { return m.CorrelationID == cid }, fn)
	})
}

func (h *History) update(match func(*domain.Message) bool, fn func(*domain.Message)) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range h.messages {
		if match(&h.messages[i]) {
			fn(&h.messages[i])
			return true
		}
	}
	return false
}
