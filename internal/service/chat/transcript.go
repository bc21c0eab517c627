package chat

import (
	"sync"

	"github.com/havenchat/companion/internal/model/chat"
)

// Transcript is the ordered, in-memory message list of one session view.
// Every mutation goes through the store lock, and records are addressed by
// correlation token, never by position.
type Transcript struct {
	mu    sync.RWMutex
	items []chat.Message
}

// NewTranscript returns an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{items: make([]chat.Message, 0, 16)}
}

// Append adds a record at the end.
func (t *Transcript) Append(msg chat.Message) {
	t.mu.Lock()
	t.items = append(t.items, msg)
	t.mu.Unlock()
}

// RemoveByToken deletes the record with the given token and role.
// It reports whether a record was removed.
func (t *Transcript) RemoveByToken(token string, role chat.Role) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, item := range t.items {
		if item.Token == token && item.Role == role {
			t.items = append(t.items[:i], t.items[i+1:]...)
			return true
		}
	}
	return false
}

// Contains reports whether a record with token and role exists.
func (t *Transcript) Contains(token string, role chat.Role) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, item := range t.items {
		if item.Token == token && item.Role == role {
			return true
		}
	}
	return false
}

// Replace swaps the whole content, e.g. after a history load.
func (t *Transcript) Replace(msgs []chat.Message) {
	copied := make([]chat.Message, len(msgs))
	copy(copied, msgs)

	t.mu.Lock()
	t.items = copied
	t.mu.Unlock()
}

// Snapshot returns a copy of the records in order.
func (t *Transcript) Snapshot() []chat.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	copied := make([]chat.Message, len(t.items))
	copy(copied, t.items)
	return copied
}

// Len returns the number of records.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.items)
}
