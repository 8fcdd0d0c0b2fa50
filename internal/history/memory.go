package history

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/JonMunkholm/tablerag/internal/core"
)

// DefaultMemoryCapacity bounds the memory store.
const DefaultMemoryCapacity = 1000

// MemoryStore keeps the most recent entries in process memory. When full,
// the oldest recorded entry is dropped.
type MemoryStore struct {
	mu       sync.Mutex
	capacity int
	entries  []core.HistoryEntry // in record order
}

var _ core.HistoryStore = (*MemoryStore)(nil)

// NewMemoryStore creates a store holding at most capacity entries.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryStore{capacity: capacity}
}

// Record stores e, replacing an earlier entry for the same session.
func (m *MemoryStore) Record(_ context.Context, e core.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.entries {
		if m.entries[i].SessionID == e.SessionID {
			m.entries[i] = e
			return nil
		}
	}
	if len(m.entries) >= m.capacity {
		m.entries = m.entries[1:]
	}
	m.entries = append(m.entries, e)
	return nil
}

// List returns up to limit entries, most recently finished first.
func (m *MemoryStore) List(_ context.Context, limit int) ([]core.HistoryEntry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	m.mu.Lock()
	out := make([]core.HistoryEntry, len(m.entries))
	copy(out, m.entries)
	m.mu.Unlock()

	sortNewestFirst(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Purge drops entries that finished before the cutoff.
func (m *MemoryStore) Purge(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.entries[:0]
	var purged int64
	for _, e := range m.entries {
		if e.FinishedAt.Before(before) {
			purged++
			continue
		}
		kept = append(kept, e)
	}
	m.entries = kept
	return purged, nil
}

func sortNewestFirst(entries []core.HistoryEntry) {
	slices.SortStableFunc(entries, func(a, b core.HistoryEntry) int {
		return b.FinishedAt.Compare(a.FinishedAt)
	})
}
