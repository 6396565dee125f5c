package history

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/newthinker/buddy/internal/core"
)

// MemoryStore is an in-memory history store.
type MemoryStore struct {
	entries []Entry
	maxSize int
	mu      sync.RWMutex
	now     func() time.Time
}

// NewMemoryStore creates a new in-memory store with max capacity.
func NewMemoryStore(maxSize int) *MemoryStore {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &MemoryStore{
		entries: make([]Entry, 0, maxSize),
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Save adds an entry to the store.
func (m *MemoryStore) Save(ctx context.Context, e Entry) (Entry, error) {
	e, err := m.prepare(e)
	if err != nil {
		return Entry{}, err
	}
	m.commit(e)
	return e, nil
}

// prepare validates e and fills its id and timestamp.
func (m *MemoryStore) prepare(e Entry) (Entry, error) {
	e.Query = strings.TrimSpace(e.Query)
	if e.Query == "" {
		return Entry{}, core.Errorf(core.ErrInvalidParameters, "search query is empty")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.SearchedAt.IsZero() {
		e.SearchedAt = m.now().UTC()
	}
	return e, nil
}

func (m *MemoryStore) commit(e Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.append(e)
}

func (m *MemoryStore) append(e Entry) {
	m.entries = append(m.entries, e)

	// Trim if over capacity (remove oldest)
	if len(m.entries) > m.maxSize {
		m.entries = m.entries[len(m.entries)-m.maxSize:]
	}
}

// List returns entries matching the filter, newest first.
func (m *MemoryStore) List(ctx context.Context, filter ListFilter) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []Entry{}
	for i := len(m.entries) - 1; i >= 0; i-- {
		if matches(m.entries[i], filter) {
			result = append(result, m.entries[i])
		}
	}

	// Apply offset and limit
	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []Entry{}, nil
		}
		result = result[filter.Offset:]
	}

	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}

	return result, nil
}

// Count returns the count of matching entries.
func (m *MemoryStore) Count(ctx context.Context, filter ListFilter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, e := range m.entries {
		if matches(e, filter) {
			count++
		}
	}
	return count, nil
}

func matches(e Entry, filter ListFilter) bool {
	if filter.Query != "" && !strings.Contains(strings.ToLower(e.Query), strings.ToLower(filter.Query)) {
		return false
	}
	if filter.Symbol != "" && !strings.EqualFold(e.Symbol, filter.Symbol) {
		return false
	}
	if !filter.From.IsZero() && e.SearchedAt.Before(filter.From) {
		return false
	}
	if !filter.To.IsZero() && e.SearchedAt.After(filter.To) {
		return false
	}
	return true
}
