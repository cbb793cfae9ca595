package coord

import (
	"context"
	"sync"
	"time"
)

// MemoryKV is an in-process KV used by tests and single-process runs. It
// honors the same TTL and atomicity semantics as the SQLite implementation.
type MemoryKV struct {
	mu       sync.Mutex
	entries  map[string]memoryEntry
	members  map[string]map[string]time.Time // set -> member -> expiry (zero = no expiry)
	counters map[string]int64
	lists    map[string][]string

	// Now is overridable in tests to force TTL expiry.
	Now func() time.Time
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// NewMemoryKV creates an empty in-memory coordination store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{
		entries:  make(map[string]memoryEntry),
		members:  make(map[string]map[string]time.Time),
		counters: make(map[string]int64),
		lists:    make(map[string][]string),
		Now:      time.Now,
	}
}

func (m *MemoryKV) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.Now()
	if existing, ok := m.entries[key]; ok {
		if existing.expiresAt.IsZero() || existing.expiresAt.After(now) {
			return false, nil
		}
	}
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = now.Add(ttl)
	}
	m.entries[key] = entry
	return true, nil
}

func (m *MemoryKV) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return "", false, nil
	}
	if !entry.expiresAt.IsZero() && !entry.expiresAt.After(m.Now()) {
		return "", false, nil
	}
	return entry.value, true, nil
}

func (m *MemoryKV) Release(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.entries[key]; ok && entry.value == value {
		delete(m.entries, key)
	}
	return nil
}

func (m *MemoryKV) AddMember(ctx context.Context, set, member string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.Now()
	if m.members[set] == nil {
		m.members[set] = make(map[string]time.Time)
	}
	if expires, ok := m.members[set][member]; ok {
		if expires.IsZero() || expires.After(now) {
			return false, nil
		}
	}
	var expires time.Time
	if ttl > 0 {
		expires = now.Add(ttl)
	}
	m.members[set][member] = expires
	return true, nil
}

func (m *MemoryKV) HasMember(ctx context.Context, set, member string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	expires, ok := m.members[set][member]
	if !ok {
		return false, nil
	}
	if !expires.IsZero() && !expires.After(m.Now()) {
		return false, nil
	}
	return true, nil
}

func (m *MemoryKV) Incr(ctx context.Context, counter string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.counters[counter]++
	return m.counters[counter], nil
}

func (m *MemoryKV) Counter(ctx context.Context, counter string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.counters[counter], nil
}

func (m *MemoryKV) PushBounded(ctx context.Context, list, entry string, max int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := append(m.lists[list], entry)
	if len(entries) > max {
		entries = entries[len(entries)-max:]
	}
	m.lists[list] = entries
	return nil
}

func (m *MemoryKV) Entries(ctx context.Context, list string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, len(m.lists[list]))
	copy(out, m.lists[list])
	return out, nil
}
