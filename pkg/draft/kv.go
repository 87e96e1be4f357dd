package draft

import (
	"errors"
	"sort"
	"sync"
)

// ErrQuotaExceeded is returned by a KV when a write would exceed its capacity.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// KV is synchronous string key/value storage with a capacity limit,
// the local counterpart of browser storage.
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
	Keys() ([]string, error)
}

// DefaultQuota approximates the per-origin limit of browser storage.
const DefaultQuota = 5 << 20

// MemoryKV is an in-memory KV bounded by a byte quota counted over keys and values.
type MemoryKV struct {
	mu    sync.Mutex
	data  map[string]string
	used  int
	quota int
}

// NewMemoryKV creates a MemoryKV. A quota <= 0 uses DefaultQuota.
func NewMemoryKV(quota int) *MemoryKV {
	if quota <= 0 {
		quota = DefaultQuota
	}
	return &MemoryKV{data: make(map[string]string), quota: quota}
}

func (m *MemoryKV) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryKV) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	used := m.used
	if old, ok := m.data[key]; ok {
		used -= len(key) + len(old)
	}
	used += len(key) + len(value)
	if used > m.quota {
		return ErrQuotaExceeded
	}
	m.data[key] = value
	m.used = used
	return nil
}

func (m *MemoryKV) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.data[key]; ok {
		m.used -= len(key) + len(old)
		delete(m.data, key)
	}
	return nil
}

func (m *MemoryKV) Keys() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Used returns the bytes currently stored.
func (m *MemoryKV) Used() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.used
}
