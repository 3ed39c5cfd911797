package backend

import (
	"context"
	"fmt"
	"sync"
)

// Memory is a process-local backend. With a quota it behaves like browser
// local storage and rejects writes that would exceed it.
type Memory struct {
	mu      sync.Mutex
	entries map[string]string
	quota   int
}

// NewMemory returns an empty Memory backend. A quota of zero or less means unlimited;
// otherwise the summed length of all keys and values may not exceed quota bytes.
func NewMemory(quota int) *Memory {
	return &Memory{entries: make(map[string]string), quota: quota}
}

func (m *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	value, ok := m.entries[key]
	return value, ok, nil
}

func (m *Memory) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.quota > 0 {
		size := m.size() + len(value)
		if old, ok := m.entries[key]; ok {
			size -= len(old)
		} else {
			size += len(key)
		}
		if size > m.quota {
			return fmt.Errorf("setting %q (%d of %d bytes): %w", key, size, m.quota, ErrQuotaExceeded)
		}
	}

	m.entries[key] = value
	return nil
}

// size must be called with mu held.
func (m *Memory) size() int {
	n := 0
	for k, v := range m.entries {
		n += len(k) + len(v)
	}
	return n
}
