package store

import (
	"context"
	"sync"
)

// DefaultCapacityBytes mirrors the ~5 MiB budget of the host environments
// this store emulates.
const DefaultCapacityBytes = 5 << 20

// Memory is an in-process Store with a byte-budget ceiling. The budget
// counts key and value bytes, so overwriting a key with a smaller value
// frees capacity.
type Memory struct {
	mu       sync.RWMutex
	items    map[string][]byte
	used     int64
	capacity int64
}

// NewMemory creates a bounded in-memory store. capacityBytes <= 0 selects
// the default budget.
func NewMemory(capacityBytes int64) *Memory {
	if capacityBytes <= 0 {
		capacityBytes = DefaultCapacityBytes
	}
	return &Memory{
		items:    make(map[string][]byte),
		capacity: capacityBytes,
	}
}

func (m *Memory) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.used + int64(len(key)) + int64(len(value))
	if prev, ok := m.items[key]; ok {
		next -= int64(len(key)) + int64(len(prev))
	}
	if next > m.capacity {
		return ErrCapacityExceeded
	}

	cp := make([]byte, len(value))
	copy(cp, value)
	m.items[key] = cp
	m.used = next
	return nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.items[key]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	return cp, nil
}

func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.items[key]; ok {
		m.used -= int64(len(key)) + int64(len(prev))
		delete(m.items, key)
	}
	return nil
}

// UsedBytes reports the current budget consumption.
func (m *Memory) UsedBytes() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.used
}
