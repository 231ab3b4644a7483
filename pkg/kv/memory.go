package kv

import (
	"bytes"
	"context"
	"sort"
	"sync"
)

// Memory is an in-memory Store backed by a map with sorted listing.
// It is safe for concurrent use and is the backend used by tests.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

var _ Store = (*Memory)(nil)

func (m *Memory) Get(_ context.Context, key Key) ([]byte, error) {
	k := string(encodeKey(key))
	m.mu.RLock()
	v, ok := m.data[k]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, nil
}

func (m *Memory) Set(_ context.Context, key Key, value []byte) error {
	k := string(encodeKey(key))
	cp := make([]byte, len(value))
	copy(cp, value)
	m.mu.Lock()
	m.data[k] = cp
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, key Key) error {
	k := string(encodeKey(key))
	m.mu.Lock()
	delete(m.data, k)
	m.mu.Unlock()
	return nil
}

func (m *Memory) List(_ context.Context, prefix Key) ([]Entry, error) {
	p := scanPrefix(prefix)

	m.mu.RLock()
	var entries []Entry
	for k, v := range m.data {
		if p != nil && !bytes.HasPrefix([]byte(k), p) {
			continue
		}
		cp := make([]byte, len(v))
		copy(cp, v)
		entries = append(entries, Entry{Key: decodeKey([]byte(k)), Value: cp})
	}
	m.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key.String() < entries[j].Key.String()
	})
	return entries, nil
}

func (m *Memory) BatchSet(_ context.Context, entries []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		cp := make([]byte, len(e.Value))
		copy(cp, e.Value)
		m.data[string(encodeKey(e.Key))] = cp
	}
	return nil
}

func (m *Memory) Close() error { return nil }
