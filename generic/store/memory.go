// Package store provides MapStore implementations.
package store

import (
	"context"
	"maps"
	"sync"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu    sync.RWMutex
	data  map[string]string
	saves int

	// LoadErr, when set, is returned by Load (simulates a corrupt store).
	LoadErr error
	// SaveErr, when set, is returned by Save.
	SaveErr error
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

// NewMemoryFrom seeds the store with a copy of data.
func NewMemoryFrom(data map[string]string) *Memory {
	return &Memory{data: maps.Clone(data)}
}

// Load returns a copy so callers can mutate it freely.
func (m *Memory) Load(_ context.Context) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	return maps.Clone(m.data), nil
}

// Save replaces the whole map.
func (m *Memory) Save(_ context.Context, data map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.data = maps.Clone(data)
	m.saves++
	return nil
}

// Saves reports how many successful Save calls happened.
func (m *Memory) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}
