package generic

import (
	"context"
	"log/slog"
	"maps"
	"sync"
)

// =============================================================================
// OVERRIDE MAP - One persisted map with serialized read-modify-write
// =============================================================================

// OverrideMap guards one MapStore. Writers (Set, Clear) serialize on the
// map's own mutex so concurrent admin edits never lose updates; readers load
// a snapshot without the mutex. Two OverrideMaps never contend.
type OverrideMap struct {
	name   string
	store  MapStore
	mu     sync.Mutex
	logger *slog.Logger
}

func NewOverrideMap(name string, store MapStore, logger *slog.Logger) *OverrideMap {
	if logger == nil {
		logger = slog.Default()
	}
	return &OverrideMap{name: name, store: store, logger: logger}
}

// Name identifies the map in logs.
func (m *OverrideMap) Name() string { return m.name }

// load never fails: unreadable state is an empty map.
func (m *OverrideMap) load(ctx context.Context) map[string]string {
	data, err := m.store.Load(ctx)
	if err != nil {
		m.logger.WarnContext(ctx, "override map unreadable, using empty map",
			"map", m.name, "err", err)
		return map[string]string{}
	}
	if data == nil {
		return map[string]string{}
	}
	return data
}

// Get returns the value stored under key.
func (m *OverrideMap) Get(ctx context.Context, key string) (string, bool) {
	v, ok := m.load(ctx)[key]
	return v, ok
}

// Snapshot returns a private copy of the whole map.
func (m *OverrideMap) Snapshot(ctx context.Context) map[string]string {
	return maps.Clone(m.load(ctx))
}

// Set upserts key.
func (m *OverrideMap) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data := m.load(ctx)
	if cur, ok := data[key]; ok && cur == value {
		return nil
	}
	data[key] = value
	if err := m.store.Save(ctx, data); err != nil {
		return err
	}
	m.logger.InfoContext(ctx, "override set", "map", m.name, "key", key, "value", value)
	return nil
}

// Clear removes key. Clearing an absent key does not rewrite the store.
func (m *OverrideMap) Clear(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data := m.load(ctx)
	if _, ok := data[key]; !ok {
		return nil
	}
	delete(data, key)
	if err := m.store.Save(ctx, data); err != nil {
		return err
	}
	m.logger.InfoContext(ctx, "override cleared", "map", m.name, "key", key)
	return nil
}
