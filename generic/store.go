/*
store.go - Persistence capability for admin-owned override maps

PURPOSE:
  Defines the interface between override logic and whatever holds the
  bytes. A MapStore persists one flat key -> string map and is always
  read and written whole; there is no incremental update.

IMPLEMENTATIONS:
  - store/jsonfile: JSON object file, rewritten via temp file + rename
  - store/sqlite:   one table, named maps, rewritten in a transaction
  - generic/store:  in-memory double for tests

CONTRACT:
  Load on a store that was never saved returns an empty map and no error.
  Load of corrupt or unreadable state returns an error; OverrideMap turns
  that into "no overrides", it never blocks evaluation.

SEE ALSO:
  - overrides.go: OverrideMap (locking, read-modify-write)
  - grade/overrides.go: the two maps the engine keeps
*/
package generic

import "context"

// =============================================================================
// MAP STORE - Whole-map load/save
// =============================================================================

type MapStore interface {
	// Load returns the full persisted map.
	Load(ctx context.Context) (map[string]string, error)

	// Save replaces the full persisted map.
	Save(ctx context.Context, m map[string]string) error
}
