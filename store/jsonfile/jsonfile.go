/*
Package jsonfile provides a JSON-file implementation of generic.MapStore.

PURPOSE:
  Persists one override map as a flat JSON object, e.g.

    {
      "kim|5678": "9999"
    }

  This is the format the admin tools have always written, so existing
  join_overrides.json / login4_overrides.json files load unchanged.

ATOMIC REWRITE:
  Save writes the whole map to a temp file in the same directory, fsyncs
  it and renames it over the target. A crash mid-write leaves either the
  old or the new file, never a truncated one.

LOAD:
  - missing file        -> empty map, no error
  - not a JSON object   -> error (OverrideMap treats it as empty)
  - non-string values   -> stringified

SEE ALSO:
  - generic/store.go: MapStore contract
  - store/sqlite: database-backed alternative
*/
package jsonfile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
)

// File is a MapStore backed by a single JSON file.
type File struct {
	path string
}

func New(path string) *File {
	return &File{path: path}
}

func (f *File) Path() string { return f.path }

// Load reads the whole file.
func (f *File) Load(_ context.Context) (map[string]string, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("jsonfile: read %s: %w", f.path, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]string{}, nil
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("jsonfile: parse %s: %w", f.path, err)
	}
	if decoded == nil {
		return nil, fmt.Errorf("jsonfile: %s is not a JSON object", f.path)
	}

	out := make(map[string]string, len(decoded))
	for k, v := range decoded {
		switch tv := v.(type) {
		case string:
			out[k] = tv
		case nil:
			// null entries carry no override
		default:
			out[k] = fmt.Sprint(tv)
		}
	}
	return out, nil
}

// Save rewrites the whole file atomically.
func (f *File) Save(_ context.Context, data map[string]string) error {
	if data == nil {
		data = map[string]string{}
	}
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("jsonfile: encode: %w", err)
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("jsonfile: create temp: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("jsonfile: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("jsonfile: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("jsonfile: close temp: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		cleanup()
		return fmt.Errorf("jsonfile: replace %s: %w", f.path, err)
	}
	return nil
}
