package jsonfile_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/grade-engine/store/jsonfile"
)

func TestFile_MissingIsEmpty(t *testing.T) {
	f := jsonfile.New(filepath.Join(t.TempDir(), "join_overrides.json"))

	data, err := f.Load(context.Background())

	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestFile_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "login4_overrides.json")
	f := jsonfile.New(path)

	require.NoError(t, f.Save(ctx, map[string]string{"김철수|5678": "9999"}))

	data, err := f.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"김철수|5678": "9999"}, data)

	// No temp files left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFile_SaveReplacesWholeMap(t *testing.T) {
	ctx := context.Background()
	f := jsonfile.New(filepath.Join(t.TempDir(), "o.json"))

	require.NoError(t, f.Save(ctx, map[string]string{"a|1111": "x", "b|2222": "y"}))
	require.NoError(t, f.Save(ctx, map[string]string{"b|2222": "z"}))

	data, err := f.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"b|2222": "z"}, data)
}

func TestFile_Load(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    map[string]string
		wantErr bool
	}{
		{"empty file", "", map[string]string{}, false},
		{"whitespace only", "  \n", map[string]string{}, false},
		{"numbers coerced", `{"kim|5678": 9999}`, map[string]string{"kim|5678": "9999"}, false},
		{"null skipped", `{"kim|5678": null, "lee|1111": "2024-01-01"}`, map[string]string{"lee|1111": "2024-01-01"}, false},
		{"array is corrupt", `["kim|5678"]`, nil, true},
		{"null document is corrupt", `null`, nil, true},
		{"truncated is corrupt", `{"kim|5678": "99`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "o.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			got, err := jsonfile.New(path).Load(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
