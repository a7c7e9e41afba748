package files

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeAt creates name in dir with the given modification time.
func writeAt(t *testing.T, dir, name string, mod time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("date\n"), 0o600))
	require.NoError(t, os.Chtimes(path, mod, mod))
	return path
}

func TestDiscovery_Find(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	writeAt(t, dir, "b.csv", base.Add(2*time.Hour))
	writeAt(t, dir, "a.XLSX", base.Add(time.Hour))
	writeAt(t, dir, "notes.txt", base.Add(3*time.Hour))
	writeAt(t, dir, ".hidden.csv", base.Add(4*time.Hour))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "old.csv"), 0o755))

	found, err := NewDiscovery("", ".csv", ".xlsx").Find(dir)
	require.NoError(t, err)

	require.Len(t, found, 2)
	assert.Equal(t, "a.XLSX", found[0].Name)
	assert.Equal(t, "b.csv", found[1].Name)
	assert.Equal(t, int64(5), found[1].Size)
}

func TestDiscovery_Resolve(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	writeAt(t, dir, "monday.csv", base)
	newest := writeAt(t, dir, "tuesday.xlsx", base.Add(24*time.Hour))
	single := writeAt(t, dir, "single.txt", base)

	empty := t.TempDir()
	d := NewDiscovery("", ".csv", ".xlsx")

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr error
	}{
		{name: "file is returned as is", path: single, want: single},
		{name: "directory picks newest", path: dir, want: newest},
		{name: "empty directory", path: empty, wantErr: ErrNoFiles},
		{name: "missing path", path: filepath.Join(dir, "missing"), wantErr: os.ErrNotExist},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.Resolve(tt.path)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDiscovery_RelativeToBase(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(base, "incoming"), 0o755))
	want := writeAt(t, base, filepath.Join("incoming", "data.csv"), time.Now())

	got, err := NewDiscovery(base, ".csv").Resolve("incoming")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestGetLatestFile(t *testing.T) {
	_, ok := GetLatestFile(nil)
	assert.False(t, ok)

	now := time.Now()
	latest, ok := GetLatestFile([]FileInfo{
		{Name: "old", ModTime: now.Add(-time.Hour)},
		{Name: "new", ModTime: now},
		{Name: "older", ModTime: now.Add(-2 * time.Hour)},
	})
	require.True(t, ok)
	assert.Equal(t, "new", latest.Name)
}
