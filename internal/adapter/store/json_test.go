package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"camsync/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMappingFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "file-mappings.json")
	s := NewMappingFile(path)

	empty, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, empty)

	checked := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	in := map[string]*domain.FileMapping{
		`C:\cache\x.cfg`: {
			ServerPath:         `P:\shared\x.cfg`,
			LocalPath:          `C:\cache\x.cfg`,
			FileType:           "config",
			Status:             domain.StatusOutdated,
			CreatedAt:          checked.Add(-time.Hour),
			LastChecked:        &checked,
			LastServerModified: checked.Add(-2 * time.Hour),
			LastServerSize:     42,
			CheckCount:         3,
			SyncHistory:        []domain.SyncRecord{{SyncedAt: checked, ServerSize: 42}},
		},
	}
	require.NoError(t, s.Save(in))

	out, err := s.Load()
	require.NoError(t, err)
	require.Contains(t, out, `C:\cache\x.cfg`)
	got := out[`C:\cache\x.cfg`]
	assert.Equal(t, `P:\shared\x.cfg`, got.ServerPath)
	assert.Equal(t, domain.StatusOutdated, got.Status)
	assert.Equal(t, 3, got.CheckCount)
	assert.True(t, got.LastChecked.Equal(checked))
	assert.Len(t, got.SyncHistory, 1)
}

func TestMappingFileFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file-mappings.json")
	s := NewMappingFile(path)
	require.NoError(t, s.Save(map[string]*domain.FileMapping{
		"/cache/a": {ServerPath: "/srv/a", LocalPath: "/cache/a", Status: domain.StatusUnmapped},
	}))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	entry := raw["/cache/a"]
	for _, field := range []string{"serverPath", "fileType", "status", "lastServerModified", "lastServerSize", "checkCount", "syncCount", "syncHistory"} {
		assert.Contains(t, entry, field)
	}
	assert.Equal(t, "unmapped", entry["status"])
}

func TestMappingFileOwnerOnly(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permission bits")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "file-mappings.json")
	s := NewMappingFile(path)
	require.NoError(t, s.Save(map[string]*domain.FileMapping{}))
	require.NoError(t, s.Save(map[string]*domain.FileMapping{
		"/cache/a": {ServerPath: "/srv/a", LocalPath: "/cache/a"},
	}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestMappingFileLegacyEntryWithoutLocalPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file-mappings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"/cache/a":{"serverPath":"/srv/a","status":"current"}}`), 0o644))

	out, err := NewMappingFile(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "/cache/a", out["/cache/a"].LocalPath)
}

func TestMappingFileCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file-mappings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))
	_, err := NewMappingFile(path).Load()
	assert.ErrorIs(t, err, domain.ErrInvalidFormat)
}

func TestProfileDir(t *testing.T) {
	s := NewProfileDir(t.TempDir())

	_, err := s.LoadScanConfig("alice")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	cfg := domain.NewConfiguration()
	cfg.Version = domain.Version{Name: "hyperMILL", Major: "33", Minor: "0"}
	cfg.Machines = append(cfg.Machines, domain.Machine{Name: "DMU 50"})
	require.NoError(t, s.SaveConfiguration("alice", cfg))

	loaded, err := s.LoadConfiguration("alice")
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	first := &domain.ScanConfig{Username: "alice", PathsToScan: []domain.ScanPath{{Path: "a"}, {Path: "b"}}}
	second := &domain.ScanConfig{Username: "alice", PathsToScan: []domain.ScanPath{{Path: "c"}}}
	require.NoError(t, s.SaveScanConfig("alice", first))
	require.NoError(t, s.SaveScanConfig("alice", second))
	sc, err := s.LoadScanConfig("alice")
	require.NoError(t, err)
	assert.Len(t, sc.PathsToScan, 1, "scan config is replaced, not merged")

	assert.ErrorIs(t, s.SaveScanConfig("../evil", second), domain.ErrInvalidFormat)
}
