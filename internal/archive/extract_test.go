package archive

import (
	"archive/zip"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"camsync/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func scratchEntries(t *testing.T, root string) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	return entries
}

type countingProgress struct {
	mu      sync.Mutex
	started int
	total   int64
	current int64
	done    bool
}

func (p *countingProgress) Start(name string, total int64) domain.ProgressTask {
	p.started++
	p.total = total
	return p
}
func (p *countingProgress) Wait() {}
func (p *countingProgress) Increment(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current += int64(n)
}
func (p *countingProgress) SetCurrent(c int64) { p.current = c }
func (p *countingProgress) Complete()          { p.done = true }

func TestExtract(t *testing.T) {
	dir := t.TempDir()
	scratchRoot := filepath.Join(dir, "scratch")
	archivePath := filepath.Join(dir, "export.zip")
	writeZip(t, archivePath, map[string]string{
		"XSREGISTER.XML":       `<XSREGISTER major="33" minor="0"/>`,
		"machines/dmu50.mdf":   "mdf",
		"nested/deep/file.txt": "hello",
	})

	progress := &countingProgress{}
	e := NewExtractor(scratchRoot, progress, nil)
	ext, err := e.Extract(archivePath)
	require.NoError(t, err)

	assert.DirExists(t, ext.ScratchDir)
	assert.Equal(t, filepath.Join(ext.ScratchDir, "XSREGISTER.XML"), ext.ManifestPath)
	assert.FileExists(t, filepath.Join(ext.ScratchDir, "nested", "deep", "file.txt"))
	assert.Equal(t, 3, ext.Files)
	assert.Equal(t, progress.total, progress.current)
	assert.True(t, progress.done)

	require.NoError(t, e.Release(ext))
	assert.NoDirExists(t, ext.ScratchDir)
}

func TestExtractDotDotPrefixedNames(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "export.zip")
	writeZip(t, archivePath, map[string]string{
		"XSREGISTER.XML":      `<XSREGISTER major="33" minor="0"/>`,
		"..settings.xml":      "<s/>",
		"tools/..cache/t.tdb": "tdb",
	})

	e := NewExtractor(filepath.Join(dir, "scratch"), nil, nil)
	ext, err := e.Extract(archivePath)
	require.NoError(t, err)
	defer e.Release(ext)

	assert.FileExists(t, filepath.Join(ext.ScratchDir, "..settings.xml"))
	assert.FileExists(t, filepath.Join(ext.ScratchDir, "tools", "..cache", "t.tdb"))
	assert.Equal(t, 3, ext.Files)
}

func TestExtractUniqueScratchDirs(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "export.zip")
	writeZip(t, archivePath, map[string]string{"xsregister.xml": `<X major="1"/>`})

	e := NewExtractor(filepath.Join(dir, "scratch"), nil, nil)
	a, err := e.Extract(archivePath)
	require.NoError(t, err)
	b, err := e.Extract(archivePath)
	require.NoError(t, err)
	assert.NotEqual(t, a.ScratchDir, b.ScratchDir)
}

func TestExtractFailures(t *testing.T) {
	dir := t.TempDir()

	badMagic := filepath.Join(dir, "bad.zip")
	require.NoError(t, os.WriteFile(badMagic, []byte{0x00, 0x00, 0x01, 0x02}, 0o644))

	truncated := filepath.Join(dir, "truncated.zip")
	require.NoError(t, os.WriteFile(truncated, []byte{0x50, 0x4B, 0x03, 0x04, 0x00}, 0o644))

	noManifest := filepath.Join(dir, "nomanifest.zip")
	writeZip(t, noManifest, map[string]string{"other.xml": "<x/>", "sub/XSREGISTER.XML": "<x/>"})

	slip := filepath.Join(dir, "slip.zip")
	writeZip(t, slip, map[string]string{"../evil.txt": "x", "XSREGISTER.XML": "<x/>"})

	nestedSlip := filepath.Join(dir, "nested-slip.zip")
	writeZip(t, nestedSlip, map[string]string{"a/../../evil.txt": "x", "XSREGISTER.XML": "<x/>"})

	tests := []struct {
		name string
		path string
		want error
	}{
		{name: "missing file", path: filepath.Join(dir, "nope.zip"), want: domain.ErrNotFound},
		{name: "bad magic", path: badMagic, want: domain.ErrInvalidFormat},
		{name: "truncated", path: truncated, want: domain.ErrInvalidFormat},
		{name: "manifest missing", path: noManifest, want: domain.ErrManifestMissing},
		{name: "zip slip", path: slip, want: domain.ErrInvalidFormat},
		{name: "nested zip slip", path: nestedSlip, want: domain.ErrInvalidFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scratchRoot := filepath.Join(dir, "scratch-"+tt.name)
			e := NewExtractor(scratchRoot, nil, nil)

			ext, err := e.Extract(tt.path)
			require.Error(t, err)
			assert.Nil(t, ext)
			assert.ErrorIs(t, err, tt.want)

			if _, statErr := os.Stat(scratchRoot); statErr == nil {
				assert.Empty(t, scratchEntries(t, scratchRoot), "scratch dir left behind")
			}
		})
	}
}

func TestReleaseNil(t *testing.T) {
	e := NewExtractor("", nil, nil)
	assert.NoError(t, e.Release(nil))
}
