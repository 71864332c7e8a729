// Package atomicfile writes files through a temporary sibling and a rename.
package atomicfile

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// DefaultPerm is used for new files when the caller has no better mode.
const DefaultPerm fs.FileMode = 0o644

// Write streams data into a temporary file next to path, sets its mode to
// perm and renames it into place. The destination is untouched if anything
// fails before the rename.
func Write(path string, data io.Reader, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	fail := func(step string, err error) error {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%s: %w", step, err)
	}

	if _, err := io.Copy(tmp, data); err != nil {
		return fail("write content", err)
	}
	// CreateTemp always uses 0600.
	if err := tmp.Chmod(perm.Perm()); err != nil {
		return fail("chmod temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("sync temp file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// PermOf returns the permission bits of path, or fallback when path does
// not exist.
func PermOf(path string, fallback fs.FileMode) (fs.FileMode, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fallback, nil
		}
		return 0, err
	}
	return info.Mode().Perm(), nil
}
