package filesystem

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"camsync/internal/domain"
	"camsync/internal/pkg/atomicfile"
)

type LocalFileSystem struct{}

func NewLocalFileSystem() *LocalFileSystem {
	return &LocalFileSystem{}
}

// Stat runs os.Stat in a goroutine so that a hung network share cannot block
// the caller past ctx. The abandoned goroutine finishes on its own.
func (l *LocalFileSystem) Stat(ctx context.Context, path string) (domain.FileInfo, error) {
	type result struct {
		info os.FileInfo
		err  error
	}
	done := make(chan result, 1)
	go func() {
		info, err := os.Stat(path)
		done <- result{info: info, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return domain.FileInfo{}, r.err
		}
		return domain.FileInfo{
			Path:     path,
			Size:     r.info.Size(),
			Modified: r.info.ModTime(),
			IsDir:    r.info.IsDir(),
		}, nil
	case <-ctx.Done():
		return domain.FileInfo{}, ctx.Err()
	}
}

// ListFiles walks root down to depth levels of subdirectories (0 means root
// only, negative means unlimited) and returns regular files.
func (l *LocalFileSystem) ListFiles(root string, depth int) ([]domain.FileInfo, error) {
	var files []domain.FileInfo
	rootDepth := strings.Count(filepath.Clean(root), string(os.PathSeparator))

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			// Unreadable subdirectories are skipped rather than failing the walk.
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if depth >= 0 && strings.Count(filepath.Clean(path), string(os.PathSeparator))-rootDepth > depth {
				return fs.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		files = append(files, domain.FileInfo{
			Path:     path,
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// WriteFileAtomic streams data into a temporary file next to path and renames
// it into place. An existing destination keeps its permissions.
func (l *LocalFileSystem) WriteFileAtomic(path string, data io.Reader) error {
	perm, err := atomicfile.PermOf(path, atomicfile.DefaultPerm)
	if err != nil {
		return err
	}
	return atomicfile.Write(path, data, perm)
}

// CopyFile copies src to dst atomically and preserves the modification time.
func (l *LocalFileSystem) CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	// An existing destination keeps its mode, a new one takes src's.
	perm, err := atomicfile.PermOf(dst, info.Mode().Perm())
	if err != nil {
		return err
	}
	if err := atomicfile.Write(dst, in, perm); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
