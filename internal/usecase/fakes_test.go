package usecase

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"camsync/internal/domain"
)

type memFile struct {
	data     []byte
	modified time.Time
}

// memFS is an in-memory FileSystem keyed by the literal path string, so
// Windows and UNC paths work on any host.
type memFS struct {
	mu       sync.Mutex
	files    map[string]memFile
	hang     map[string]bool
	failCopy map[string]error // keyed by destination
	statErr  map[string]error
	copies   []string
}

func newMemFS() *memFS {
	return &memFS{
		files:    make(map[string]memFile),
		hang:     make(map[string]bool),
		failCopy: make(map[string]error),
		statErr:  make(map[string]error),
	}
}

func (f *memFS) put(path, content string, modified time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[path] = memFile{data: []byte(content), modified: modified}
}

func (f *memFS) content(path string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[path]
	return string(file.data), ok
}

func (f *memFS) remove(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, path)
}

func (f *memFS) paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for p := range f.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (f *memFS) Stat(ctx context.Context, path string) (domain.FileInfo, error) {
	f.mu.Lock()
	hang := f.hang[path]
	statErr := f.statErr[path]
	file, ok := f.files[path]
	f.mu.Unlock()

	if hang {
		<-ctx.Done()
		return domain.FileInfo{}, ctx.Err()
	}
	if statErr != nil {
		return domain.FileInfo{}, statErr
	}
	if !ok {
		return domain.FileInfo{}, fmt.Errorf("stat %s: %w", path, os.ErrNotExist)
	}
	return domain.FileInfo{Path: path, Size: int64(len(file.data)), Modified: file.modified}, nil
}

func (f *memFS) WriteFileAtomic(path string, data io.Reader) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[path] = memFile{data: b, modified: time.Now()}
	return nil
}

func (f *memFS) CopyFile(src, dst string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failCopy[dst]; err != nil {
		return err
	}
	file, ok := f.files[src]
	if !ok {
		return os.ErrNotExist
	}
	f.files[dst] = memFile{data: append([]byte(nil), file.data...), modified: file.modified}
	f.copies = append(f.copies, src+" -> "+dst)
	return nil
}

// ListFiles returns files whose path starts with root followed by a
// separator. depth counts separators below root.
func (f *memFS) ListFiles(root string, depth int) ([]domain.FileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := strings.TrimRight(root, `\/`) + `\`
	var out []domain.FileInfo
	found := false
	for p, file := range f.files {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		found = true
		rest := strings.TrimPrefix(p, prefix)
		if depth >= 0 && strings.Count(rest, `\`) > depth {
			continue
		}
		out = append(out, domain.FileInfo{Path: p, Size: int64(len(file.data)), Modified: file.modified})
	}
	if !found {
		return nil, fmt.Errorf("list %s: %w", root, os.ErrNotExist)
	}
	return out, nil
}

// memStore is a MappingStore that keeps a serialised-like copy of the last
// successful save.
type memStore struct {
	mu      sync.Mutex
	saved   map[string]*domain.FileMapping
	saves   int
	failErr error
}

func newMemStore() *memStore {
	return &memStore{saved: make(map[string]*domain.FileMapping)}
}

func (s *memStore) Load() (map[string]*domain.FileMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*domain.FileMapping, len(s.saved))
	for k, m := range s.saved {
		out[k] = m.Clone()
	}
	return out, nil
}

func (s *memStore) Save(mappings map[string]*domain.FileMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.saved = make(map[string]*domain.FileMapping, len(mappings))
	for k, m := range mappings {
		s.saved[k] = m.Clone()
	}
	s.saves++
	return nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []domain.UpdateNotification
	err  error
}

func (n *recordingNotifier) NotifyUpdate(_ context.Context, u domain.UpdateNotification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, u)
	return n.err
}

// stepClock returns a clock that advances by step on every call.
func stepClock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := now
		now = now.Add(step)
		return t
	}
}
