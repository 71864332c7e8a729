package usecase

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"camsync/internal/domain"
	"camsync/internal/pkg/logging"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultArchiveExtensions are the file extensions treated as settings archives.
var DefaultArchiveExtensions = []string{".zip", ".hmcfg", ".omx"}

// ArchiveDiscoverer searches directories for settings archive candidates.
type ArchiveDiscoverer struct {
	fs         domain.FileSystem
	extensions []string
	depth      int
	workers    int
	log        *zap.Logger
}

func NewArchiveDiscoverer(fs domain.FileSystem, extensions []string, depth, workers int, log *zap.Logger) *ArchiveDiscoverer {
	if len(extensions) == 0 {
		extensions = DefaultArchiveExtensions
	}
	if workers <= 0 {
		workers = 1
	}
	return &ArchiveDiscoverer{
		fs:         fs,
		extensions: extensions,
		depth:      depth,
		workers:    workers,
		log:        logging.OrGlobal(log),
	}
}

func (d *ArchiveDiscoverer) matches(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, want := range d.extensions {
		if ext == strings.ToLower(want) {
			return true
		}
	}
	return false
}

// Discover lists archive candidates in dirs, newest first. Directories that
// cannot be read are skipped. Candidates with identical modification times
// are ordered by path and the result is flagged Tied when the newest two
// share a timestamp; the caller decides how to surface that.
func (d *ArchiveDiscoverer) Discover(ctx context.Context, dirs []string) (domain.Discovery, error) {
	var (
		mu         sync.Mutex
		candidates []domain.ArchiveCandidate
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)

	for _, dir := range dirs {
		dir := dir
		g.Go(func() error {
			if gCtx.Err() != nil {
				return gCtx.Err()
			}
			files, err := d.fs.ListFiles(dir, d.depth)
			if err != nil {
				d.log.Debug("skipping search directory", zap.String("dir", dir), zap.Error(err))
				return nil
			}
			var found []domain.ArchiveCandidate
			for _, f := range files {
				if d.matches(f.Path) {
					found = append(found, domain.ArchiveCandidate{Path: f.Path, Modified: f.Modified, Size: f.Size})
				}
			}
			mu.Lock()
			candidates = append(candidates, found...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return domain.Discovery{}, err
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if !a.Modified.Equal(b.Modified) {
			return a.Modified.After(b.Modified)
		}
		return a.Path < b.Path
	})

	res := domain.Discovery{Candidates: candidates}
	if len(candidates) > 1 && candidates[0].Modified.Equal(candidates[1].Modified) {
		res.Tied = true
		d.log.Warn("newest archive candidates share a modification time",
			zap.String("first", candidates[0].Path),
			zap.String("second", candidates[1].Path),
			zap.Time("modified", candidates[0].Modified),
		)
	}
	return res, nil
}
