package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"camsync/internal/domain"
	"camsync/internal/metrics"
	"camsync/internal/pathclass"
	"camsync/internal/pkg/logging"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Registry tracks {local path -> server path} mappings. Every successful
// mutation rewrites the whole table through the MappingStore before
// returning, which is fine for tens to low hundreds of mappings but makes
// each check cost a full-table write.
type Registry struct {
	store domain.MappingStore
	cmp   *Comparer
	log   *zap.Logger
	now   func() time.Time

	mu       sync.Mutex // guards mappings and serialises Save
	mappings map[string]*domain.FileMapping

	keysMu sync.Mutex
	keys   map[string]*sync.Mutex
}

// NewRegistry loads the persisted table from store.
func NewRegistry(store domain.MappingStore, cmp *Comparer, log *zap.Logger) (*Registry, error) {
	mappings, err := store.Load()
	if err != nil {
		return nil, err
	}
	metrics.SetMappingsTracked(len(mappings))
	return &Registry{
		store:    store,
		cmp:      cmp,
		log:      logging.OrGlobal(log),
		now:      time.Now,
		mappings: mappings,
		keys:     make(map[string]*sync.Mutex),
	}, nil
}

// SetClock replaces the time source.
func (r *Registry) SetClock(now func() time.Time) {
	r.now = now
}

// lockKey serialises operations on one local path. The returned release
// forgets the path's mutex once the path is no longer tracked.
func (r *Registry) lockKey(localPath string) func() {
	for {
		r.keysMu.Lock()
		m, ok := r.keys[localPath]
		if !ok {
			m = &sync.Mutex{}
			r.keys[localPath] = m
		}
		r.keysMu.Unlock()

		m.Lock()

		// m may have been dropped by its previous holder while we waited.
		r.keysMu.Lock()
		live := r.keys[localPath] == m
		r.keysMu.Unlock()
		if live {
			return func() {
				r.mu.Lock()
				_, tracked := r.mappings[localPath]
				r.mu.Unlock()
				if !tracked {
					r.dropKey(localPath)
				}
				m.Unlock()
			}
		}
		m.Unlock()
	}
}

// dropKey forgets the per-path mutex. Callers must hold it.
func (r *Registry) dropKey(localPath string) {
	r.keysMu.Lock()
	delete(r.keys, localPath)
	r.keysMu.Unlock()
}

func (r *Registry) current(localPath string) (*domain.FileMapping, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.mappings[localPath]
	if !ok {
		return nil, false
	}
	return m.Clone(), true
}

// commit stores next for localPath (or deletes it when next is nil) and
// persists the table. If persisting fails the in-memory table is restored.
func (r *Registry) commit(localPath string, next *domain.FileMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, existed := r.mappings[localPath]
	if next == nil {
		delete(r.mappings, localPath)
	} else {
		r.mappings[localPath] = next
	}

	if err := r.store.Save(r.mappings); err != nil {
		if existed {
			r.mappings[localPath] = prev
		} else {
			delete(r.mappings, localPath)
		}
		return err
	}
	metrics.SetMappingsTracked(len(r.mappings))
	return nil
}

// AddMapping starts tracking localPath as a cached copy of serverPath. Any
// previous mapping for localPath is replaced.
func (r *Registry) AddMapping(ctx context.Context, serverPath, localPath, fileType string) (*domain.FileMapping, error) {
	const op = "add mapping"

	if pathclass.IsLocal(serverPath) {
		return nil, domain.Errorf(domain.KindNotAServerPath, op, serverPath, "path is on a local drive")
	}

	unlock := r.lockKey(localPath)
	defer unlock()

	probe, err := r.cmp.Probe(ctx, serverPath)
	if err != nil {
		return nil, err
	}
	if !probe.Exists {
		reason := "server file does not exist"
		if probe.Unreachable {
			reason = "server unreachable"
		}
		return nil, domain.Errorf(domain.KindServerFileNotFound, op, serverPath, "%s", reason)
	}

	m := &domain.FileMapping{
		ServerPath:         serverPath,
		LocalPath:          localPath,
		FileType:           fileType,
		Status:             domain.StatusUnmapped,
		CreatedAt:          r.now(),
		LastServerModified: probe.Info.Modified,
		LastServerSize:     probe.Info.Size,
		SyncHistory:        []domain.SyncRecord{},
	}
	if err := r.commit(localPath, m); err != nil {
		return nil, err
	}

	r.log.Info("mapping added",
		zap.String("server_path", serverPath),
		zap.String("local_path", localPath),
		zap.String("file_type", fileType),
	)
	return m.Clone(), nil
}

// CheckForUpdate probes the server file of a mapping. It never touches the
// local cached copy. A missing or unreachable server file is reported via
// the server-file-missing status, not as an error.
func (r *Registry) CheckForUpdate(ctx context.Context, localPath string) (domain.CheckResult, error) {
	unlock := r.lockKey(localPath)
	defer unlock()

	m, ok := r.current(localPath)
	if !ok {
		return domain.CheckResult{}, domain.E(domain.KindMappingNotFound, "check mapping", localPath, nil)
	}

	cmp, cmpErr := r.cmp.CompareModification(ctx, m.ServerPath, domain.FileSnapshot{
		Modified: m.LastServerModified,
		Size:     m.LastServerSize,
	})
	if cmpErr != nil && ctx.Err() != nil {
		return domain.CheckResult{}, cmpErr
	}

	now := r.now()
	m.LastChecked = &now
	switch {
	case cmpErr != nil:
		m.Status = domain.StatusError
	case !cmp.ServerExists:
		m.Status = domain.StatusServerFileMissing
	case cmp.HasUpdate:
		m.Status = domain.StatusOutdated
		m.CheckCount++
	default:
		m.Status = domain.StatusCurrent
		m.CheckCount++
	}

	if err := r.commit(localPath, m); err != nil {
		return domain.CheckResult{}, err
	}
	metrics.RecordCheck(string(m.Status))

	res := domain.CheckResult{
		LocalPath:  localPath,
		HasUpdate:  cmp.HasUpdate,
		Status:     m.Status,
		Comparison: cmp,
	}
	if cmpErr != nil {
		return res, cmpErr
	}

	r.log.Debug("mapping checked",
		zap.String("local_path", localPath),
		zap.String("status", string(m.Status)),
		zap.String("reason", cmp.Reason),
	)
	return res, nil
}

// MarkAsSynced records that the local copy now matches the server file.
func (r *Registry) MarkAsSynced(ctx context.Context, localPath string) (*domain.FileMapping, error) {
	const op = "mark synced"

	unlock := r.lockKey(localPath)
	defer unlock()

	m, ok := r.current(localPath)
	if !ok {
		metrics.RecordSync(false)
		return nil, domain.E(domain.KindMappingNotFound, op, localPath, nil)
	}

	probe, err := r.cmp.Probe(ctx, m.ServerPath)
	if err != nil {
		metrics.RecordSync(false)
		return nil, err
	}
	if !probe.Exists {
		metrics.RecordSync(false)
		return nil, domain.E(domain.KindServerFileNotFound, op, m.ServerPath, nil)
	}

	now := r.now()
	m.LastServerModified = probe.Info.Modified
	m.LastServerSize = probe.Info.Size
	m.Status = domain.StatusSynced
	m.SyncCount++
	m.LastSynced = &now
	m.SyncHistory = append(m.SyncHistory, domain.SyncRecord{
		SyncedAt:       now,
		ServerModified: probe.Info.Modified,
		ServerSize:     probe.Info.Size,
	})
	if over := len(m.SyncHistory) - domain.MaxSyncHistory; over > 0 {
		m.SyncHistory = append([]domain.SyncRecord(nil), m.SyncHistory[over:]...)
	}

	if err := r.commit(localPath, m); err != nil {
		metrics.RecordSync(false)
		return nil, err
	}
	metrics.RecordSync(true)

	r.log.Info("mapping synced",
		zap.String("local_path", localPath),
		zap.Int("sync_count", m.SyncCount),
	)
	return m.Clone(), nil
}

// Remove stops tracking localPath.
func (r *Registry) Remove(localPath string) error {
	unlock := r.lockKey(localPath)
	defer unlock()

	if _, ok := r.current(localPath); !ok {
		return domain.E(domain.KindMappingNotFound, "remove mapping", localPath, nil)
	}
	if err := r.commit(localPath, nil); err != nil {
		return err
	}
	r.log.Info("mapping removed", zap.String("local_path", localPath))
	return nil
}

// Get returns a copy of the mapping for localPath.
func (r *Registry) Get(localPath string) (*domain.FileMapping, bool) {
	return r.current(localPath)
}

// GetAll returns copies of all mappings ordered by local path.
func (r *Registry) GetAll() []*domain.FileMapping {
	return r.filter(func(*domain.FileMapping) bool { return true })
}

// GetByStatus returns copies of the mappings with the given status.
func (r *Registry) GetByStatus(status domain.MappingStatus) []*domain.FileMapping {
	return r.filter(func(m *domain.FileMapping) bool { return m.Status == status })
}

func (r *Registry) filter(keep func(*domain.FileMapping) bool) []*domain.FileMapping {
	r.mu.Lock()
	out := make([]*domain.FileMapping, 0, len(r.mappings))
	for _, m := range r.mappings {
		if keep(m) {
			out = append(out, m.Clone())
		}
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].LocalPath < out[j].LocalPath })
	return out
}

// CheckAll checks every mapping with at most workers concurrent probes.
// Results follow GetAll order; a per-mapping failure is logged and its
// result carries the error status.
func (r *Registry) CheckAll(ctx context.Context, workers int) ([]domain.CheckResult, error) {
	if workers <= 0 {
		workers = 1
	}
	all := r.GetAll()
	results := make([]domain.CheckResult, len(all))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, m := range all {
		i, localPath := i, m.LocalPath
		g.Go(func() error {
			res, err := r.CheckForUpdate(gCtx, localPath)
			if err != nil {
				if gCtx.Err() != nil {
					return gCtx.Err()
				}
				r.log.Warn("mapping check failed", zap.String("local_path", localPath), zap.Error(err))
				res.LocalPath = localPath
				res.Status = domain.StatusError
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
