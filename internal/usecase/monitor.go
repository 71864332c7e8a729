package usecase

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"camsync/internal/domain"
	"camsync/internal/metrics"
	"camsync/internal/pkg/logging"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Monitor owns the queue of update notifications awaiting a user decision.
// A notification moves from pending to approved+synced or to rejected and
// never leaves a terminal state.
type Monitor struct {
	fs       domain.FileSystem
	cmp      *Comparer
	registry *Registry
	notifier domain.Notifier
	log      *zap.Logger
	now      func() time.Time

	mu    sync.Mutex
	queue []*domain.UpdateNotification
	byID  map[string]*domain.UpdateNotification

	approveMu sync.Mutex
}

// NewMonitor returns an empty Monitor. registry and notifier may be nil.
func NewMonitor(fs domain.FileSystem, cmp *Comparer, registry *Registry, notifier domain.Notifier, log *zap.Logger) *Monitor {
	return &Monitor{
		fs:       fs,
		cmp:      cmp,
		registry: registry,
		notifier: notifier,
		log:      logging.OrGlobal(log),
		now:      time.Now,
		byID:     make(map[string]*domain.UpdateNotification),
	}
}

// SetClock replaces the time source.
func (m *Monitor) SetClock(now func() time.Time) {
	m.now = now
}

// localSnapshot stats the local copy. A missing local file yields the zero
// snapshot, so any existing server file counts as newer.
func (m *Monitor) localSnapshot(ctx context.Context, localPath string) (domain.FileSnapshot, error) {
	info, err := m.fs.Stat(ctx, localPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.FileSnapshot{}, nil
		}
		return domain.FileSnapshot{}, domain.E(domain.KindIO, "stat local file", localPath, err)
	}
	return domain.FileSnapshot{Modified: info.Modified, Size: info.Size}, nil
}

// CheckForUpdates compares serverPath against the local file at localPath.
func (m *Monitor) CheckForUpdates(ctx context.Context, serverPath, localPath string) (domain.Comparison, error) {
	snap, err := m.localSnapshot(ctx, localPath)
	if err != nil {
		return domain.Comparison{}, err
	}
	return m.cmp.CompareModification(ctx, serverPath, snap)
}

// CreateUpdateNotification queues a notification if the server file is
// newer than the local copy.
func (m *Monitor) CreateUpdateNotification(ctx context.Context, serverPath, localPath string) (*domain.UpdateNotification, error) {
	cmp, err := m.CheckForUpdates(ctx, serverPath, localPath)
	if err != nil {
		return nil, err
	}
	if !cmp.HasUpdate {
		return nil, domain.Errorf(domain.KindNoUpdateAvailable, "create notification", localPath, "%s", cmp.Reason)
	}

	n := &domain.UpdateNotification{
		ID:             uuid.NewString(),
		CreatedAt:      m.now(),
		ServerPath:     serverPath,
		LocalPath:      localPath,
		ServerModified: cmp.ServerModified,
		LocalModified:  cmp.Snapshot.Modified,
		DiffDays:       cmp.DiffDays,
	}

	m.mu.Lock()
	m.queue = append(m.queue, n)
	m.byID[n.ID] = n
	m.mu.Unlock()

	m.log.Info("update notification created",
		zap.String("id", n.ID),
		zap.String("server_path", serverPath),
		zap.String("local_path", localPath),
		zap.Int("diff_days", n.DiffDays),
	)

	if m.notifier != nil {
		if err := m.notifier.NotifyUpdate(ctx, *n); err != nil {
			m.log.Warn("failed to publish update notification", zap.String("id", n.ID), zap.Error(err))
		}
	}

	c := *n
	return &c, nil
}

func (m *Monitor) pending(op, id string) (*domain.UpdateNotification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.byID[id]
	if !ok {
		return nil, domain.E(domain.KindNotificationNotFound, op, id, nil)
	}
	if !n.Pending() {
		return nil, domain.Errorf(domain.KindInvalidState, op, id, "notification already resolved")
	}
	return n, nil
}

// BackupPath returns the timestamped backup location for localPath.
func BackupPath(localPath string, at time.Time) string {
	return localPath + ".backup-" + at.Format("20060102-150405.000")
}

// ApproveUpdate backs up the local file, replaces it with the current server
// file and marks the notification approved and synced. The backup is
// complete before the overwrite starts, and the overwrite goes through a
// temporary file and rename, so any failure leaves the local file as it was.
func (m *Monitor) ApproveUpdate(ctx context.Context, id string) (*domain.UpdateNotification, error) {
	const op = "approve update"

	m.approveMu.Lock()
	defer m.approveMu.Unlock()

	n, err := m.pending(op, id)
	if err != nil {
		metrics.RecordDecision("approve", false)
		return nil, err
	}

	probe, err := m.cmp.Probe(ctx, n.ServerPath)
	if err != nil {
		metrics.RecordDecision("approve", false)
		return nil, err
	}
	if !probe.Exists {
		metrics.RecordDecision("approve", false)
		return nil, domain.E(domain.KindServerFileNotFound, op, n.ServerPath, nil)
	}

	now := m.now()
	var backup string
	if _, err := m.fs.Stat(ctx, n.LocalPath); err == nil {
		backup = BackupPath(n.LocalPath, now)
		if err := m.fs.CopyFile(n.LocalPath, backup); err != nil {
			metrics.RecordDecision("approve", false)
			return nil, domain.E(domain.KindIO, op+": backup", n.LocalPath, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		metrics.RecordDecision("approve", false)
		return nil, domain.E(domain.KindIO, op+": stat local", n.LocalPath, err)
	}

	if err := m.fs.CopyFile(n.ServerPath, n.LocalPath); err != nil {
		metrics.RecordDecision("approve", false)
		return nil, domain.E(domain.KindIO, op+": overwrite", n.LocalPath, err)
	}

	m.mu.Lock()
	n.Approved = true
	n.Synced = true
	n.ResolvedAt = &now
	n.BackupPath = backup
	c := *n
	m.mu.Unlock()
	metrics.RecordDecision("approve", true)

	m.log.Info("update approved",
		zap.String("id", id),
		zap.String("local_path", n.LocalPath),
		zap.String("backup", backup),
	)

	if m.registry != nil {
		if _, ok := m.registry.Get(n.LocalPath); ok {
			if _, err := m.registry.MarkAsSynced(ctx, n.LocalPath); err != nil {
				m.log.Warn("local file updated but registry snapshot not refreshed",
					zap.String("local_path", n.LocalPath), zap.Error(err))
				m.mu.Lock()
				n.RegistryStale = true
				m.mu.Unlock()
				c.RegistryStale = true
			}
		}
	}
	return &c, nil
}

// RejectUpdate resolves the notification without touching any file.
func (m *Monitor) RejectUpdate(id string) (*domain.UpdateNotification, error) {
	m.approveMu.Lock()
	defer m.approveMu.Unlock()

	n, err := m.pending("reject update", id)
	if err != nil {
		metrics.RecordDecision("reject", false)
		return nil, err
	}

	now := m.now()
	m.mu.Lock()
	n.Rejected = true
	n.ResolvedAt = &now
	c := *n
	m.mu.Unlock()
	metrics.RecordDecision("reject", true)

	m.log.Info("update rejected", zap.String("id", id), zap.String("local_path", n.LocalPath))
	return &c, nil
}

// Get returns a copy of the notification with the given id.
func (m *Monitor) Get(id string) (domain.UpdateNotification, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.byID[id]
	if !ok {
		return domain.UpdateNotification{}, false
	}
	return *n, true
}

// Pending returns the unresolved notifications in creation order.
func (m *Monitor) Pending() []domain.UpdateNotification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.UpdateNotification
	for _, n := range m.queue {
		if n.Pending() {
			out = append(out, *n)
		}
	}
	return out
}

// All returns every notification in creation order.
func (m *Monitor) All() []domain.UpdateNotification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.UpdateNotification, 0, len(m.queue))
	for _, n := range m.queue {
		out = append(out, *n)
	}
	return out
}
