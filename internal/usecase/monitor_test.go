package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"camsync/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMonitor(fs *memFS, reg *Registry, notifier domain.Notifier) *Monitor {
	m := NewMonitor(fs, NewComparer(fs, time.Second, nil), reg, notifier, nil)
	m.SetClock(stepClock(t0.Add(24*time.Hour), time.Second))
	return m
}

func TestCreateUpdateNotification(t *testing.T) {
	fs := newMemFS()
	fs.put(serverCfg, "server v2", t0.Add(48*time.Hour))
	fs.put(localCfg, "local v1", t0)
	notifier := &recordingNotifier{}
	mon := newTestMonitor(fs, nil, notifier)
	ctx := context.Background()

	n, err := mon.CreateUpdateNotification(ctx, serverCfg, localCfg)
	require.NoError(t, err)
	assert.NotEmpty(t, n.ID)
	assert.Equal(t, 2, n.DiffDays)
	assert.Equal(t, t0, n.LocalModified)
	assert.True(t, n.Pending())

	n2, err := mon.CreateUpdateNotification(ctx, serverCfg, localCfg)
	require.NoError(t, err)
	assert.NotEqual(t, n.ID, n2.ID)

	pending := mon.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, n.ID, pending[0].ID)
	assert.Len(t, notifier.sent, 2)

	got, ok := mon.Get(n.ID)
	require.True(t, ok)
	assert.Equal(t, serverCfg, got.ServerPath)
}

func TestCreateUpdateNotificationNoUpdate(t *testing.T) {
	fs := newMemFS()
	fs.put(serverCfg, "same", t0)
	fs.put(localCfg, "same", t0)
	mon := newTestMonitor(fs, nil, nil)

	_, err := mon.CreateUpdateNotification(context.Background(), serverCfg, localCfg)
	assert.ErrorIs(t, err, domain.ErrNoUpdateAvailable)
	assert.Empty(t, mon.All())
}

func TestCreateUpdateNotificationNotifierFailureIgnored(t *testing.T) {
	fs := newMemFS()
	fs.put(serverCfg, "v2", t0.Add(time.Hour))
	fs.put(localCfg, "v1", t0)
	mon := newTestMonitor(fs, nil, &recordingNotifier{err: errors.New("offline")})

	n, err := mon.CreateUpdateNotification(context.Background(), serverCfg, localCfg)
	require.NoError(t, err)
	assert.True(t, n.Pending())
}

func TestCheckForUpdatesMissingLocal(t *testing.T) {
	fs := newMemFS()
	fs.put(serverCfg, "v1", t0)
	mon := newTestMonitor(fs, nil, nil)

	cmp, err := mon.CheckForUpdates(context.Background(), serverCfg, localCfg)
	require.NoError(t, err)
	assert.True(t, cmp.HasUpdate)
}

func TestApproveUpdate(t *testing.T) {
	fs := newMemFS()
	fs.put(serverCfg, "server v1", t0)
	store := newMemStore()
	reg := newTestRegistry(t, fs, store)
	ctx := context.Background()
	_, err := reg.AddMapping(ctx, serverCfg, localCfg, "config")
	require.NoError(t, err)

	fs.put(localCfg, "local v1", t0)
	fs.put(serverCfg, "server v2", t0.Add(time.Hour))
	mon := newTestMonitor(fs, reg, nil)

	n, err := mon.CreateUpdateNotification(ctx, serverCfg, localCfg)
	require.NoError(t, err)

	done, err := mon.ApproveUpdate(ctx, n.ID)
	require.NoError(t, err)
	assert.True(t, done.Approved)
	assert.True(t, done.Synced)
	assert.False(t, done.Pending())
	require.NotNil(t, done.ResolvedAt)

	local, _ := fs.content(localCfg)
	assert.Equal(t, "server v2", local)
	require.NotEmpty(t, done.BackupPath)
	backup, ok := fs.content(done.BackupPath)
	require.True(t, ok)
	assert.Equal(t, "local v1", backup)

	// backup strictly before overwrite
	require.Len(t, fs.copies, 2)
	assert.Equal(t, localCfg+" -> "+done.BackupPath, fs.copies[0])
	assert.Equal(t, serverCfg+" -> "+localCfg, fs.copies[1])

	m, _ := reg.Get(localCfg)
	assert.Equal(t, domain.StatusSynced, m.Status)
	assert.Equal(t, t0.Add(time.Hour), m.LastServerModified)
	assert.False(t, done.RegistryStale)

	assert.Empty(t, mon.Pending())

	_, err = mon.ApproveUpdate(ctx, n.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	_, err = mon.RejectUpdate(n.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestApproveUpdateRegistrySaveFails(t *testing.T) {
	fs := newMemFS()
	fs.put(serverCfg, "server v1", t0)
	store := newMemStore()
	reg := newTestRegistry(t, fs, store)
	ctx := context.Background()
	_, err := reg.AddMapping(ctx, serverCfg, localCfg, "config")
	require.NoError(t, err)

	fs.put(localCfg, "local v1", t0)
	fs.put(serverCfg, "server v2", t0.Add(time.Hour))
	mon := newTestMonitor(fs, reg, nil)
	n, err := mon.CreateUpdateNotification(ctx, serverCfg, localCfg)
	require.NoError(t, err)

	store.failErr = errors.New("disk full")
	done, err := mon.ApproveUpdate(ctx, n.ID)
	require.NoError(t, err)
	assert.True(t, done.Synced)
	assert.True(t, done.RegistryStale)

	local, _ := fs.content(localCfg)
	assert.Equal(t, "server v2", local)

	stored, ok := mon.Get(n.ID)
	require.True(t, ok)
	assert.True(t, stored.RegistryStale)

	// the registry keeps the pre-approval snapshot
	m, _ := reg.Get(localCfg)
	assert.Equal(t, t0, m.LastServerModified)
	assert.NotEqual(t, domain.StatusSynced, m.Status)
}

func TestApproveUpdateWithoutLocalFile(t *testing.T) {
	fs := newMemFS()
	fs.put(serverCfg, "server v1", t0)
	mon := newTestMonitor(fs, nil, nil)
	ctx := context.Background()

	n, err := mon.CreateUpdateNotification(ctx, serverCfg, localCfg)
	require.NoError(t, err)
	done, err := mon.ApproveUpdate(ctx, n.ID)
	require.NoError(t, err)
	assert.Empty(t, done.BackupPath)
	local, _ := fs.content(localCfg)
	assert.Equal(t, "server v1", local)
}

func TestApproveUpdateServerDeleted(t *testing.T) {
	fs := newMemFS()
	fs.put(serverCfg, "server v2", t0.Add(time.Hour))
	fs.put(localCfg, "local v1", t0)
	mon := newTestMonitor(fs, nil, nil)
	ctx := context.Background()

	n, err := mon.CreateUpdateNotification(ctx, serverCfg, localCfg)
	require.NoError(t, err)
	fs.remove(serverCfg)

	_, err = mon.ApproveUpdate(ctx, n.ID)
	assert.ErrorIs(t, err, domain.ErrServerFileNotFound)

	local, _ := fs.content(localCfg)
	assert.Equal(t, "local v1", local)
	assert.Empty(t, fs.copies)

	got, _ := mon.Get(n.ID)
	assert.True(t, got.Pending())
}

func TestApproveUpdateBackupFailure(t *testing.T) {
	fs := newMemFS()
	fs.put(serverCfg, "server v2", t0.Add(time.Hour))
	fs.put(localCfg, "local v1", t0)
	mon := newTestMonitor(fs, nil, nil)
	ctx := context.Background()

	n, err := mon.CreateUpdateNotification(ctx, serverCfg, localCfg)
	require.NoError(t, err)

	// The clock is deterministic, so the next approve will use this instant.
	next := mon.now()
	mon.SetClock(func() time.Time { return next })
	fs.failCopy[BackupPath(localCfg, next)] = errors.New("permission denied")

	_, err = mon.ApproveUpdate(ctx, n.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIO)

	local, _ := fs.content(localCfg)
	assert.Equal(t, "local v1", local)
	got, _ := mon.Get(n.ID)
	assert.True(t, got.Pending())
}

func TestApproveUpdateOverwriteFailure(t *testing.T) {
	fs := newMemFS()
	fs.put(serverCfg, "server v2", t0.Add(time.Hour))
	fs.put(localCfg, "local v1", t0)
	fs.failCopy[localCfg] = errors.New("read-only volume")
	mon := newTestMonitor(fs, nil, nil)
	ctx := context.Background()

	n, err := mon.CreateUpdateNotification(ctx, serverCfg, localCfg)
	require.NoError(t, err)

	_, err = mon.ApproveUpdate(ctx, n.ID)
	assert.ErrorIs(t, err, domain.ErrIO)
	local, _ := fs.content(localCfg)
	assert.Equal(t, "local v1", local)
}

func TestRejectUpdate(t *testing.T) {
	fs := newMemFS()
	fs.put(serverCfg, "server v2", t0.Add(time.Hour))
	fs.put(localCfg, "local v1", t0)
	mon := newTestMonitor(fs, nil, nil)
	ctx := context.Background()

	n, err := mon.CreateUpdateNotification(ctx, serverCfg, localCfg)
	require.NoError(t, err)

	rejected, err := mon.RejectUpdate(n.ID)
	require.NoError(t, err)
	assert.True(t, rejected.Rejected)
	assert.False(t, rejected.Approved)

	local, _ := fs.content(localCfg)
	assert.Equal(t, "local v1", local)
	assert.Empty(t, fs.copies)

	_, err = mon.ApproveUpdate(ctx, n.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Len(t, mon.All(), 1)
	assert.Empty(t, mon.Pending())
}

func TestUnknownNotification(t *testing.T) {
	mon := newTestMonitor(newMemFS(), nil, nil)
	_, err := mon.ApproveUpdate(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotificationNotFound)
	_, err = mon.RejectUpdate("nope")
	assert.ErrorIs(t, err, domain.ErrNotificationNotFound)
}

func TestConcurrentApproveSameID(t *testing.T) {
	fs := newMemFS()
	fs.put(serverCfg, "server v2", t0.Add(time.Hour))
	fs.put(localCfg, "local v1", t0)
	mon := newTestMonitor(fs, nil, nil)
	ctx := context.Background()

	n, err := mon.CreateUpdateNotification(ctx, serverCfg, localCfg)
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		oks  int
		errs int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := mon.ApproveUpdate(ctx, n.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				oks++
			} else {
				errs++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, oks)
	assert.Equal(t, 7, errs)
	assert.Len(t, fs.copies, 2)
}
