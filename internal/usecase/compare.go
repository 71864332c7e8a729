package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"camsync/internal/domain"
	"camsync/internal/metrics"
	"camsync/internal/pkg/logging"

	"go.uber.org/zap"
)

// DefaultProbeTimeout bounds a single stat of a server path.
const DefaultProbeTimeout = 5 * time.Second

// ProbeResult is the outcome of statting a possibly slow server path.
type ProbeResult struct {
	Info        domain.FileInfo
	Exists      bool
	Unreachable bool
}

// Comparer is the single modification-time comparison used by both the
// registry and the ad-hoc update monitor.
type Comparer struct {
	fs           domain.FileSystem
	probeTimeout time.Duration
	log          *zap.Logger
}

func NewComparer(fs domain.FileSystem, probeTimeout time.Duration, log *zap.Logger) *Comparer {
	if probeTimeout <= 0 {
		probeTimeout = DefaultProbeTimeout
	}
	return &Comparer{
		fs:           fs,
		probeTimeout: probeTimeout,
		log:          logging.OrGlobal(log),
	}
}

// Probe stats path under the probe timeout. A missing file or a probe that
// times out is not an error; any other stat failure is.
func (c *Comparer) Probe(ctx context.Context, path string) (ProbeResult, error) {
	start := time.Now()
	pctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	info, err := c.fs.Stat(pctx, path)
	switch {
	case err == nil:
		metrics.RecordProbe("found", time.Since(start))
		return ProbeResult{Info: info, Exists: true}, nil
	case errors.Is(err, os.ErrNotExist):
		metrics.RecordProbe("missing", time.Since(start))
		return ProbeResult{}, nil
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		metrics.RecordProbe("timeout", time.Since(start))
		c.log.Warn("server probe timed out",
			zap.String("path", path),
			zap.Duration("timeout", c.probeTimeout),
		)
		return ProbeResult{Unreachable: true}, nil
	case ctx.Err() != nil:
		return ProbeResult{}, ctx.Err()
	default:
		metrics.RecordProbe("error", time.Since(start))
		return ProbeResult{}, domain.E(domain.KindIO, "probe", path, err)
	}
}

// CompareModification compares the current state of serverPath against a
// previously recorded snapshot. An update is available when the server file
// exists and is strictly newer than the snapshot.
func (c *Comparer) CompareModification(ctx context.Context, serverPath string, snapshot domain.FileSnapshot) (domain.Comparison, error) {
	cmp := domain.Comparison{ServerPath: serverPath, Snapshot: snapshot}

	probe, err := c.Probe(ctx, serverPath)
	if err != nil {
		return cmp, err
	}
	switch {
	case probe.Unreachable:
		cmp.Unreachable = true
		cmp.Reason = "server unreachable"
		return cmp, nil
	case !probe.Exists:
		cmp.Reason = "server file missing"
		return cmp, nil
	}

	cmp.ServerExists = true
	cmp.ServerModified = probe.Info.Modified
	cmp.ServerSize = probe.Info.Size
	cmp.HasUpdate = probe.Info.Modified.After(snapshot.Modified)

	switch {
	case cmp.HasUpdate:
		cmp.DiffDays = diffDays(snapshot.Modified, probe.Info.Modified)
		cmp.Reason = fmt.Sprintf("server newer by %s", probe.Info.Modified.Sub(snapshot.Modified).Round(time.Second))
	case probe.Info.Size != snapshot.Size:
		cmp.Reason = "size differs, modification time not newer"
	default:
		cmp.Reason = "unchanged"
	}
	return cmp, nil
}

func diffDays(from, to time.Time) int {
	if from.IsZero() {
		return 0
	}
	return int(to.Sub(from).Hours() / 24)
}
