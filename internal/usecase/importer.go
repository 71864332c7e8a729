package usecase

import (
	"context"
	"time"

	"camsync/internal/domain"
	"camsync/internal/manifest"
	"camsync/internal/metrics"
	"camsync/internal/pkg/logging"
	"camsync/internal/tokens"

	"go.uber.org/zap"
)

// ArchiveExtractor unpacks a settings archive into a scratch directory.
type ArchiveExtractor interface {
	Extract(archivePath string) (*domain.Extraction, error)
	Release(ext *domain.Extraction) error
}

// Importer runs the archive pipeline for one user: extract, parse, build the
// token table, generate the scan config and persist both records.
type Importer struct {
	extractor ArchiveExtractor
	profiles  domain.ProfileStore
	install   tokens.Install
	generator *ScanConfigGenerator
	log       *zap.Logger

	// KeepScratch leaves the extraction directory in place after a
	// successful import. The directory is reported in ImportResult.
	KeepScratch bool
}

func NewImporter(extractor ArchiveExtractor, profiles domain.ProfileStore, install tokens.Install, generator *ScanConfigGenerator, log *zap.Logger) *Importer {
	if generator == nil {
		generator = NewScanConfigGenerator()
	}
	return &Importer{
		extractor: extractor,
		profiles:  profiles,
		install:   install,
		generator: generator,
		log:       logging.OrGlobal(log),
	}
}

// Import processes archivePath for username. Nothing is persisted unless
// every step up to generation succeeded.
func (i *Importer) Import(ctx context.Context, archivePath, username string) (*domain.ImportResult, error) {
	start := time.Now()
	ext, err := i.extractor.Extract(archivePath)
	if err != nil {
		metrics.RecordExtraction(0, time.Since(start), false)
		return nil, err
	}
	metrics.RecordExtraction(ext.Bytes, time.Since(start), true)

	release := !i.KeepScratch
	defer func() {
		if !release {
			return
		}
		if err := i.extractor.Release(ext); err != nil {
			i.log.Warn("failed to release scratch dir", zap.String("dir", ext.ScratchDir), zap.Error(err))
		}
	}()

	if err := ctx.Err(); err != nil {
		release = true
		return nil, err
	}

	cfg, err := manifest.ParseFile(ext.ManifestPath)
	if err != nil {
		release = true
		return nil, err
	}

	tm := i.install.TokenMap(username)
	sc := i.generator.Generate(cfg, tm)
	metrics.SetScanPaths(len(sc.PathsToScan))

	if i.profiles != nil {
		if err := i.profiles.SaveConfiguration(username, cfg); err != nil {
			release = true
			return nil, err
		}
		if err := i.profiles.SaveScanConfig(username, sc); err != nil {
			release = true
			return nil, err
		}
	}

	i.log.Info("archive imported",
		zap.String("archive", archivePath),
		zap.String("user", username),
		zap.String("version", cfg.Version.Major),
		zap.Int("scan_paths", len(sc.PathsToScan)),
		zap.Int("machines", len(sc.Machines)),
		zap.Int("network_shares", len(sc.NetworkShares)),
	)

	res := &domain.ImportResult{
		ArchivePath:   archivePath,
		Configuration: cfg,
		ScanConfig:    sc,
	}
	if i.KeepScratch {
		res.ScratchDir = ext.ScratchDir
	}
	return res, nil
}
