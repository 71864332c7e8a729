// Package archive validates and unpacks settings archives into scratch
// directories.
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"camsync/internal/domain"
	"camsync/internal/manifest"
	"camsync/internal/pkg/logging"

	"go.uber.org/zap"
)

// zipMagic is the first two bytes of a ZIP local file header.
var zipMagic = []byte{0x50, 0x4B}

// Extractor unpacks archives below ScratchRoot.
type Extractor struct {
	scratchRoot string
	progress    domain.ProgressReporter
	log         *zap.Logger
}

// NewExtractor returns an Extractor creating scratch directories below
// scratchRoot (the OS temp dir when empty). progress may be nil.
func NewExtractor(scratchRoot string, progress domain.ProgressReporter, log *zap.Logger) *Extractor {
	return &Extractor{
		scratchRoot: scratchRoot,
		progress:    progress,
		log:         logging.OrGlobal(log),
	}
}

// Extract validates archivePath and unpacks it into a fresh scratch
// directory. On success the caller owns the directory and must Release it.
// On failure the directory has already been removed.
func (e *Extractor) Extract(archivePath string) (ext *domain.Extraction, err error) {
	const op = "extract archive"

	if _, err := os.Stat(archivePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.E(domain.KindNotFound, op, archivePath, err)
		}
		return nil, domain.E(domain.KindIO, op, archivePath, err)
	}
	if err := sniff(archivePath); err != nil {
		return nil, err
	}

	if e.scratchRoot != "" {
		if err := os.MkdirAll(e.scratchRoot, 0o755); err != nil {
			return nil, domain.E(domain.KindIO, op, e.scratchRoot, err)
		}
	}
	pattern := "camsync-extract-" + time.Now().Format("20060102T150405") + "-*"
	scratch, err := os.MkdirTemp(e.scratchRoot, pattern)
	if err != nil {
		return nil, domain.E(domain.KindIO, op, archivePath, fmt.Errorf("create scratch dir: %w", err))
	}
	defer func() {
		if err != nil {
			if rmErr := os.RemoveAll(scratch); rmErr != nil {
				e.log.Warn("failed to remove scratch dir", zap.String("dir", scratch), zap.Error(rmErr))
			}
		}
	}()

	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, domain.E(domain.KindInvalidFormat, op, archivePath, err)
	}
	defer zr.Close()

	var total int64
	for _, f := range zr.File {
		total += int64(f.UncompressedSize64)
	}
	var task domain.ProgressTask
	if e.progress != nil {
		task = e.progress.Start(filepath.Base(archivePath), total)
	}

	files, written, err := extractZipSafe(&zr.Reader, scratch, task)
	if task != nil {
		task.Complete()
		e.progress.Wait()
	}
	if err != nil {
		return nil, err
	}

	manifestPath, ok := findManifest(scratch)
	if !ok {
		return nil, domain.Errorf(domain.KindManifestMissing, op, archivePath, "%s not found at archive top level", manifest.FileName)
	}

	e.log.Debug("archive extracted",
		zap.String("archive", archivePath),
		zap.String("scratch_dir", scratch),
		zap.Int("files", files),
		zap.Int64("bytes", written),
	)

	return &domain.Extraction{
		ArchivePath:  archivePath,
		ScratchDir:   scratch,
		ManifestPath: manifestPath,
		Files:        files,
		Bytes:        written,
	}, nil
}

// Release removes an extraction's scratch directory.
func (e *Extractor) Release(ext *domain.Extraction) error {
	if ext == nil || ext.ScratchDir == "" {
		return nil
	}
	if err := os.RemoveAll(ext.ScratchDir); err != nil {
		return domain.E(domain.KindIO, "release scratch dir", ext.ScratchDir, err)
	}
	return nil
}

// sniff checks the ZIP signature. It is a cheap check, not full validation.
func sniff(path string) error {
	const op = "extract archive"

	f, err := os.Open(path)
	if err != nil {
		return domain.E(domain.KindIO, op, path, err)
	}
	defer f.Close()

	head := make([]byte, len(zipMagic))
	if _, err := io.ReadFull(f, head); err != nil {
		return domain.Errorf(domain.KindInvalidFormat, op, path, "file too short for a ZIP archive")
	}
	if !bytes.Equal(head, zipMagic) {
		return domain.Errorf(domain.KindInvalidFormat, op, path, "missing ZIP signature (got % X)", head)
	}
	return nil
}

func findManifest(dir string) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.EqualFold(entry.Name(), manifest.FileName) {
			return filepath.Join(dir, entry.Name()), true
		}
	}
	return "", false
}

func extractZipSafe(zr *zip.Reader, dest string, task domain.ProgressTask) (int, int64, error) {
	const op = "extract archive"
	var files int
	var written int64

	for _, file := range zr.File {
		name := strings.ReplaceAll(file.Name, `\`, "/")
		cleanName := filepath.Clean(filepath.FromSlash(name))
		if cleanName == "." || cleanName == "" {
			continue
		}
		parent := cleanName == ".." || strings.HasPrefix(cleanName, ".."+string(os.PathSeparator))
		if parent || filepath.IsAbs(cleanName) || filepath.VolumeName(cleanName) != "" {
			return files, written, domain.Errorf(domain.KindInvalidFormat, op, file.Name, "invalid entry path in archive")
		}

		target := filepath.Join(dest, cleanName)
		if !strings.HasPrefix(target, dest+string(os.PathSeparator)) && target != dest {
			return files, written, domain.Errorf(domain.KindInvalidFormat, op, file.Name, "archive entry escapes destination")
		}

		if file.FileInfo().IsDir() || strings.HasSuffix(name, "/") {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return files, written, domain.E(domain.KindIO, op, cleanName, err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return files, written, domain.E(domain.KindIO, op, cleanName, err)
		}

		rc, err := file.Open()
		if err != nil {
			return files, written, domain.E(domain.KindInvalidFormat, op, cleanName, err)
		}
		n, err := writeFile(target, rc, task)
		rc.Close()
		written += n
		if err != nil {
			return files, written, err
		}
		if !file.Modified.IsZero() {
			_ = os.Chtimes(target, file.Modified, file.Modified)
		}
		files++
	}
	return files, written, nil
}

func writeFile(dst string, r io.Reader, task domain.ProgressTask) (int64, error) {
	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, domain.E(domain.KindIO, "create file", dst, err)
	}
	defer f.Close()

	var w io.Writer = f
	if task != nil {
		w = &progressWriter{w: f, task: task}
	}
	n, err := io.Copy(w, r)
	if err != nil {
		if errors.Is(err, zip.ErrChecksum) || errors.Is(err, zip.ErrFormat) || errors.Is(err, io.ErrUnexpectedEOF) {
			return n, domain.E(domain.KindInvalidFormat, "write file", dst, err)
		}
		return n, domain.E(domain.KindIO, "write file", dst, err)
	}
	return n, nil
}

type progressWriter struct {
	w    io.Writer
	task domain.ProgressTask
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.task.Increment(n)
	return n, err
}
