package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"camsync/internal/adapter/store"
	"camsync/internal/adapter/ui"
	"camsync/internal/archive"
	"camsync/internal/config"
	"camsync/internal/domain"
	"camsync/internal/pathclass"
	"camsync/internal/tokens"
	"camsync/internal/usecase"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

func (a *app) discover(ctx context.Context) (domain.Discovery, error) {
	d := usecase.NewArchiveDiscoverer(a.fs, nil, a.cfg.SearchDepth, a.cfg.Workers, a.log)
	return d.Discover(ctx, a.cfg.SearchDirs)
}

func (a *app) runDiscover(ctx context.Context) error {
	res, err := a.discover(ctx)
	if err != nil {
		return err
	}
	if len(res.Candidates) == 0 {
		fmt.Println("No archives found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODIFIED\tSIZE\tPATH")
	for _, c := range res.Candidates {
		fmt.Fprintf(w, "%s\t%s\t%s\n", c.Modified.Format(time.DateTime), humanize.IBytes(uint64(c.Size)), c.Path)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if res.Tied {
		fmt.Println("\nWarning: the newest archives share a modification time; pass --archive to choose explicitly.")
	}
	return nil
}

// pickArchive returns the archive to import: --archive when given,
// otherwise the newest discovered candidate. A tie on the newest
// modification time is resolved by the user, or reported when prompts are
// disabled.
func (a *app) pickArchive(ctx context.Context) (string, error) {
	if a.cfg.ArchivePath != "" {
		return a.cfg.ArchivePath, nil
	}

	res, err := a.discover(ctx)
	if err != nil {
		return "", err
	}
	latest, ok := res.Latest()
	if !ok {
		return "", domain.Errorf(domain.KindNotFound, "discover archives", "", "no archive found in %v", a.cfg.SearchDirs)
	}
	if !res.Tied {
		return latest.Path, nil
	}

	var tied []domain.ArchiveCandidate
	for _, c := range res.Candidates {
		if c.Modified.Equal(latest.Modified) {
			tied = append(tied, c)
		}
	}
	choice, err := a.console.SelectArchive(tied)
	if errors.Is(err, ui.ErrNonInteractive) {
		a.log.Warn("several archives share the newest modification time, using the first by path",
			zap.String("chosen", latest.Path), zap.Int("tied", len(tied)))
		return latest.Path, nil
	}
	if err != nil {
		return "", fmt.Errorf("archive selection failed: %w", err)
	}
	return choice.Path, nil
}

func (a *app) runImport(ctx context.Context) error {
	archivePath, err := a.pickArchive(ctx)
	if err != nil {
		return err
	}

	info, err := os.Stat(archivePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.E(domain.KindNotFound, "import", archivePath, err)
		}
		return domain.E(domain.KindIO, "import", archivePath, err)
	}
	if a.cfg.MaxArchiveSize > 0 && info.Size() > a.cfg.MaxArchiveSize {
		return domain.Errorf(domain.KindInvalidFormat, "import", archivePath, "archive is %s, limit is %s",
			humanize.IBytes(uint64(info.Size())), humanize.IBytes(uint64(a.cfg.MaxArchiveSize)))
	}

	if err := config.EnsureDataDir(a.cfg.DataDir); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	install := tokens.DefaultInstall
	install.Version = a.cfg.Version

	imp := usecase.NewImporter(
		archive.NewExtractor(a.cfg.ScratchDir, a.console, a.log),
		store.NewProfileDir(config.ProfilesPath(a.cfg.DataDir)),
		install,
		nil,
		a.log,
	)
	imp.KeepScratch = a.cfg.KeepScratch

	res, err := imp.Import(ctx, archivePath, a.cfg.Username)
	if err != nil {
		return err
	}

	c := res.Configuration
	fmt.Printf("Imported %s for %s\n", archivePath, a.cfg.Username)
	fmt.Printf("  version:        %s %s.%s\n", c.Version.Name, c.Version.Major, c.Version.Minor)
	fmt.Printf("  shared paths:   %d\n", len(c.Paths.Shared))
	fmt.Printf("  machines:       %d\n", len(c.Machines))
	fmt.Printf("  databases:      %d tool, %d macro\n", len(c.Databases.Tool), len(c.Databases.Macro))
	fmt.Printf("  network shares: %d\n", len(res.ScanConfig.NetworkShares))
	fmt.Printf("  paths to scan:  %d\n", len(res.ScanConfig.PathsToScan))
	for _, p := range res.ScanConfig.PathsToScan {
		if missing := tokens.Unresolved(p.Path, res.ScanConfig.TokenMap); len(missing) > 0 {
			a.log.Warn("scan path has unresolved tokens", zap.String("key", p.Key), zap.Strings("tokens", missing))
		}
	}
	if res.ScratchDir != "" {
		fmt.Printf("  extracted to:   %s\n", res.ScratchDir)
	}
	return nil
}

func (a *app) runClassify() error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tDRIVE\tCATEGORY\tPATH")
	for _, p := range a.cfg.Args {
		c := pathclass.Classify(p)
		detail := c.Category
		if detail == "" {
			detail = c.Reason
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Kind, c.Drive, detail, p)
	}
	return w.Flush()
}

func (a *app) runTokens() error {
	install := tokens.DefaultInstall
	install.Version = a.cfg.Version
	tm := install.TokenMap(a.cfg.Username)

	keys := make([]string, 0, len(tm))
	for k := range tm {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, k := range keys {
		fmt.Fprintf(w, "[%s]\t%s\n", k, tm[k])
	}
	return w.Flush()
}
