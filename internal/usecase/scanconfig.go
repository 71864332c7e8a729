package usecase

import (
	"strings"
	"time"

	"camsync/internal/domain"
	"camsync/internal/pathclass"
	"camsync/internal/tokens"
)

// ScanConfigGenerator turns a parsed Configuration into the list of concrete
// locations a monitoring component should watch for one user.
type ScanConfigGenerator struct {
	now func() time.Time
}

func NewScanConfigGenerator() *ScanConfigGenerator {
	return &ScanConfigGenerator{now: time.Now}
}

// SetClock replaces the time source.
func (g *ScanConfigGenerator) SetClock(now func() time.Time) {
	g.now = now
}

// Generate builds a fresh ScanConfig. The user is taken from tm["USER"].
// Apart from GeneratedAt the output depends only on the inputs.
func (g *ScanConfigGenerator) Generate(cfg *domain.Configuration, tm domain.TokenMap) *domain.ScanConfig {
	sc := &domain.ScanConfig{
		Username:      tm["USER"],
		GeneratedAt:   g.now(),
		TokenMap:      make(domain.TokenMap, len(tm)),
		PathsToScan:   []domain.ScanPath{},
		Machines:      make([]domain.Machine, 0, len(cfg.Machines)),
		Databases:     domain.Databases{Tool: []domain.DatabaseRef{}, Macro: []domain.DatabaseRef{}},
		NetworkShares: append([]domain.NamedPath{}, cfg.NetworkShares...),
	}
	for k, v := range tm {
		sc.TokenMap[k] = v
	}

	add := func(entries []domain.UserEntry, isFile bool) {
		for _, e := range entries {
			// Company-wide templates are not per-user scan targets.
			if strings.Contains(e.Key, "company") {
				continue
			}
			sc.PathsToScan = append(sc.PathsToScan, domain.ScanPath{
				Path:         tokens.Substitute(e.Path, tm),
				PathTemplate: e.Path,
				Type:         ClassifyKey(e.Key),
				Key:          e.Key,
				IsFile:       isFile,
			})
		}
	}
	add(cfg.UserSettings.UserDirectories, false)
	add(cfg.UserSettings.UserFiles, true)

	for _, m := range cfg.Machines {
		m.IsNetworkPath = pathclass.IsNetworkPath(m.MDFPath)
		sc.Machines = append(sc.Machines, m)
	}
	for _, db := range cfg.Databases.Tool {
		db.IsNetworkPath = pathclass.IsNetworkPath(db.Path)
		sc.Databases.Tool = append(sc.Databases.Tool, db)
	}
	for _, db := range cfg.Databases.Macro {
		db.IsNetworkPath = pathclass.IsNetworkPath(db.Path)
		sc.Databases.Macro = append(sc.Databases.Macro, db)
	}
	return sc
}

// ClassifyKey maps a user setting key to its scan type. Rules are checked in
// order and match on case-sensitive substrings.
func ClassifyKey(key string) domain.ScanType {
	switch {
	case strings.Contains(key, "Automation"):
		return domain.ScanAutomationCenter
	case strings.Contains(key, "Tool"):
		return domain.ScanToolDatabase
	case strings.Contains(key, "cfg"):
		return domain.ScanConfiguration
	case strings.Contains(key, "Database"):
		return domain.ScanDatabase
	default:
		return domain.ScanOther
	}
}
