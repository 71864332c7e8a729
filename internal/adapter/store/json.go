// Package store persists registry and profile records as JSON files.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"camsync/internal/domain"
	"camsync/internal/pkg/atomicfile"
)

// MappingFile stores the FileCacheRegistry table as a single JSON object
// keyed by local path. The whole table is rewritten on every Save.
type MappingFile struct {
	path string
	mu   sync.Mutex
}

func NewMappingFile(path string) *MappingFile {
	return &MappingFile{path: path}
}

// Path returns the backing file path.
func (s *MappingFile) Path() string { return s.path }

// Load returns the persisted table. A missing file is an empty table.
func (s *MappingFile) Load() (map[string]*domain.FileMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mappings := make(map[string]*domain.FileMapping)
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return mappings, nil
		}
		return nil, domain.E(domain.KindIO, "load mappings", s.path, err)
	}
	if len(b) == 0 {
		return mappings, nil
	}
	if err := json.Unmarshal(b, &mappings); err != nil {
		return nil, domain.E(domain.KindInvalidFormat, "load mappings", s.path, err)
	}
	for local, m := range mappings {
		if m == nil {
			delete(mappings, local)
			continue
		}
		// Older tables did not repeat the key inside the value.
		if m.LocalPath == "" {
			m.LocalPath = local
		}
	}
	return mappings, nil
}

// Save writes the full table atomically.
func (s *MappingFile) Save(mappings map[string]*domain.FileMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := json.MarshalIndent(mappings, "", "  ")
	if err != nil {
		return domain.E(domain.KindInternal, "save mappings", s.path, err)
	}
	if err := writeAtomic(s.path, b); err != nil {
		return domain.E(domain.KindIO, "save mappings", s.path, err)
	}
	return nil
}

// ProfileDir stores each user's Configuration and ScanConfig below
// root/<username>/.
type ProfileDir struct {
	root string
}

func NewProfileDir(root string) *ProfileDir {
	return &ProfileDir{root: root}
}

const (
	configurationFile = "configuration.json"
	scanConfigFile    = "scan-config.json"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._@-]+$`)

func (s *ProfileDir) file(username, name string) (string, error) {
	if !usernamePattern.MatchString(username) || username == "." || username == ".." {
		return "", domain.Errorf(domain.KindInvalidFormat, "profile path", username, "invalid username")
	}
	return filepath.Join(s.root, username, name), nil
}

func (s *ProfileDir) SaveConfiguration(username string, cfg *domain.Configuration) error {
	return s.save(username, configurationFile, cfg)
}

func (s *ProfileDir) LoadConfiguration(username string) (*domain.Configuration, error) {
	var cfg domain.Configuration
	if err := s.load(username, configurationFile, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveScanConfig replaces any earlier scan config for the user.
func (s *ProfileDir) SaveScanConfig(username string, sc *domain.ScanConfig) error {
	return s.save(username, scanConfigFile, sc)
}

func (s *ProfileDir) LoadScanConfig(username string) (*domain.ScanConfig, error) {
	var sc domain.ScanConfig
	if err := s.load(username, scanConfigFile, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (s *ProfileDir) save(username, name string, v any) error {
	path, err := s.file(username, name)
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return domain.E(domain.KindInternal, "save profile", path, err)
	}
	if err := writeAtomic(path, b); err != nil {
		return domain.E(domain.KindIO, "save profile", path, err)
	}
	return nil
}

func (s *ProfileDir) load(username, name string, v any) error {
	path, err := s.file(username, name)
	if err != nil {
		return err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.E(domain.KindNotFound, "load profile", path, err)
		}
		return domain.E(domain.KindIO, "load profile", path, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return domain.E(domain.KindInvalidFormat, "load profile", path, err)
	}
	return nil
}

// Store files may carry session details, so they stay owner-only.
const storePerm = 0o600

func writeAtomic(path string, b []byte) error {
	return atomicfile.Write(path, bytes.NewReader(b), storePerm)
}
