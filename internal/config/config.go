package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	MappingsFile = "file-mappings.json"
	ProfilesDir  = "profiles"
	SessionFile  = "session.json"

	DefaultMaxArchiveSize int64 = 1 << 30
)

// DefaultDataDir returns ~/.camsync.
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".camsync"), nil
}

// EnsureDataDir creates dir with owner-only permissions.
func EnsureDataDir(dir string) error {
	return os.MkdirAll(dir, 0700)
}

// MappingsPath returns the registry table location under dataDir.
func MappingsPath(dataDir string) string {
	return filepath.Join(dataDir, MappingsFile)
}

// ProfilesPath returns the per-user profile root under dataDir.
func ProfilesPath(dataDir string) string {
	return filepath.Join(dataDir, ProfilesDir)
}

// SessionPath returns the Telegram session file under dataDir.
func SessionPath(dataDir string) string {
	return filepath.Join(dataDir, SessionFile)
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envInt64(key string, def int64) int64 {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

// currentUser returns the login name used for token resolution.
func currentUser() string {
	for _, k := range []string{"USERNAME", "USER"} {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
