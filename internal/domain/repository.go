package domain

import (
	"context"
	"io"
	"time"
)

// FileInfo is the subset of file metadata the core relies on.
type FileInfo struct {
	Path     string
	Size     int64
	Modified time.Time
	IsDir    bool
}

// FileSystem defines the interface for interacting with local and
// network-mounted files.
type FileSystem interface {
	// Stat returns os.ErrNotExist (wrapped) when the file is absent and the
	// context error when the probe did not finish in time.
	Stat(ctx context.Context, path string) (FileInfo, error)
	// WriteFileAtomic writes to a temporary sibling and renames it over path.
	WriteFileAtomic(path string, data io.Reader) error
	// CopyFile copies src over dst atomically, preserving the modification time.
	CopyFile(src, dst string) error
	ListFiles(root string, depth int) ([]FileInfo, error)
}

// MappingStore persists the FileCacheRegistry table.
type MappingStore interface {
	Load() (map[string]*FileMapping, error)
	Save(mappings map[string]*FileMapping) error
}

// ProfileStore persists per-user Configuration and ScanConfig records.
type ProfileStore interface {
	SaveConfiguration(username string, cfg *Configuration) error
	LoadConfiguration(username string) (*Configuration, error)
	SaveScanConfig(username string, sc *ScanConfig) error
	LoadScanConfig(username string) (*ScanConfig, error)
}

// Notifier publishes newly created update notifications.
type Notifier interface {
	NotifyUpdate(ctx context.Context, n UpdateNotification) error
}

// Decision is the user's answer to a pending update.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
	DecisionSkip    Decision = "skip"
)

// ApprovalUI relays approve/reject decisions from a user.
type ApprovalUI interface {
	ReviewUpdate(n UpdateNotification) (Decision, error)
}

// ProgressReporter defines an interface for reporting byte-level progress.
type ProgressReporter interface {
	Start(name string, total int64) ProgressTask
	Wait()
}

// ProgressTask is one tracked unit of work.
type ProgressTask interface {
	Increment(n int)
	SetCurrent(current int64)
	Complete()
}

// Group is a forum-enabled chat that can receive notifications.
type Group struct {
	ID    int64
	Title string
}

// Topic is a thread inside a Group.
type Topic struct {
	ID    int64
	Title string
}
