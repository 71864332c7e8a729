package domain

import "time"

// Version identifies the product release an archive was exported from.
type Version struct {
	Name  string `json:"name"`
	Major string `json:"major"`
	Minor string `json:"minor"`
}

// SharedPath is a registry-style path entry from the admin settings.
type SharedPath struct {
	Value        string `json:"value"`
	Default      string `json:"default"`
	RegistryPath string `json:"registryPath"`
}

// Paths groups the path sections of a Configuration.
type Paths struct {
	Shared  map[string]SharedPath `json:"shared"`
	User    map[string]SharedPath `json:"user"`
	Company map[string]SharedPath `json:"company"`
}

// Machine is one machine-definition block.
type Machine struct {
	Name          string `json:"name"`
	MDFPath       string `json:"mdfPath"`
	PostProcessor string `json:"postProcessor"`
	MachineModel  string `json:"machineModel"`
	IsNetworkPath bool   `json:"isNetworkPath,omitempty"`
}

// DatabaseRef points at a tool or macro database.
type DatabaseRef struct {
	Path          string `json:"path"`
	Type          string `json:"type"`
	IsNetworkPath bool   `json:"isNetworkPath,omitempty"`
}

// Databases holds the tool and macro database references.
type Databases struct {
	Tool  []DatabaseRef `json:"tool"`
	Macro []DatabaseRef `json:"macro"`
}

// UserEntry is a templated per-user directory or file entry.
type UserEntry struct {
	Key  string `json:"key"`
	Path string `json:"path"`
}

// UserSettings holds the per-user directory and file templates.
type UserSettings struct {
	UserDirectories []UserEntry `json:"userDirectories"`
	UserFiles       []UserEntry `json:"userFiles"`
}

// NamedPath is a {name, path} pair collected during the manifest walk.
type NamedPath struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Configuration is the parsed content of one settings archive.
type Configuration struct {
	Version         Version      `json:"version"`
	Paths           Paths        `json:"paths"`
	Machines        []Machine    `json:"machines"`
	Databases       Databases    `json:"databases"`
	UserSettings    UserSettings `json:"userSettings"`
	AutomationPaths []NamedPath  `json:"automationPaths"`
	NetworkShares   []NamedPath  `json:"networkShares"`
}

// NewConfiguration returns a Configuration with all collections initialised,
// so an empty manifest still serialises to empty arrays instead of null.
func NewConfiguration() *Configuration {
	return &Configuration{
		Paths: Paths{
			Shared:  make(map[string]SharedPath),
			User:    make(map[string]SharedPath),
			Company: make(map[string]SharedPath),
		},
		Machines:        []Machine{},
		Databases:       Databases{Tool: []DatabaseRef{}, Macro: []DatabaseRef{}},
		UserSettings:    UserSettings{UserDirectories: []UserEntry{}, UserFiles: []UserEntry{}},
		AutomationPaths: []NamedPath{},
		NetworkShares:   []NamedPath{},
	}
}

// TokenMap maps a token name (without brackets) to its concrete value.
type TokenMap map[string]string

// ScanType is the semantic category of a scan target.
type ScanType string

const (
	ScanAutomationCenter ScanType = "automation-center"
	ScanToolDatabase     ScanType = "tool-database"
	ScanConfiguration    ScanType = "configuration"
	ScanDatabase         ScanType = "database"
	ScanOther            ScanType = "other"
)

// ScanPath is one concrete location the monitoring component should watch.
type ScanPath struct {
	Path         string   `json:"path"`
	PathTemplate string   `json:"pathTemplate"`
	Type         ScanType `json:"type"`
	Key          string   `json:"key"`
	IsFile       bool     `json:"isFile"`
}

// ScanConfig is generated per user from a Configuration.
type ScanConfig struct {
	Username      string      `json:"username"`
	GeneratedAt   time.Time   `json:"generatedAt"`
	TokenMap      TokenMap    `json:"tokenMap"`
	PathsToScan   []ScanPath  `json:"pathsToScan"`
	Machines      []Machine   `json:"machines"`
	Databases     Databases   `json:"databases"`
	NetworkShares []NamedPath `json:"networkShares"`
}

// PathKind is the result class of path classification.
type PathKind string

const (
	PathLocal       PathKind = "local"
	PathServer      PathKind = "server"
	PathUnreachable PathKind = "unreachable"
	PathUnclear     PathKind = "unclear"
)

// PathClass describes where a path lives.
type PathClass struct {
	Kind     PathKind `json:"kind"`
	Drive    string   `json:"drive,omitempty"`
	Category string   `json:"category,omitempty"`
	Reason   string   `json:"reason,omitempty"`
}

// MappingStatus is the sync state of a FileMapping.
type MappingStatus string

const (
	StatusUnmapped          MappingStatus = "unmapped"
	StatusCurrent           MappingStatus = "current"
	StatusOutdated          MappingStatus = "outdated"
	StatusSynced            MappingStatus = "synced"
	StatusError             MappingStatus = "error"
	StatusServerFileMissing MappingStatus = "server-file-missing"
)

// MaxSyncHistory bounds FileMapping.SyncHistory.
const MaxSyncHistory = 10

// SyncRecord is one entry of a mapping's sync history.
type SyncRecord struct {
	SyncedAt       time.Time `json:"syncedAt"`
	ServerModified time.Time `json:"serverModified"`
	ServerSize     int64     `json:"serverSize"`
}

// FileMapping associates a local cached copy with its server file.
type FileMapping struct {
	ServerPath         string        `json:"serverPath"`
	LocalPath          string        `json:"localPath"`
	FileType           string        `json:"fileType"`
	Status             MappingStatus `json:"status"`
	CreatedAt          time.Time     `json:"createdAt"`
	LastChecked        *time.Time    `json:"lastChecked"`
	LastSynced         *time.Time    `json:"lastSynced"`
	LastServerModified time.Time     `json:"lastServerModified"`
	LastServerSize     int64         `json:"lastServerSize"`
	CheckCount         int           `json:"checkCount"`
	SyncCount          int           `json:"syncCount"`
	SyncHistory        []SyncRecord  `json:"syncHistory"`
}

// Clone returns a deep copy, so callers never alias registry state.
func (m *FileMapping) Clone() *FileMapping {
	c := *m
	if m.LastChecked != nil {
		t := *m.LastChecked
		c.LastChecked = &t
	}
	if m.LastSynced != nil {
		t := *m.LastSynced
		c.LastSynced = &t
	}
	c.SyncHistory = append([]SyncRecord(nil), m.SyncHistory...)
	return &c
}

// FileSnapshot is the modification time and size of a file at some instant.
type FileSnapshot struct {
	Modified time.Time
	Size     int64
}

// Comparison is the outcome of comparing a server file against a snapshot.
type Comparison struct {
	ServerPath     string
	ServerExists   bool
	Unreachable    bool
	ServerModified time.Time
	ServerSize     int64
	Snapshot       FileSnapshot
	HasUpdate      bool
	DiffDays       int
	Reason         string
}

// CheckResult is returned by a registry check.
type CheckResult struct {
	LocalPath  string
	HasUpdate  bool
	Status     MappingStatus
	Comparison Comparison
}

// UpdateNotification asks the user to approve overwriting a local cache.
type UpdateNotification struct {
	ID             string     `json:"id"`
	CreatedAt      time.Time  `json:"createdAt"`
	ServerPath     string     `json:"serverPath"`
	LocalPath      string     `json:"localPath"`
	ServerModified time.Time  `json:"serverModified"`
	LocalModified  time.Time  `json:"localModified"`
	DiffDays       int        `json:"diffDays"`
	Approved       bool       `json:"approved"`
	Rejected       bool       `json:"rejected"`
	Synced         bool       `json:"synced"`
	ResolvedAt     *time.Time `json:"resolvedAt,omitempty"`
	BackupPath     string     `json:"backupPath,omitempty"`
	// RegistryStale is set when the local file was replaced but the
	// registry snapshot could not be refreshed afterwards.
	RegistryStale  bool       `json:"registryStale,omitempty"`
}

// Pending reports whether the notification has not reached a terminal state.
func (n *UpdateNotification) Pending() bool {
	return !n.Rejected && !(n.Approved && n.Synced)
}

// ArchiveCandidate is a settings archive found on disk.
type ArchiveCandidate struct {
	Path     string
	Modified time.Time
	Size     int64
}

// Discovery is the outcome of searching for archive candidates.
type Discovery struct {
	Candidates []ArchiveCandidate
	Tied       bool
}

// Latest returns the most recently modified candidate.
func (d Discovery) Latest() (ArchiveCandidate, bool) {
	if len(d.Candidates) == 0 {
		return ArchiveCandidate{}, false
	}
	return d.Candidates[0], true
}

// Extraction is an archive unpacked into a scratch directory owned by the caller.
type Extraction struct {
	ArchivePath  string
	ScratchDir   string
	ManifestPath string
	Files        int
	Bytes        int64
}

// ImportResult is the outcome of the archive pipeline for one user.
type ImportResult struct {
	ArchivePath   string
	ScratchDir    string
	Configuration *Configuration
	ScanConfig    *ScanConfig
}
