package usecase

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"camsync/internal/domain"
	"camsync/internal/tokens"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleConfiguration() *domain.Configuration {
	cfg := domain.NewConfiguration()
	cfg.Version = domain.Version{Major: "33", Minor: "0"}
	cfg.UserSettings.UserDirectories = []domain.UserEntry{
		{Key: "AutomationCenterUser", Path: `[USER_CFG]\USERS\[USER]\AutomationCenter`},
		{Key: "companyToolPath", Path: `Y:\Westcam\tools`},
		{Key: "ToolLibrary", Path: `[TOOLDB]\lib`},
		{Key: "cfgDir", Path: `[USER_CFG]\cfg`},
		{Key: "MacroDatabaseDir", Path: `[PUBLICDOCUMENTS]\macros`},
		{Key: "Projects", Path: `[USERPROFILE]\Documents\[UNKNOWN]`},
	}
	cfg.UserSettings.UserFiles = []domain.UserEntry{
		{Key: "userPrefs", Path: `[USER_CFG]\prefs.xml`},
		{Key: "companyDefaults", Path: `Y:\Westcam\defaults.xml`},
	}
	cfg.Machines = []domain.Machine{
		{Name: "DMU 50", MDFPath: `\\fileserver\machines\dmu50.mdf`},
		{Name: "Mill A", MDFPath: `C:\machines\a.mdf`},
	}
	cfg.Databases.Tool = []domain.DatabaseRef{{Path: `Z:\tools\main.db`, Type: "global"}}
	cfg.Databases.Macro = []domain.DatabaseRef{{Path: `D:\macros\macro.db`, Type: "global"}}
	cfg.NetworkShares = []domain.NamedPath{
		{Name: "companyToolPath", Path: `Y:\Westcam\tools`},
		{Name: "companyToolPath", Path: `Y:\Westcam\tools`},
	}
	return cfg
}

func TestClassifyKey(t *testing.T) {
	tests := []struct {
		key  string
		want domain.ScanType
	}{
		{"AutomationCenterUser", domain.ScanAutomationCenter},
		{"AutomationToolDir", domain.ScanAutomationCenter},
		{"ToolLibrary", domain.ScanToolDatabase},
		{"ToolDatabaseFile", domain.ScanToolDatabase},
		{"cfgDir", domain.ScanConfiguration},
		{"MacroDatabaseDir", domain.ScanDatabase},
		{"automation", domain.ScanOther},
		{"Projects", domain.ScanOther},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyKey(tt.key))
		})
	}
}

func TestGenerate(t *testing.T) {
	gen := NewScanConfigGenerator()
	gen.SetClock(func() time.Time { return t0 })
	tm := tokens.BuildTokenMap("alice")

	sc := gen.Generate(sampleConfiguration(), tm)

	assert.Equal(t, "alice", sc.Username)
	assert.Equal(t, t0, sc.GeneratedAt)
	assert.Equal(t, tm, sc.TokenMap)

	require.Len(t, sc.PathsToScan, 6)
	first := sc.PathsToScan[0]
	assert.Equal(t, `C:\Users\alice\AppData\Roaming\OPEN MIND\hyperMILL\33.0\USERS\alice\AutomationCenter`, first.Path)
	assert.Equal(t, `[USER_CFG]\USERS\[USER]\AutomationCenter`, first.PathTemplate)
	assert.Equal(t, domain.ScanAutomationCenter, first.Type)
	assert.False(t, first.IsFile)

	assert.Equal(t, domain.ScanToolDatabase, sc.PathsToScan[1].Type)
	assert.Equal(t, domain.ScanConfiguration, sc.PathsToScan[2].Type)
	assert.Equal(t, domain.ScanDatabase, sc.PathsToScan[3].Type)

	// unknown tokens stay verbatim
	assert.Equal(t, `C:\Users\alice\Documents\[UNKNOWN]`, sc.PathsToScan[4].Path)

	last := sc.PathsToScan[5]
	assert.Equal(t, "userPrefs", last.Key)
	assert.True(t, last.IsFile)

	require.Len(t, sc.Machines, 2)
	assert.True(t, sc.Machines[0].IsNetworkPath)
	assert.False(t, sc.Machines[1].IsNetworkPath)
	assert.True(t, sc.Databases.Tool[0].IsNetworkPath)
	assert.False(t, sc.Databases.Macro[0].IsNetworkPath)

	assert.Len(t, sc.NetworkShares, 2)
}

func TestGenerateCompanyFilter(t *testing.T) {
	sc := NewScanConfigGenerator().Generate(sampleConfiguration(), tokens.BuildTokenMap("bob"))
	for _, p := range sc.PathsToScan {
		assert.NotContains(t, p.Key, "company")
		assert.NotContains(t, p.Path, "Westcam")
	}
	assert.Equal(t, `Y:\Westcam\tools`, sc.NetworkShares[0].Path)

	// case-sensitive match
	cfg := domain.NewConfiguration()
	cfg.UserSettings.UserDirectories = []domain.UserEntry{{Key: "CompanyShared", Path: `C:\x`}}
	sc = NewScanConfigGenerator().Generate(cfg, tokens.BuildTokenMap("bob"))
	assert.Len(t, sc.PathsToScan, 1)
}

func TestGenerateIdempotent(t *testing.T) {
	cfg := sampleConfiguration()
	tm := tokens.BuildTokenMap("alice")

	gen := NewScanConfigGenerator()
	gen.SetClock(stepClock(t0, time.Hour))
	a := gen.Generate(cfg, tm)
	b := gen.Generate(cfg, tm)

	assert.NotEqual(t, a.GeneratedAt, b.GeneratedAt)
	b.GeneratedAt = a.GeneratedAt

	ja, err := json.Marshal(a)
	require.NoError(t, err)
	jb, err := json.Marshal(b)
	require.NoError(t, err)
	assert.Equal(t, string(ja), string(jb))

	// input is not mutated
	assert.False(t, cfg.Machines[0].IsNetworkPath)
}

func TestGenerateEmptyConfiguration(t *testing.T) {
	sc := NewScanConfigGenerator().Generate(domain.NewConfiguration(), tokens.BuildTokenMap("carol"))
	b, err := json.Marshal(sc)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(b), "null"))
}
