package pathclass

import (
	"testing"

	"camsync/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		kind     domain.PathKind
		drive    string
		category string
	}{
		{name: "unc share", path: `\\fileserver\cam\tools`, kind: domain.PathServer, category: CategoryUNC},
		{name: "local c", path: `C:\Users\alice`, kind: domain.PathLocal, drive: "C"},
		{name: "local f", path: `F:\data`, kind: domain.PathLocal, drive: "F"},
		{name: "mapped p", path: `P:\shared\x.cfg`, kind: domain.PathServer, drive: "P"},
		{name: "mapped y", path: `Y:\Westcam\tools`, kind: domain.PathServer, drive: "Y"},
		{name: "lower case drive", path: `z:\x`, kind: domain.PathServer, drive: "Z"},
		{name: "posix", path: "/mnt/share", kind: domain.PathUnclear},
		{name: "garbage", path: "hello world", kind: domain.PathUnclear},
		{name: "empty", path: "", kind: domain.PathUnclear},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.path)
			assert.Equal(t, tt.kind, got.Kind)
			assert.Equal(t, tt.drive, got.Drive)
			if tt.category != "" {
				assert.Equal(t, tt.category, got.Category)
			}
		})
	}
}

func TestClassifyEveryDriveLetter(t *testing.T) {
	for c := 'A'; c <= 'Z'; c++ {
		path := string(c) + `:\dir`
		got := Classify(path)
		assert.NotEmpty(t, got.Kind, path)
		switch c {
		case 'C', 'D', 'E', 'F':
			assert.Equal(t, domain.PathLocal, got.Kind, path)
		default:
			assert.Equal(t, domain.PathServer, got.Kind, path)
		}
	}
}

func TestIsLikelyPath(t *testing.T) {
	assert.True(t, IsLikelyPath(`C:\x`))
	assert.True(t, IsLikelyPath(`\\srv\share`))
	assert.True(t, IsLikelyPath("/usr"))
	assert.False(t, IsLikelyPath("C:"))
	assert.False(t, IsLikelyPath("33"))
	assert.False(t, IsLikelyPath("hyperMILL"))
	assert.False(t, IsLikelyPath("[USER_CFG]\\x"))
}

func TestIsNetworkPath(t *testing.T) {
	assert.True(t, IsNetworkPath(`\\srv\share\db.db`))
	assert.True(t, IsNetworkPath(`Y:\tools`))
	assert.False(t, IsNetworkPath(`C:\tools`))
	assert.False(t, IsNetworkPath("/srv/tools"))
	assert.True(t, IsLocal(`D:\cache`))
}
