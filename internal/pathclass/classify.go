// Package pathclass decides whether a path string denotes a local disk or a
// server (network) location.
package pathclass

import (
	"regexp"
	"strings"

	"camsync/internal/domain"
)

// CategoryUNC is the category reported for \\server\share paths.
const CategoryUNC = "UNC-network-share"

// LocalDrives are the drive letters treated as local disks. Everything else,
// including common mapped letters such as P, Y and Z, is a server drive.
var LocalDrives = map[string]bool{"C": true, "D": true, "E": true, "F": true}

var (
	drivePattern = regexp.MustCompile(`^([A-Za-z]):`)
	likelyPath   = regexp.MustCompile(`^(?:[A-Za-z]:[\\/]|\\\\|/)`)
)

// Classify returns the location class of path. It never fails.
func Classify(path string) domain.PathClass {
	if strings.HasPrefix(path, `\\`) {
		return domain.PathClass{Kind: domain.PathServer, Category: CategoryUNC}
	}
	if m := drivePattern.FindStringSubmatch(path); m != nil {
		drive := strings.ToUpper(m[1])
		if LocalDrives[drive] {
			return domain.PathClass{Kind: domain.PathLocal, Drive: drive, Category: "local-drive-" + drive}
		}
		return domain.PathClass{Kind: domain.PathServer, Drive: drive, Category: "network-drive-" + drive}
	}
	if strings.HasPrefix(path, "/") {
		return domain.PathClass{Kind: domain.PathUnclear, Reason: "posix path, depends on context"}
	}
	return domain.PathClass{Kind: domain.PathUnclear, Reason: "unrecognized format"}
}

// IsLikelyPath is the pre-filter for Classify: at least three characters and
// a drive-letter, UNC or leading-slash shape.
func IsLikelyPath(s string) bool {
	return len(s) >= 3 && likelyPath.MatchString(s)
}

// IsNetworkPath reports whether path is UNC or on a non-local drive.
func IsNetworkPath(path string) bool {
	return Classify(path).Kind == domain.PathServer
}

// IsLocal reports whether path is on one of the LocalDrives.
func IsLocal(path string) bool {
	return Classify(path).Kind == domain.PathLocal
}
