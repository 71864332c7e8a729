// Package tokens resolves bracketed placeholders such as [USER] in manifest
// path templates.
package tokens

import (
	"regexp"
	"sort"
	"strings"

	"camsync/internal/domain"
)

// Install holds the installation constants the token values are derived from.
type Install struct {
	Version       string
	Vendor        string
	Product       string
	ProgramFiles  string
	UsersRoot     string
	PublicRoot    string
	CommonAppData string
}

// DefaultInstall describes a standard workstation installation.
var DefaultInstall = Install{
	Version:       "33.0",
	Vendor:        "OPEN MIND",
	Product:       "hyperMILL",
	ProgramFiles:  `C:\Program Files`,
	UsersRoot:     `C:\Users`,
	PublicRoot:    `C:\Users\Public`,
	CommonAppData: `C:\ProgramData`,
}

var tokenPattern = regexp.MustCompile(`\[([A-Z][A-Z0-9_]*)\]`)

// BuildTokenMap builds the token table for username using DefaultInstall.
func BuildTokenMap(username string) domain.TokenMap {
	return DefaultInstall.TokenMap(username)
}

// TokenMap builds the token table for username. It does not touch the
// filesystem.
func (in Install) TokenMap(username string) domain.TokenMap {
	profile := in.UsersRoot + `\` + username
	appData := profile + `\AppData\Roaming`
	publicDocs := in.PublicRoot + `\Documents`
	vendorProduct := in.Vendor + `\` + in.Product

	return domain.TokenMap{
		"USER":            username,
		"USERPROFILE":     profile,
		"APPDATA":         appData,
		"LOCALAPPDATA":    profile + `\AppData\Local`,
		"VERSION":         in.Version,
		"USER_CFG":        appData + `\` + vendorProduct + `\` + in.Version,
		"HYPERMILL":       in.ProgramFiles + `\` + vendorProduct + ` ` + in.Version,
		"PUBLICDOCUMENTS": publicDocs,
		"COMMON_APPDATA":  in.CommonAppData,
		"TOOLDB":          publicDocs + `\` + vendorProduct + `\` + in.Version + `\tooldb`,
		"GWS":             publicDocs + `\` + vendorProduct + `\` + in.Version + `\gws`,
	}
}

// Substitute replaces every [TOKEN] occurrence for which tm has a value.
// Unknown tokens are left verbatim.
func Substitute(template string, tm domain.TokenMap) string {
	if !strings.Contains(template, "[") {
		return template
	}
	keys := make([]string, 0, len(tm))
	for k := range tm {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := template
	for _, k := range keys {
		out = strings.ReplaceAll(out, "["+k+"]", tm[k])
	}
	return out
}

// Unresolved returns the distinct bracketed tokens in s that tm cannot resolve.
func Unresolved(s string, tm domain.TokenMap) []string {
	var missing []string
	seen := make(map[string]bool)
	for _, m := range tokenPattern.FindAllStringSubmatch(s, -1) {
		name := m[1]
		if _, ok := tm[name]; ok || seen[name] {
			continue
		}
		seen[name] = true
		missing = append(missing, name)
	}
	return missing
}

// hasTokens reports whether s contains a [TOKEN] known to tm.
func hasTokens(s string, tm domain.TokenMap) bool {
	for _, m := range tokenPattern.FindAllStringSubmatch(s, -1) {
		if _, ok := tm[m[1]]; ok {
			return true
		}
	}
	return false
}
