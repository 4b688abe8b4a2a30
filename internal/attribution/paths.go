// Package attribution holds the per-file metadata the sync pipeline derives
// from upstream history: who contributed each data file and when it last changed.
package attribution

import (
	"regexp"
	"strings"
)

// Bucket names a category of data files in the performance repository
type Bucket string

const (
	Performance Bucket = "performance"
	Graphics    Bucket = "graphics"
	Videos      Bucket = "videos"
	Groups      Bucket = "groups"
)

var (
	profilePattern = regexp.MustCompile(`^profiles/([0-9A-F]{16})/([^/$]+?)(?:\$([^/$]+))?\.json$`)
	flatPattern    = regexp.MustCompile(`^(graphics|videos)/([0-9A-F]{16})\.json$`)
	groupPattern   = regexp.MustCompile(`^groups/([0-9A-Za-z_-]+)\.json$`)
	titleIDPattern = regexp.MustCompile(`^[0-9A-F]{16}$`)
)

// Path is a classified repository file path
type Path struct {
	Bucket  Bucket
	Key     string
	GroupID string
	Version string // performance only
	Suffix  string // performance only, may be empty
}

// Classify maps a repository-relative path onto its bucket and natural key.
// Paths outside the known layout report false.
func Classify(path string) (Path, bool) {
	if m := profilePattern.FindStringSubmatch(path); m != nil {
		return Path{
			Bucket:  Performance,
			Key:     PerformanceKey(m[1], m[2], m[3]),
			GroupID: m[1],
			Version: m[2],
			Suffix:  m[3],
		}, true
	}
	if m := flatPattern.FindStringSubmatch(path); m != nil {
		return Path{Bucket: Bucket(m[1]), Key: m[2], GroupID: m[2]}, true
	}
	if m := groupPattern.FindStringSubmatch(path); m != nil {
		return Path{Bucket: Groups, Key: m[1], GroupID: m[1]}, true
	}
	return Path{}, false
}

// IsTitleID reports whether s is a 16 character uppercase hex ID, the only
// form data file and profile directory names may take.
func IsTitleID(s string) bool {
	return titleIDPattern.MatchString(s)
}

// PerformanceKey builds the natural key of a performance profile:
// "<group>-<version>" or "<group>-<version>$<suffix>". Versions never
// contain '$', so keys with and without a suffix cannot collide.
func PerformanceKey(groupID, version, suffix string) string {
	if suffix == "" {
		return groupID + "-" + version
	}
	return groupID + "-" + version + "$" + suffix
}

// ParseProfileName splits a profile file name like "1.0.0$docked.json" into
// its version and optional suffix.
func ParseProfileName(name string) (version, suffix string, ok bool) {
	base, found := strings.CutSuffix(name, ".json")
	if !found || base == "" {
		return "", "", false
	}
	version, suffix, found = strings.Cut(base, "$")
	if version == "" || (found && suffix == "") || strings.Contains(suffix, "$") {
		return "", "", false
	}
	return version, suffix, true
}

// BaseID derives the default group of a title ID: its first 13 characters followed by "000".
func BaseID(titleID string) string {
	if len(titleID) < 13 {
		return titleID
	}
	return titleID[:13] + "000"
}
