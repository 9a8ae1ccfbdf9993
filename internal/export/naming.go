// Package export names and places trimmed output files.
package export

import (
	"regexp"
	"strings"
)

const (
	// TrimmedSuffix replaces the source extension of an exported clip.
	TrimmedSuffix = "-trimmed.mp4"
	ContentType   = "video/mp4"

	maxNameLen  = 160
	defaultBase = "video"
)

var extPattern = regexp.MustCompile(`\.\w+$`)

// TrimmedName returns the output name for source: its extension is replaced
// with -trimmed.mp4, or the suffix appended when it has none.
func TrimmedName(source string) string {
	base := extPattern.ReplaceAllString(source, "")
	if base == source {
		base = strings.TrimRight(source, ".")
	}
	if strings.TrimSpace(base) == "" {
		base = defaultBase
	}
	return base + TrimmedSuffix
}

// EngineName returns a flat, sanitized file name for source that is safe to
// use inside the engine workspace and as a download name.
func EngineName(source string) string {
	name := SanitizeName(source, maxNameLen)
	name = strings.Trim(name, ". ")
	if name == "" {
		return defaultBase + ".mp4"
	}
	return name
}
