package utils

import (
	"regexp"
	"strings"
)

var sanitizeRegex = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

// SanitizeFilename removes characters that are unsafe for the filesystem.
// Returns "file" if nothing usable remains.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "/", "")
	name = strings.ReplaceAll(name, "\\", "")
	name = sanitizeRegex.ReplaceAllString(name, "")
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return "file"
	}
	return name
}
