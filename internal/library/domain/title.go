package domain

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// DefaultTitleRegex keeps everything before the first '['.
const DefaultTitleRegex = `^[^\[]+`

// ExtractTitle derives the search title for a library path. File extensions
// are stripped for regular files only, so "Game v1.2" stays intact when it is
// a directory. When re is set its first match wins, falling back to the plain
// name if the match is blank.
func ExtractTitle(path string, re *regexp.Regexp) string {
	name := filepath.Base(path)
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}
	name = strings.TrimSpace(name)

	if re == nil {
		return name
	}
	if extracted := strings.TrimSpace(re.FindString(name)); extracted != "" {
		return extracted
	}
	return name
}
