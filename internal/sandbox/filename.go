package sandbox

import (
	"strings"
)

const maxFilenameLength = 255

var reservedNames = map[string]struct{}{
	"con": {}, "prn": {}, "aux": {}, "nul": {},
	".": {}, "..": {},
}

// ValidFilename rejects path separators, ".." segments, control
// characters, reserved names, and names exceeding the length bound
// (spec §4.C).
func ValidFilename(name string) bool {
	if name == "" || len(name) > maxFilenameLength {
		return false
	}
	if strings.ContainsAny(name, "/\\") {
		return false
	}
	if strings.Contains(name, "..") {
		return false
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return false
		}
	}
	if _, reserved := reservedNames[strings.ToLower(name)]; reserved {
		return false
	}
	return true
}
