package ftpq

import "strings"

// NormalizePath strips a leading "file://" or "file:" prefix from a path
// argument. Callers embedding the engine behind URI-based interfaces pass
// decorated paths; everything else comes through unchanged. Applied to every
// local and remote path accepted by Session operations.
func NormalizePath(p string) string {
	if strings.HasPrefix(p, "file://") {
		return p[len("file://"):]
	}
	if strings.HasPrefix(p, "file:") {
		return p[len("file:"):]
	}
	return p
}
