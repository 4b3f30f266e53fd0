package tarstream

import (
	"fmt"
	"path"
	"strings"
)

// ArchivePath maps a remote key to the path it is stored under in the
// archive.
//
// With strip set, prefix and any slashes directly after it are removed from
// key. If nothing is left (the key is the prefix itself), the key's last
// path segment is used instead. Without strip the key is used verbatim.
//
// The result must be relative and must stay inside the archive root;
// otherwise the returned error wraps ErrInvalidPath.
func ArchivePath(key, prefix string, strip bool) (string, error) {
	name := key
	if strip && strings.HasPrefix(key, prefix) {
		name = strings.TrimLeft(key[len(prefix):], "/")
		if name == "" {
			name = path.Base(strings.TrimRight(key, "/"))
		}
	}

	if reason := unsafePath(name); reason != "" {
		return "", fmt.Errorf("%w: key %q: %s", ErrInvalidPath, key, reason)
	}
	return name, nil
}

// unsafePath returns why name cannot be used as an archive path, or "" if it
// can.
func unsafePath(name string) string {
	switch {
	case name == "" || name == "." || name == "/":
		return "empty path"
	case strings.HasPrefix(name, "/"):
		return "absolute path"
	case strings.ContainsRune(name, 0):
		return "path contains NUL"
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == ".." {
			return "path escapes archive root"
		}
	}
	return ""
}
