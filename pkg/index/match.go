package index

import (
	"path"
	"strings"
)

// MatchName reports whether name matches glob. Matching is case-insensitive
// and applies only to a single path segment (* never crosses a slash). An
// empty glob matches everything; a malformed pattern matches nothing.
func MatchName(glob, name string) bool {
	if glob == "" {
		return true
	}
	ok, err := path.Match(strings.ToLower(glob), strings.ToLower(name))
	return err == nil && ok
}

// InScope reports whether entryPath falls inside the directory scope.
// An empty scope means the dataset root. With recursive false only direct
// children of the scope qualify; the scope directory itself never matches
// its own listing.
func InScope(entryPath, scope string, recursive bool) bool {
	scope = strings.Trim(scope, "/")
	if scope != "" {
		if entryPath == scope {
			return false
		}
		if !strings.HasPrefix(entryPath, scope+"/") {
			return false
		}
	}
	if recursive {
		return true
	}
	rel := entryPath
	if scope != "" {
		rel = strings.TrimPrefix(entryPath, scope+"/")
	}
	return !strings.Contains(rel, "/")
}

// BaseName returns the final segment of a slash-separated path.
func BaseName(p string) string {
	return path.Base(strings.Trim(p, "/"))
}
