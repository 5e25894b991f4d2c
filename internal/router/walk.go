package router

import (
	"path"
	"strings"
)

// Walk visits p and then each of its ancestors up to and including "/".
// The callback receives the candidate path and whether it was produced by
// trimming (false only for the first, untrimmed candidate). Returning false
// stops the walk.
//
// Each ancestor is tried in its directory form first and then without the
// trailing slash, so a subtree may be declared as "/api/" or "/api":
// "/a/b/c" visits "/a/b/c", "/a/b/", "/a/b", "/a/", "/a", "/".
func Walk(p string, visit func(candidate string, trimmed bool) bool) {
	candidate := p
	trimmed := false
	for {
		if !visit(candidate, trimmed) {
			return
		}
		if candidate == "/" || candidate == "" {
			return
		}
		candidate = parent(candidate)
		trimmed = true
	}
}

func parent(p string) string {
	if strings.HasSuffix(p, "/") && len(p) > 1 {
		return strings.TrimSuffix(p, "/")
	}
	dir := path.Dir(p)
	if dir == "." || dir == "/" {
		return "/"
	}
	return dir + "/"
}

// HasDoubleSlash reports whether p contains an empty segment ("//").
func HasDoubleSlash(p string) bool {
	return strings.Contains(p, "//")
}
