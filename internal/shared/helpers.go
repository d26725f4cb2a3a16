// Package shared provides common utility functions used across multiple
// packages in the depswap codebase.
package shared

import (
	"path"
	"path/filepath"
	"strings"
)

// InferManifestName derives a dependency or build-unit name from a
// manifest path: the file name without its extension. Both slash styles
// are accepted since manifests written on Windows use backslashes.
func InferManifestName(manifestPath string) string {
	normalized := strings.ReplaceAll(strings.TrimSpace(manifestPath), `\`, "/")
	base := path.Base(normalized)
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSuffix(base, path.Ext(base))
}

// SamePath reports whether two manifest paths name the same file once
// cleaned. It does not touch the filesystem.
func SamePath(a string, b string) bool {
	return filepath.Clean(filepath.FromSlash(a)) == filepath.Clean(filepath.FromSlash(b))
}
