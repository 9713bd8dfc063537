package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/document-extractor/constants"
)

// AllowedExt checks if a file extension maps to a supported document kind.
func AllowedExt(ext string) bool {
	return constants.IsSupportedExt(ext)
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}

func extSet(includeExts []string) map[string]struct{} {
	exts := map[string]struct{}{}
	if len(includeExts) == 0 {
		for e := range constants.ExtensionKinds {
			exts[e] = struct{}{}
		}
		return exts
	}
	for _, e := range includeExts {
		if e = constants.NormalizeExt(strings.TrimSpace(e)); e != "" {
			exts[e] = struct{}{}
		}
	}
	return exts
}

func allowed(path string, exts map[string]struct{}) bool {
	_, ok := exts[constants.NormalizeExt(filepath.Ext(path))]
	return ok
}
