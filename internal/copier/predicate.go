package copier

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// ExtensionPredicate accepts files whose name ends with one of exts.
func ExtensionPredicate(exts ...string) Predicate {
	return func(rel string, _ fs.FileInfo) bool {
		name := filepath.Base(rel)
		for _, ext := range exts {
			if strings.HasSuffix(name, ext) {
				return true
			}
		}
		return false
	}
}

// ArtifactPredicate accepts the runtime files needed on a worker of the given OS:
// managed assemblies and scripts everywhere, executables on windows,
// shared objects and extension-less executables elsewhere.
func ArtifactPredicate(goos string) Predicate {
	common := ExtensionPredicate(".dll", ".py")
	if goos == "windows" {
		exe := ExtensionPredicate(".exe")
		return func(rel string, info fs.FileInfo) bool {
			return common(rel, info) || exe(rel, info)
		}
	}

	so := ExtensionPredicate(".so")
	return func(rel string, info fs.FileInfo) bool {
		if common(rel, info) || so(rel, info) {
			return true
		}
		return !strings.Contains(filepath.Base(rel), ".")
	}
}
