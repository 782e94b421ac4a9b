package utils

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// ValidatePath rejects paths no filesystem call can accept: the empty path
// and paths containing a NUL byte. Relative paths are fine.
func ValidatePath(path string) error {
	if path == "" {
		return errors.New("path cannot be empty")
	}

	if strings.ContainsRune(path, 0) {
		return errors.Errorf("invalid path %q: contains a NUL byte", path)
	}

	return nil
}

func EnsureDirectoryExists(dirPath string) error {
	if err := ValidatePath(dirPath); err != nil {
		return err
	}

	// MkdirAll tolerates directories created concurrently by another worker.
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return errors.Wrapf(err, "creating directory %s", dirPath)
	}
	return nil
}

func IsDirectory(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// RelativeTo returns path relative to root, refusing paths that escape it.
func RelativeTo(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", errors.Wrapf(err, "%s is not under %s", path, root)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.Errorf("%s is not under %s", path, root)
	}
	return rel, nil
}

// ResetDirectory removes dirPath and recreates it empty.
func ResetDirectory(dirPath string) error {
	if err := ValidatePath(dirPath); err != nil {
		return err
	}
	if err := os.RemoveAll(dirPath); err != nil {
		return errors.Wrapf(err, "clearing %s", dirPath)
	}
	return EnsureDirectoryExists(dirPath)
}
