package scan

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"artipart/internal/logging"
	"artipart/pkg/models"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DefaultExtensions are the managed artifact extensions collected on every platform.
var DefaultExtensions = []string{".dll", ".exe"}

type options struct {
	extensions []string
	logger     *zap.Logger
}

type Option func(*options)

// WithExtensions replaces the artifact extensions. Matching is case sensitive.
func WithExtensions(exts ...string) Option {
	return func(o *options) {
		o.extensions = exts
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

/*
Scan walks root and returns every regular artifact file with its size.

Excluded directories are pruned before descending, at any depth.
Files that disappear between listing and stat are skipped, as are
subdirectories we are not allowed to read. The result is in walk order.
*/
func Scan(root string, excl models.ExclusionSet, opts ...Option) ([]models.FileEntry, error) {
	o := options{extensions: DefaultExtensions}
	for _, opt := range opts {
		opt(&o)
	}
	logger := logging.OrNop(o.logger)

	var entries []models.FileEntry

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			if errors.Is(err, fs.ErrNotExist) {
				logger.Debug("entry vanished during scan", zap.String("path", path))
				return nil
			}
			if errors.Is(err, fs.ErrPermission) {
				logger.Warn("skipping unreadable entry", zap.String("path", path), zap.Error(err))
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			return err
		}

		if d.IsDir() {
			if path != root && excl.ExcludesDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		name := d.Name()
		if excl.ExcludesFile(name) || !hasExtension(name, o.extensions) {
			return nil
		}

		// Lstat so a symlink is never mistaken for a regular file.
		info, err := os.Lstat(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				logger.Debug("file vanished during scan", zap.String("path", path))
				return nil
			}
			return errors.Wrapf(err, "stat %s", path)
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		abs, err := filepath.Abs(path)
		if err != nil {
			return errors.Wrapf(err, "resolving %s", path)
		}
		entries = append(entries, models.FileEntry{Path: abs, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "scanning %s", root)
	}

	logger.Debug("scan complete", zap.String("root", root), zap.Int("files", len(entries)))
	return entries, nil
}

func hasExtension(name string, exts []string) bool {
	for _, ext := range exts {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
