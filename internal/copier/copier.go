package copier

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"artipart/internal/utils"

	"github.com/pkg/errors"
)

// Copy replicates each file of files under dstRoot at its path relative to srcRoot.
// Existing destination directories are reused and unrelated files are left alone.
// The first failure aborts the copy.
func Copy(srcRoot, dstRoot string, files []string) error {
	for _, src := range files {
		rel, err := utils.RelativeTo(srcRoot, src)
		if err != nil {
			return err
		}
		if err := copyFile(src, filepath.Join(dstRoot, rel)); err != nil {
			return err
		}
	}
	return nil
}

// Predicate decides whether a file of a tree copy is included.
// rel is the file's path relative to the tree root.
type Predicate func(rel string, info fs.FileInfo) bool

// CopyTree recreates srcRoot under dstRoot, copying only files accepted by include.
// A destination directory is created only when a file beneath it is copied.
func CopyTree(srcRoot, dstRoot string, include Predicate) error {
	err := filepath.WalkDir(srcRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return errors.Wrapf(err, "stat %s", path)
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		rel, err := utils.RelativeTo(srcRoot, path)
		if err != nil {
			return err
		}
		if include != nil && !include(rel, info) {
			return nil
		}
		return copyFile(path, filepath.Join(dstRoot, rel))
	})
	if err != nil {
		return errors.Wrapf(err, "copying tree %s to %s", srcRoot, dstRoot)
	}
	return nil
}

/*
copyFile writes src to dst through a temporary file in dst's directory,
renames it into place, then carries over the source modification time.
A failed copy never leaves a truncated file at dst.
*/
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "opening source %s", src)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return errors.Wrapf(err, "stat source %s", src)
	}
	if !info.Mode().IsRegular() {
		return errors.Errorf("source %s is not a regular file", src)
	}

	dstDir := filepath.Dir(dst)
	if err := utils.EnsureDirectoryExists(dstDir); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dstDir, "."+filepath.Base(dst)+".*.tmp")
	if err != nil {
		return errors.Wrapf(err, "creating temp file in %s", dstDir)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmp, in); err != nil {
		return errors.Wrapf(err, "copying %s to %s", src, dst)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "closing %s", tmpPath)
	}
	if err := os.Chmod(tmpPath, info.Mode().Perm()); err != nil {
		return errors.Wrapf(err, "chmod %s", tmpPath)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return errors.Wrapf(err, "renaming %s to %s", tmpPath, dst)
	}
	committed = true

	if err := os.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		return errors.Wrapf(err, "setting times on %s", dst)
	}
	return nil
}
