package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"artipart/internal/utils"
	"artipart/pkg/models"

	"github.com/pkg/errors"
)

const (
	FileName    = "manifest.json"
	Version     = "1.0"
	BinariesDir = "binaries"
)

// PartitionDir is the directory of partition index, relative to the payload root.
func PartitionDir(index int) string {
	return filepath.Join(strconv.Itoa(index), BinariesDir)
}

// Manager reads and writes the manifest of one payload root. It keeps no
// state besides the root; Save replaces the file by rename, so readers see
// either the old or the new manifest.
type Manager struct {
	root string
}

func NewManager(root string) *Manager {
	return &Manager{root: root}
}

func (m *Manager) Path() string {
	return filepath.Join(m.root, FileName)
}

func (m *Manager) Load() (*models.Manifest, error) {
	data, err := os.ReadFile(m.Path())
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", m.Path())
	}

	var manifest models.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, errors.Wrapf(err, "decoding %s", m.Path())
	}
	return &manifest, nil
}

func (m *Manager) Save(manifest *models.Manifest) error {
	if err := utils.EnsureDirectoryExists(m.root); err != nil {
		return err
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding manifest")
	}

	manifestPath := m.Path()
	tempPath := manifestPath + ".tmp"

	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return errors.Wrapf(err, "writing %s", tempPath)
	}

	// Atomic rename
	if err := os.Rename(tempPath, manifestPath); err != nil {
		return errors.Wrapf(err, "renaming %s", tempPath)
	}
	return nil
}

/*
Build describes a packing result laid out under destination.
File paths are recorded relative to source. When digest is set every
copied file under destination is hashed, so Build must run after the copy.
*/
func Build(source, destination string, result models.PackingResult, digest bool) (*models.Manifest, error) {
	manifest := &models.Manifest{
		Version:     Version,
		CreatedAt:   time.Now().UTC(),
		Source:      source,
		Destination: destination,
		MaxSize:     result.MaxSize,
		TotalSize:   result.TotalSize,
		Partitions:  make([]models.ManifestPartition, 0, len(result.Partitions)),
		Dropped:     make([]models.ManifestFile, 0, len(result.Dropped)),
	}

	for _, p := range result.Partitions {
		dir := PartitionDir(p.Index)
		mp := models.ManifestPartition{
			Index: p.Index,
			Size:  p.Size,
			Dir:   filepath.ToSlash(dir),
			Files: make([]models.ManifestFile, 0, len(p.Files)),
		}
		for _, f := range p.Files {
			rel, err := utils.RelativeTo(source, f.Path)
			if err != nil {
				return nil, err
			}
			mf := models.ManifestFile{Path: filepath.ToSlash(rel), Size: f.Size}
			if digest {
				sum, err := utils.CalculateFileHash(filepath.Join(destination, dir, rel))
				if err != nil {
					return nil, err
				}
				mf.Digest = sum
			}
			mp.Files = append(mp.Files, mf)
		}
		manifest.Partitions = append(manifest.Partitions, mp)
	}

	for _, f := range result.Dropped {
		rel, err := utils.RelativeTo(source, f.Path)
		if err != nil {
			return nil, err
		}
		manifest.Dropped = append(manifest.Dropped, models.ManifestFile{Path: filepath.ToSlash(rel), Size: f.Size})
	}

	return manifest, nil
}
