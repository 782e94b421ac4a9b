package models

import "time"

// FileEntry is a scanned artifact. Path is absolute.
type FileEntry struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// Partition is a size-bounded group of files handed to one worker.
// Size is the sum of the sizes of Files.
type Partition struct {
	Index int         `json:"index"`
	Files []FileEntry `json:"files"`
	Size  int64       `json:"size"`
}

// Paths returns the absolute paths of the partition's files in admission order.
func (p Partition) Paths() []string {
	paths := make([]string, 0, len(p.Files))
	for _, f := range p.Files {
		paths = append(paths, f.Path)
	}
	return paths
}

// PackingResult is the outcome of one packing run. Partitions[i].Index == i.
type PackingResult struct {
	MaxSize    int64       `json:"max_size"`
	Partitions []Partition `json:"partitions"`
	// Dropped holds entries at or above MaxSize, in sorted order.
	Dropped   []FileEntry `json:"dropped"`
	TotalSize int64       `json:"total_size"`
}

// DroppedSize is the byte total of the dropped entries.
func (r PackingResult) DroppedSize() int64 {
	var total int64
	for _, f := range r.Dropped {
		total += f.Size
	}
	return total
}

// ExclusionSet holds directory and file names skipped while scanning.
type ExclusionSet struct {
	Dirs  map[string]struct{}
	Files map[string]struct{}
}

func NewExclusionSet(dirs, files []string) ExclusionSet {
	set := ExclusionSet{
		Dirs:  make(map[string]struct{}, len(dirs)),
		Files: make(map[string]struct{}, len(files)),
	}
	for _, d := range dirs {
		set.Dirs[d] = struct{}{}
	}
	for _, f := range files {
		set.Files[f] = struct{}{}
	}
	return set
}

func (s ExclusionSet) ExcludesDir(name string) bool {
	_, ok := s.Dirs[name]
	return ok
}

func (s ExclusionSet) ExcludesFile(name string) bool {
	_, ok := s.Files[name]
	return ok
}

// Manifest records which file went to which partition.
type Manifest struct {
	Version     string              `json:"version"`
	CreatedAt   time.Time           `json:"created_at"`
	Source      string              `json:"source"`
	Destination string              `json:"destination"`
	MaxSize     int64               `json:"max_size"`
	TotalSize   int64               `json:"total_size"`
	Partitions  []ManifestPartition `json:"partitions"`
	Dropped     []ManifestFile      `json:"dropped"`
}

type ManifestPartition struct {
	Index int            `json:"index"`
	Size  int64          `json:"size"`
	Dir   string         `json:"dir"`
	Files []ManifestFile `json:"files"`
}

// ManifestFile paths are relative to the source root, slash separated.
type ManifestFile struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	Digest string `json:"digest,omitempty"`
}

// FileEvent is a change observed under a watched tree.
type FileEvent struct {
	Path      string
	Operation string // CREATE, MODIFY, DELETE, RENAME
	Timestamp time.Time
}
