package partition

import (
	"sort"

	"artipart/pkg/models"
)

/*
Pack divides entries into partitions using first-fit over the entries
sorted by size, largest first. Equal sizes keep their input order.

An entry is admitted into the first partition whose running total would
stay strictly below maxSize; when none fits a new partition is opened.
Entries whose size is at or above maxSize can never be admitted and are
returned in Dropped instead.
*/
func Pack(entries []models.FileEntry, maxSize int64) models.PackingResult {
	sorted := make([]models.FileEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Size > sorted[j].Size
	})

	result := models.PackingResult{
		MaxSize:    maxSize,
		Partitions: make([]models.Partition, 0),
		Dropped:    make([]models.FileEntry, 0),
	}

	for _, entry := range sorted {
		if entry.Size >= maxSize {
			result.Dropped = append(result.Dropped, entry)
			continue
		}

		admitted := false
		for i := range result.Partitions {
			p := &result.Partitions[i]
			if p.Size+entry.Size < maxSize {
				p.Files = append(p.Files, entry)
				p.Size += entry.Size
				admitted = true
				break
			}
		}

		if !admitted {
			result.Partitions = append(result.Partitions, models.Partition{
				Index: len(result.Partitions),
				Files: []models.FileEntry{entry},
				Size:  entry.Size,
			})
		}
		result.TotalSize += entry.Size
	}

	return result
}
