package partition

import (
	"artipart/pkg/models"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

// Report logs the size of every partition, the grand total and each dropped file.
// Dropped files are logged at warn level: they are silently missing from the payload.
func Report(logger *zap.Logger, result models.PackingResult) {
	for _, p := range result.Partitions {
		logger.Info("partition",
			zap.Int("index", p.Index),
			zap.Int("files", len(p.Files)),
			zap.Int64("bytes", p.Size),
			zap.String("size", humanize.Bytes(uint64(p.Size))),
		)
	}

	for _, f := range result.Dropped {
		logger.Warn("file at or above max partition size was dropped",
			zap.String("path", f.Path),
			zap.Int64("bytes", f.Size),
			zap.Int64("max_size", result.MaxSize),
		)
	}

	fields := []zap.Field{
		zap.Int("partitions", len(result.Partitions)),
		zap.Int64("bytes", result.TotalSize),
		zap.String("size", humanize.Bytes(uint64(result.TotalSize))),
	}
	if len(result.Dropped) > 0 {
		logger.Warn("packing finished with dropped files",
			append(fields,
				zap.Int("dropped", len(result.Dropped)),
				zap.Int64("dropped_bytes", result.DroppedSize()),
			)...,
		)
		return
	}
	logger.Info("packing finished", fields...)
}
