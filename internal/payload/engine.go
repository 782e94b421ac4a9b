package payload

import (
	"context"
	"os"
	"path/filepath"

	"artipart/internal/copier"
	"artipart/internal/logging"
	"artipart/internal/manifest"
	"artipart/internal/partition"
	"artipart/internal/scan"
	"artipart/internal/utils"
	"artipart/pkg/models"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrInvalidConfig = errors.New("invalid payload configuration")

type Options struct {
	Source      string
	Destination string
	// MaxSize is the exclusive upper bound of a partition, in bytes.
	MaxSize    int64
	Exclusions models.ExclusionSet
	// Extensions overrides scan.DefaultExtensions when non-empty.
	Extensions []string
	// Workers bounds the number of partitions copied at once. Zero means one.
	Workers       int
	WriteManifest bool
	Logger        *zap.Logger
}

func (o Options) Validate() error {
	err := validation.ValidateStruct(&o,
		validation.Field(&o.Source, validation.Required, validation.By(isDirectory)),
		validation.Field(&o.Destination, validation.Required),
		validation.Field(&o.MaxSize, validation.Required, validation.Min(int64(1))),
		validation.Field(&o.Workers, validation.Min(0)),
	)
	if err != nil {
		return errors.Wrapf(ErrInvalidConfig, "%v", err)
	}
	return nil
}

func isDirectory(value interface{}) error {
	path, _ := value.(string)
	if path != "" && !utils.IsDirectory(path) {
		return errors.Errorf("%s is not an existing directory", path)
	}
	return nil
}

/*
Engine assembles a partitioned payload:
1. Assemble() - scan the source, pack it, copy each partition to <dest>/<i>/binaries
2. Verify() - check a written payload against its manifest
*/
type Engine struct {
	opts   Options
	logger *zap.Logger
}

func NewEngine(opts Options) *Engine {
	return &Engine{
		opts:   opts,
		logger: logging.OrNop(opts.Logger),
	}
}

// Assemble runs scan, pack and copy in that order. Configuration is validated
// before any work begins; the first copy failure cancels the remaining copies.
func (e *Engine) Assemble(ctx context.Context) (*models.Manifest, error) {
	if err := e.opts.Validate(); err != nil {
		return nil, err
	}

	source, err := filepath.Abs(e.opts.Source)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving %s", e.opts.Source)
	}
	destination, err := filepath.Abs(e.opts.Destination)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving %s", e.opts.Destination)
	}

	e.logger.Info("assembling payload",
		zap.String("source", source),
		zap.String("destination", destination),
		zap.Int64("max_size", e.opts.MaxSize),
	)

	scanOpts := []scan.Option{scan.WithLogger(e.logger)}
	if len(e.opts.Extensions) > 0 {
		scanOpts = append(scanOpts, scan.WithExtensions(e.opts.Extensions...))
	}
	entries, err := scan.Scan(source, e.opts.Exclusions, scanOpts...)
	if err != nil {
		return nil, err
	}

	result := partition.Pack(entries, e.opts.MaxSize)
	partition.Report(e.logger, result)

	if err := utils.EnsureDirectoryExists(destination); err != nil {
		return nil, err
	}
	if err := e.copyPartitions(ctx, source, destination, result); err != nil {
		return nil, err
	}

	m, err := manifest.Build(source, destination, result, e.opts.WriteManifest)
	if err != nil {
		return nil, err
	}
	if e.opts.WriteManifest {
		mgr := manifest.NewManager(destination)
		if err := mgr.Save(m); err != nil {
			return nil, err
		}
		e.logger.Info("wrote manifest", zap.String("path", mgr.Path()))
	}

	return m, nil
}

func (e *Engine) copyPartitions(ctx context.Context, source, destination string, result models.PackingResult) error {
	workers := e.opts.Workers
	if workers < 1 {
		workers = 1
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)

	for _, p := range result.Partitions {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			dir := filepath.Join(destination, manifest.PartitionDir(p.Index))
			e.logger.Debug("copying partition", zap.Int("index", p.Index), zap.String("dir", dir), zap.Int("files", len(p.Files)))
			if err := copier.Copy(source, dir, p.Paths()); err != nil {
				return errors.Wrapf(err, "partition %d", p.Index)
			}
			return nil
		})
	}

	return eg.Wait()
}

// Verify checks that every file recorded in m exists under its partition with
// the recorded size and digest. Mismatches are logged; the error counts them.
func (e *Engine) Verify(m *models.Manifest) error {
	var problems int

	for _, p := range m.Partitions {
		for _, f := range p.Files {
			path := filepath.Join(m.Destination, filepath.FromSlash(p.Dir), filepath.FromSlash(f.Path))
			info, err := os.Stat(path)
			if err != nil {
				e.logger.Error("missing payload file", zap.String("path", path), zap.Error(err))
				problems++
				continue
			}
			if info.Size() != f.Size {
				e.logger.Error("payload file size mismatch",
					zap.String("path", path), zap.Int64("want", f.Size), zap.Int64("got", info.Size()))
				problems++
				continue
			}
			if f.Digest == "" {
				continue
			}
			sum, err := utils.CalculateFileHash(path)
			if err != nil {
				return err
			}
			if sum != f.Digest {
				e.logger.Error("payload file digest mismatch", zap.String("path", path))
				problems++
			}
		}
	}

	if problems > 0 {
		return errors.Errorf("payload verification failed: %d problem(s)", problems)
	}
	e.logger.Info("payload verified", zap.Int("partitions", len(m.Partitions)))
	return nil
}
