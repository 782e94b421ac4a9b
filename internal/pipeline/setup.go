package pipeline

import (
	"context"
	"path/filepath"

	"artipart/internal/copier"
	"artipart/internal/logging"
	"artipart/internal/payload"
	"artipart/internal/utils"
	"artipart/pkg/models"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	CorrelationPayloadDir = "payload"
	SuperPMIDir           = "superpmi"
	WorkItemDir           = "workitem"
	AssembliesDir         = "pmiAssembliesDirectory"
)

type SetupOptions struct {
	// SourceDirectory is the repository root; payload and workitem dirs are created under it.
	SourceDirectory string
	CoreRoot        string
	InputDirectory  string
	CollectionName  string
	Arch            string
	MchFileTag      string
	GOOS            string
	MaxSize         int64
	Exclusions      models.ExclusionSet
	Extensions      []string // empty means scan.DefaultExtensions
	Workers         int
	WriteManifest   bool
	Logger          *zap.Logger
}

// Layout is where Setup put things.
type Layout struct {
	CorrelationPayload string
	WorkItem           string
	InputArtifacts     string
	Manifest           *models.Manifest
}

// BuildCorrelationPayload copies the collection scripts and the runtime
// into <dst>/superpmi, keeping only files a worker of goos can use.
func BuildCorrelationPayload(logger *zap.Logger, scriptsDir, coreRoot, dst, goos string) error {
	target := filepath.Join(dst, SuperPMIDir)
	include := copier.ArtifactPredicate(goos)

	for _, src := range []string{scriptsDir, coreRoot} {
		logger.Info("copying correlation payload", zap.String("from", src), zap.String("to", target))
		if err := copier.CopyTree(src, target, include); err != nil {
			return err
		}
	}
	return nil
}

/*
Setup prepares a collection run:
1. correlation payload from the repository scripts and core root
2. partitioned input artifacts under workitem/pmiAssembliesDirectory/<collection>
3. the pipeline variables describing both
*/
func Setup(ctx context.Context, opts SetupOptions) (*Layout, Variables, error) {
	logger := logging.OrNop(opts.Logger)

	for _, dir := range []string{opts.SourceDirectory, opts.CoreRoot, opts.InputDirectory} {
		if !utils.IsDirectory(dir) {
			return nil, nil, errors.Wrapf(payload.ErrInvalidConfig, "%q is not an existing directory", dir)
		}
	}
	if opts.CollectionName == "" {
		return nil, nil, errors.Wrap(payload.ErrInvalidConfig, "collection name is required")
	}

	layout := &Layout{
		CorrelationPayload: filepath.Join(opts.SourceDirectory, CorrelationPayloadDir),
		WorkItem:           filepath.Join(opts.SourceDirectory, WorkItemDir),
	}
	layout.InputArtifacts = filepath.Join(layout.WorkItem, AssembliesDir, opts.CollectionName)

	scriptsDir := filepath.Join(opts.SourceDirectory, "src", "coreclr", "scripts")
	if err := BuildCorrelationPayload(logger, scriptsDir, opts.CoreRoot, layout.CorrelationPayload, opts.GOOS); err != nil {
		return nil, nil, err
	}

	engine := payload.NewEngine(payload.Options{
		Source:        opts.InputDirectory,
		Destination:   layout.InputArtifacts,
		MaxSize:       opts.MaxSize,
		Exclusions:    opts.Exclusions,
		Extensions:    opts.Extensions,
		Workers:       opts.Workers,
		WriteManifest: opts.WriteManifest,
		Logger:        logger,
	})
	m, err := engine.Assemble(ctx)
	if err != nil {
		return nil, nil, err
	}
	layout.Manifest = m

	var vars Variables
	vars.Set("CorrelationPayloadDirectory", layout.CorrelationPayload)
	vars.Set("WorkItemDirectory", layout.WorkItem)
	vars.Set("InputArtifacts", layout.InputArtifacts)
	vars.Set("Python", PythonCommand(opts.GOOS))
	vars.Set("Architecture", opts.Arch)
	vars.Set("Creator", "")
	vars.Set("Queue", HelixQueue(opts.GOOS, opts.Arch))
	vars.Set("HelixSourcePrefix", "official")
	vars.Set("MchFileTag", opts.MchFileTag)

	return layout, vars, nil
}
