package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"artipart/internal/config"
	"artipart/internal/logging"
	"artipart/internal/manifest"
	"artipart/internal/payload"
	"artipart/internal/pipeline"
	"artipart/internal/utils"
	"artipart/internal/watcher"
	"artipart/pkg/models"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath   string
	logLevel     string
	sourcePath   string
	destPath     string
	maxSize      string
	excludeDirs  []string
	excludeFiles []string
	extensions   []string
	workers      int
	withManifest bool

	repoRoot       string
	coreRoot       string
	arch           string
	collectionName string
	mchFileTag     string

	settle time.Duration
)

func main() {
	var rootCmd = &cobra.Command{
		Use:           "artipart",
		Short:         "Partition build artifacts into size-bounded worker payloads",
		Long:          "Scans a tree of binary artifacts, packs them first-fit into partitions below a size bound and copies each partition to <dest>/<i>/binaries",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")

	partitionCmd := &cobra.Command{
		Use:   "partition",
		Short: "Partition a directory of artifacts",
		RunE:  runPartition,
	}
	addPartitionFlags(partitionCmd)

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-assemble the partitions whenever the source tree changes",
		RunE:  runWatch,
	}
	addPartitionFlags(watchCmd)
	watchCmd.Flags().DurationVar(&settle, "settle", 2*time.Second, "Quiet period after the last change before re-assembling")

	setupCmd := &cobra.Command{
		Use:   "setup",
		Short: "Prepare the correlation payload, partitioned work items and pipeline variables",
		RunE:  runSetup,
	}
	setupCmd.Flags().StringVar(&repoRoot, "source-directory", "", "Repository root")
	setupCmd.Flags().StringVar(&coreRoot, "core-root", "", "Core root directory")
	setupCmd.Flags().StringVar(&sourcePath, "input-directory", "", "Directory of assemblies to partition")
	setupCmd.Flags().StringVar(&arch, "arch", runtime.GOARCH, "Target architecture")
	setupCmd.Flags().StringVar(&collectionName, "collection-name", "", "Name of the collection")
	setupCmd.Flags().StringVar(&mchFileTag, "mch-file-tag", "", "Tag used for collection files")
	setupCmd.Flags().StringVar(&maxSize, "max-size", "", "Max partition size (bare number = MB)")
	setupCmd.Flags().StringSliceVar(&excludeDirs, "exclude-dir", nil, "Directory name to skip (repeatable)")
	setupCmd.Flags().StringSliceVar(&excludeFiles, "exclude-file", nil, "Additional file name to skip (repeatable)")
	setupCmd.Flags().StringSliceVar(&extensions, "ext", nil, "Artifact extension to collect (repeatable, default .dll,.exe)")
	setupCmd.Flags().IntVar(&workers, "workers", 1, "Partitions copied concurrently")
	setupCmd.Flags().BoolVar(&withManifest, "manifest", false, "Write manifest.json into the work item directory")

	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Check a payload against its manifest",
		RunE:  runVerify,
	}
	verifyCmd.Flags().StringVar(&destPath, "dest", "", "Payload directory containing manifest.json")

	rootCmd.AddCommand(partitionCmd, watchCmd, setupCmd, verifyCmd)

	if err := rootCmd.Execute(); err != nil {
		if logLevel == "debug" {
			fmt.Fprintf(os.Stderr, "Error: %+v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func addPartitionFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&sourcePath, "source", "", "Directory to scan for artifacts")
	cmd.Flags().StringVar(&destPath, "dest", "", "Directory receiving <i>/binaries partitions")
	cmd.Flags().StringVar(&maxSize, "max-size", "", "Max partition size (bare number = MB, or 150MB, 2GB)")
	cmd.Flags().StringSliceVar(&excludeDirs, "exclude-dir", nil, "Directory name to skip (repeatable)")
	cmd.Flags().StringSliceVar(&excludeFiles, "exclude-file", nil, "File name to skip (repeatable)")
	cmd.Flags().StringSliceVar(&extensions, "ext", nil, "Artifact extension to collect (repeatable, default .dll,.exe)")
	cmd.Flags().IntVar(&workers, "workers", 1, "Partitions copied concurrently")
	cmd.Flags().BoolVar(&withManifest, "manifest", false, "Write manifest.json into the destination")
}

// loadConfig layers explicitly set flags over the config file over the defaults.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.LoadFile(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("source") || flags.Changed("input-directory") {
		cfg.Source = sourcePath
	}
	if flags.Changed("dest") {
		cfg.Destination = destPath
	}
	if flags.Changed("max-size") {
		cfg.MaxSize = maxSize
	}
	if flags.Changed("exclude-dir") {
		cfg.ExcludeDirs = excludeDirs
	}
	if flags.Changed("exclude-file") {
		cfg.ExcludeFiles = excludeFiles
	}
	if flags.Changed("ext") {
		cfg.Extensions = extensions
	}
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	if flags.Changed("manifest") {
		cfg.Manifest = withManifest
	}
	if cmd.Flags().Changed("log-level") || cfg.LogLevel == "" {
		cfg.LogLevel = logLevel
	}
	return cfg, nil
}

func newEngine(cfg *config.Config, logger *zap.Logger) (*payload.Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(payload.ErrInvalidConfig, "%v", err)
	}
	size, err := cfg.MaxSizeBytes()
	if err != nil {
		return nil, err
	}

	return payload.NewEngine(payload.Options{
		Source:        cfg.Source,
		Destination:   cfg.Destination,
		MaxSize:       size,
		Exclusions:    models.NewExclusionSet(cfg.ExcludeDirs, cfg.ExcludeFiles),
		Extensions:    cfg.Extensions,
		Workers:       cfg.Workers,
		WriteManifest: cfg.Manifest,
		Logger:        logger,
	}), nil
}

func runPartition(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	engine, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}

	m, err := engine.Assemble(cmd.Context())
	if err != nil {
		return errors.Wrap(err, "assembling payload")
	}
	printSummary(m)
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	engine, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}

	source, err := filepath.Abs(cfg.Source)
	if err != nil {
		return errors.Wrapf(err, "resolving %s", cfg.Source)
	}
	dest, err := filepath.Abs(cfg.Destination)
	if err != nil {
		return errors.Wrapf(err, "resolving %s", cfg.Destination)
	}
	if dest == source || strings.HasPrefix(source, dest+string(filepath.Separator)) {
		return errors.Wrapf(payload.ErrInvalidConfig, "destination %s would clear the source tree", dest)
	}
	excl := models.NewExclusionSet(cfg.ExcludeDirs, cfg.ExcludeFiles)

	w, err := watcher.NewWatcher(
		watcher.WithLogger(logger),
		watcher.WithSkip(func(path, name string) bool {
			// Writing the payload inside the source tree must not retrigger a build.
			return excl.ExcludesDir(name) || path == dest || strings.HasPrefix(path, dest+string(filepath.Separator))
		}),
	)
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.AddWatch(source); err != nil {
		return errors.Wrap(err, "watching source")
	}
	w.Start()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	rebuild := func() {
		if err := utils.ResetDirectory(dest); err != nil {
			logger.Error("clearing destination", zap.Error(err))
			return
		}
		m, err := engine.Assemble(ctx)
		if err != nil {
			logger.Error("assembly failed", zap.Error(err))
			return
		}
		printSummary(m)
	}

	logger.Info("performing initial assembly")
	rebuild()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	timer := time.NewTimer(settle)
	timer.Stop()
	defer timer.Stop()

	logger.Info("watching for changes, press Ctrl+C to stop", zap.String("source", source))
	for {
		select {
		case <-sigChan:
			logger.Info("shutdown signal received")
			return nil

		case event := <-w.Changes():
			logger.Debug("source changed", zap.String("path", event.Path), zap.String("op", event.Operation))
			timer.Reset(settle)

		case err := <-w.Errors():
			logger.Warn("watcher error", zap.Error(err))

		case <-timer.C:
			logger.Info("source settled, re-assembling")
			rebuild()
		}
	}
}

func runSetup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.MaxSize == "" {
		return errors.Wrap(payload.ErrInvalidConfig, "--max-size is required")
	}
	size, err := cfg.MaxSizeBytes()
	if err != nil {
		return errors.Wrapf(payload.ErrInvalidConfig, "%v", err)
	}

	files := append([]string{}, pipeline.DefaultExcludedFiles...)
	files = append(files, cfg.ExcludeFiles...)

	_, vars, err := pipeline.Setup(cmd.Context(), pipeline.SetupOptions{
		SourceDirectory: repoRoot,
		CoreRoot:        coreRoot,
		InputDirectory:  cfg.Source,
		CollectionName:  collectionName,
		Arch:            arch,
		MchFileTag:      mchFileTag,
		GOOS:            runtime.GOOS,
		MaxSize:         size,
		Exclusions:      models.NewExclusionSet(cfg.ExcludeDirs, files),
		Extensions:      cfg.Extensions,
		Workers:         cfg.Workers,
		WriteManifest:   cfg.Manifest,
		Logger:          logger,
	})
	if err != nil {
		return errors.Wrap(err, "setup failed")
	}

	fmt.Println("Setting pipeline variables:")
	return vars.Emit(os.Stdout)
}

func runVerify(cmd *cobra.Command, args []string) error {
	if destPath == "" {
		return errors.Wrap(payload.ErrInvalidConfig, "--dest is required")
	}
	logger, err := logging.New(logLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	m, err := manifest.NewManager(destPath).Load()
	if err != nil {
		return err
	}
	// The payload may have been moved since it was written.
	abs, err := filepath.Abs(destPath)
	if err != nil {
		return errors.Wrapf(err, "resolving %s", destPath)
	}
	m.Destination = abs

	if err := payload.NewEngine(payload.Options{Logger: logger}).Verify(m); err != nil {
		return err
	}
	fmt.Printf("Payload verified: %d partitions, %s\n", len(m.Partitions), humanize.Bytes(uint64(m.TotalSize)))
	return nil
}

func printSummary(m *models.Manifest) {
	fmt.Printf("Total %d partitions with %d bytes (%s).\n",
		len(m.Partitions), m.TotalSize, humanize.Bytes(uint64(m.TotalSize)))
	if len(m.Dropped) > 0 {
		fmt.Fprintf(os.Stderr, "Warning: %d file(s) at or above the max size were not partitioned.\n", len(m.Dropped))
	}
}
