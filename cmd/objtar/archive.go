package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"gocloud.dev/blob"

	"github.com/ligustah/objtar/internal/config"
	"github.com/ligustah/objtar/internal/logging"
	"github.com/ligustah/objtar/internal/progress"
	"github.com/ligustah/objtar/pkg/tarstream"
)

func archiveCommand(std streams) *cli.Command {
	return &cli.Command{
		Name:  "archive",
		Usage: "Archive every object under a prefix into TAR files",
		Description: `Stream the objects under a prefix into a TAR archive written to a local
file, stdout ("-o -") or another bucket. With --chunked the output is split
into numbered archives of at most --max-size uncompressed bytes each; the
output name must then contain {} for the chunk number.

Settings are read from --config, then OBJTAR_* environment variables, then
flags, each overriding the previous.`,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "YAML configuration file"},
			&cli.StringFlag{Name: "bucket", Aliases: []string{"b"}, Usage: "Source bucket URL (required)"},
			&cli.StringFlag{Name: "prefix", Aliases: []string{"p"}, Usage: "Key prefix to archive"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output path, key pattern or - for stdout (required)"},
			&cli.StringFlag{Name: "output-bucket", Usage: "Write archives to this bucket URL instead of local files"},
			&cli.BoolFlag{Name: "keep-prefix", Usage: "Keep the prefix in archive paths"},
			&cli.StringFlag{Name: "compression", Aliases: []string{"c"}, Usage: "none, gz, bz2, xz, zst or lz4"},
			&cli.BoolFlag{Name: "chunked", Usage: "Split output into size-limited archives"},
			&cli.StringFlag{Name: "max-size", Usage: "Maximum uncompressed size per archive, e.g. 20GiB"},
			&cli.StringFlag{Name: "page-size", Usage: "Objects requested per listing page"},
			&cli.StringFlag{Name: "buffer-size", Usage: "Copy buffer size, e.g. 4MiB"},
			&cli.StringFlag{Name: "manifest", Usage: "Write the run manifest to this path (or key with --output-bucket)"},
			&cli.BoolFlag{Name: "progress", Usage: "Show progress on stderr"},
			&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging"},
			&cli.StringFlag{Name: "log-file", Usage: "Write logs to this file instead of stderr"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return exitWith(ExitInvalidArgs, err)
			}
			if err := cfg.Validate(); err != nil {
				return exitWith(ExitInvalidArgs, err)
			}

			logger, err := logging.New(cmd.String("log-file"), cfg.Debug)
			if err != nil {
				return exitWith(ExitGeneralError, fmt.Errorf("create logger: %w", err))
			}
			defer logger.Sync()

			return runArchive(ctx, cfg, logger, std)
		},
	}
}

// loadConfig layers the config file, the environment and the flags.
func loadConfig(cmd *cli.Command) (config.Config, error) {
	cfg := config.Default()
	if path := cmd.String("config"); path != "" {
		var err error
		if cfg, err = config.LoadFromFile(path); err != nil {
			return config.Config{}, err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return config.Config{}, err
	}

	override := config.Config{
		Bucket:       cmd.String("bucket"),
		Prefix:       cmd.String("prefix"),
		Output:       cmd.String("output"),
		OutputBucket: cmd.String("output-bucket"),
		KeepPrefix:   cmd.Bool("keep-prefix"),
		Compression:  cmd.String("compression"),
		Chunked:      cmd.Bool("chunked"),
		Manifest:     cmd.String("manifest"),
		Progress:     cmd.Bool("progress"),
		Debug:        cmd.Bool("debug"),
	}
	if v := cmd.String("max-size"); v != "" {
		size, err := config.ParseSize(v)
		if err != nil {
			return config.Config{}, fmt.Errorf("invalid --max-size: %w", err)
		}
		override.MaxSize = size
	}
	if v := cmd.String("buffer-size"); v != "" {
		size, err := config.ParseSize(v)
		if err != nil {
			return config.Config{}, fmt.Errorf("invalid --buffer-size: %w", err)
		}
		override.BufferSize = size
	}
	if v := cmd.String("page-size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return config.Config{}, fmt.Errorf("invalid --page-size: %w", err)
		}
		override.PageSize = n
	}

	return cfg.Merge(override), nil
}

func runArchive(ctx context.Context, cfg config.Config, logger *zap.Logger, std streams) error {
	compression, err := tarstream.ParseCompression(cfg.Compression)
	if err != nil {
		return exitWith(ExitInvalidArgs, err)
	}

	src, err := blob.OpenBucket(ctx, cfg.Bucket)
	if err != nil {
		return exitWith(ExitSourceNotAccess, fmt.Errorf("open bucket: %w", err))
	}
	defer src.Close()

	opts := []tarstream.Option{
		tarstream.WithStripPrefix(!cfg.KeepPrefix),
		tarstream.WithCompression(compression),
		tarstream.WithSizeCeiling(cfg.MaxSize),
		tarstream.WithBufferSize(int(cfg.BufferSize)),
		tarstream.WithLogger(logger),
	}
	// stopProgress prints the reporter's final lines; call it before any
	// summary output.
	stopProgress := func() {}
	if cfg.Progress {
		reporter := progress.NewReporter(progress.Options{
			Source: cfg.Bucket + " " + cfg.Prefix,
			Output: std.err,
		})
		reporter.Start()
		defer reporter.Stop()
		stopProgress = reporter.Stop
		opts = append(opts, tarstream.WithObserver(reporter))
	}
	archiver := tarstream.New(tarstream.NewBucketSource(src, cfg.PageSize), opts...)

	logger.Info("archiving",
		zap.String("bucket", cfg.Bucket),
		zap.String("prefix", cfg.Prefix),
		zap.String("output", cfg.Output),
		zap.String("compression", compression.String()),
		zap.Bool("chunked", cfg.Chunked),
	)

	if cfg.Output == "-" {
		count, err := archiver.StreamTo(ctx, cfg.Prefix, std.out)
		stopProgress()
		if err != nil {
			return archiveError(err)
		}
		fmt.Fprintf(std.err, "[objtar] Archived %d objects to stdout\n", count)
		return nil
	}

	var (
		sinks     tarstream.Sinks
		outBucket *blob.Bucket
	)
	if cfg.OutputBucket != "" {
		outBucket, err = blob.OpenBucket(ctx, cfg.OutputBucket)
		if err != nil {
			return exitWith(ExitStorageError, fmt.Errorf("open output bucket: %w", err))
		}
		defer outBucket.Close()
		sinks = tarstream.BucketSinks(outBucket, cfg.Output)
	} else {
		sinks = tarstream.FileSinks(cfg.Output)
	}

	var m *tarstream.Manifest
	if cfg.Chunked {
		m, err = archiver.Archive(ctx, cfg.Prefix, sinks)
	} else {
		m, err = archiver.ArchiveOne(ctx, cfg.Prefix, sinks)
	}
	stopProgress()
	if err != nil {
		if m != nil && len(m.Chunks) > 0 {
			fmt.Fprintf(std.err, "[objtar] %d archive(s) completed before the failure\n", len(m.Chunks))
		}
		return archiveError(err)
	}

	if cfg.Manifest != "" {
		if err := saveManifest(ctx, outBucket, cfg.Manifest, m); err != nil {
			return exitWith(ExitStorageError, err)
		}
	}

	fmt.Fprintf(std.err, "[objtar] Archived %d objects into %d archive(s), %d skipped\n",
		m.Entries(), len(m.Chunks), len(m.Skipped))
	for _, c := range m.Chunks {
		fmt.Fprintf(std.err, "[objtar]   %s: %d entries, %s\n", c.Name, c.Entries, progress.FormatBytes(c.Size))
	}
	return nil
}

// saveManifest stores m in bucket, or in a local file when bucket is nil.
func saveManifest(ctx context.Context, bucket *blob.Bucket, name string, m *tarstream.Manifest) error {
	if bucket != nil {
		return tarstream.WriteManifest(ctx, bucket, name, m)
	}

	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("create manifest: %w", err)
	}
	if err := tarstream.EncodeManifest(f, m); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// archiveError maps an archiving failure to an exit code.
func archiveError(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return exitWith(ExitInterrupted, err)
	case errors.Is(err, tarstream.ErrListing):
		return exitWith(ExitSourceNotAccess, err)
	case errors.Is(err, tarstream.ErrOutput), errors.Is(err, tarstream.ErrCompressionFinalize):
		return exitWith(ExitStorageError, err)
	default:
		return exitWith(ExitGeneralError, err)
	}
}
