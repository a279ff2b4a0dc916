package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/chopzip/chopzip"
	"github.com/chopzip/chopzip/fx/chopzipfx"
	"github.com/chopzip/chopzip/internal/config"
	"github.com/chopzip/chopzip/internal/progress"
	promstats "github.com/chopzip/chopzip/internal/stats/prometheus"
	"github.com/chopzip/chopzip/internal/timing"
)

var (
	// Global flags.
	configFile  string
	verbose     bool
	metricsFile string
	flagValues  = config.Default()

	// Root-only flags.
	decompress bool
	showTiming bool
)

var rootCmd = &cobra.Command{
	Use:   "chopzip [flags] FILE...",
	Short: "Compress and decompress large files in parallel chunks",
	Long: `chopzip splits each file into chunks, compresses them on every core
and joins the results, in order, into one artifact.

xz, gzip, zstd, lzip and none produce ordinary compressed files. lz4 and lzma
produce a tar container (.lz4.tar, .lzma.tar) holding one member per chunk
and a manifest.

Settings are read from built-in defaults, then the --config YAML file, then
CHOPZIP_* environment variables, then flags.

Examples:
  # Compress with xz on all cores, removing the original
  chopzip big.log

  # Compress with zstd at level 9, keeping the original
  chopzip --method zstd --level 9 --keep-input big.log

  # Decompress, inferring the method from the extension
  chopzip --decompress big.log.zst`,
	Args:          cobra.MinimumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: false,
	RunE:          runChop,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "YAML configuration file")
	pf.BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	pf.StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")
	pf.StringVarP(&flagValues.Method, "method", "m", "", "compression method: "+strings.Join(chopzip.Methods(), ", "))
	pf.IntVarP(&flagValues.Cores, "cores", "n", flagValues.Cores, "maximum number of chunks processed at once")

	f := rootCmd.Flags()
	f.BoolVarP(&decompress, "decompress", "d", false, "decompress instead of compress")
	f.BoolVar(&showTiming, "timing", false, "print a timing summary")
	f.IntVarP(&flagValues.Level, "level", "l", flagValues.Level, "compression level (1-9)")
	f.StringVar(&flagValues.ChunkDir, "chunk-dir", "", "directory for temporary chunks (default: next to the input)")
	f.BoolVarP(&flagValues.KeepInput, "keep-input", "k", false, "keep the input file after success")
	f.BoolVarP(&flagValues.Force, "force", "f", false, "overwrite existing output")
	f.BoolVar(&flagValues.Materialize, "materialize", false, "write chunks to files before compressing them")
	f.Var(&flagValues.ChunkSize, "chunk-size", "chunk size, overriding --cores (e.g. 64MiB)")
	f.Var(&flagValues.MinChunk, "min-chunk", "lower bound for derived chunk sizes")
	f.Var(&flagValues.MaxChunk, "max-chunk", "upper bound for derived chunk sizes")
	f.StringArrayVar(&flagValues.CodecOptions, "codec-opt", nil, "codec option key=value (repeatable)")
	f.IntVar(&flagValues.Retries, "retries", flagValues.Retries, "retries per failed chunk")
	f.DurationVar(&flagValues.ChunkTimeout, "chunk-timeout", flagValues.ChunkTimeout, "time limit per chunk attempt (0 disables)")
}

// loadConfig layers changed flags over the file and environment settings.
func loadConfig(flags *pflag.FlagSet) (config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return config.Config{}, err
	}

	set := map[string]func(){
		"method":        func() { cfg.Method = flagValues.Method },
		"cores":         func() { cfg.Cores = flagValues.Cores },
		"level":         func() { cfg.Level = flagValues.Level },
		"chunk-dir":     func() { cfg.ChunkDir = flagValues.ChunkDir },
		"keep-input":    func() { cfg.KeepInput = flagValues.KeepInput },
		"force":         func() { cfg.Force = flagValues.Force },
		"materialize":   func() { cfg.Materialize = flagValues.Materialize },
		"chunk-size":    func() { cfg.ChunkSize = flagValues.ChunkSize },
		"min-chunk":     func() { cfg.MinChunk = flagValues.MinChunk },
		"max-chunk":     func() { cfg.MaxChunk = flagValues.MaxChunk },
		"codec-opt":     func() { cfg.CodecOptions = flagValues.CodecOptions },
		"retries":       func() { cfg.Retries = flagValues.Retries },
		"chunk-timeout": func() { cfg.ChunkTimeout = flagValues.ChunkTimeout },
	}
	flags.Visit(func(f *pflag.Flag) {
		if apply, ok := set[f.Name]; ok {
			apply()
		}
	})
	return cfg, cfg.Validate()
}

func newLogger() (*zap.Logger, error) {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.DisableStacktrace = true
	return cfg.Build()
}

// setup builds an engine from cfg. The returned finish func writes the
// metrics file, if requested, and flushes the logger.
func setup(cfg config.Config, extra ...chopzip.Option) (*chopzip.Engine, func(), error) {
	logger, err := newLogger()
	if err != nil {
		return nil, nil, fmt.Errorf("creating logger: %w", err)
	}

	opts := append(chopzipfx.EngineOptions(cfg), chopzip.WithLogger(logger))
	registry := prometheus.NewRegistry()
	if metricsFile != "" {
		opts = append(opts, chopzip.WithStats(promstats.New(registry, promstats.WithLogger(logger))))
	}
	if verbose {
		opts = append(opts, chopzip.WithProgress(os.Stderr, progress.DefaultInterval))
	}

	engine, err := chopzip.New(append(opts, extra...)...)
	if err != nil {
		return nil, nil, err
	}

	finish := func() {
		engine.Close()
		if metricsFile != "" {
			if err := prometheus.WriteToTextfile(metricsFile, registry); err != nil {
				logger.Warn("writing metrics file", zap.String("path", metricsFile), zap.Error(err))
			}
		}
		_ = logger.Sync()
	}
	return engine, finish, nil
}

func runChop(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}

	var extra []chopzip.Option
	timer := timing.New()
	if showTiming {
		extra = append(extra, chopzip.WithTimer(timer))
	}

	engine, finish, err := setup(cfg, extra...)
	if err != nil {
		return err
	}
	defer finish()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	mode := chopzip.Compress
	if decompress {
		mode = chopzip.Decompress
	}

	for _, path := range args {
		res, err := engine.Run(ctx, chopzipfx.NewJob(cfg, path, mode))
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if verbose {
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%d chunks, %s)\n",
				path, res.Path, res.Chunks, res.Elapsed.Round(time.Millisecond))
		}
	}

	if showTiming {
		return timer.WriteSummary(cmd.OutOrStdout())
	}
	return nil
}
