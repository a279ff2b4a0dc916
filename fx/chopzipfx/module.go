// Package chopzipfx provides an fx module for a configured chopzip engine.
package chopzipfx

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/chopzip/chopzip"
	"github.com/chopzip/chopzip/internal/config"
	"github.com/chopzip/chopzip/internal/stats"
	"github.com/chopzip/chopzip/internal/stats/logger"
	promstats "github.com/chopzip/chopzip/internal/stats/prometheus"
)

// Config holds engine and job defaults. Load it with LoadConfig.
type Config = config.Config

// LoadConfig reads the YAML file at path, if any, and CHOPZIP_*
// environment variables on top of the defaults.
func LoadConfig(path string) (Config, error) {
	return config.Load(path)
}

// Module provides a *chopzip.Engine.
// Requires a Config and a *zap.Logger to be provided. When a
// prometheus.Registerer is provided, metrics are registered with it;
// otherwise they are logged at debug level.
var Module = fx.Module("chopzip",
	fx.Provide(
		newStatsCollector,
		newEngine,
	),
)

// StatsParams holds dependencies for the stats collector.
type StatsParams struct {
	fx.In

	Logger     *zap.Logger
	Registerer prometheus.Registerer `optional:"true"`
}

func newStatsCollector(p StatsParams) stats.Collector {
	if p.Registerer != nil {
		return promstats.New(p.Registerer, promstats.WithLogger(p.Logger.Named("stats")))
	}
	return logger.New(p.Logger.Named("chopzip"))
}

// Params holds dependencies for creating the engine.
type Params struct {
	fx.In

	Config    Config
	Logger    *zap.Logger
	Collector stats.Collector
	Lifecycle fx.Lifecycle
	Options   []chopzip.Option `optional:"true"`
}

// Result holds the provided engine.
type Result struct {
	fx.Out

	Engine *chopzip.Engine
}

func newEngine(p Params) (Result, error) {
	if err := p.Config.Validate(); err != nil {
		return Result{}, err
	}

	opts := append(EngineOptions(p.Config),
		chopzip.WithStats(p.Collector),
		chopzip.WithLogger(p.Logger.Named("chopzip")),
	)
	engine, err := chopzip.New(append(opts, p.Options...)...)
	if err != nil {
		return Result{}, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return engine.Close()
		},
	})

	return Result{Engine: engine}, nil
}

// EngineOptions translates the engine-wide settings of cfg.
func EngineOptions(cfg Config) []chopzip.Option {
	return []chopzip.Option{
		chopzip.WithChunkBounds(int64(cfg.MinChunk), int64(cfg.MaxChunk)),
		chopzip.WithRetries(cfg.Retries),
		chopzip.WithChunkTimeout(cfg.ChunkTimeout),
		chopzip.WithMaterialize(cfg.Materialize),
	}
}

// NewJob builds a job for input from the per-job settings of cfg.
func NewJob(cfg Config, input string, mode chopzip.Mode) chopzip.Job {
	return chopzip.Job{
		Input:     input,
		Mode:      mode,
		Method:    cfg.Method,
		Level:     cfg.Level,
		Cores:     cfg.Cores,
		ChunkSize: int64(cfg.ChunkSize),
		ChunkDir:  cfg.ChunkDir,
		KeepInput: cfg.KeepInput,
		CodecArgs: cfg.CodecOptions,
		Force:     cfg.Force,
	}
}
