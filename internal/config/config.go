// Package config loads chopzip settings. Values are layered: built-in
// defaults, then an optional YAML file, then CHOPZIP_* environment
// variables. Command-line flags are applied on top by the caller.
package config

import (
	"bytes"
	"errors"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/chopzip/chopzip/internal/codec"
	"github.com/chopzip/chopzip/internal/codec/registry"
	"github.com/chopzip/chopzip/internal/errs"
	"github.com/chopzip/chopzip/internal/plan"
	"github.com/chopzip/chopzip/internal/scheduler"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "CHOPZIP"

// Config holds engine and job settings.
type Config struct {
	// Method is the compression method. Empty means the default method
	// when compressing and inference from the extension when decompressing.
	Method string `yaml:"method" envconfig:"METHOD"`
	Level  int    `yaml:"level" envconfig:"LEVEL"`
	Cores  int    `yaml:"cores" envconfig:"CORES"`

	// ChunkSize overrides the size derived from Cores when non-zero.
	ChunkSize Size `yaml:"chunk_size" envconfig:"CHUNK_SIZE"`
	MinChunk  Size `yaml:"min_chunk" envconfig:"MIN_CHUNK"`
	MaxChunk  Size `yaml:"max_chunk" envconfig:"MAX_CHUNK"`

	// ChunkDir holds temporary chunk files. Empty means next to the input.
	ChunkDir    string `yaml:"chunk_dir" envconfig:"CHUNK_DIR"`
	KeepInput   bool   `yaml:"keep_input" envconfig:"KEEP_INPUT"`
	Force       bool   `yaml:"force" envconfig:"FORCE"`
	Materialize bool   `yaml:"materialize" envconfig:"MATERIALIZE"`

	Retries      int           `yaml:"retries" envconfig:"RETRIES"`
	ChunkTimeout time.Duration `yaml:"chunk_timeout" envconfig:"CHUNK_TIMEOUT"`

	// CodecOptions are key=value pairs passed to the codec.
	CodecOptions []string `yaml:"codec_options" envconfig:"CODEC_OPTS"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Level:        codec.DefaultLevel,
		Cores:        runtime.NumCPU(),
		MinChunk:     Size(plan.DefaultMinChunkSize),
		MaxChunk:     Size(plan.DefaultMaxChunkSize),
		Retries:      scheduler.DefaultRetries,
		ChunkTimeout: scheduler.DefaultTimeout,
	}
}

// Load returns the defaults overlaid with the YAML file at path, if path
// is not empty, and then with the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errs.Configuration("reading config file: %w", err)
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return Config{}, errs.Configuration("parsing config file %s: %w", path, err)
		}
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, errs.Configuration("reading environment: %w", err)
	}
	return cfg, cfg.Validate()
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks values that can be checked without a job.
func (c Config) Validate() error {
	if c.Method != "" {
		if _, err := registry.Lookup(c.Method); err != nil {
			return err
		}
	}
	if c.Level < codec.MinLevel || c.Level > codec.MaxLevel {
		return errs.Configuration("level %d out of range [%d, %d]", c.Level, codec.MinLevel, codec.MaxLevel)
	}
	if c.Cores <= 0 {
		return errs.Configuration("cores must be positive, got %d", c.Cores)
	}
	if c.Retries < 0 {
		return errs.Configuration("retries must not be negative, got %d", c.Retries)
	}
	if c.ChunkTimeout < 0 {
		return errs.Configuration("chunk timeout must not be negative, got %s", c.ChunkTimeout)
	}
	if _, err := codec.ParseParams(c.CodecOptions); err != nil {
		return errs.Configuration("%w", err)
	}
	return c.Bounds().Validate()
}

// Bounds returns the chunk size bounds.
func (c Config) Bounds() plan.Bounds {
	return plan.Bounds{Min: int64(c.MinChunk), Max: int64(c.MaxChunk)}
}

// Size is a byte count that accepts human-readable units such as "8MiB"
// or "512kB" in YAML, environment variables and flags.
type Size int64

// ParseSize parses s with humanize.ParseBytes.
func ParseSize(s string) (Size, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, errs.Configuration("invalid size %q: %w", s, err)
	}
	return Size(n), nil
}

func (s Size) String() string {
	return humanize.IBytes(uint64(s))
}

// Set implements pflag.Value.
func (s *Size) Set(v string) error {
	n, err := ParseSize(v)
	if err != nil {
		return err
	}
	*s = n
	return nil
}

// Type implements pflag.Value.
func (s *Size) Type() string {
	return "size"
}

// Decode implements envconfig.Decoder.
func (s *Size) Decode(v string) error {
	return s.Set(v)
}

// UnmarshalYAML accepts either an integer byte count or a string with
// units.
func (s *Size) UnmarshalYAML(node *yaml.Node) error {
	var v string
	if err := node.Decode(&v); err != nil {
		return err
	}
	return s.Set(v)
}
