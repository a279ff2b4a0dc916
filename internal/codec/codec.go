// Package codec provides compression and decompression for chunk data.
package codec

import (
	"fmt"
	"io"
	"slices"
	"strings"
)

// Codec provides compression and decompression functionality.
// A Codec is safe for concurrent use; every Reader and Writer it returns is not.
type Codec interface {
	// Reader wraps r to decompress data read from it.
	Reader(r io.Reader) (io.ReadCloser, error)
	// Writer wraps w to compress data written to it.
	Writer(w io.Writer) (io.WriteCloser, error)
	// Extension returns the file extension without dot (e.g., "xz", "gz").
	Extension() string
}

// Level bounds accepted by every codec.
const (
	MinLevel     = 1
	MaxLevel     = 9
	DefaultLevel = 3
)

// Options configures a codec instance.
type Options struct {
	// Level is the compression level in [MinLevel, MaxLevel].
	Level int
	// Params holds codec specific key=value arguments.
	Params map[string]string
}

// DefaultOptions returns options with the default level and no params.
func DefaultOptions() Options {
	return Options{Level: DefaultLevel}
}

// Validate checks the level and rejects params outside allowed.
func (o Options) Validate(allowed ...string) error {
	if o.Level < MinLevel || o.Level > MaxLevel {
		return fmt.Errorf("level %d out of range [%d, %d]", o.Level, MinLevel, MaxLevel)
	}
	for key := range o.Params {
		if !slices.Contains(allowed, key) {
			if len(allowed) == 0 {
				return fmt.Errorf("unknown codec option %q (codec takes no options)", key)
			}
			return fmt.Errorf("unknown codec option %q (allowed: %s)", key, strings.Join(allowed, ", "))
		}
	}
	return nil
}

// Param returns the value of a codec param and whether it was set.
func (o Options) Param(key string) (string, bool) {
	v, ok := o.Params[key]
	return v, ok
}

// ParseParams turns key=value arguments into a params map.
func ParseParams(args []string) (map[string]string, error) {
	if len(args) == 0 {
		return nil, nil
	}
	params := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("codec option %q: want key=value", arg)
		}
		if _, dup := params[key]; dup {
			return nil, fmt.Errorf("codec option %q given more than once", key)
		}
		params[key] = strings.TrimSpace(value)
	}
	return params, nil
}
