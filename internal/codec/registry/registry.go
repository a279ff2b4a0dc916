// Package registry maps method names to codec specs.
//
// The set of codecs is closed: each Kind carries a fixed capability set
// (extension, concatenability, container form, constructor). Adding a codec
// means adding a Kind and its row in the table below.
package registry

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chopzip/chopzip/internal/codec"
	"github.com/chopzip/chopzip/internal/codec/gzipcodec"
	"github.com/chopzip/chopzip/internal/codec/lz4codec"
	"github.com/chopzip/chopzip/internal/codec/lzipcodec"
	"github.com/chopzip/chopzip/internal/codec/lzmacodec"
	"github.com/chopzip/chopzip/internal/codec/noopcodec"
	"github.com/chopzip/chopzip/internal/codec/xzcodec"
	"github.com/chopzip/chopzip/internal/codec/zstdcodec"
	"github.com/chopzip/chopzip/internal/errs"
)

// Kind identifies a codec.
type Kind uint8

const (
	KindXZ Kind = iota + 1
	KindGzip
	KindZstd
	KindLZ4
	KindLZMA
	KindNone
	KindLzip
)

// DefaultMethod is used when compressing without an explicit method.
const DefaultMethod = "xz"

// Spec describes a codec's static properties. Specs are read-only.
type Spec struct {
	Kind Kind
	// Name is the method name used on the command line.
	Name string
	// Extension is the extension of a single compressed stream, without dot.
	Extension string
	// Concatenable reports whether independently compressed chunks can be
	// byte-concatenated into one valid stream.
	Concatenable bool
	// ContainerExtension is the artifact extension used when chunks are
	// bundled in a container. Empty for concatenable codecs.
	ContainerExtension string

	newCodec func(codec.Options) (codec.Codec, error)
}

// ArtifactExtension returns the extension of the final compressed artifact.
func (s Spec) ArtifactExtension() string {
	if s.Concatenable {
		return s.Extension
	}
	return s.ContainerExtension
}

// New builds a codec instance for this spec. Invalid options are
// reported as configuration errors.
func (s Spec) New(opts codec.Options) (codec.Codec, error) {
	c, err := s.newCodec(opts)
	if err != nil {
		return nil, errs.Configuration("%w", err)
	}
	return c, nil
}

// String returns the method name.
func (k Kind) String() string {
	if s, ok := specs[k]; ok {
		return s.Name
	}
	return fmt.Sprintf("unknown(%d)", uint8(k))
}

// Spec returns the spec of k.
func (k Kind) Spec() (Spec, bool) {
	s, ok := specs[k]
	return s, ok
}

var specs = map[Kind]Spec{
	KindXZ: {
		Kind: KindXZ, Name: "xz", Extension: "xz", Concatenable: true,
		newCodec: func(o codec.Options) (codec.Codec, error) { return xzcodec.New(o) },
	},
	KindGzip: {
		Kind: KindGzip, Name: "gzip", Extension: "gz", Concatenable: true,
		newCodec: func(o codec.Options) (codec.Codec, error) { return gzipcodec.New(o) },
	},
	KindZstd: {
		Kind: KindZstd, Name: "zstd", Extension: "zst", Concatenable: true,
		newCodec: func(o codec.Options) (codec.Codec, error) { return zstdcodec.New(o) },
	},
	KindLZ4: {
		Kind: KindLZ4, Name: "lz4", Extension: "lz4", ContainerExtension: "lz4.tar",
		newCodec: func(o codec.Options) (codec.Codec, error) { return lz4codec.New(o) },
	},
	KindLZMA: {
		Kind: KindLZMA, Name: "lzma", Extension: "lzma", ContainerExtension: "lzma.tar",
		newCodec: func(o codec.Options) (codec.Codec, error) { return lzmacodec.New(o) },
	},
	KindLzip: {
		Kind: KindLzip, Name: "lzip", Extension: "lz", Concatenable: true,
		newCodec: func(o codec.Options) (codec.Codec, error) { return lzipcodec.New(o) },
	},
	KindNone: {
		Kind: KindNone, Name: "none", Extension: "raw", Concatenable: true,
		newCodec: func(o codec.Options) (codec.Codec, error) { return noopcodec.New(o) },
	},
}

// Methods returns the known method names, sorted.
func Methods() []string {
	names := make([]string, 0, len(specs))
	for _, s := range specs {
		names = append(names, s.Name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the spec for a method name.
func Lookup(method string) (Spec, error) {
	for _, s := range specs {
		if s.Name == method {
			return s, nil
		}
	}
	return Spec{}, errs.Configuration("unknown method %q (known: %s)", method, strings.Join(Methods(), ", "))
}

// Match is the result of extension inference.
type Match struct {
	Spec Spec
	// Container reports whether the name matched the container extension.
	Container bool
	// Suffix is the matched suffix including the leading dot.
	Suffix string
}

// Stem returns name with the matched suffix removed.
func (m Match) Stem(name string) string {
	return strings.TrimSuffix(name, m.Suffix)
}

// Infer picks the codec whose extension or container extension is the
// longest suffix of name.
func Infer(name string) (Match, error) {
	base := filepath.Base(name)
	var best Match
	consider := func(s Spec, ext string, container bool) {
		if ext == "" {
			return
		}
		suffix := "." + ext
		if strings.HasSuffix(base, suffix) && len(suffix) > len(best.Suffix) {
			best = Match{Spec: s, Container: container, Suffix: suffix}
		}
	}
	for _, s := range specs {
		consider(s, s.Extension, false)
		consider(s, s.ContainerExtension, true)
	}
	if best.Suffix == "" {
		return Match{}, errs.Input("cannot infer compression method of %q from its extension", name)
	}
	return best, nil
}

// Match reports how name ends in one of s's extensions, preferring the
// container extension.
func (s Spec) Match(name string) (Match, bool) {
	base := filepath.Base(name)
	for _, c := range []struct {
		ext       string
		container bool
	}{{s.ContainerExtension, true}, {s.Extension, false}} {
		if c.ext != "" && strings.HasSuffix(base, "."+c.ext) {
			return Match{Spec: s, Container: c.container, Suffix: "." + c.ext}, true
		}
	}
	return Match{}, false
}
