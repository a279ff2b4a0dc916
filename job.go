package chopzip

import (
	"fmt"
	"time"
)

// Mode selects compression or decompression.
type Mode int

const (
	Compress Mode = iota
	Decompress
)

func (m Mode) String() string {
	switch m {
	case Compress:
		return "compress"
	case Decompress:
		return "decompress"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Job describes the processing of one file.
type Job struct {
	// Input is the file to process.
	Input string
	Mode  Mode
	// Method names the codec. When empty, compression uses DefaultMethod
	// and decompression infers the method from the input's extension.
	Method string
	// Level is the compression level from 1 to 9. Zero means 3.
	Level int
	// Cores bounds the number of chunks processed at once. It must be
	// positive.
	Cores int
	// ChunkSize, when positive, is used as the chunk size verbatim instead
	// of deriving it from Cores.
	ChunkSize int64
	// ChunkDir holds temporary chunk files. Empty means the input's
	// directory. It is created if missing and removed afterwards only if
	// this job created it.
	ChunkDir string
	// KeepInput keeps the input file after success.
	KeepInput bool
	// CodecArgs are key=value codec options.
	CodecArgs []string
	// Force overwrites an existing output.
	Force bool
}

// Result describes a finished job.
type Result struct {
	// Path is the artifact written.
	Path   string
	Method string
	// Container reports whether the artifact is, or was, a container of
	// separately compressed members rather than one concatenated stream.
	Container bool
	Chunks    int
	BytesIn   int64
	BytesOut  int64
	Elapsed   time.Duration
}
