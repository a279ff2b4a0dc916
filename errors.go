package chopzip

import (
	"errors"

	"github.com/chopzip/chopzip/internal/errs"
)

// Error classes. Every error returned by Run wraps one of them, except
// cancellation of the job's context, which is returned as the context
// error.
var (
	// ErrConfiguration indicates an unknown or invalid method, level, core
	// count or codec option. Nothing has been touched on disk.
	ErrConfiguration = errs.ErrConfiguration

	// ErrInput indicates a missing input, an extension that names no known
	// method, or an output that already exists. Nothing has been touched
	// on disk.
	ErrInput = errs.ErrInput

	// ErrCapacity indicates the chunk directory or output could not be
	// created.
	ErrCapacity = errs.ErrCapacity

	// ErrCodec indicates a chunk could not be compressed or decompressed.
	ErrCodec = errs.ErrCodec

	// ErrAssembly indicates the chunks could not be joined into one complete
	// artifact, for example a container whose manifest disagrees with its
	// members.
	ErrAssembly = errs.ErrAssembly

	// ErrClosed indicates the engine has been closed.
	ErrClosed = errors.New("chopzip: engine closed")
)

// ChunkError reports the chunk that failed a job and how many attempts
// were made. It matches ErrCodec.
type ChunkError = errs.ChunkError
