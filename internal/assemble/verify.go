package assemble

import (
	"io"

	"github.com/chopzip/chopzip/internal/errs"
)

// Verifier passes decompressed chunk bytes through to an underlying
// writer while checking them against the manifest entry.
type Verifier struct {
	w      io.Writer
	info   ChunkInfo
	hasher *Hasher
	n      int64
}

// NewVerifier returns a Verifier for info writing to w. A nil w discards.
func NewVerifier(w io.Writer, info ChunkInfo) *Verifier {
	if w == nil {
		w = io.Discard
	}
	return &Verifier{w: w, info: info, hasher: NewHasher()}
}

func (v *Verifier) Write(p []byte) (int, error) {
	n, err := v.w.Write(p)
	v.hasher.Write(p[:n])
	v.n += int64(n)
	return n, err
}

// Check reports an errs.ErrCodec error if the bytes written do not match
// the manifest entry.
func (v *Verifier) Check() error {
	if v.n != v.info.Length {
		return errs.Codec("chunk %d decompressed to %d bytes, manifest says %d", v.info.Index, v.n, v.info.Length)
	}
	if got := v.hasher.Sum(); got != v.info.Digest {
		return errs.Codec("chunk %d digest %s does not match manifest %s", v.info.Index, got, v.info.Digest)
	}
	return nil
}
