package assemble

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"
)

// ManifestName is the container member holding the manifest. It is always
// the last member.
const ManifestName = "MANIFEST.cbor"

// ManifestVersion is the current manifest format version.
const ManifestVersion = 1

// Digest is a keyed BLAKE3 digest of a chunk's uncompressed bytes.
type Digest [32]byte

// Manifest describes the members of a container artifact.
type Manifest struct {
	Version int    `cbor:"1,keyasint"`
	Method  string `cbor:"2,keyasint"`
	// Size is the original uncompressed size.
	Size   int64       `cbor:"3,keyasint"`
	Count  int         `cbor:"4,keyasint"`
	Chunks []ChunkInfo `cbor:"5,keyasint"`
}

// ChunkInfo describes one container member.
type ChunkInfo struct {
	Index      int    `cbor:"1,keyasint"`
	Member     string `cbor:"2,keyasint"`
	Length     int64  `cbor:"3,keyasint"`
	Compressed int64  `cbor:"4,keyasint"`
	Digest     Digest `cbor:"5,keyasint"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("assemble: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("assemble: CBOR decoder initialization failed: " + err.Error())
	}
}

// MarshalManifest encodes m using core deterministic encoding.
func MarshalManifest(m *Manifest) ([]byte, error) {
	data, err := encMode.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	return data, nil
}

// UnmarshalManifest decodes a manifest.
func UnmarshalManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := decMode.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	return &m, nil
}

// digestKey separates chunk digests from other BLAKE3 uses of the same
// bytes. It is the zero-padded ASCII string "chopzip.chunk".
var digestKey = [32]byte{'c', 'h', 'o', 'p', 'z', 'i', 'p', '.', 'c', 'h', 'u', 'n', 'k'}

// Hasher accumulates a chunk digest.
type Hasher struct {
	h *blake3.Hasher
}

// NewHasher returns an empty chunk hasher.
func NewHasher() *Hasher {
	h, err := blake3.NewKeyed(digestKey[:])
	if err != nil {
		panic("assemble: BLAKE3 keyed hasher initialization failed: " + err.Error())
	}
	return &Hasher{h: h}
}

func (h *Hasher) Write(p []byte) (int, error) {
	return h.h.Write(p)
}

// Sum returns the digest of everything written so far.
func (h *Hasher) Sum() Digest {
	var d Digest
	copy(d[:], h.h.Sum(nil))
	return d
}

// String returns the digest in hex.
func (d Digest) String() string {
	return fmt.Sprintf("%x", d[:])
}
