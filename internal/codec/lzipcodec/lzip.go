// Package lzipcodec provides an lzip codec.
//
// An lzip file is a sequence of members, each an LZMA stream framed by a
// six byte header and a twenty byte trailer carrying the CRC32 and sizes.
// A multi-member file decompresses to the concatenation of its members,
// so chunks compressed independently can be joined byte for byte.
package lzipcodec

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"math/bits"

	"github.com/ulikunitz/xz/lzma"

	"github.com/chopzip/chopzip/internal/codec"
	"github.com/chopzip/chopzip/internal/codec/xzcodec"
)

const (
	headerLen  = 6
	trailerLen = 20
	version    = 1

	minDictSize = 1 << 12
	maxDictSize = 1 << 29
)

var magic = [4]byte{'L', 'Z', 'I', 'P'}

// lzip always uses lc=3, lp=0, pb=2.
var props = lzma.Properties{LC: 3, LP: 0, PB: 2}

// ErrFormat is returned for data that is not a valid lzip stream.
var ErrFormat = errors.New("lzip: invalid format")

// Compile-time check that Codec implements codec.Codec.
var _ codec.Codec = (*Codec)(nil)

// Codec implements lzip compression.
type Codec struct {
	dictSize int
}

// New returns a new lzip codec. Levels and the "dict" option behave as
// for xz; the dictionary is rounded up to a power of two.
func New(opts codec.Options) (*Codec, error) {
	if err := opts.Validate("dict"); err != nil {
		return nil, fmt.Errorf("lzip: %w", err)
	}
	size, err := xzcodec.DictCap(opts)
	if err != nil {
		return nil, fmt.Errorf("lzip: %w", err)
	}
	if size < minDictSize || size > maxDictSize {
		return nil, fmt.Errorf("lzip: dict %d out of range [%d, %d]", size, minDictSize, maxDictSize)
	}
	size = 1 << bits.Len(uint(size-1))

	cfg := lzma.WriterConfig{Properties: &props, DictCap: size, EOSMarker: true}
	if err := cfg.Verify(); err != nil {
		return nil, fmt.Errorf("lzip: %w", err)
	}
	return &Codec{dictSize: size}, nil
}

// Extension returns "lz".
func (c *Codec) Extension() string {
	return "lz"
}

// Writer wraps w to compress data into a single lzip member.
func (c *Codec) Writer(w io.Writer) (io.WriteCloser, error) {
	header := [headerLen]byte{magic[0], magic[1], magic[2], magic[3], version, byte(bits.Len(uint(c.dictSize)) - 1)}
	if _, err := w.Write(header[:]); err != nil {
		return nil, err
	}

	body := &skipWriter{w: w, skip: lzma.HeaderLen}
	cfg := lzma.WriterConfig{Properties: &props, DictCap: c.dictSize, EOSMarker: true}
	lw, err := cfg.NewWriter(body)
	if err != nil {
		return nil, err
	}
	return &writer{w: w, body: body, lw: lw, crc: crc32.NewIEEE()}, nil
}

type writer struct {
	w    io.Writer
	body *skipWriter
	lw   *lzma.Writer
	crc  hash.Hash32
	size uint64
}

func (w *writer) Write(p []byte) (int, error) {
	n, err := w.lw.Write(p)
	w.crc.Write(p[:n])
	w.size += uint64(n)
	return n, err
}

// Close finishes the LZMA stream and writes the member trailer.
func (w *writer) Close() error {
	if err := w.lw.Close(); err != nil {
		return err
	}
	var trailer [trailerLen]byte
	binary.LittleEndian.PutUint32(trailer[0:4], w.crc.Sum32())
	binary.LittleEndian.PutUint64(trailer[4:12], w.size)
	binary.LittleEndian.PutUint64(trailer[12:20], uint64(headerLen+w.body.written+trailerLen))
	_, err := w.w.Write(trailer[:])
	return err
}

// skipWriter drops the classic LZMA header the lzma package writes, since
// lzip carries its own.
type skipWriter struct {
	w       io.Writer
	skip    int
	written int64
}

func (s *skipWriter) Write(p []byte) (int, error) {
	n := len(p)
	if s.skip > 0 {
		k := min(s.skip, len(p))
		s.skip -= k
		p = p[k:]
	}
	if len(p) == 0 {
		return n, nil
	}
	m, err := s.w.Write(p)
	s.written += int64(m)
	if err != nil {
		return n - len(p) + m, err
	}
	return n, nil
}

// Reader wraps r to decompress every member of an lzip stream in turn.
func (c *Codec) Reader(r io.Reader) (io.ReadCloser, error) {
	return &reader{src: bufio.NewReader(r)}, nil
}

type reader struct {
	src     *bufio.Reader
	members int
	body    *memberBody
	lr      *lzma.Reader
	crc     hash.Hash32
	size    uint64
	err     error
}

func (r *reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, r.err
	}
	for r.err == nil {
		if r.lr == nil {
			if r.err = r.startMember(); r.err != nil {
				break
			}
		}
		n, err := r.lr.Read(p)
		r.crc.Write(p[:n])
		r.size += uint64(n)
		if errors.Is(err, io.EOF) {
			r.err = r.finishMember()
		} else if err != nil {
			r.err = err
		}
		if n > 0 {
			return n, nil
		}
	}
	return 0, r.err
}

// startMember reads the next member header. A clean end of input after
// at least one member ends the stream.
func (r *reader) startMember() error {
	var header [headerLen]byte
	n, err := io.ReadFull(r.src, header[:])
	if n == 0 && errors.Is(err, io.EOF) && r.members > 0 {
		return io.EOF
	}
	if err != nil {
		return fmt.Errorf("%w: short member header", ErrFormat)
	}
	if [4]byte(header[:4]) != magic {
		return fmt.Errorf("%w: bad magic", ErrFormat)
	}
	if header[4] != version {
		return fmt.Errorf("%w: unsupported version %d", ErrFormat, header[4])
	}
	dictSize, err := decodeDictSize(header[5])
	if err != nil {
		return err
	}

	var lzmaHeader [lzma.HeaderLen]byte
	lzmaHeader[0] = byte((props.PB*5+props.LP)*9 + props.LC)
	binary.LittleEndian.PutUint32(lzmaHeader[1:5], dictSize)
	binary.LittleEndian.PutUint64(lzmaHeader[5:], ^uint64(0))

	r.body = &memberBody{prefix: lzmaHeader[:], src: r.src}
	r.lr, err = lzma.NewReader(r.body)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFormat, err)
	}
	r.crc = crc32.NewIEEE()
	r.size = 0
	r.members++
	return nil
}

// finishMember checks the trailer against what was decoded.
func (r *reader) finishMember() error {
	var trailer [trailerLen]byte
	if _, err := io.ReadFull(r.src, trailer[:]); err != nil {
		return fmt.Errorf("%w: short member trailer", ErrFormat)
	}
	if got := binary.LittleEndian.Uint32(trailer[0:4]); got != r.crc.Sum32() {
		return fmt.Errorf("%w: crc mismatch", ErrFormat)
	}
	if got := binary.LittleEndian.Uint64(trailer[4:12]); got != r.size {
		return fmt.Errorf("%w: data size %d, decoded %d", ErrFormat, got, r.size)
	}
	if got := binary.LittleEndian.Uint64(trailer[12:20]); got != uint64(headerLen+r.body.read+trailerLen) {
		return fmt.Errorf("%w: member size mismatch", ErrFormat)
	}
	r.lr = nil
	r.body = nil
	return nil
}

func (r *reader) Close() error {
	return nil
}

// memberBody presents a member's LZMA data behind a synthesized classic
// header. It reads the source byte by byte through the buffer so nothing
// past the end of the LZMA stream is consumed.
type memberBody struct {
	prefix []byte
	src    *bufio.Reader
	read   int64
}

func (m *memberBody) Read(p []byte) (int, error) {
	if len(m.prefix) > 0 {
		n := copy(p, m.prefix)
		m.prefix = m.prefix[n:]
		return n, nil
	}
	if len(p) == 0 {
		return 0, nil
	}
	b, err := m.ReadByte()
	if err != nil {
		return 0, err
	}
	p[0] = b
	return 1, nil
}

func (m *memberBody) ReadByte() (byte, error) {
	if len(m.prefix) > 0 {
		b := m.prefix[0]
		m.prefix = m.prefix[1:]
		return b, nil
	}
	b, err := m.src.ReadByte()
	if err == nil {
		m.read++
	}
	return b, err
}

// decodeDictSize decodes the coded dictionary size of a member header:
// a power of two minus a multiple of one sixteenth of it.
func decodeDictSize(b byte) (uint32, error) {
	exp := uint(b & 0x1f)
	if exp < 12 || exp > 29 {
		return 0, fmt.Errorf("%w: dictionary size exponent %d", ErrFormat, exp)
	}
	base := uint32(1) << exp
	size := base - (base/16)*uint32(b>>5)
	if size < minDictSize {
		return 0, fmt.Errorf("%w: dictionary size %d", ErrFormat, size)
	}
	return size, nil
}
