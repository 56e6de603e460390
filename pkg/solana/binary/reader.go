package binary

import (
	"crypto/ed25519"
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

var (
	ErrShortBuffer = errors.New("short buffer")
	ErrOverflow    = errors.New("length overflow")
)

// Reader is a bounds checked little-endian cursor over account data. The
// first failed read is sticky and reported by Err.
type Reader struct {
	src    []byte
	offset int
	err    error
}

func NewReader(src []byte) *Reader {
	return &Reader{src: src}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.src) - r.offset
}

// Offset returns the current read position.
func (r *Reader) Offset() int {
	return r.offset
}

// Err returns the first error encountered by the reader.
func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) Uint8() uint8 {
	b, ok := r.next(1)
	if !ok {
		return 0
	}

	r.offset++
	return b[0]
}

func (r *Reader) Uint32() uint32 {
	b, ok := r.next(4)
	if !ok {
		return 0
	}

	r.offset += 4
	return binary.LittleEndian.Uint32(b)
}

func (r *Reader) Uint64() uint64 {
	b, ok := r.next(8)
	if !ok {
		return 0
	}

	r.offset += 8
	return binary.LittleEndian.Uint64(b)
}

func (r *Reader) Key32() ed25519.PublicKey {
	b, ok := r.next(ed25519.PublicKeySize)
	if !ok {
		return nil
	}

	r.offset += ed25519.PublicKeySize
	return append(ed25519.PublicKey(nil), b...)
}

// Skip advances the reader by n bytes.
func (r *Reader) Skip(n uint64) {
	if r.err != nil {
		return
	}
	if n > math.MaxInt32 {
		r.err = ErrOverflow
		return
	}
	if _, ok := r.next(int(n)); !ok {
		return
	}
	r.offset += int(n)
}

func (r *Reader) next(n int) ([]byte, bool) {
	if r.err != nil {
		return nil, false
	}
	if n < 0 || r.Remaining() < n {
		r.err = errors.Wrapf(ErrShortBuffer, "need %d bytes at offset %d, have %d", n, r.offset, r.Remaining())
		return nil, false
	}
	return r.src[r.offset : r.offset+n], true
}
