package binary

import (
	"crypto/ed25519"
	"encoding/binary"
)

// Writer appends little-endian values to a growing buffer.
type Writer struct {
	buf []byte
}

func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity)}
}

func (w *Writer) Bytes() []byte {
	return w.buf
}

func (w *Writer) Raw(b []byte) *Writer {
	w.buf = append(w.buf, b...)
	return w
}

func (w *Writer) Uint8(v uint8) *Writer {
	w.buf = append(w.buf, v)
	return w
}

func (w *Writer) Uint32(v uint32) *Writer {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
	return w
}

func (w *Writer) Uint64(v uint64) *Writer {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
	return w
}

// Key32 writes a 32 byte key, zero padding or truncating key to fit.
func (w *Writer) Key32(key []byte) *Writer {
	var fixed [ed25519.PublicKeySize]byte
	copy(fixed[:], key)
	w.buf = append(w.buf, fixed[:]...)
	return w
}

// Uint32LE returns v encoded as four little-endian bytes.
func Uint32LE(v uint32) []byte {
	return NewWriter(4).Uint32(v).Bytes()
}

// Uint64LE returns v encoded as eight little-endian bytes.
func Uint64LE(v uint64) []byte {
	return NewWriter(8).Uint64(v).Bytes()
}
