// Package shortvec implements the compact-u16 length prefix used in the
// Solana wire format: 7 bits per byte, least significant group first, with
// the high bit set on every byte but the last.
package shortvec

import (
	"io"
	"math"

	"github.com/pkg/errors"
)

const maxEncodedLen = 3

var (
	ErrLengthTooLarge  = errors.Errorf("length exceeds %d", math.MaxUint16)
	ErrInvalidEncoding = errors.New("invalid compact-u16 encoding")
)

// EncodeLen writes the compact encoding of length to w, returning the number
// of bytes written.
func EncodeLen(w io.Writer, length int) (int, error) {
	if length < 0 || length > math.MaxUint16 {
		return 0, ErrLengthTooLarge
	}

	var encoded [maxEncodedLen]byte
	size := 0
	for {
		encoded[size] = byte(length & 0x7f)
		length >>= 7
		if length == 0 {
			size++
			break
		}
		encoded[size] |= 0x80
		size++
	}

	return w.Write(encoded[:size])
}

// DecodeLen reads a compact encoded length from r.
func DecodeLen(r io.Reader) (int, error) {
	var length int
	var b [1]byte

	for i := 0; i < maxEncodedLen; i++ {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			if err == io.EOF && i > 0 {
				err = io.ErrUnexpectedEOF
			}
			return 0, err
		}

		length |= int(b[0]&0x7f) << (7 * i)
		if b[0]&0x80 == 0 {
			if length > math.MaxUint16 {
				return 0, ErrLengthTooLarge
			}
			return length, nil
		}
	}

	return 0, ErrInvalidEncoding
}
