package shortvec

import (
	"bytes"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	for i := 0; i <= math.MaxUint16; i += 7 {
		var buf bytes.Buffer
		_, err := EncodeLen(&buf, i)
		require.NoError(t, err)

		decoded, err := DecodeLen(&buf)
		require.NoError(t, err)
		require.Equal(t, i, decoded)
		require.Zero(t, buf.Len())
	}
}

func TestKnownEncodings(t *testing.T) {
	for _, tc := range []struct {
		length  int
		encoded []byte
	}{
		{0x0, []byte{0x00}},
		{0x7f, []byte{0x7f}},
		{0x80, []byte{0x80, 0x01}},
		{0xff, []byte{0xff, 0x01}},
		{0x100, []byte{0x80, 0x02}},
		{0x3fff, []byte{0xff, 0x7f}},
		{0x4000, []byte{0x80, 0x80, 0x01}},
		{0xffff, []byte{0xff, 0xff, 0x03}},
	} {
		var buf bytes.Buffer
		n, err := EncodeLen(&buf, tc.length)
		require.NoError(t, err)
		assert.Equal(t, len(tc.encoded), n)
		assert.Equal(t, tc.encoded, buf.Bytes())

		decoded, err := DecodeLen(bytes.NewReader(tc.encoded))
		require.NoError(t, err)
		assert.Equal(t, tc.length, decoded)
	}
}

func TestEncodeLen_OutOfRange(t *testing.T) {
	_, err := EncodeLen(io.Discard, math.MaxUint16+1)
	assert.Equal(t, ErrLengthTooLarge, err)

	_, err = EncodeLen(io.Discard, -1)
	assert.Equal(t, ErrLengthTooLarge, err)
}

func TestDecodeLen_Invalid(t *testing.T) {
	_, err := DecodeLen(bytes.NewReader([]byte{0x80, 0x80, 0x80, 0x01}))
	assert.Equal(t, ErrInvalidEncoding, err)

	_, err = DecodeLen(bytes.NewReader([]byte{0xff, 0xff, 0x04}))
	assert.Equal(t, ErrLengthTooLarge, err)

	_, err = DecodeLen(bytes.NewReader([]byte{0x80}))
	assert.Equal(t, io.ErrUnexpectedEOF, err)

	_, err = DecodeLen(bytes.NewReader(nil))
	assert.Equal(t, io.EOF, err)
}
