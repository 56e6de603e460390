package pointer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCopy(t *testing.T) {
	assert.Nil(t, Copy[string](nil))

	original := To[uint64](5)
	copied := Copy(original)
	assert.Equal(t, original, copied)

	*copied = 6
	assert.EqualValues(t, 5, *original)
}

func TestValueOrDefault(t *testing.T) {
	assert.Equal(t, "confirmed", ValueOrDefault(nil, "confirmed"))
	assert.Equal(t, "finalized", ValueOrDefault(To("finalized"), "confirmed"))
}
