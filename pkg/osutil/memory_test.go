package osutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCgroupLimit(t *testing.T) {
	limit, ok := parseCgroupLimit("536870912\n")
	assert.True(t, ok)
	assert.EqualValues(t, 536870912, limit)

	for _, raw := range []string{"max\n", "", "9223372036854771712", "abc", "0"} {
		_, ok := parseCgroupLimit(raw)
		assert.False(t, ok, raw)
	}
}

func TestGetTotalMemory(t *testing.T) {
	assert.NotZero(t, GetTotalMemory())
}
