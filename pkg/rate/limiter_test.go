package rate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestNoLimiter(t *testing.T) {
	l := &NoLimiter{}
	for i := 0; i < 10000; i++ {
		allowed, err := l.Allow("")
		assert.NoError(t, err)
		assert.True(t, allowed)
	}
}

func TestLocalRateLimiter(t *testing.T) {
	l := NewLocalRateLimiter(rate.Limit(2))

	for i := 0; i < 2; i++ {
		allowed, err := l.Allow("a")
		assert.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, err := l.Allow("a")
	assert.NoError(t, err)
	assert.False(t, allowed)

	// Ensure key partitioning is valid
	for i := 0; i < 2; i++ {
		allowed, err := l.Allow("b")
		assert.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, err = l.Allow("b")
	assert.NoError(t, err)
	assert.False(t, allowed)
}

func TestLocalRateLimiter_Wait(t *testing.T) {
	l := NewLocalRateLimiter(rate.Limit(1))

	require.NoError(t, l.Wait(context.Background(), "host"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Wait(ctx, "host"))

	require.NoError(t, l.Wait(context.Background(), "other"))
}

func TestNoLimiter_Wait(t *testing.T) {
	l := &NoLimiter{}
	assert.NoError(t, l.Wait(context.Background(), ""))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, context.Canceled, l.Wait(ctx, ""))
}
