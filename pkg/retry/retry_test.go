package retry

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/wallet-server/pkg/retry/backoff"
)

func TestRetry_Sleeps(t *testing.T) {
	start := time.Now()
	n, err := Retry(func() error { return errors.New("err") },
		Limit(2),
		Backoff(backoff.Constant(200*time.Millisecond), 200*time.Millisecond),
	)

	assert.Error(t, err)
	assert.EqualValues(t, 2, n)
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRetry_StrategyOrder(t *testing.T) {
	retriableErr := errors.New("retriable")
	strategies := []Strategy{Limit(5), RetriableErrors(retriableErr)}

	attempts, err := Retry(func() error { return nil }, strategies...)
	assert.NoError(t, err)
	assert.EqualValues(t, 1, attempts)

	attempts, err = Retry(func() error { return errors.New("unknown") }, strategies...)
	assert.Error(t, err)
	assert.EqualValues(t, 1, attempts)

	attempts, err = Retry(func() error { return retriableErr }, strategies...)
	assert.Equal(t, retriableErr, err)
	assert.EqualValues(t, 5, attempts)
}

func TestValue(t *testing.T) {
	var calls int
	body, attempts, err := Value(func() ([]byte, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("unavailable")
		}
		return []byte("proof"), nil
	}, Limit(5))
	require.NoError(t, err)
	assert.EqualValues(t, 3, attempts)
	assert.Equal(t, []byte("proof"), body)

	height, attempts, err := Value(func() (uint64, error) {
		return 7, errors.New("stale")
	}, Limit(2))
	assert.EqualError(t, err, "stale")
	assert.EqualValues(t, 2, attempts)
	assert.EqualValues(t, 7, height)
}

func TestLoop(t *testing.T) {
	sleeps := useRecordingSleeper(t)

	errStop := errors.New("stop")

	var i int
	err := Loop(
		func() error {
			defer func() { i++ }()

			switch {
			case i > 10:
				return errStop
			case i%4 == 0:
				return nil
			}
			return errors.New("transient")
		},
		NonRetriableErrors(errStop),
		Backoff(backoff.Linear(1), time.Second),
	)
	assert.Equal(t, errStop, err)
	assert.Equal(t, []time.Duration{1, 2, 3, 1, 2, 3, 1, 2}, sleeps.durations)
}
