package events

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/wallet-server/pkg/metrics"
	"github.com/code-payments/wallet-server/pkg/testutil"
	"github.com/code-payments/wallet-server/pkg/wallet/chain"
	"github.com/code-payments/wallet-server/pkg/wallet/data/transaction"
)

func TestNewEvent(t *testing.T) {
	record := &transaction.Record{
		Id:           "id",
		ChainId:      chain.SolanaMainnet,
		From:         "from",
		Origin:       "https://example.com",
		Status:       transaction.StatusError,
		TxType:       transaction.TxTypeSystemTransfer,
		TxHash:       "hash",
		ErrorMessage: "boom",
	}

	event := NewEvent(record)
	assert.Equal(t, "id", event.Id)
	assert.Equal(t, chain.SolanaMainnet, event.ChainId)
	assert.Equal(t, "error", event.Status)
	assert.Equal(t, "system_transfer", event.TxType)
	assert.Equal(t, "boom", event.ErrorMessage)
	assert.False(t, event.Timestamp.IsZero())

	assert.Equal(t, "wallet.txns.0x65.from", Subject(event))
}

func TestAsyncPublisher_PreservesOrderPerTransaction(t *testing.T) {
	underlying := NewMemory()
	registry := prometheus.NewRegistry()

	p := NewAsyncPublisher(underlying, metrics.NewCollectors(registry), 4, 100)

	statuses := []transaction.Status{
		transaction.StatusApproved,
		transaction.StatusSubmitted,
		transaction.StatusConfirmed,
	}
	for i := 0; i < 5; i++ {
		for _, status := range statuses {
			require.NoError(t, p.Publish(context.Background(), &Event{
				Id:     fmt.Sprintf("tx%d", i),
				Status: status.String(),
			}))
		}
	}

	require.NoError(t, p.Close())
	assert.True(t, underlying.Closed())
	assert.Len(t, underlying.Events(), 15)

	for i := 0; i < 5; i++ {
		published := underlying.EventsFor(fmt.Sprintf("tx%d", i))
		require.Len(t, published, 3)
		for j, status := range statuses {
			assert.Equal(t, status.String(), published[j].Status)
		}
	}

	count, err := promtestutil.GatherAndCount(registry, "wallet_events_published_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assert.Equal(t, ErrClosed, p.Publish(context.Background(), &Event{Id: "late"}))
	assert.NoError(t, p.Close())
}

type flakyPublisher struct {
	mu       sync.Mutex
	failures int
	Memory
}

func (f *flakyPublisher) Publish(ctx context.Context, event *Event) error {
	f.mu.Lock()
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return errors.New("unavailable")
	}
	f.mu.Unlock()
	return f.Memory.Publish(ctx, event)
}

func TestAsyncPublisher_RetriesFailures(t *testing.T) {
	underlying := &flakyPublisher{failures: 2}

	p := NewAsyncPublisher(underlying, nil, 1, 10)
	defer p.Close()

	require.NoError(t, p.Publish(context.Background(), &Event{Id: "tx"}))

	require.NoError(t, testutil.WaitFor(2*time.Second, 10*time.Millisecond, func() bool {
		return len(underlying.Events()) == 1
	}))
}

type blockingPublisher struct {
	release chan struct{}
	Memory
}

func (b *blockingPublisher) Publish(ctx context.Context, event *Event) error {
	<-b.release
	return b.Memory.Publish(ctx, event)
}

func TestAsyncPublisher_QueueFull(t *testing.T) {
	underlying := &blockingPublisher{release: make(chan struct{})}

	p := NewAsyncPublisher(underlying, nil, 1, 1)

	var sawFull bool
	for i := 0; i < 10; i++ {
		if err := p.Publish(context.Background(), &Event{Id: "tx"}); err == ErrQueueFull {
			sawFull = true
			break
		}
	}
	assert.True(t, sawFull)

	close(underlying.release)
	require.NoError(t, p.Close())
}
