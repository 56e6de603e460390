package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	c := NewCollectors(registry)

	c.RecordRPCCall("0x65", "getBlockHeight", nil, time.Millisecond)
	c.RecordRPCCall("0x65", "getBlockHeight", errors.New("boom"), time.Millisecond)
	c.RecordRPCCall("0x65", "getBlockHeight", nil, time.Millisecond)
	assert.Equal(t, 2.0, testutil.ToFloat64(c.rpcCallsTotal.WithLabelValues("0x65", "getBlockHeight", StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rpcCallsTotal.WithLabelValues("0x65", "getBlockHeight", StatusFailure)))

	c.RecordIndexerRequest("nfts", nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.indexerRequestsTotal.WithLabelValues("nfts", StatusSuccess)))

	c.RecordStatusTransition("0x65", "confirmed")
	assert.Equal(t, 1.0, testutil.ToFloat64(c.statusTransitionsTotal.WithLabelValues("0x65", "confirmed")))

	c.SetPendingTransactions("0x65", 3)
	assert.Equal(t, 3.0, testutil.ToFloat64(c.pendingTransactions.WithLabelValues("0x65")))

	c.RecordEventPublished(errors.New("boom"))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.eventsPublishedTotal.WithLabelValues(StatusFailure)))
}

func TestCollectors_Nil(t *testing.T) {
	var c *Collectors

	assert.NotPanics(t, func() {
		c.RecordRPCCall("0x65", "getBlockHeight", nil, time.Millisecond)
		c.RecordIndexerRequest("nfts", nil)
		c.RecordStatusTransition("0x65", "confirmed")
		c.SetPendingTransactions("0x65", 1)
		c.RecordEventPublished(nil)
	})
}
