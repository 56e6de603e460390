package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Collectors holds the prometheus collectors shared by the wallet components.
// A nil *Collectors is valid and records nothing.
type Collectors struct {
	rpcCallsTotal   *prometheus.CounterVec
	rpcCallDuration *prometheus.HistogramVec

	indexerRequestsTotal *prometheus.CounterVec

	statusTransitionsTotal *prometheus.CounterVec
	pendingTransactions    *prometheus.GaugeVec

	eventsPublishedTotal *prometheus.CounterVec
}

// NewCollectors creates and registers all collectors. If registry is nil,
// prometheus.DefaultRegisterer is used.
func NewCollectors(registry prometheus.Registerer) *Collectors {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Collectors{
		rpcCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_rpc_calls_total",
				Help: "Total number of chain RPC calls by chain, method and status",
			},
			[]string{"chain", "method", "status"},
		),
		rpcCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wallet_rpc_call_duration_seconds",
				Help:    "Duration of chain RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"chain", "method"},
		),
		indexerRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_indexer_requests_total",
				Help: "Total number of NFT indexer requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),
		statusTransitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_transaction_status_transitions_total",
				Help: "Total number of transaction status transitions by chain and new status",
			},
			[]string{"chain", "status"},
		),
		pendingTransactions: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "wallet_pending_transactions",
				Help: "Number of submitted transactions awaiting a final status, as of the last reconciliation",
			},
			[]string{"chain"},
		),
		eventsPublishedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_events_published_total",
				Help: "Total number of transaction events published by status",
			},
			[]string{"status"},
		),
	}
}

func (c *Collectors) RecordRPCCall(chain, method string, err error, duration time.Duration) {
	if c == nil {
		return
	}

	c.rpcCallsTotal.WithLabelValues(chain, method, statusOf(err)).Inc()
	c.rpcCallDuration.WithLabelValues(chain, method).Observe(duration.Seconds())
}

func (c *Collectors) RecordIndexerRequest(endpoint string, err error) {
	if c == nil {
		return
	}

	c.indexerRequestsTotal.WithLabelValues(endpoint, statusOf(err)).Inc()
}

func (c *Collectors) RecordStatusTransition(chain, status string) {
	if c == nil {
		return
	}

	c.statusTransitionsTotal.WithLabelValues(chain, status).Inc()
}

func (c *Collectors) SetPendingTransactions(chain string, count int) {
	if c == nil {
		return
	}

	c.pendingTransactions.WithLabelValues(chain).Set(float64(count))
}

func (c *Collectors) RecordEventPublished(err error) {
	if c == nil {
		return
	}

	c.eventsPublishedTotal.WithLabelValues(statusOf(err)).Inc()
}

func statusOf(err error) string {
	if err != nil {
		return StatusFailure
	}
	return StatusSuccess
}
