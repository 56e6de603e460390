package app

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the environment run by Run().
type Option func(o *opts)

type opts struct {
	gatherer      prometheus.Gatherer
	debugHandlers map[string]http.Handler
}

// WithPrometheusGatherer exposes the gatherer's metrics at /metrics on the
// debug HTTP server.
func WithPrometheusGatherer(gatherer prometheus.Gatherer) Option {
	return func(o *opts) {
		o.gatherer = gatherer
	}
}

// WithDebugHandler installs an additional handler on the debug HTTP server.
func WithDebugHandler(pattern string, handler http.Handler) Option {
	return func(o *opts) {
		if o.debugHandlers == nil {
			o.debugHandlers = make(map[string]http.Handler)
		}
		o.debugHandlers[pattern] = handler
	}
}
