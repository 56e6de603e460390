package metrics

import (
	"context"
	"time"
)

// RecordEvent records a custom event with a set of attributes.
func RecordEvent(ctx context.Context, eventName string, kvPairs map[string]interface{}) {
	if nr, ok := NewRelicFromContext(ctx); ok {
		nr.RecordCustomEvent(eventName, kvPairs)
	}
}

// RecordCount records a count metric.
func RecordCount(ctx context.Context, metricName string, count uint64) {
	if nr, ok := NewRelicFromContext(ctx); ok {
		nr.RecordCustomMetric(metricName, float64(count))
	}
}

// RecordDuration records a duration metric in milliseconds.
func RecordDuration(ctx context.Context, metricName string, duration time.Duration) {
	if nr, ok := NewRelicFromContext(ctx); ok {
		nr.RecordCustomMetric(metricName, float64(duration)/float64(time.Millisecond))
	}
}
