package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
)

// MethodTracer is a segment of the transaction carried by a context. A nil
// tracer, returned when there is no transaction, is valid and records nothing.
type MethodTracer struct {
	txn   *newrelic.Transaction
	seg   *newrelic.Segment
	name  string
	start time.Time
	err   error
}

// TraceMethodCall starts a segment named after the struct or package and
// method.
func TraceMethodCall(ctx context.Context, structOrPackageName, methodName string) *MethodTracer {
	txn := newrelic.FromContext(ctx)
	if txn == nil {
		return nil
	}

	name := fmt.Sprintf("%s %s", structOrPackageName, methodName)
	return &MethodTracer{
		txn:   txn,
		seg:   txn.StartSegment(name),
		name:  fmt.Sprintf("%s/%s", structOrPackageName, methodName),
		start: time.Now(),
	}
}

func (t *MethodTracer) AddAttribute(key string, value interface{}) {
	if t == nil {
		return
	}
	t.seg.AddAttribute(key, value)
}

// OnError notices err on the transaction. Nil errors are ignored.
func (t *MethodTracer) OnError(err error) {
	if t == nil || err == nil {
		return
	}

	t.err = err
	t.seg.AddAttribute("error", true)
	t.txn.NoticeError(err)
}

// End completes the segment and records the call's latency, and failure when
// an error was noticed, as custom metrics.
func (t *MethodTracer) End() {
	if t == nil {
		return
	}

	t.seg.End()

	app := t.txn.Application()
	if app == nil {
		return
	}
	app.RecordCustomMetric(methodMetricName(t.name, "Duration"), float64(time.Since(t.start))/float64(time.Millisecond))
	if t.err != nil {
		app.RecordCustomMetric(methodMetricName(t.name, "Errors"), 1)
	}
}

func methodMetricName(method, suffix string) string {
	return "Custom/" + method + "/" + suffix
}
