package metrics

import (
	"context"

	"github.com/newrelic/go-agent/v3/newrelic"
)

// NewRelicContextKey is the context key under which the process-wide New Relic
// application is stored.
type NewRelicContextKey struct{}

// WithNewRelic returns a context carrying app.
func WithNewRelic(ctx context.Context, app *newrelic.Application) context.Context {
	if app == nil {
		return ctx
	}
	return context.WithValue(ctx, NewRelicContextKey{}, app)
}

// NewRelicFromContext returns the New Relic application stored in ctx, if any.
func NewRelicFromContext(ctx context.Context) (*newrelic.Application, bool) {
	app, ok := ctx.Value(NewRelicContextKey{}).(*newrelic.Application)
	return app, ok && app != nil
}

// StartTransaction starts a New Relic transaction named name and returns a
// context carrying it, so TraceMethodCall segments nest underneath. Without
// an application in ctx, the returned end function is a no-op.
func StartTransaction(ctx context.Context, name string) (context.Context, func(err error)) {
	app, ok := NewRelicFromContext(ctx)
	if !ok {
		return ctx, func(error) {}
	}

	txn := app.StartTransaction(name)
	return newrelic.NewContext(ctx, txn), func(err error) {
		if err != nil {
			txn.NoticeError(err)
		}
		txn.End()
	}
}
