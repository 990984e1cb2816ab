// Package lookuptrace creates spans for the subset of RPCs that belong
// to a FIND_SUCCESSOR/LOOKUP relay chain, so the chain shows up as one
// trace instead of isolated per-hop spans. The UDP transport has no
// interceptor chain to hang this off of, so the lookup flag travels in
// the request context and callers wrap their own send/dispatch calls
// explicitly with StartClientSpan/StartServerSpan.
package lookuptrace

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type lookupKey struct{}

const tracerName = "koorde/lookuptrace"

var tracer = otel.Tracer(tracerName)

// WithLookup marks ctx as belonging to a lookup relay chain.
func WithLookup(ctx context.Context) context.Context {
	return context.WithValue(ctx, lookupKey{}, true)
}

// IsLookup reports whether ctx belongs to a lookup relay chain.
func IsLookup(ctx context.Context) bool {
	v, _ := ctx.Value(lookupKey{}).(bool)
	return v
}

// StartClientSpan opens a client-side span for an outgoing RPC named
// method, but only if ctx is already part of a lookup chain.
func StartClientSpan(ctx context.Context, method string) (context.Context, func()) {
	if !IsLookup(ctx) {
		return ctx, func() {}
	}
	ctx, span := tracer.Start(ctx, method, trace.WithSpanKind(trace.SpanKindClient))
	return ctx, span.End
}

// StartServerSpan opens a server-side span for an incoming dispatch of
// method. isLookupStart marks the entry point of a chain (a LOOKUP
// request); otherwise the span is only created if ctx already carries
// the lookup flag (e.g. a relayed FIND_SUCCESSOR).
func StartServerSpan(ctx context.Context, method string, isLookupStart bool) (context.Context, func()) {
	if isLookupStart {
		ctx = WithLookup(ctx)
	}
	if !IsLookup(ctx) {
		return ctx, func() {}
	}
	ctx, span := tracer.Start(ctx, method, trace.WithSpanKind(trace.SpanKindServer))
	return ctx, span.End
}
