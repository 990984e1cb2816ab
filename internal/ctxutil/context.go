// Package ctxutil builds request-scoped contexts carrying a trace id
// and an optional hop counter, used to correlate a FIND_SUCCESSOR chain
// (or a LOOKUP relay) across the several nodes it may cross.
package ctxutil

import (
	"context"
	"errors"
	"time"

	"KoordeDHT/internal/domain"
	"KoordeDHT/internal/trace"
)

type hopsKey struct{}

// ContextOption configures the behavior of NewContext. Multiple options
// can be combined.
type ContextOption func(*ctxConfig)

type ctxConfig struct {
	withTrace bool
	withHops  bool
	selfID    domain.ID
	timeout   time.Duration
}

// WithTrace attaches a fresh trace id derived from selfID to the
// created context.
func WithTrace(selfID domain.ID) ContextOption {
	return func(cfg *ctxConfig) {
		cfg.withTrace = true
		cfg.selfID = selfID
	}
}

// WithTimeout applies a deadline to the created context. The caller
// must defer the returned cancel function.
func WithTimeout(d time.Duration) ContextOption {
	return func(cfg *ctxConfig) { cfg.timeout = d }
}

// WithHops initializes the hop counter at 0.
func WithHops() ContextOption {
	return func(cfg *ctxConfig) { cfg.withHops = true }
}

// NewContext builds a context.Background() derivative configured by
// opts, returning its cancel function (nil if no timeout was set).
func NewContext(opts ...ContextOption) (context.Context, context.CancelFunc) {
	cfg := &ctxConfig{}
	for _, o := range opts {
		o(cfg)
	}

	var ctx context.Context
	var cancel context.CancelFunc
	if cfg.timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), cfg.timeout)
	} else {
		ctx = context.Background()
	}
	if cfg.withTrace {
		ctx, _ = trace.AttachTraceID(ctx, cfg.selfID)
	}
	if cfg.withHops {
		ctx = context.WithValue(ctx, hopsKey{}, 0)
	}
	return ctx, cancel
}

// TraceIDFromContext extracts the trace id, or "" if none is attached.
func TraceIDFromContext(ctx context.Context) string {
	return trace.GetTraceID(ctx)
}

// EnsureTraceID attaches a trace id derived from selfID if ctx doesn't
// already carry one.
func EnsureTraceID(ctx context.Context, selfID domain.ID) context.Context {
	if id := trace.GetTraceID(ctx); id == "" {
		ctx, _ = trace.AttachTraceID(ctx, selfID)
	}
	return ctx
}

// StartHops attaches a hop counter at 0 to ctx, the entry point of a
// FIND_SUCCESSOR or LOOKUP chain; later forwards use IncHops to track
// how many nodes the request has crossed.
func StartHops(ctx context.Context) context.Context {
	return context.WithValue(ctx, hopsKey{}, 0)
}

// HopsFromContext returns the current hop count, or -1 if not tracked.
func HopsFromContext(ctx context.Context) int {
	if hops, ok := ctx.Value(hopsKey{}).(int); ok {
		return hops
	}
	return -1
}

// IncHops increments the hop counter if one is present; -1 (untracked)
// stays untracked.
func IncHops(ctx context.Context) context.Context {
	hops, ok := ctx.Value(hopsKey{}).(int)
	if !ok {
		return ctx
	}
	if hops == -1 {
		return ctx
	}
	return context.WithValue(ctx, hopsKey{}, hops+1)
}

// CheckContext reports whether ctx has already been canceled or its
// deadline has expired.
func CheckContext(ctx context.Context) error {
	switch err := ctx.Err(); {
	case errors.Is(err, context.Canceled):
		return context.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return context.DeadlineExceeded
	default:
		return nil
	}
}
