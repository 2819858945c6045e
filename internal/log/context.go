// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package log wraps zerolog with a process-wide logger and the correlation
// identifiers carried through a scan.
package log

import (
	"context"

	"github.com/rs/zerolog"
)

// ids are the identifiers that follow a request through the pipeline.
type ids struct {
	request     string
	correlation string
	session     string
}

type idsKey struct{}

func idsFrom(ctx context.Context) ids {
	if ctx == nil {
		return ids{}
	}
	v, _ := ctx.Value(idsKey{}).(ids)
	return v
}

func withIDs(ctx context.Context, update func(*ids)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	v := idsFrom(ctx)
	update(&v)
	return context.WithValue(ctx, idsKey{}, v)
}

func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return withIDs(ctx, func(v *ids) { v.request = id })
}

func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return withIDs(ctx, func(v *ids) { v.correlation = id })
}

func ContextWithSessionID(ctx context.Context, id string) context.Context {
	return withIDs(ctx, func(v *ids) { v.session = id })
}

func RequestIDFromContext(ctx context.Context) string     { return idsFrom(ctx).request }
func CorrelationIDFromContext(ctx context.Context) string { return idsFrom(ctx).correlation }
func SessionIDFromContext(ctx context.Context) string     { return idsFrom(ctx).session }

// WithContext adds the identifiers found in ctx to logger. The logger is
// returned unchanged when ctx carries none.
func WithContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	v := idsFrom(ctx)
	if v == (ids{}) {
		return logger
	}
	lc := logger.With()
	for _, f := range []struct{ key, val string }{
		{FieldRequestID, v.request},
		{FieldCorrelationID, v.correlation},
		{FieldSessionID, v.session},
	} {
		if f.val != "" {
			lc = lc.Str(f.key, f.val)
		}
	}
	return lc.Logger()
}

// WithComponentFromContext combines WithComponent and WithContext.
func WithComponentFromContext(ctx context.Context, component string) zerolog.Logger {
	return WithContext(ctx, WithComponent(component))
}
