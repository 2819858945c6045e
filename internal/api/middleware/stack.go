// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package middleware holds the HTTP ingress stack of the control API.
package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type stack struct {
	metrics   bool
	accessLog bool
	tracing   string
	perMinute int
}

// Option enables an optional layer of the stack.
type Option func(*stack)

func WithMetrics() Option   { return func(s *stack) { s.metrics = true } }
func WithAccessLog() Option { return func(s *stack) { s.accessLog = true } }

// WithTracing opens a server span per request under service.
func WithTracing(service string) Option { return func(s *stack) { s.tracing = service } }

// WithRateLimit caps requests per client IP per minute; 0 leaves it off.
func WithRateLimit(perMinute int) Option { return func(s *stack) { s.perMinute = perMinute } }

// NewRouter returns a chi router whose middleware runs, outermost first:
// panic recovery, request ids, tracing, observation and rate limiting.
func NewRouter(opts ...Option) *chi.Mux {
	var s stack
	for _, opt := range opts {
		opt(&s)
	}

	layers := []func(http.Handler) http.Handler{Recoverer, RequestID}
	if s.tracing != "" {
		layers = append(layers, Tracing(s.tracing))
	}
	if s.metrics || s.accessLog {
		layers = append(layers, Observe(s.metrics, s.accessLog))
	}
	if s.perMinute > 0 {
		layers = append(layers, RateLimit(s.perMinute))
	}

	r := chi.NewRouter()
	r.Use(layers...)
	return r
}
