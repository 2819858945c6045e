// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package httpx builds the outbound HTTP clients used to reach the analysis
// service.
package httpx

import (
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultTimeout      = 5 * time.Second
	maxDialTimeout      = 3 * time.Second
	maxHeaderTimeout    = 3 * time.Second
	idleConnTimeout     = 30 * time.Second
	maxIdleConns        = 16
	maxIdleConnsPerHost = 4
)

// Options tune a client. Zero values select defaults.
type Options struct {
	// Timeout bounds the whole exchange including the body.
	Timeout time.Duration
	// ResponseHeaderTimeout bounds the wait for headers once the request is
	// written. Endpoints that process the upload before answering need more
	// than the default.
	ResponseHeaderTimeout time.Duration
	// SpanName wraps the transport with otelhttp client spans when set.
	SpanName string
	// UserAgent is set on requests that do not carry one.
	UserAgent string
}

// New returns a client with bounded dial, TLS and header timeouts.
func New(opts Options) *http.Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.ResponseHeaderTimeout <= 0 {
		opts.ResponseHeaderTimeout = min(opts.Timeout, maxHeaderTimeout)
	}
	dial := min(opts.Timeout, maxDialTimeout)

	var rt http.RoundTripper = &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dial, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   dial,
		ResponseHeaderTimeout: opts.ResponseHeaderTimeout,
		ExpectContinueTimeout: time.Second,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          maxIdleConns,
		MaxIdleConnsPerHost:   maxIdleConnsPerHost,
		IdleConnTimeout:       idleConnTimeout,
	}
	if opts.UserAgent != "" {
		rt = userAgent{next: rt, value: opts.UserAgent}
	}
	if name := opts.SpanName; name != "" {
		rt = otelhttp.NewTransport(rt, otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return name + " " + r.Method
		}))
	}
	return &http.Client{Timeout: opts.Timeout, Transport: rt}
}

type userAgent struct {
	next  http.RoundTripper
	value string
}

func (u userAgent) RoundTrip(r *http.Request) (*http.Response, error) {
	if r.Header.Get("User-Agent") != "" {
		return u.next.RoundTrip(r)
	}
	r = r.Clone(r.Context())
	r.Header.Set("User-Agent", u.value)
	return u.next.RoundTrip(r)
}
