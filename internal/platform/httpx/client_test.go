// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transportOf(t *testing.T, c *http.Client) *http.Transport {
	t.Helper()
	tr, ok := c.Transport.(*http.Transport)
	require.True(t, ok, "transport is %T", c.Transport)
	return tr
}

func TestNew_Defaults(t *testing.T) {
	c := New(Options{})
	assert.Equal(t, defaultTimeout, c.Timeout)

	tr := transportOf(t, c)
	assert.Equal(t, maxIdleConns, tr.MaxIdleConns)
	assert.Equal(t, maxIdleConnsPerHost, tr.MaxIdleConnsPerHost)
	assert.Equal(t, maxDialTimeout, tr.TLSHandshakeTimeout)
	assert.Equal(t, maxHeaderTimeout, tr.ResponseHeaderTimeout)
}

func TestNew_ShortTimeoutCapsDial(t *testing.T) {
	tr := transportOf(t, New(Options{Timeout: time.Second}))
	assert.Equal(t, time.Second, tr.TLSHandshakeTimeout)
	assert.Equal(t, time.Second, tr.ResponseHeaderTimeout)
}

func TestNew_ExplicitHeaderTimeout(t *testing.T) {
	tr := transportOf(t, New(Options{Timeout: 2 * time.Minute, ResponseHeaderTimeout: 90 * time.Second}))
	assert.Equal(t, 90*time.Second, tr.ResponseHeaderTimeout)
}

func TestNew_UserAgentAndTracing(t *testing.T) {
	agents := make(chan string, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agents <- r.UserAgent()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(Options{Timeout: time.Second, SpanName: "analysis", UserAgent: "vitalscan/v0.1.0"})
	_, plain := c.Transport.(*http.Transport)
	assert.False(t, plain, "expected wrapped transport")

	resp, err := c.Get(srv.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "vitalscan/v0.1.0", <-agents)

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "custom")
	resp, err = c.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, "custom", <-agents)
}
