// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package analysis uploads samples to the remote analysis service and resolves
// the asynchronous result by polling under a fixed budget.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	xglog "github.com/ManuGH/vitalscan/internal/log"
	"github.com/ManuGH/vitalscan/internal/media"
	"github.com/ManuGH/vitalscan/internal/metrics"
	"github.com/ManuGH/vitalscan/internal/platform/httpx"
	xnet "github.com/ManuGH/vitalscan/internal/platform/net"
	"github.com/ManuGH/vitalscan/internal/report"
	"github.com/ManuGH/vitalscan/internal/resilience"
	"github.com/ManuGH/vitalscan/internal/telemetry"
)

const (
	uploadPath       = "/api/analyse"
	reportPathPrefix = "/api/report/"
	uploadField      = "video"

	// RequestIDHeader carries the client correlation id on every request.
	RequestIDHeader = "X-Request-ID"

	maxResponseBytes = 8 << 20

	DefaultPollInterval    = 2000 * time.Millisecond
	DefaultMaxPollAttempts = 10
	DefaultUploadTimeout   = 2 * time.Minute
	defaultPollTimeout     = 15 * time.Second
)

// Config configures a Client. Zero values select defaults.
type Config struct {
	BaseURL         string
	UploadTimeout   time.Duration
	PollInterval    time.Duration
	MaxPollAttempts int

	BreakerThreshold int
	BreakerReset     time.Duration

	// RequestsPerSecond caps outbound requests; 0 disables the limiter.
	RequestsPerSecond float64
	UserAgent         string
}

// Request is one sample submitted for analysis.
type Request struct {
	Sample        media.Sample
	CorrelationID string
}

// NewRequest wraps an admitted sample with a fresh correlation id.
func NewRequest(sample media.Sample) Request {
	return Request{Sample: sample, CorrelationID: uuid.NewString()}
}

// Client talks to the analysis service. It is safe for concurrent use; at most
// one resolution per session is enforced by the caller.
type Client struct {
	baseURL     string
	uploadHTTP  *http.Client
	pollHTTP    *http.Client
	interval    time.Duration
	maxAttempts int
	breaker     *resilience.Breaker
	limiter     *rate.Limiter
	tracer      trace.Tracer
	logger      zerolog.Logger
	sleep       func(ctx context.Context, d time.Duration) error
	now         func() time.Time
}

// New validates cfg and returns a client.
func New(cfg Config) (*Client, error) {
	base, err := xnet.NormalizeBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("analysis: %w", err)
	}
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = DefaultUploadTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxPollAttempts <= 0 {
		cfg.MaxPollAttempts = DefaultMaxPollAttempts
	}

	c := &Client{
		baseURL: base,
		uploadHTTP: httpx.New(httpx.Options{
			Timeout:               cfg.UploadTimeout,
			ResponseHeaderTimeout: cfg.UploadTimeout,
			SpanName:              "analysis.upload",
			UserAgent:             cfg.UserAgent,
		}),
		pollHTTP: httpx.New(httpx.Options{
			Timeout:   defaultPollTimeout,
			SpanName:  "analysis.poll",
			UserAgent: cfg.UserAgent,
		}),
		interval:    cfg.PollInterval,
		maxAttempts: cfg.MaxPollAttempts,
		breaker: resilience.NewBreaker(resilience.Settings{
			Name:      "analysis_upload",
			Threshold: cfg.BreakerThreshold,
			Cooldown:  cfg.BreakerReset,
			IsFailure: countsTowardBreaker,
		}),
		tracer: telemetry.Tracer("vitalscan/analysis"),
		logger: xglog.WithComponent("analysis").With().Str(xglog.FieldBaseURL, xnet.SanitizeURL(base)).Logger(),
		sleep:  sleepContext,
		now:    time.Now,
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return c, nil
}

// BaseURL returns the normalized service base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// PollBudget returns the poll interval and the maximum number of attempts.
func (c *Client) PollBudget() (time.Duration, int) { return c.interval, c.maxAttempts }

// Analyze uploads the sample and resolves the report.
func (c *Client) Analyze(ctx context.Context, req Request) (*report.Report, error) {
	id, err := c.Upload(ctx, req)
	if err != nil {
		return nil, err
	}
	return c.Resolve(xglog.ContextWithCorrelationID(ctx, req.CorrelationID), id)
}

// Upload submits the sample and returns the server's report id.
func (c *Client) Upload(ctx context.Context, req Request) (string, error) {
	if req.CorrelationID == "" {
		req.CorrelationID = uuid.NewString()
	}
	ctx = xglog.ContextWithCorrelationID(ctx, req.CorrelationID)
	logger := xglog.WithContext(ctx, c.logger)
	sample := req.Sample

	ctx, span := c.tracer.Start(ctx, "analysis.upload", trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(telemetry.MediaAttributes(sample.BaseMimeType(), string(sample.Source()), sample.SizeBytes())...),
		trace.WithAttributes(attribute.String(telemetry.CorrelationIDKey, req.CorrelationID)),
	)

	body, contentType, err := multipartBody(sample)
	if err != nil {
		telemetry.EndSpan(span, err)
		return "", transportError("upload", MsgUploadFailed, 0, err)
	}

	var out uploadResponse
	var status int
	err = c.breaker.Do(ctx, func(ctx context.Context) error {
		if err := c.wait(ctx); err != nil {
			return err
		}
		started := c.now()
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+uploadPath, bytes.NewReader(body))
		if err != nil {
			return transportError("upload", MsgUploadFailed, 0, err)
		}
		httpReq.Header.Set("Content-Type", contentType)
		httpReq.Header.Set("Accept", "application/json")
		httpReq.Header.Set(RequestIDHeader, req.CorrelationID)

		resp, err := c.uploadHTTP.Do(httpReq)
		if err != nil {
			metrics.ObserveAnalysisRequest("upload", "error", time.Since(started).Seconds())
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return transportError("upload", MsgUploadFailed, 0, err)
		}
		defer func() { _ = resp.Body.Close() }()
		status = resp.StatusCode
		metrics.ObserveAnalysisRequest("upload", strconv.Itoa(status), time.Since(started).Seconds())

		raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return transportError("upload", MsgUploadFailed, status, err)
		}
		if err := json.Unmarshal(raw, &out); err != nil {
			return serverError(status, "", fmt.Errorf("decode upload response: %w", err))
		}
		ok := status >= 200 && status < 300
		if !ok || out.Status == "error" || !out.Success {
			return serverError(status, out.Message, nil)
		}
		if out.ReportID == "" {
			return serverError(status, "", errors.New("upload response carries no reportId"))
		}
		return nil
	})

	if errors.Is(err, resilience.ErrCircuitOpen) {
		err = transportError("upload", MsgUploadFailed, 0, err)
	}
	if err != nil {
		metrics.RecordUpload(uploadOutcome(err), sample.SizeBytes())
		span.SetAttributes(telemetry.ErrorAttributes(string(KindOf(err)))...)
		telemetry.EndSpan(span, err)
		logger.Warn().Err(err).
			Str(xglog.FieldEvent, "analysis.upload_failed").
			Int("status", status).
			Msg("upload failed")
		return "", err
	}

	metrics.RecordUpload("success", sample.SizeBytes())
	span.SetAttributes(attribute.String(telemetry.AnalysisReportIDKey, out.ReportID))
	telemetry.EndSpan(span, nil)
	logger.Info().
		Str(xglog.FieldEvent, "analysis.uploaded").
		Str(xglog.FieldReportID, out.ReportID).
		Int64(xglog.FieldSizeBytes, sample.SizeBytes()).
		Str(xglog.FieldMimeType, sample.MimeType()).
		Msg("sample uploaded")
	return out.ReportID, nil
}

// Resolve polls for the report until it is ready, the attempt budget is
// exhausted, or a transport failure occurs. A transport failure on any
// attempt ends the resolution immediately. There is no wait after the last
// attempt.
func (c *Client) Resolve(ctx context.Context, reportID string) (*report.Report, error) {
	ctx, span := c.tracer.Start(ctx, "analysis.resolve",
		trace.WithAttributes(attribute.String(telemetry.AnalysisReportIDKey, reportID)))
	logger := xglog.WithContext(ctx, c.logger).With().Str(xglog.FieldReportID, reportID).Logger()
	started := c.now()

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		rep, err := c.poll(ctx, reportID, attempt)
		switch {
		case err == nil:
			metrics.ObserveResolve("ready", c.now().Sub(started).Seconds())
			span.SetAttributes(attribute.Int(telemetry.AnalysisAttemptKey, attempt))
			telemetry.EndSpan(span, nil)
			logger.Info().
				Str(xglog.FieldEvent, "analysis.resolved").
				Int(xglog.FieldAttempt, attempt).
				Msg("report ready")
			return rep, nil
		case errors.Is(err, ErrNotReady):
		default:
			outcome := "transport_error"
			if ctx.Err() != nil {
				outcome = "canceled"
				err = ctx.Err()
			}
			metrics.ObserveResolve(outcome, c.now().Sub(started).Seconds())
			telemetry.EndSpan(span, err)
			logger.Warn().Err(err).
				Str(xglog.FieldEvent, "analysis.resolve_failed").
				Int(xglog.FieldAttempt, attempt).
				Msg("poll failed")
			return nil, err
		}

		if attempt == c.maxAttempts {
			break
		}
		if err := c.sleep(ctx, c.interval); err != nil {
			metrics.ObserveResolve("canceled", c.now().Sub(started).Seconds())
			telemetry.EndSpan(span, err)
			return nil, err
		}
	}

	err := &Error{Kind: KindTimeout, Op: "poll", Message: MsgTimeout,
		Err: fmt.Errorf("report %s not ready after %d attempts", reportID, c.maxAttempts)}
	metrics.ObserveResolve("timeout", c.now().Sub(started).Seconds())
	telemetry.EndSpan(span, err)
	logger.Warn().
		Str(xglog.FieldEvent, "analysis.timeout").
		Int("max_attempts", c.maxAttempts).
		Dur("interval", c.interval).
		Msg("report not ready within poll budget")
	return nil, err
}

// Fetch performs a single poll. It returns ErrNotReady while the report is pending.
func (c *Client) Fetch(ctx context.Context, reportID string) (*report.Report, error) {
	return c.poll(ctx, reportID, 1)
}

func (c *Client) poll(ctx context.Context, reportID string, attempt int) (*report.Report, error) {
	ctx, span := c.tracer.Start(ctx, "analysis.poll", trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(telemetry.PollAttributes(reportID, attempt, c.maxAttempts)...))

	rep, result, err := c.pollOnce(ctx, reportID)
	metrics.RecordPollAttempt(result)
	span.SetAttributes(attribute.String(telemetry.AnalysisResultKey, result))
	if errors.Is(err, ErrNotReady) {
		telemetry.EndSpan(span, nil)
	} else {
		telemetry.EndSpan(span, err)
	}
	logger := xglog.WithContext(ctx, c.logger)
	logger.Debug().
		Str(xglog.FieldEvent, "analysis.poll").
		Str(xglog.FieldReportID, reportID).
		Int(xglog.FieldAttempt, attempt).
		Str("result", result).
		Msg("poll attempt")
	return rep, err
}

func (c *Client) pollOnce(ctx context.Context, reportID string) (*report.Report, string, error) {
	if err := c.wait(ctx); err != nil {
		return nil, "transport_error", err
	}
	u := c.baseURL + reportPathPrefix + url.PathEscape(reportID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, "transport_error", transportError("poll", MsgRetrieveFailed, 0, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if id := xglog.CorrelationIDFromContext(ctx); id != "" {
		httpReq.Header.Set(RequestIDHeader, id)
	}

	started := c.now()
	resp, err := c.pollHTTP.Do(httpReq)
	if err != nil {
		metrics.ObserveAnalysisRequest("poll", "error", time.Since(started).Seconds())
		return nil, "transport_error", transportError("poll", MsgRetrieveFailed, 0, err)
	}
	defer func() { _ = resp.Body.Close() }()
	metrics.ObserveAnalysisRequest("poll", strconv.Itoa(resp.StatusCode), time.Since(started).Seconds())

	// The HTTP status is not consulted: readiness is decided by the payload.
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, "transport_error", transportError("poll", MsgRetrieveFailed, resp.StatusCode, err)
	}
	var payload pollResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, "transport_error", transportError("poll", MsgRetrieveFailed, resp.StatusCode,
			fmt.Errorf("decode poll response: %w", err))
	}
	if !payload.ready() {
		return nil, "pending", ErrNotReady
	}
	rep, err := report.Decode(payload.Data)
	if err != nil {
		return nil, "transport_error", transportError("poll", MsgRetrieveFailed, resp.StatusCode, err)
	}
	if rep.ReportID == "" {
		rep.ReportID = reportID
	}
	return rep, "ready", nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func multipartBody(sample media.Sample) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, uploadField, sample.Name()))
	h.Set("Content-Type", sample.BaseMimeType())
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, sample.Reader()); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// countsTowardBreaker trips the upload breaker on transport failures and 5xx only.
func countsTowardBreaker(err error) bool {
	var ae *Error
	if !errors.As(err, &ae) {
		return true
	}
	return ae.Kind == KindTransport || ae.Status >= 500
}

func uploadOutcome(err error) string {
	switch KindOf(err) {
	case KindServer:
		return "server_error"
	case KindTransport:
		return "transport_error"
	default:
		return "canceled"
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
