// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by all spans.
const (
	HTTPStatusCodeKey = "http.status_code"

	AnalysisOperationKey = "analysis.operation"
	AnalysisReportIDKey  = "analysis.report_id"
	AnalysisAttemptKey   = "analysis.attempt"
	AnalysisMaxKey       = "analysis.max_attempts"
	AnalysisResultKey    = "analysis.result"
	CorrelationIDKey     = "analysis.correlation_id"

	MediaMimeTypeKey  = "media.mime_type"
	MediaSizeBytesKey = "media.size_bytes"
	MediaSourceKey    = "media.source"

	SessionIDKey    = "session.id"
	SessionStateKey = "session.state"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// MediaAttributes describes an uploaded sample.
func MediaAttributes(mimeType, source string, sizeBytes int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(MediaMimeTypeKey, mimeType),
		attribute.String(MediaSourceKey, source),
		attribute.Int64(MediaSizeBytesKey, sizeBytes),
	}
}

// PollAttributes describes one poll attempt.
func PollAttributes(reportID string, attempt, maxAttempts int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AnalysisReportIDKey, reportID),
		attribute.Int(AnalysisAttemptKey, attempt),
		attribute.Int(AnalysisMaxKey, maxAttempts),
	}
}

// ErrorAttributes marks a span as failed with a classified error type.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
