// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Field names shared by every component.
const (
	FieldEvent     = "event"
	FieldComponent = "component"

	FieldRequestID     = "request_id"
	FieldCorrelationID = "correlation_id"
	FieldSessionID     = "session_id"
	FieldReportID      = "report_id"

	FieldAttempt    = "attempt"
	FieldReason     = "reason"
	FieldOldState   = "old_state"
	FieldNewState   = "new_state"
	FieldMimeType   = "mime_type"
	FieldSizeBytes  = "size_bytes"
	FieldDuration   = "duration_seconds"
	FieldDevice     = "device"
	FieldResolution = "resolution"
	FieldPath       = "path"
	FieldBaseURL    = "base_url"
)
