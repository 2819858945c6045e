// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package validate

// Accepted values for enumerated settings.
var (
	LogLevels  = []string{"debug", "info", "warn", "error"}
	LogFormats = []string{"json", "console"}
	// OTLPExporters are the trace exporter transports.
	OTLPExporters = []string{"grpc", "http"}
)
