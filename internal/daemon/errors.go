// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import "errors"

var (
	// ErrMissingServer is returned when no API server is provided.
	ErrMissingServer = errors.New("api server is required")

	// ErrMissingHTTPServer is returned when no http.Server is provided.
	ErrMissingHTTPServer = errors.New("http server is required")
)
