// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package capture provides camera streams that produce recorded video fragments.
package capture

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable means the capture device cannot be opened (missing or not permitted).
	ErrUnavailable = errors.New("capture device unavailable")
	// ErrClosed is returned by Record after Close.
	ErrClosed = errors.New("capture stream closed")
	// ErrBusy is returned by Record while another recording is active on the stream.
	ErrBusy = errors.New("capture stream already recording")
)

// Stream is an armed camera. Close releases the device and is idempotent.
type Stream interface {
	ID() string
	Record(ctx context.Context) (Recording, error)
	Close() error
}

// Recording is one in-progress capture.
//
// Fragments delivers encoded chunks in order and is closed when the recording
// ends, either after Stop or because the source failed; Err reports the latter.
// Stop returns once Fragments is closed and may be called more than once.
type Recording interface {
	Fragments() <-chan []byte
	MimeType() string
	Stop() error
	Err() error
}
