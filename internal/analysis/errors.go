// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package analysis

import (
	"errors"
	"fmt"
)

// Kind classifies a resolution failure.
type Kind string

const (
	KindTransport Kind = "transport"
	KindServer    Kind = "server"
	KindTimeout   Kind = "timeout"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrTransport = errors.New("analysis: transport failure")
	ErrServer    = errors.New("analysis: server rejected the request")
	ErrTimeout   = errors.New("analysis: result not ready within the poll budget")
	// ErrNotReady is returned by Fetch while the report is still being computed.
	ErrNotReady = errors.New("analysis: report not ready")
)

// User-facing messages.
const (
	MsgUploadFailed   = "Failed to process video. Please try again."
	MsgTimeout        = "Analysis is taking longer than expected. Please try again."
	MsgRetrieveFailed = "Failed to retrieve analysis results. Please try again."
)

// Error wraps a sentinel with the operation context.
type Error struct {
	Kind   Kind
	Op     string // upload | poll
	Status int
	// Message is the text to show the user; for server errors it is the
	// service's own message when it sent one.
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("analysis: %s: %s", e.Op, e.Kind)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	errs := []error{e.sentinel()}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func (e *Error) sentinel() error {
	switch e.Kind {
	case KindServer:
		return ErrServer
	case KindTimeout:
		return ErrTimeout
	default:
		return ErrTransport
	}
}

// DisplayMessage is the text to show the user for err.
func DisplayMessage(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	switch {
	case errors.Is(err, ErrTimeout):
		return MsgTimeout
	case errors.Is(err, ErrServer):
		return MsgUploadFailed
	default:
		return MsgRetrieveFailed
	}
}

// KindOf returns the kind of err, or "" when it is not an analysis error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

func transportError(op, message string, status int, err error) *Error {
	return &Error{Kind: KindTransport, Op: op, Status: status, Message: message, Err: err}
}

func serverError(status int, message string, err error) *Error {
	if message == "" {
		message = MsgUploadFailed
	}
	return &Error{Kind: KindServer, Op: "upload", Status: status, Message: message, Err: err}
}
