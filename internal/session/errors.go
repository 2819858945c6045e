// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package session

import (
	"errors"

	"github.com/ManuGH/vitalscan/internal/admission"
	"github.com/ManuGH/vitalscan/internal/analysis"
	"github.com/ManuGH/vitalscan/internal/fsm"
)

var (
	// ErrPermission means recording was requested without a usable camera stream.
	ErrPermission = errors.New("session: no camera stream available")
	// ErrInvalidTransition is returned for operations the current state does not allow.
	ErrInvalidTransition = fsm.ErrInvalidTransition
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("session: controller closed")
	// ErrRecording means the capture source failed or produced nothing usable.
	ErrRecording = errors.New("session: recording failed")
	// ErrNoResolution is returned by AwaitResult when no resolution settled.
	ErrNoResolution = errors.New("session: no resolution to await")
)

// ErrorKind classifies the error stored on a session.
type ErrorKind string

const (
	KindNone       ErrorKind = ""
	KindPermission ErrorKind = "permission"
	KindValidation ErrorKind = "validation"
	KindRecording  ErrorKind = "recording"
	KindTransport  ErrorKind = "transport"
	KindServer     ErrorKind = "server"
	KindTimeout    ErrorKind = "timeout"
	KindInternal   ErrorKind = "internal"
)

const (
	msgPermission = "No video stream available. Check camera permissions."
	msgRecording  = "Recording failed. Please try again."
)

// Classify maps an error to its kind.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrPermission):
		return KindPermission
	case errors.Is(err, admission.ErrValidation):
		return KindValidation
	case errors.Is(err, ErrRecording):
		return KindRecording
	case errors.Is(err, analysis.ErrTimeout):
		return KindTimeout
	case errors.Is(err, analysis.ErrServer):
		return KindServer
	case errors.Is(err, analysis.ErrTransport):
		return KindTransport
	default:
		return KindInternal
	}
}

// DisplayMessage is the user-facing text for a session error.
func DisplayMessage(err error) string {
	switch Classify(err) {
	case KindNone:
		return ""
	case KindPermission:
		return msgPermission
	case KindValidation:
		var rej *admission.Rejection
		if errors.As(err, &rej) {
			return rej.Message()
		}
		return "Error validating video. Please try another file."
	case KindRecording:
		return msgRecording
	case KindTimeout, KindServer, KindTransport:
		return analysis.DisplayMessage(err)
	default:
		return analysis.MsgUploadFailed
	}
}
