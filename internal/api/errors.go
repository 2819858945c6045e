// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"errors"
	"net/http"

	"github.com/ManuGH/vitalscan/internal/admission"
	"github.com/ManuGH/vitalscan/internal/analysis"
	"github.com/ManuGH/vitalscan/internal/api/middleware"
	xglog "github.com/ManuGH/vitalscan/internal/log"
	"github.com/ManuGH/vitalscan/internal/reportstore"
	"github.com/ManuGH/vitalscan/internal/session"
)

func writeJSON(w http.ResponseWriter, code int, v any) { middleware.WriteJSON(w, code, v) }

func writeError(w http.ResponseWriter, r *http.Request, code int, kind, detail string) {
	middleware.WriteError(w, r, code, kind, detail)
}

// writeSessionError maps controller errors. Rejected samples and camera
// failures carry the message meant for the user.
func writeSessionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, session.ErrInvalidTransition):
		writeError(w, r, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, admission.ErrValidation):
		writeError(w, r, http.StatusUnprocessableEntity, string(session.KindValidation), session.DisplayMessage(err))
	case errors.Is(err, session.ErrPermission):
		writeError(w, r, http.StatusServiceUnavailable, string(session.KindPermission), session.DisplayMessage(err))
	case errors.Is(err, session.ErrClosed):
		writeError(w, r, http.StatusServiceUnavailable, "closed", "session is closed")
	case errors.Is(err, session.ErrRecording):
		writeError(w, r, http.StatusInternalServerError, string(session.KindRecording), session.DisplayMessage(err))
	default:
		logError(r, err)
		writeError(w, r, http.StatusInternalServerError, string(session.KindInternal), "internal server error")
	}
}

// writeLookupError maps report lookup errors.
func writeLookupError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, reportstore.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not_found", "report not found")
	case errors.Is(err, analysis.ErrNotReady):
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "pending"})
	case analysis.KindOf(err) != "":
		writeError(w, r, http.StatusBadGateway, string(analysis.KindOf(err)), analysis.DisplayMessage(err))
	default:
		logError(r, err)
		writeError(w, r, http.StatusInternalServerError, string(session.KindInternal), "internal server error")
	}
}

func logError(r *http.Request, err error) {
	logger := xglog.WithComponentFromContext(r.Context(), "api")
	logger.Error().
		Err(err).
		Str(xglog.FieldEvent, "api.internal_error").
		Str(xglog.FieldPath, r.URL.Path).
		Msg("request failed")
}
