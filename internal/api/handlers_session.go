// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	xglog "github.com/ManuGH/vitalscan/internal/log"
	"github.com/ManuGH/vitalscan/internal/media"
	"github.com/ManuGH/vitalscan/internal/session"
)

// fileField is the multipart field carrying the video.
const fileField = "video"

// multipartSlack covers form boundaries and part headers.
const multipartSlack = 1 << 20

func (s *Server) handleGetSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

// handleSelectFile streams the "video" part. At most one byte past the size
// limit is read so oversized files are rejected as too large.
func (s *Server) handleSelectFile(w http.ResponseWriter, r *http.Request) {
	limit := s.validator.Limits().MaxSizeBytes
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartSlack)

	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", "expected multipart/form-data")
		return
	}

	var (
		data     []byte
		mimeType string
		name     string
		found    bool
	)
	for !found {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			writeError(w, r, http.StatusBadRequest, "bad_request", fmt.Sprintf("missing %q file field", fileField))
			return
		}
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "bad_request", "malformed multipart body")
			return
		}
		if part.FormName() != fileField {
			_ = part.Close()
			continue
		}
		found = true
		name = part.FileName()
		mimeType = part.Header.Get("Content-Type")
		data, err = io.ReadAll(io.LimitReader(part, limit+1))
		_ = part.Close()
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "bad_request", "could not read uploaded file")
			return
		}
	}
	if mimeType == "" || strings.HasPrefix(mimeType, "application/octet-stream") {
		if byExt := media.TypeByExtension(filepath.Ext(name)); byExt != "" {
			mimeType = byExt
		}
	}

	if err := s.session.SelectFile(r.Context(), data, mimeType, name); err != nil {
		writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleStartRecording(w http.ResponseWriter, r *http.Request) {
	if !s.session.Snapshot().HasStream && s.openStream != nil {
		stream, err := s.openStream()
		if err != nil {
			writeSessionError(w, r, fmt.Errorf("%w: %w", session.ErrPermission, err))
			return
		}
		if err := s.session.AttachStream(stream); err != nil {
			writeSessionError(w, r, err)
			return
		}
	}
	if err := s.session.StartRecording(r.Context()); err != nil {
		writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleStopRecording(w http.ResponseWriter, r *http.Request) {
	if err := s.session.StopRecording(); err != nil {
		writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

// handleSubmit answers 202 once the upload is scheduled; the request id
// becomes the correlation id of the analysis request.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if id := xglog.RequestIDFromContext(ctx); id != "" {
		ctx = xglog.ContextWithCorrelationID(ctx, id)
	}
	if err := s.session.Submit(ctx); err != nil {
		writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.session.Snapshot())
}

func (s *Server) handleRetake(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Retake(); err != nil {
		writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Reset(); err != nil {
		writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}
