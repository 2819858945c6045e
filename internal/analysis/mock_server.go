// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package analysis

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// DefaultMockReport is the report served by MockServer unless replaced.
const DefaultMockReport = `{
  "vitals": {
    "heartRate": {"value": 72, "unit": "bpm", "range": {"low": 60, "high": 100}, "status": "normal", "confidence": "high"},
    "heartRateVariability": {"value": 45, "unit": "ms", "range": {"low": 20, "high": 70}, "status": "normal", "confidence": "moderate"},
    "respiratoryRate": {"value": 16, "unit": "breaths/min", "range": {"low": 12, "high": 20}, "status": "normal", "confidence": "moderate"},
    "bloodPressure": {"value": {"systolic": 120, "diastolic": 80}, "unit": "mmHg", "range": {"systolic": {"low": 90, "high": 140}, "diastolic": {"low": 60, "high": 90}}, "status": "normal", "confidence": "low"},
    "stressLevel": {"value": 30, "unit": "%", "status": "normal", "confidence": "moderate"},
    "spO2": {"value": 98, "unit": "%", "range": {"low": 95, "high": 100}, "status": "normal", "confidence": "high"}
  },
  "metadata": {"generatedAt": "2025-03-14T10:21:07Z", "recordingDuration": 29.6},
  "analysis": {"summary": {"overallStatus": "Normal"}, "concerns": [], "recommendations": [{"category": "General", "suggestions": ["Keep it up"]}]},
  "reliability": {"overallConfidence": {"level": "High", "score": 0.9, "factors": {"lighting": "good"}}, "measurementQuality": {"factors": {"stability": "stable"}}, "limitations": ["Not a medical device"]}
}`

// PollMode selects how MockServer answers report polls.
type PollMode int

const (
	// PollReady answers pending until PendingPolls is exhausted, then ready.
	PollReady PollMode = iota
	// PollMalformed answers with a body that is not JSON.
	PollMalformed
	// PollServerError answers 500 with a pending payload; the status itself must not matter.
	PollServerError
)

// Upload is what MockServer saw on one upload.
type Upload struct {
	Field       string
	FileName    string
	ContentType string
	Size        int
	RequestID   string
	UserAgent   string
}

// MockServer is a configurable analysis service for tests.
type MockServer struct {
	*httptest.Server

	mu             sync.Mutex
	reportID       string
	uploadStatus   int
	uploadBody     string
	pendingPolls   int
	pollMode       PollMode
	reportJSON     string
	uploadDelay    time.Duration
	uploads        []Upload
	polls          []time.Time
	pollRequestIDs []string
}

// NewMockServer starts a server that accepts uploads and becomes ready on the first poll.
func NewMockServer() *MockServer {
	m := &MockServer{
		reportID:     "rpt-mock-1",
		uploadStatus: http.StatusOK,
		reportJSON:   DefaultMockReport,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/analyse", m.handleUpload)
	mux.HandleFunc("GET /api/report/{id}", m.handleReport)
	m.Server = httptest.NewServer(mux)
	return m
}

// SetUploadResponse replaces the upload answer with a raw status and body.
func (m *MockServer) SetUploadResponse(status int, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadStatus = status
	m.uploadBody = body
}

// SetUploadDelay delays upload answers.
func (m *MockServer) SetUploadDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadDelay = d
}

// SetPending makes the first n polls answer "not ready".
func (m *MockServer) SetPending(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingPolls = n
}

// SetPollMode changes how polls are answered.
func (m *MockServer) SetPollMode(mode PollMode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pollMode = mode
}

// SetReport replaces the report payload.
func (m *MockServer) SetReport(raw string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reportJSON = raw
}

// ReportID returns the id handed out on upload.
func (m *MockServer) ReportID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reportID
}

// Uploads returns the uploads received so far.
func (m *MockServer) Uploads() []Upload {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Upload(nil), m.uploads...)
}

// Polls returns the arrival time of every poll.
func (m *MockServer) Polls() []time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Time(nil), m.polls...)
}

// PollRequestIDs returns the correlation header of every poll.
func (m *MockServer) PollRequestIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.pollRequestIDs...)
}

func (m *MockServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	delay := m.uploadDelay
	m.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	up := Upload{RequestID: r.Header.Get(RequestIDHeader), UserAgent: r.UserAgent()}
	if mr, err := r.MultipartReader(); err == nil {
		for {
			part, err := mr.NextPart()
			if err != nil {
				break
			}
			n, _ := io.Copy(io.Discard, part)
			if up.Field == "" {
				up.Field = part.FormName()
				up.FileName = part.FileName()
				up.ContentType = part.Header.Get("Content-Type")
				up.Size = int(n)
			}
		}
	}

	m.mu.Lock()
	m.uploads = append(m.uploads, up)
	status, body, id := m.uploadStatus, m.uploadBody, m.reportID
	m.mu.Unlock()

	if body == "" {
		body = `{"success":true,"reportId":"` + id + `"}`
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func (m *MockServer) handleReport(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.polls = append(m.polls, time.Now())
	m.pollRequestIDs = append(m.pollRequestIDs, r.Header.Get(RequestIDHeader))
	mode := m.pollMode
	pending := m.pendingPolls > 0
	if pending {
		m.pendingPolls--
	}
	known := r.PathValue("id") == m.reportID
	reportJSON := m.reportJSON
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case mode == PollMalformed:
		_, _ = io.WriteString(w, "<html>bad gateway</html>")
	case mode == PollServerError:
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"success":false}`)
	case !known:
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "report not found"})
	case pending:
		_, _ = io.WriteString(w, `{"success":true,"data":{}}`)
	default:
		_, _ = io.WriteString(w, `{"success":true,"data":`+strings.TrimSpace(reportJSON)+`}`)
	}
}
