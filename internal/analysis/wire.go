// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package analysis

import (
	"bytes"
	"encoding/json"
)

// Wire shapes of the analysis service.

type uploadResponse struct {
	Success  bool   `json:"success"`
	Status   string `json:"status,omitempty"`
	Message  string `json:"message,omitempty"`
	ReportID string `json:"reportId,omitempty"`
}

type pollResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// ready reports whether the poll payload carries a completed report:
// success with data being a non-empty object.
func (p pollResponse) ready() bool {
	if !p.Success {
		return false
	}
	data := bytes.TrimSpace(p.Data)
	if len(data) == 0 || data[0] != '{' {
		return false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return false
	}
	return len(fields) > 0
}
