// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package reportstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/ManuGH/vitalscan/internal/fsutil"
	xglog "github.com/ManuGH/vitalscan/internal/log"
	"github.com/ManuGH/vitalscan/internal/report"
)

// View selects what Export writes.
type View string

const (
	ViewReport        View = "report"
	ViewVisualization View = "visualization"
)

// Export writes the report (or its visualization model) as indented JSON,
// replacing path atomically.
func (s *Service) Export(ctx context.Context, id, path string, view View) error {
	rep, _, err := s.Lookup(ctx, id)
	if err != nil {
		return err
	}
	data, err := encodeView(rep, view)
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("reportstore: export %s: %w", id, err)
	}
	logger := xglog.WithContext(ctx, s.logger)
	logger.Info().
		Str(xglog.FieldEvent, "report.exported").
		Str(xglog.FieldReportID, id).
		Str(xglog.FieldPath, path).
		Str("view", string(view)).
		Msg("report exported")
	return nil
}

func encodeView(rep *report.Report, view View) ([]byte, error) {
	switch view {
	case "", ViewReport:
		payload, err := payloadOf(rep)
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := json.Indent(&buf, payload, "", "  "); err != nil {
			return nil, fmt.Errorf("reportstore: indent report: %w", err)
		}
		buf.WriteByte('\n')
		return buf.Bytes(), nil
	case ViewVisualization:
		data, err := json.MarshalIndent(report.Normalize(rep), "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	default:
		return nil, fmt.Errorf("reportstore: unknown view %q", view)
	}
}
