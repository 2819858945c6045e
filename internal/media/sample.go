// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package media models candidate video samples and the resources bound to them.
package media

import (
	"bytes"
	"io"
	"mime"
	"strings"
	"time"
)

// Source identifies where a sample came from.
type Source string

const (
	SourceRecorder Source = "recorder"
	SourceFile     Source = "file"
)

// Sample is one candidate video. It is immutable once built; With* methods return copies.
type Sample struct {
	data     []byte
	mimeType string
	name     string
	duration time.Duration
	source   Source
}

// NewSample builds a sample from raw bytes. A zero duration means "unknown until probed".
// The byte slice is owned by the sample afterwards.
func NewSample(data []byte, mimeType string, source Source) Sample {
	return Sample{
		data:     data,
		mimeType: strings.TrimSpace(mimeType),
		source:   source,
	}
}

// WithDuration returns a copy carrying the given duration.
func (s Sample) WithDuration(d time.Duration) Sample {
	s.duration = d
	return s
}

// WithName returns a copy carrying the original file name.
func (s Sample) WithName(name string) Sample {
	s.name = name
	return s
}

// MimeType returns the declared mime type, including any parameters.
func (s Sample) MimeType() string { return s.mimeType }

// BaseMimeType returns the mime type without parameters, lower-cased.
func (s Sample) BaseMimeType() string {
	if s.mimeType == "" {
		return ""
	}
	base, _, err := mime.ParseMediaType(s.mimeType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.SplitN(s.mimeType, ";", 2)[0]))
	}
	return base
}

// SizeBytes returns the sample size.
func (s Sample) SizeBytes() int64 { return int64(len(s.data)) }

// Duration returns the known duration, or 0 when it has not been probed.
func (s Sample) Duration() time.Duration { return s.duration }

// DurationKnown reports whether the duration has been established.
func (s Sample) DurationKnown() bool { return s.duration > 0 }

// Source returns where the sample came from.
func (s Sample) Source() Source { return s.source }

// Name returns the original file name, or a name derived from the mime type.
func (s Sample) Name() string {
	if s.name != "" {
		return s.name
	}
	return "sample" + Extension(s.BaseMimeType())
}

// IsZero reports whether the sample carries no data.
func (s Sample) IsZero() bool { return len(s.data) == 0 }

// Reader returns a fresh reader over the sample bytes.
func (s Sample) Reader() io.Reader { return bytes.NewReader(s.data) }

// Info is the serializable description of a sample.
type Info struct {
	MimeType        string  `json:"mimeType"`
	SizeBytes       int64   `json:"sizeBytes"`
	DurationSeconds float64 `json:"durationSeconds,omitempty"`
	Source          Source  `json:"source"`
	Name            string  `json:"name,omitempty"`
}

// Info describes the sample without exposing its bytes.
func (s Sample) Info() Info {
	return Info{
		MimeType:        s.mimeType,
		SizeBytes:       s.SizeBytes(),
		DurationSeconds: s.duration.Seconds(),
		Source:          s.source,
		Name:            s.name,
	}
}

// Extension maps the accepted video mime types to a file extension.
func Extension(mimeType string) string {
	switch mimeType {
	case "video/mp4":
		return ".mp4"
	case "video/webm":
		return ".webm"
	case "video/quicktime":
		return ".mov"
	default:
		return ".bin"
	}
}

// TypeByExtension maps a file extension to a video mime type. The accepted
// containers are resolved without the host mime database.
func TypeByExtension(ext string) string {
	switch strings.ToLower(ext) {
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".mov", ".qt":
		return "video/quicktime"
	default:
		return mime.TypeByExtension(ext)
	}
}
