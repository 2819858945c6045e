// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveFFprobeBin_Explicit(t *testing.T) {
	t.Parallel()

	if got := ResolveFFprobeBin("/custom/ffprobe", "/custom/ffmpeg"); got != "/custom/ffprobe" {
		t.Fatalf("expected explicit ffprobe bin, got %q", got)
	}
}

func TestResolveFFprobeBin_DerivedWhenPresent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ffprobe := filepath.Join(dir, "ffprobe")
	if err := os.WriteFile(ffprobe, []byte("stub"), 0o755); err != nil {
		t.Fatalf("write ffprobe stub: %v", err)
	}

	if got := ResolveFFprobeBin("", filepath.Join(dir, "ffmpeg")); got != ffprobe {
		t.Fatalf("expected derived ffprobe bin %q, got %q", ffprobe, got)
	}
}

func TestResolveFFprobeBin_PathFallback(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cases := map[string]string{
		"bare name":       "ffmpeg",
		"missing sibling": filepath.Join(dir, "ffmpeg"),
		"other binary":    filepath.Join(dir, "avconv"),
	}
	for name, ffmpeg := range cases {
		if got := ResolveFFprobeBin("", ffmpeg); got != "ffprobe" {
			t.Errorf("%s: expected PATH fallback, got %q", name, got)
		}
	}
}

func TestResolveFFprobeBin_IgnoresDirectory(t *testing.T) {
	t.Parallel()

	stat := func(string) (os.FileInfo, error) { return os.Stat(os.TempDir()) }
	if got := resolveFFprobeBin("", "/opt/bin/ffmpeg", stat); got != "ffprobe" {
		t.Fatalf("expected PATH fallback for a directory, got %q", got)
	}
}
