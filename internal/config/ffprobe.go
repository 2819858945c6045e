// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ResolveFFprobeBin picks the ffprobe binary: the explicit value, else the
// ffprobe next to a concrete ffmpeg path, else "ffprobe" from PATH.
func ResolveFFprobeBin(ffprobeBin, ffmpegBin string) string {
	return resolveFFprobeBin(ffprobeBin, ffmpegBin, os.Stat)
}

func resolveFFprobeBin(ffprobeBin, ffmpegBin string, stat func(string) (os.FileInfo, error)) string {
	if v := strings.TrimSpace(ffprobeBin); v != "" {
		return v
	}
	ffmpegBin = strings.TrimSpace(ffmpegBin)
	if !strings.ContainsRune(ffmpegBin, filepath.Separator) {
		return "ffprobe"
	}
	name := "ffprobe"
	if ext := filepath.Ext(ffmpegBin); ext != "" {
		name += ext
	}
	if base := strings.TrimSuffix(filepath.Base(ffmpegBin), filepath.Ext(ffmpegBin)); base != "ffmpeg" {
		return "ffprobe"
	}
	candidate := filepath.Join(filepath.Dir(ffmpegBin), name)
	if fi, err := stat(candidate); err == nil && !fi.IsDir() {
		return candidate
	}
	return "ffprobe"
}
