// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package fsutil holds small filesystem helpers shared by the CLI and the
// report store.
package fsutil

import (
	"fmt"
	"os"
)

// OpenRegular opens path for reading and rejects anything that is not a
// regular file. The mode is checked on the open descriptor.
func OpenRegular(path string) (*os.File, error) {
	f, err := os.Open(path) // #nosec G304 -- caller-chosen input
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if !info.Mode().IsRegular() {
		_ = f.Close()
		return nil, fmt.Errorf("%s: not a regular file (%s)", path, info.Mode().Type())
	}
	return f, nil
}
