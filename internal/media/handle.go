// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package media

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// Handle is a resource bound to a sample that must be released exactly once.
type Handle interface {
	// Path is the on-disk location of the materialised sample.
	Path() string
	// Release frees the resource. It is safe to call more than once.
	Release() error
}

// Spooler materialises samples on disk so that external tools can read them.
type Spooler struct {
	dir string
}

// NewSpooler returns a spooler writing into dir (the OS temp dir when empty).
func NewSpooler(dir string) *Spooler {
	return &Spooler{dir: dir}
}

// Spool writes the sample into a new temporary file and returns its handle.
func (s *Spooler) Spool(sample Sample) (Handle, error) {
	if sample.IsZero() {
		return nil, errors.New("spool: empty sample")
	}
	if s.dir != "" {
		if err := os.MkdirAll(s.dir, 0o750); err != nil {
			return nil, fmt.Errorf("spool: create dir: %w", err)
		}
	}
	f, err := os.CreateTemp(s.dir, "vitalscan-*"+Extension(sample.BaseMimeType()))
	if err != nil {
		return nil, fmt.Errorf("spool: create file: %w", err)
	}
	if _, err := io.Copy(f, sample.Reader()); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("spool: write: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("spool: close: %w", err)
	}
	return &fileHandle{path: f.Name()}, nil
}

type fileHandle struct {
	path string
	once sync.Once
	err  error
}

func (h *fileHandle) Path() string { return h.path }

func (h *fileHandle) Release() error {
	h.once.Do(func() {
		if err := os.Remove(h.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			h.err = err
		}
	})
	return h.err
}
