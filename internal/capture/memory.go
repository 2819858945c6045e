// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const fileChunkSize = 256 * 1024

// MemoryStream replays fixed fragments as a camera. Each recording emits the
// fragments and then stays open until stopped, like a live device.
type MemoryStream struct {
	id        string
	mimeType  string
	fragments [][]byte
	failWith  error

	mu      sync.Mutex
	closed  bool
	current *memoryRecording
}

// NewMemoryStream returns a stream emitting the given fragments on every recording.
func NewMemoryStream(mimeType string, fragments ...[]byte) *MemoryStream {
	return &MemoryStream{id: uuid.NewString(), mimeType: mimeType, fragments: fragments}
}

// NewFileStream emulates a camera with the contents of a video file.
func NewFileStream(path string) (*MemoryStream, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied input file
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var chunks [][]byte
	for len(data) > 0 {
		n := min(fileChunkSize, len(data))
		chunks = append(chunks, data[:n])
		data = data[n:]
	}
	return NewMemoryStream(mimeFromExt(path), chunks...), nil
}

// FailWith makes subsequent recordings end on their own with err after emitting their fragments.
func (s *MemoryStream) FailWith(err error) *MemoryStream {
	s.mu.Lock()
	s.failWith = err
	s.mu.Unlock()
	return s
}

func (s *MemoryStream) ID() string { return s.id }

// Closed reports whether Close was called.
func (s *MemoryStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *MemoryStream) Record(ctx context.Context) (Recording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if s.current != nil && !s.current.isDone() {
		return nil, ErrBusy
	}
	r := &memoryRecording{
		mimeType: s.mimeType,
		out:      make(chan []byte),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	s.current = r
	go r.run(ctx, s.fragments, s.failWith)
	return r, nil
}

func (s *MemoryStream) Close() error {
	s.mu.Lock()
	s.closed = true
	cur := s.current
	s.mu.Unlock()
	if cur != nil {
		return cur.Stop()
	}
	return nil
}

type memoryRecording struct {
	mimeType string
	out      chan []byte
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	err      error
}

func (r *memoryRecording) run(ctx context.Context, fragments [][]byte, failWith error) {
	defer close(r.out)
	defer close(r.done)
	for i, f := range fragments {
		select {
		case r.out <- f:
		case <-r.stop:
			// Like ffmpeg on 'q', a stopped recording still delivers what it has.
			r.flush(ctx, fragments[i:])
			return
		case <-ctx.Done():
			return
		}
	}
	if failWith != nil {
		r.err = failWith
		return
	}
	select {
	case <-r.stop:
	case <-ctx.Done():
	}
}

func (r *memoryRecording) flush(ctx context.Context, fragments [][]byte) {
	for _, f := range fragments {
		select {
		case r.out <- f:
		case <-ctx.Done():
			return
		}
	}
}

func (r *memoryRecording) Fragments() <-chan []byte { return r.out }
func (r *memoryRecording) MimeType() string         { return r.mimeType }

func (r *memoryRecording) Stop() error {
	r.stopOnce.Do(func() { close(r.stop) })
	<-r.done
	return nil
}

// Err is valid once Fragments is closed.
func (r *memoryRecording) Err() error {
	select {
	case <-r.done:
		return r.err
	default:
		return nil
	}
}

func (r *memoryRecording) isDone() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

func mimeFromExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".webm":
		return "video/webm"
	case ".mov":
		return "video/quicktime"
	default:
		return "video/mp4"
	}
}
