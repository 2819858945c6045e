// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package capture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestGuidanceAt(t *testing.T) {
	tests := []struct {
		elapsed time.Duration
		title   string
	}{
		{0, "Position Yourself"},
		{4 * time.Second, "Position Yourself"},
		{5 * time.Second, "Hold Steady"},
		{14 * time.Second, "Adjust Lighting"},
		{15 * time.Second, "Maintain Neutral Expression"},
		{24 * time.Second, "Steady Gaze"},
		{30 * time.Second, "Final Check"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.title, GuidanceAt(tt.elapsed).Title, tt.elapsed.String())
	}
	assert.Len(t, GuidanceSteps(), 6)
}

func drain(r Recording) [][]byte {
	var got [][]byte
	for f := range r.Fragments() {
		got = append(got, f)
	}
	return got
}

func TestMemoryStream_RecordUntilStop(t *testing.T) {
	s := NewMemoryStream("video/webm", []byte("a"), []byte("b"))
	rec, err := s.Record(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "video/webm", rec.MimeType())

	done := make(chan [][]byte)
	go func() { done <- drain(rec) }()

	select {
	case <-done:
		t.Fatal("recording ended before Stop")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, rec.Stop())
	got := <-done
	assert.Len(t, got, 2)
	assert.NoError(t, rec.Err())
	require.NoError(t, s.Close())
}

func TestMemoryStream_ImmediateStopKeepsFragments(t *testing.T) {
	s := NewMemoryStream("video/webm", []byte("a"), []byte("b"))
	defer s.Close()

	for range 20 {
		rec, err := s.Record(context.Background())
		require.NoError(t, err)

		done := make(chan [][]byte)
		go func() { done <- drain(rec) }()
		require.NoError(t, rec.Stop())

		assert.Equal(t, [][]byte{[]byte("a"), []byte("b")}, <-done)
		assert.NoError(t, rec.Err())
	}
}

func TestMemoryStream_EmitsAllBeforeStop(t *testing.T) {
	s := NewMemoryStream("video/mp4", []byte("a"), []byte("b"), []byte("c"))
	rec, err := s.Record(context.Background())
	require.NoError(t, err)

	var got []string
	for i := 0; i < 3; i++ {
		got = append(got, string(<-rec.Fragments()))
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)

	_, err = s.Record(context.Background())
	require.ErrorIs(t, err, ErrBusy)

	require.NoError(t, rec.Stop())
	require.NoError(t, rec.Stop())
	require.NoError(t, s.Close())
	_, err = s.Record(context.Background())
	require.ErrorIs(t, err, ErrClosed)
	assert.True(t, s.Closed())
}

func TestMemoryStream_FailureEndsRecording(t *testing.T) {
	errCam := errors.New("camera unplugged")
	s := NewMemoryStream("video/mp4", []byte("a")).FailWith(errCam)
	rec, err := s.Record(context.Background())
	require.NoError(t, err)

	got := drain(rec)
	assert.Len(t, got, 1)
	assert.ErrorIs(t, rec.Err(), errCam)
	require.NoError(t, s.Close())
}

func TestNewFileStream_ChunksFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.webm")
	data := []byte(strings.Repeat("x", fileChunkSize+10))
	require.NoError(t, os.WriteFile(path, data, 0o600))

	s, err := NewFileStream(path)
	require.NoError(t, err)
	assert.Equal(t, "video/webm", s.mimeType)
	require.Len(t, s.fragments, 2)
	assert.Len(t, s.fragments[1], 10)

	_, err = NewFileStream(filepath.Join(t.TempDir(), "missing.mp4"))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestOpen_FileInputReplaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "face.mov")
	require.NoError(t, os.WriteFile(path, []byte("moov"), 0o600))

	s, err := Open(DeviceConfig{InputFormat: InputFormatFile, Device: path})
	require.NoError(t, err)
	defer s.Close()

	rec, err := s.Record(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "video/quicktime", rec.MimeType())
	done := make(chan [][]byte)
	go func() { done <- drain(rec) }()
	require.NoError(t, rec.Stop())
	assert.Equal(t, [][]byte{[]byte("moov")}, <-done)

	_, err = Open(DeviceConfig{InputFormat: InputFormatFile, Device: filepath.Join(t.TempDir(), "none.mp4")})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestOpenDevice_MissingDevice(t *testing.T) {
	_, err := OpenDevice(DeviceConfig{Device: filepath.Join(t.TempDir(), "video99")})
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestDeviceStream_Args(t *testing.T) {
	s := &DeviceStream{cfg: DeviceConfig{Device: "/dev/video0", MaxDuration: 30 * time.Second}.withDefaults()}
	args := strings.Join(s.args(), " ")

	assert.Contains(t, args, "-f v4l2")
	assert.Contains(t, args, "-video_size 640x640")
	assert.Contains(t, args, "-i /dev/video0")
	assert.Contains(t, args, "-t 31")
	assert.Contains(t, args, "frag_keyframe+empty_moov")
	assert.Contains(t, args, "-progress pipe:2")
	assert.Equal(t, 10*time.Second, s.cfg.StartTimeout)
	assert.Equal(t, 5*time.Second, s.cfg.StallTimeout)
	assert.True(t, strings.HasSuffix(args, "pipe:1"))
}

func TestTailBuffer_KeepsTail(t *testing.T) {
	b := &tailBuffer{max: 4}
	_, _ = b.Write([]byte("abc"))
	_, _ = b.Write([]byte("def"))
	assert.Equal(t, "cdef", b.String())
}
