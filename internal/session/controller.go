// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package session drives one capture-validate-upload-resolve lifecycle.
//
// All mutation happens under the controller mutex. Ticks, recording ends and
// resolver completions arrive from goroutines that take the mutex and compare
// the generation they were started with before acting; every transition bumps
// the generation, so stale deliveries are dropped.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ManuGH/vitalscan/internal/admission"
	"github.com/ManuGH/vitalscan/internal/analysis"
	"github.com/ManuGH/vitalscan/internal/capture"
	"github.com/ManuGH/vitalscan/internal/fsm"
	xglog "github.com/ManuGH/vitalscan/internal/log"
	"github.com/ManuGH/vitalscan/internal/media"
	"github.com/ManuGH/vitalscan/internal/metrics"
	"github.com/ManuGH/vitalscan/internal/report"
)

// DefaultMaxRecording is the recording ceiling.
const DefaultMaxRecording = 30 * time.Second

// Resolver turns a submitted sample into a report.
type Resolver interface {
	Analyze(ctx context.Context, req analysis.Request) (*report.Report, error)
}

// Options configures a Controller. Validator and Resolver are required.
type Options struct {
	ID           string
	Validator    *admission.Validator
	Resolver     Resolver
	Spooler      *media.Spooler
	Clock        Clock
	MaxRecording time.Duration
}

// Controller owns one session: its stream, sample, preview handle and the
// in-flight resolution.
type Controller struct {
	id        string
	validator *admission.Validator
	resolver  Resolver
	spooler   *media.Spooler
	clock     Clock
	ceiling   int
	logger    zerolog.Logger

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup

	mu        sync.Mutex
	machine   *fsm.Machine[State, Event]
	closed    bool
	gen       uint64
	stream    capture.Stream
	rec       *activeRecording
	elapsed   int
	sample    media.Sample
	handle    media.Handle
	lastErr   error
	report    *report.Report
	corrID    string
	resolving *resolution
	updatedAt time.Time
	subs      map[int]chan Snapshot
	nextSub   int
}

type activeRecording struct {
	rec        capture.Recording
	stopTick   context.CancelFunc
	collected  chan struct{}
	fragments  [][]byte
	startedGen uint64
}

type resolution struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns an idle controller.
func New(opts Options) (*Controller, error) {
	if opts.Validator == nil {
		return nil, errors.New("session: validator is required")
	}
	if opts.Resolver == nil {
		return nil, errors.New("session: resolver is required")
	}
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	if opts.MaxRecording <= 0 {
		opts.MaxRecording = DefaultMaxRecording
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		id:         opts.ID,
		validator:  opts.Validator,
		resolver:   opts.Resolver,
		spooler:    opts.Spooler,
		clock:      opts.Clock,
		ceiling:    int(opts.MaxRecording / time.Second),
		logger:     xglog.WithComponent("session").With().Str(xglog.FieldSessionID, opts.ID).Logger(),
		baseCtx:    xglog.ContextWithSessionID(ctx, opts.ID),
		baseCancel: cancel,
		subs:       make(map[int]chan Snapshot),
	}
	c.machine = newMachine(c.requireStream)
	c.updatedAt = c.clock.Now()
	metrics.SetSessionState(string(StateIdle))
	return c, nil
}

// ID returns the session id.
func (c *Controller) ID() string { return c.id }

// requireStream guards idle -> recording. It runs with c.mu held.
func (c *Controller) requireStream(context.Context, State, Event) error {
	if c.stream == nil {
		return ErrPermission
	}
	return nil
}

// AttachStream arms the camera. The controller owns the stream afterwards and
// closes it on completion, failure, Reset and Close.
func (c *Controller) AttachStream(stream capture.Stream) error {
	if stream == nil {
		return errors.New("session: nil stream")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		_ = stream.Close()
		return ErrClosed
	}
	if st := c.machine.State(); st != StateIdle {
		return fmt.Errorf("%w: attach stream in state %s", ErrInvalidTransition, st)
	}
	if c.stream != nil && c.stream != stream {
		c.closeStreamLocked()
	}
	c.stream = stream
	if errors.Is(c.lastErr, ErrPermission) {
		c.lastErr = nil
	}
	c.logger.Info().Str(xglog.FieldEvent, "session.stream_attached").Str(xglog.FieldDevice, stream.ID()).Msg("camera stream attached")
	c.touchLocked()
	return nil
}

// StartRecording begins capturing from the attached stream.
func (c *Controller) StartRecording(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if err := c.fireLocked(ctx, EventRecord); err != nil {
		if errors.Is(err, ErrPermission) {
			c.lastErr = err
			c.touchLocked()
		}
		return err
	}
	c.lastErr = nil
	c.elapsed = 0

	rec, err := c.stream.Record(c.baseCtx)
	if err != nil {
		if errors.Is(err, capture.ErrUnavailable) || errors.Is(err, capture.ErrClosed) {
			err = fmt.Errorf("%w: %w", ErrPermission, err)
		} else {
			err = fmt.Errorf("%w: %w", ErrRecording, err)
		}
		c.failLocked(err)
		return err
	}

	tickCtx, stopTick := context.WithCancel(c.baseCtx)
	ar := &activeRecording{
		rec:        rec,
		stopTick:   stopTick,
		collected:  make(chan struct{}),
		startedGen: c.gen,
	}
	c.rec = ar

	c.wg.Add(2)
	go c.collect(ar)
	go c.tick(tickCtx, ar.startedGen)

	c.touchLocked()
	c.logger.Info().
		Str(xglog.FieldEvent, "session.recording_started").
		Int("max_seconds", c.ceiling).
		Msg("recording started")
	return nil
}

// collect drains the recording into the sample buffer. Fragments are only
// touched by this goroutine until collected is closed.
func (c *Controller) collect(ar *activeRecording) {
	defer c.wg.Done()
	for frag := range ar.rec.Fragments() {
		ar.fragments = append(ar.fragments, frag)
	}
	close(ar.collected)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.gen != ar.startedGen {
		return
	}
	// The source ended on its own.
	if err := ar.rec.Err(); err != nil {
		c.stopTickLocked(ar)
		c.rec = nil
		c.failLocked(fmt.Errorf("%w: %w", ErrRecording, err))
		return
	}
	c.stopLocked("source_ended")
}

func (c *Controller) tick(ctx context.Context, gen uint64) {
	defer c.wg.Done()
	t := c.clock.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C():
			if !c.onTick(gen) {
				return
			}
		}
	}
}

// onTick advances the elapsed counter; it reports whether ticking continues.
func (c *Controller) onTick(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.gen != gen || c.machine.State() != StateRecording {
		return false
	}
	c.elapsed++
	if c.elapsed >= c.ceiling {
		c.logger.Info().
			Str(xglog.FieldEvent, "session.recording_ceiling").
			Int("elapsed_seconds", c.elapsed).
			Msg("recording ceiling reached")
		c.stopLocked("ceiling")
		return false
	}
	c.touchLocked()
	return true
}

// StopRecording finalizes the captured fragments into the review sample.
func (c *Controller) StopRecording() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if !c.machine.Can(EventStop) {
		metrics.RecordRejectedTransition(string(c.machine.State()), string(EventStop))
		return fmt.Errorf("%w: state=%s event=%s", ErrInvalidTransition, c.machine.State(), EventStop)
	}
	return c.stopLocked("user")
}

// stopLocked ends the active recording and moves to reviewing, or to failed
// when nothing usable was captured.
func (c *Controller) stopLocked(trigger string) error {
	ar := c.rec
	c.rec = nil
	c.stopTickLocked(ar)
	if ar == nil {
		return c.failLocked(fmt.Errorf("%w: no active recording", ErrRecording))
	}
	if err := ar.rec.Stop(); err != nil {
		c.logger.Warn().Err(err).Str(xglog.FieldEvent, "session.recording_stop_error").Msg("recorder stop reported an error")
	}
	<-ar.collected

	size := 0
	for _, f := range ar.fragments {
		size += len(f)
	}
	data := make([]byte, 0, size)
	for _, f := range ar.fragments {
		data = append(data, f...)
	}
	if len(data) == 0 {
		return c.failLocked(fmt.Errorf("%w: no data captured", ErrRecording))
	}

	sample := media.NewSample(data, ar.rec.MimeType(), media.SourceRecorder).
		WithDuration(time.Duration(c.elapsed) * time.Second)
	if res := c.validator.ValidateRecorded(sample); !res.Admitted() {
		return c.failLocked(res.AsError())
	}
	if err := c.fireLocked(c.baseCtx, EventStop); err != nil {
		return err
	}
	metrics.ObserveRecording(float64(c.elapsed))
	c.bindSampleLocked(sample)
	c.logger.Info().
		Str(xglog.FieldEvent, "session.recording_stopped").
		Str("trigger", trigger).
		Int("elapsed_seconds", c.elapsed).
		Int64(xglog.FieldSizeBytes, sample.SizeBytes()).
		Msg("recording stopped")
	c.touchLocked()
	return nil
}

// SelectFile validates an uploaded file and makes it the review sample.
// Validation runs without the lock; the selection is dropped if the session
// moved on meanwhile.
func (c *Controller) SelectFile(ctx context.Context, data []byte, mimeType, name string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if !c.machine.Can(EventSelect) {
		st := c.machine.State()
		c.mu.Unlock()
		metrics.RecordRejectedTransition(string(st), string(EventSelect))
		return fmt.Errorf("%w: state=%s event=%s", ErrInvalidTransition, st, EventSelect)
	}
	gen := c.gen
	c.mu.Unlock()

	sample := media.NewSample(data, mimeType, media.SourceFile).WithName(name)
	res := c.validator.Validate(ctx, sample)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.gen != gen || !c.machine.Can(EventSelect) {
		return fmt.Errorf("%w: session changed during validation", ErrInvalidTransition)
	}
	if !res.Admitted() {
		c.lastErr = res.AsError()
		c.touchLocked()
		return c.lastErr
	}
	if err := c.fireLocked(ctx, EventSelect); err != nil {
		return err
	}
	c.lastErr = nil
	c.bindSampleLocked(sample.WithDuration(res.Duration))
	c.touchLocked()
	return nil
}

// Submit hands the review sample to the resolver. It returns once the upload
// is scheduled; use AwaitResult or Subscribe to observe the outcome.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if err := c.fireLocked(ctx, EventSubmit); err != nil {
		return err
	}

	req := analysis.NewRequest(c.sample)
	if id := xglog.CorrelationIDFromContext(ctx); id != "" {
		req.CorrelationID = id
	}
	c.corrID = req.CorrelationID
	c.lastErr = nil
	c.report = nil

	rctx, cancel := context.WithCancel(xglog.ContextWithCorrelationID(c.baseCtx, req.CorrelationID))
	res := &resolution{cancel: cancel, done: make(chan struct{})}
	c.resolving = res

	c.wg.Add(1)
	go c.resolve(rctx, res, req, c.gen)

	c.logger.Info().
		Str(xglog.FieldEvent, "session.submitted").
		Str(xglog.FieldCorrelationID, req.CorrelationID).
		Int64(xglog.FieldSizeBytes, req.Sample.SizeBytes()).
		Msg("sample submitted for analysis")
	c.touchLocked()
	return nil
}

func (c *Controller) resolve(ctx context.Context, res *resolution, req analysis.Request, gen uint64) {
	defer c.wg.Done()
	defer res.cancel()

	rep, err := c.resolver.Analyze(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	defer close(res.done)
	if c.closed || c.gen != gen {
		c.logger.Debug().
			Str(xglog.FieldEvent, "session.late_result").
			Str(xglog.FieldCorrelationID, req.CorrelationID).
			Msg("dropping result of abandoned resolution")
		return
	}
	c.resolving = nil
	if err == nil && rep == nil {
		err = &analysis.Error{Kind: analysis.KindServer, Op: "analyze", Message: analysis.MsgRetrieveFailed}
	}
	if err != nil {
		c.failLocked(err)
		return
	}
	if err := c.fireLocked(ctx, EventResolve); err != nil {
		return
	}
	c.report = rep
	c.settleLocked()
	c.logger.Info().
		Str(xglog.FieldEvent, "session.completed").
		Str(xglog.FieldReportID, rep.ReportID).
		Msg("analysis completed")
	c.touchLocked()
}

// AwaitResult blocks until the in-flight resolution settles and returns its
// outcome. Without one it returns the settled outcome, or ErrNoResolution.
func (c *Controller) AwaitResult(ctx context.Context) (*report.Report, error) {
	c.mu.Lock()
	var done chan struct{}
	if c.resolving != nil {
		done = c.resolving.done
	}
	c.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.machine.State() {
	case StateCompleted:
		return c.report, nil
	case StateFailed:
		return nil, c.lastErr
	default:
		if c.closed {
			return nil, ErrClosed
		}
		return nil, ErrNoResolution
	}
}

// Retake discards the review sample and returns to idle.
func (c *Controller) Retake() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if err := c.fireLocked(c.baseCtx, EventRetake); err != nil {
		return err
	}
	c.clearSampleLocked()
	c.elapsed = 0
	c.lastErr = nil
	c.touchLocked()
	return nil
}

// Reset returns to idle from any state: it cancels every task, releases the
// preview handle and closes the camera stream.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.teardownLocked()
	if err := c.fireLocked(c.baseCtx, EventReset); err != nil {
		return err
	}
	c.touchLocked()
	return nil
}

// Close tears the session down and waits for its goroutines. Results that
// arrive afterwards are dropped.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.teardownLocked()
	c.closed = true
	c.gen++
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
	c.baseCancel()
	c.mu.Unlock()

	c.wg.Wait()
	c.logger.Debug().Str(xglog.FieldEvent, "session.closed").Msg("session closed")
	return nil
}

// teardownLocked is the single release path for tasks and resources.
func (c *Controller) teardownLocked() {
	if ar := c.rec; ar != nil {
		c.rec = nil
		c.stopTickLocked(ar)
		_ = ar.rec.Stop()
		<-ar.collected
	}
	if c.resolving != nil {
		c.resolving.cancel()
		c.resolving = nil
	}
	c.clearSampleLocked()
	c.closeStreamLocked()
	c.elapsed = 0
	c.lastErr = nil
	c.report = nil
	c.corrID = ""
}

// settleLocked frees the preview and the camera on entering a terminal
// state. The sample stays readable until Reset.
func (c *Controller) settleLocked() {
	c.releaseHandleLocked()
	c.closeStreamLocked()
}

func (c *Controller) stopTickLocked(ar *activeRecording) {
	if ar != nil {
		ar.stopTick()
	}
}

func (c *Controller) closeStreamLocked() {
	if c.stream == nil {
		return
	}
	if err := c.stream.Close(); err != nil {
		c.logger.Warn().Err(err).Str(xglog.FieldEvent, "session.stream_close_error").Msg("closing camera stream failed")
	}
	c.stream = nil
}

func (c *Controller) bindSampleLocked(sample media.Sample) {
	c.releaseHandleLocked()
	c.sample = sample
	if c.spooler == nil {
		return
	}
	h, err := c.spooler.Spool(sample)
	if err != nil {
		c.logger.Warn().Err(err).Str(xglog.FieldEvent, "session.preview_failed").Msg("preview unavailable")
		return
	}
	c.handle = h
}

func (c *Controller) releaseHandleLocked() {
	if c.handle == nil {
		return
	}
	if err := c.handle.Release(); err != nil {
		c.logger.Warn().Err(err).Str(xglog.FieldPath, c.handle.Path()).Msg("releasing preview failed")
	}
	c.handle = nil
}

func (c *Controller) clearSampleLocked() {
	c.releaseHandleLocked()
	c.sample = media.Sample{}
}

func (c *Controller) failLocked(err error) error {
	if ferr := c.fireLocked(c.baseCtx, EventFail); ferr != nil {
		return ferr
	}
	c.lastErr = err
	c.settleLocked()
	c.logger.Warn().
		Err(err).
		Str(xglog.FieldEvent, "session.failed").
		Str(xglog.FieldReason, string(Classify(err))).
		Msg("session failed")
	c.touchLocked()
	return err
}

// fireLocked applies an event and bumps the generation on success.
func (c *Controller) fireLocked(ctx context.Context, ev Event) error {
	from := c.machine.State()
	to, err := c.machine.Fire(ctx, ev)
	if err != nil {
		metrics.RecordRejectedTransition(string(from), string(ev))
		return err
	}
	c.gen++
	metrics.RecordTransition(string(from), string(ev), string(to))
	metrics.SetSessionState(string(to))
	c.logger.Debug().
		Str(xglog.FieldEvent, "session.transition").
		Str(xglog.FieldOldState, string(from)).
		Str(xglog.FieldNewState, string(to)).
		Str("trigger", string(ev)).
		Msg("state transition")
	return nil
}
