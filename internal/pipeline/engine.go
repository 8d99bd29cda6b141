// SPDX-License-Identifier: MIT
/*
Package pipeline runs the detector over a stream of frames with:
- A directory frame source decoding png, jpeg, bmp, tiff and webp
- A contrast gate that skips frames too flat to carry a direction
- Spectrum snapshots with atomic recording state
- The latest spectrum kept for publishers running on their own clock

Thread Safety:
- Run owns the frame loop; one Run per Engine at a time
- Gate, recording and LatestInto may be used from other goroutines
- Frame errors are counted and logged, never fatal to the loop
*/
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"direction/internal/analysis"
	"direction/internal/config"
	applog "direction/internal/log"
	"direction/internal/spectrum"
	"direction/internal/transport"
)

// ErrAllFramesFailed is returned by Run when a looping source goes through a
// full pass without a single frame that could be analyzed.
var ErrAllFramesFailed = errors.New("pipeline: no frame in a full pass could be analyzed")

// failedFrameDelay paces a failing source when frames are not paced by an interval.
const failedFrameDelay = 10 * time.Millisecond

// Stats counts what happened to the frames seen by Run.
type Stats struct {
	Processed uint64 // Analyzed by the detector
	Skipped   uint64 // Rejected by the contrast gate
	Failed    uint64 // Could not be decoded or analyzed
	Found     uint64 // Processed frames with a direction
}

type Engine struct {
	// Core configuration and collaborators.
	config    *config.Config
	detector  analysis.FrameProcessor
	transport transport.Transport
	interval  time.Duration

	// Contrast gate.
	gateEnabled   atomic.Bool
	gateThreshold atomic.Int32 // Minimum max-min pixel span (0-255)

	// Recording state.
	isRecording atomic.Bool
	recMu       sync.Mutex
	outputDir   string
	format      string

	// Latest analyzed spectrum, served to publishers.
	latestMu   sync.RWMutex
	latest     *spectrum.Spectrum
	latestInfo transport.FrameInfo

	processed atomic.Uint64
	skipped   atomic.Uint64
	failed    atomic.Uint64
	found     atomic.Uint64
}

// NewEngine wires a detector and a transport into a frame loop configured by cfg.
func NewEngine(cfg *config.Config, detector analysis.FrameProcessor, t transport.Transport) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("pipeline: config cannot be nil")
	}
	if detector == nil {
		return nil, errors.New("pipeline: detector cannot be nil")
	}
	if t == nil {
		t = transport.NewLoggingTransport()
	}
	if _, err := encoder(cfg.Recording.Format); err != nil {
		return nil, err
	}

	e := &Engine{
		config:    cfg,
		detector:  detector,
		transport: t,
		interval:  cfg.Source.Interval,
		format:    cfg.Recording.Format,
	}
	if cfg.Gate.Enabled {
		e.EnableGate()
	}
	e.SetGateThreshold(cfg.Gate.MinContrast)

	applog.Infof("Pipeline: Initializing Engine (Interval: %s, Gate: %v @ %.3f, Snapshots: %s)",
		e.interval, cfg.Gate.Enabled, e.GetGateThreshold(), e.format)
	return e, nil
}

// Run pulls frames from src until it is exhausted or ctx is cancelled.
// Frames are paced by the configured interval. It returns nil when the
// source ends and the context error on cancellation.
func (e *Engine) Run(ctx context.Context, src FrameSource) error {
	var tick <-chan time.Time
	if e.interval > 0 {
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	// Sources that know their length let Run detect a pass with no usable frame.
	passLen := 0
	if l, ok := src.(interface{ Len() int }); ok {
		passLen = l.Len()
	}

	failures := 0
	for first := true; ; first = false {
		if tick != nil && !first {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		}

		f, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			applog.Infof("Pipeline: Frame source exhausted")
			return nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			e.failed.Add(1)
		} else {
			_, err = e.ProcessFrame(f)
		}
		if err == nil {
			failures = 0
			continue
		}

		applog.Warnf("Pipeline: Skipping frame %d (%s): %v", f.Index, f.Name, err)
		failures++
		if passLen > 0 && failures > passLen {
			return fmt.Errorf("%w (%d failures in a row)", ErrAllFramesFailed, failures)
		}
		if tick == nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(failedFrameDelay):
			}
		}
	}
}

// ProcessFrame gates, analyzes, publishes and records a single frame.
// A returned error means the frame was dropped; the loop goes on.
func (e *Engine) ProcessFrame(f Frame) (transport.DirectionEvent, error) {
	ev := transport.DirectionEvent{
		Frame:     f.Name,
		Index:     f.Index,
		Timestamp: time.Now().UnixNano(),
	}

	if !e.passesGate(f.Image) {
		e.skipped.Add(1)
		ev.Skipped = true
		e.send(ev)
		return ev, nil
	}

	r, err := e.detector.Process(f.Image)
	if err != nil {
		e.failed.Add(1)
		return ev, err
	}
	e.processed.Add(1)

	ev.Energy = r.Estimate.Energy
	if deg, ok := r.Direction(); ok {
		e.found.Add(1)
		ev.Degrees, ev.Found = deg, true
	}

	e.setLatest(r.Spectrum, ev)
	e.send(ev)

	if err := e.record(f.Name, r); err != nil {
		applog.Errorf("Pipeline: Error writing snapshots for %s: %v", f.Name, err)
	}
	return ev, nil
}

func (e *Engine) send(ev transport.DirectionEvent) {
	if err := e.transport.Send(ev); err != nil {
		applog.Debugf("Pipeline: Transport error: %v", err)
	}
}

func (e *Engine) setLatest(s *spectrum.Spectrum, ev transport.DirectionEvent) {
	e.latestMu.Lock()
	defer e.latestMu.Unlock()
	e.latest = s
	e.latestInfo = transport.FrameInfo{
		Index:   ev.Index,
		Width:   s.Width(),
		Height:  s.Height(),
		Degrees: ev.Degrees,
		Found:   ev.Found,
	}
}

// LatestInto copies the most recent spectrum into dst.
// Spectra are immutable, so the copy never observes a half-written frame.
func (e *Engine) LatestInto(dst []float32) (transport.FrameInfo, error) {
	e.latestMu.RLock()
	s, info := e.latest, e.latestInfo
	e.latestMu.RUnlock()

	if s == nil {
		return transport.FrameInfo{}, transport.ErrNoSpectrum
	}
	if err := s.ValuesInto(dst); err != nil {
		return transport.FrameInfo{}, fmt.Errorf("pipeline: %w", err)
	}
	return info, nil
}

// Stats returns a snapshot of the frame counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Processed: e.processed.Load(),
		Skipped:   e.skipped.Load(),
		Failed:    e.failed.Load(),
		Found:     e.found.Load(),
	}
}

// Close stops recording. The detector and transport belong to the caller.
func (e *Engine) Close() error {
	if e.isRecording.Load() {
		if err := e.StopRecording(); err != nil {
			return err
		}
	}
	st := e.Stats()
	applog.Infof("Pipeline: Closed (processed %d, found %d, skipped %d, failed %d)",
		st.Processed, st.Found, st.Skipped, st.Failed)
	return nil
}

var _ transport.SpectrumProvider = (*Engine)(nil)
