// SPDX-License-Identifier: MIT
package analysis

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"direction/internal/fft"
	applog "direction/internal/log"
	"direction/internal/spectrum"

	"golang.org/x/sync/errgroup"
)

// ErrClosed is returned by a Detector after Close.
var ErrClosed = errors.New("analysis: detector is closed")

// Options configures a Detector.
type Options struct {
	ImageSize int             // Side of the square input frames (power of two)
	Workers   int             // Engines in the pool; also the batch fan-out limit
	Params    spectrum.Params // Noise floor and minimum bin energy
	Mirror    bool            // Also produce the reversed spectrum
}

// Detector runs the spectral pipeline on frames. It owns one AngleTable,
// shared read-only by every analysis, and a pool of FFT engines. An engine is
// used by at most one goroutine at a time, so Process is safe for concurrent
// use and scales up to Workers frames in flight.
type Detector struct {
	size    int
	workers int
	params  spectrum.Params
	mirror  bool
	table   *spectrum.AngleTable

	engines chan *fft.Engine // Idle engines
	all     []*fft.Engine
	done    chan struct{}
	once    sync.Once
}

// Compile-time checks for interface implementations.
var _ FrameProcessor = (*Detector)(nil)
var _ ClosableProcessor = (*Detector)(nil)

// NewDetector builds the angle table and the engine pool. A failure here means
// the transform cannot be planned for the requested size and is not recoverable.
func NewDetector(opts Options) (*Detector, error) {
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	table, err := spectrum.NewAngleTable(opts.ImageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to build angle table: %w", err)
	}

	d := &Detector{
		size:    opts.ImageSize,
		workers: opts.Workers,
		params:  opts.Params,
		mirror:  opts.Mirror,
		table:   table,
		engines: make(chan *fft.Engine, opts.Workers),
		done:    make(chan struct{}),
	}
	for range opts.Workers {
		e, err := fft.NewEngine(opts.ImageSize)
		if err != nil {
			for _, prev := range d.all {
				_ = prev.Close()
			}
			return nil, fmt.Errorf("failed to create FFT engine: %w", err)
		}
		d.all = append(d.all, e)
		d.engines <- e
	}

	applog.Infof("Analysis: Initializing Detector (Size: %d, Workers: %d, Floor: %.0f dB, MinEnergy: %d, ValidCells: %d)",
		opts.ImageSize, opts.Workers, opts.Params.NoiseFloorDB, opts.Params.MinBinEnergy, table.ValidCount())
	return d, nil
}

// Table returns the shared angle table.
func (d *Detector) Table() *spectrum.AngleTable {
	return d.table
}

// ImageSize returns the frame side the detector expects.
func (d *Detector) ImageSize() int {
	return d.size
}

// Process converts img into a spectrum and estimates its dominant direction.
// A frame of the wrong shape or format yields an error and no result; the
// caller should skip it and continue with the next frame.
func (d *Detector) Process(img image.Image) (Result, error) {
	var engine *fft.Engine
	select {
	case <-d.done:
		return Result{}, ErrClosed
	case engine = <-d.engines:
	}

	s, err := engine.Convert(img)
	d.engines <- engine
	if err != nil {
		return Result{}, err
	}

	est, err := s.Estimate(d.table, d.params)
	if err != nil {
		return Result{}, err
	}

	r := Result{Spectrum: s, Estimate: est}
	if d.mirror {
		r.Mirror = s.Mirror()
	}
	return r, nil
}

// ProcessBatch analyzes frames concurrently, at most Workers at a time, and
// returns results in input order. A frame that fails is reported through its
// Result.Err and does not stop the batch. Cancelling ctx stops scheduling;
// frames that never ran carry the context error.
func (d *Detector) ProcessBatch(ctx context.Context, imgs []image.Image) ([]Result, error) {
	results := make([]Result, len(imgs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)

	for i, img := range imgs {
		if err := gctx.Err(); err != nil {
			for j := i; j < len(imgs); j++ {
				results[j].Err = err
			}
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			r, err := d.Process(img)
			if err != nil {
				results[i].Err = err
				if errors.Is(err, ErrClosed) {
					return err
				}
				return nil
			}
			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}

// Close waits for in-flight frames and releases every engine exactly once.
func (d *Detector) Close() error {
	var errs []error
	d.once.Do(func() {
		close(d.done)
		for range d.all {
			e := <-d.engines
			if err := e.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		applog.Infof("Analysis: Closed Detector (%d engines released)", len(d.all))
	})
	return errors.Join(errs...)
}
