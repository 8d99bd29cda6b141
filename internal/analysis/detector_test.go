// SPDX-License-Identifier: MIT
package analysis

import (
	"context"
	"errors"
	"image"
	"io"
	"sync"
	"testing"

	"direction/internal/fft"
	applog "direction/internal/log"
	"direction/internal/spectrum"
	"direction/pkg/utils"
)

const testImageSize = 128

func TestMain(m *testing.M) {
	applog.SetOutput(io.Discard)
	m.Run()
}

func newTestDetector(t *testing.T, workers int, mirror bool) *Detector {
	t.Helper()
	d, err := NewDetector(Options{
		ImageSize: testImageSize,
		Workers:   workers,
		Params:    spectrum.DefaultParams(),
		Mirror:    mirror,
	})
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestNewDetector_InvalidSize(t *testing.T) {
	d, err := NewDetector(Options{ImageSize: 100, Workers: 2, Params: spectrum.DefaultParams()})
	if !errors.Is(err, spectrum.ErrInvalidSize) {
		t.Errorf("NewDetector error = %v, want ErrInvalidSize", err)
	}
	if d != nil {
		t.Error("NewDetector returned a detector on error")
	}
}

func TestNewDetector_DefaultsWorkers(t *testing.T) {
	d := newTestDetector(t, 0, false)
	if d.workers != 1 || len(d.all) != 1 {
		t.Errorf("workers = %d (%d engines), want 1", d.workers, len(d.all))
	}
	if d.ImageSize() != testImageSize || d.Table().Height() != testImageSize {
		t.Errorf("detector size = %d, table height = %d", d.ImageSize(), d.Table().Height())
	}
}

func TestProcess(t *testing.T) {
	d := newTestDetector(t, 2, true)

	r, err := d.Process(utils.ColumnNoiseImage(testImageSize, 4))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if deg, ok := r.Direction(); !ok || deg != 0 {
		t.Errorf("Direction() = %d, %v; want 0, true", deg, ok)
	}
	if r.Spectrum == nil || r.Mirror == nil {
		t.Fatal("expected both spectrum and mirror")
	}
	if !r.Mirror.Mirror().Equal(r.Spectrum) {
		t.Error("mirror is not the reversed spectrum")
	}
}

func TestProcess_NoMirror(t *testing.T) {
	d := newTestDetector(t, 1, false)
	r, err := d.Process(utils.RowNoiseImage(testImageSize, 4))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if r.Mirror != nil {
		t.Error("mirror produced while disabled")
	}
	if deg, ok := r.Direction(); !ok || deg != 90 {
		t.Errorf("Direction() = %d, %v; want 90, true", deg, ok)
	}
}

func TestProcess_WrongSize(t *testing.T) {
	d := newTestDetector(t, 1, true)
	r, err := d.Process(image.NewGray(image.Rect(0, 0, testImageSize+1, testImageSize)))
	if !errors.Is(err, fft.ErrSizeMismatch) {
		t.Errorf("Process error = %v, want ErrSizeMismatch", err)
	}
	if r.Spectrum != nil || r.Mirror != nil {
		t.Error("Process returned spectra for a rejected frame")
	}
	if _, ok := r.Direction(); ok {
		t.Error("rejected frame reported a direction")
	}

	// The engine goes back to the pool after a rejection.
	if _, err := d.Process(utils.NoiseImage(testImageSize, 1)); err != nil {
		t.Errorf("Process after rejection: %v", err)
	}
}

func TestProcess_Concurrent(t *testing.T) {
	d := newTestDetector(t, 3, false)

	var wg sync.WaitGroup
	errs := make(chan error, 24)
	for i := range 24 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			img := utils.ColumnNoiseImage(testImageSize, uint64(i+1))
			want := 0
			if i%2 == 1 {
				img = utils.RowNoiseImage(testImageSize, uint64(i+1))
				want = 90
			}
			r, err := d.Process(img)
			if err != nil {
				errs <- err
				return
			}
			if deg, ok := r.Direction(); !ok || deg != want {
				errs <- errors.New("unexpected direction")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestProcessBatch_Order(t *testing.T) {
	d := newTestDetector(t, 2, false)

	imgs := []image.Image{
		utils.ColumnNoiseImage(testImageSize, 1),
		utils.RowNoiseImage(testImageSize, 2),
		image.NewRGBA(image.Rect(0, 0, testImageSize, testImageSize)),
		utils.ConstantImage(testImageSize, 90),
		utils.RowNoiseImage(testImageSize, 3),
	}
	results, err := d.ProcessBatch(context.Background(), imgs)
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if len(results) != len(imgs) {
		t.Fatalf("got %d results, want %d", len(results), len(imgs))
	}

	type want struct {
		deg   int
		found bool
		err   error
	}
	wants := []want{
		{0, true, nil},
		{90, true, nil},
		{0, false, fft.ErrUnsupportedFormat},
		{0, false, nil},
		{90, true, nil},
	}
	for i, w := range wants {
		r := results[i]
		if w.err != nil {
			if !errors.Is(r.Err, w.err) {
				t.Errorf("result %d error = %v, want %v", i, r.Err, w.err)
			}
			continue
		}
		if r.Err != nil {
			t.Errorf("result %d unexpected error: %v", i, r.Err)
			continue
		}
		deg, ok := r.Direction()
		if ok != w.found || (ok && deg != w.deg) {
			t.Errorf("result %d Direction() = %d, %v; want %d, %v", i, deg, ok, w.deg, w.found)
		}
	}
}

func TestProcessBatch_Cancelled(t *testing.T) {
	d := newTestDetector(t, 1, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	imgs := []image.Image{utils.NoiseImage(testImageSize, 1), utils.NoiseImage(testImageSize, 2)}
	results, err := d.ProcessBatch(ctx, imgs)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("ProcessBatch error = %v, want context.Canceled", err)
	}
	for i, r := range results {
		if !errors.Is(r.Err, context.Canceled) {
			t.Errorf("result %d error = %v, want context.Canceled", i, r.Err)
		}
	}
}

func TestClose(t *testing.T) {
	d, err := NewDetector(Options{ImageSize: testImageSize, Workers: 2, Params: spectrum.DefaultParams()})
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := d.Process(utils.NoiseImage(testImageSize, 1)); !errors.Is(err, ErrClosed) {
		t.Errorf("Process after Close error = %v, want ErrClosed", err)
	}
	results, err := d.ProcessBatch(context.Background(), []image.Image{utils.NoiseImage(testImageSize, 1)})
	if !errors.Is(err, ErrClosed) || !errors.Is(results[0].Err, ErrClosed) {
		t.Errorf("ProcessBatch after Close = %v (frame: %v), want ErrClosed", err, results[0].Err)
	}
}

func BenchmarkProcess(b *testing.B) {
	applog.SetOutput(io.Discard)
	d, err := NewDetector(Options{ImageSize: 256, Workers: 1, Params: spectrum.DefaultParams(), Mirror: true})
	if err != nil {
		b.Fatal(err)
	}
	defer d.Close()
	img := utils.StripeImage(256, 10, 30)

	b.ReportAllocs()
	for b.Loop() {
		_, _ = d.Process(img)
	}
}
