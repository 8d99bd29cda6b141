// SPDX-License-Identifier: MIT
package fft

import (
	"errors"
	"fmt"
	"image"
	"math"
	"math/cmplx"

	"direction/internal/spectrum"
	"direction/pkg/bitint"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Real-input packed transforms carry a gain of 2 over the plain DFT. The dB
// thresholds used for direction estimation assume it.
const packedGain = 2

// zeroReference is the amplitude that maps to 0 dB.
const zeroReference = 1.0

var (
	ErrInvalidSize       = errors.New("fft: image size must be a power of two >= 4")
	ErrSizeMismatch      = errors.New("fft: image dimensions do not match engine size")
	ErrUnsupportedFormat = errors.New("fft: image is not 8-bit single channel")
	ErrNoPixels          = errors.New("fft: image pixel buffer unavailable")
	ErrClosed            = errors.New("fft: engine is closed")
)

// workspace holds pre-allocated buffers for one 2D transform.
type workspace struct {
	row    []float64    // ...for one image row as real samples
	rowOut []complex128 // ...for the N/2+1 coefficients of one row
	packed []complex128 // ...for N rows × N/2 columns, row-major
	col    []complex128 // ...for one packed column
	colOut []complex128 // ...for the transformed column
}

// Engine converts N×N grayscale images into power spectra. Plans and buffers
// are built once and reused, so an Engine must not run Convert from more than
// one goroutine at a time. Use several engines for concurrent throughput.
type Engine struct {
	size      int
	half      int
	rowFFT    *fourier.FFT
	colFFT    *fourier.CmplxFFT
	workspace workspace
	closed    bool
}

// NewEngine plans the transforms and pre-allocates every buffer for images of
// side size. A size that is not a power of two is a configuration error and
// the engine must not be used.
func NewEngine(size int) (*Engine, error) {
	if size < 4 || !bitint.IsPowerOfTwo(size) {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidSize, size)
	}
	half := size / 2

	return &Engine{
		size:   size,
		half:   half,
		rowFFT: fourier.NewFFT(size),
		colFFT: fourier.NewCmplxFFT(size),
		workspace: workspace{
			row:    make([]float64, size),
			rowOut: make([]complex128, half+1),
			packed: make([]complex128, half*size),
			col:    make([]complex128, size),
			colOut: make([]complex128, size),
		},
	}, nil
}

// Size returns the image side length the engine was planned for.
func (e *Engine) Size() int {
	return e.size
}

// Convert computes the dB power spectrum of img, which must be an *image.Gray
// of exactly Size()×Size() pixels. The result has width N/2 and height N with
// the zero-frequency row moved to the vertical center. On error no spectrum
// is returned and the engine stays usable.
func (e *Engine) Convert(img image.Image) (*spectrum.Spectrum, error) {
	if e.closed {
		return nil, ErrClosed
	}
	if img == nil {
		return nil, ErrNoPixels
	}
	gray, ok := img.(*image.Gray)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedFormat, img)
	}
	if gray == nil {
		return nil, ErrNoPixels
	}
	b := gray.Bounds()
	if b.Dx() != e.size || b.Dy() != e.size {
		return nil, fmt.Errorf("%w: got %dx%d, want %dx%d", ErrSizeMismatch, b.Dx(), b.Dy(), e.size, e.size)
	}
	if gray.Stride < e.size || len(gray.Pix) < gray.PixOffset(b.Max.X-1, b.Max.Y-1)+1 {
		return nil, ErrNoPixels
	}

	ws := &e.workspace

	// --- 1. Row transforms ---
	for y := range e.size {
		off := gray.PixOffset(b.Min.X, b.Min.Y+y)
		pix := gray.Pix[off : off+e.size]
		for x, p := range pix {
			ws.row[x] = float64(p)
		}
		e.rowFFT.Coefficients(ws.rowOut, ws.row)
		// The Nyquist coefficient at index N/2 has no column in the packed grid.
		copy(ws.packed[y*e.half:(y+1)*e.half], ws.rowOut[:e.half])
	}

	// --- 2. Column transforms ---
	for u := range e.half {
		for y := range e.size {
			ws.col[y] = ws.packed[y*e.half+u]
		}
		e.colFFT.Coefficients(ws.colOut, ws.col)
		for k, c := range ws.colOut {
			ws.packed[k*e.half+u] = c
		}
	}

	// --- 3. Amplitude to dB, swapping the two halves of the buffer ---
	n := len(ws.packed)
	shift := n / 2
	values := make([]float32, n)
	for i, c := range ws.packed {
		values[(i+shift)%n] = decibels(packedGain * cmplx.Abs(c))
	}

	return spectrum.FromOwned(values, e.half, e.size)
}

// decibels converts an amplitude to dB relative to zeroReference. Zero
// amplitude yields -Inf.
func decibels(amplitude float64) float32 {
	return float32(20 * math.Log10(amplitude/zeroReference))
}

// Close releases the plans and buffers. Calling Close more than once is a
// no-op; Convert fails with ErrClosed afterwards.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	e.rowFFT = nil
	e.colFFT = nil
	e.workspace = workspace{}
	return nil
}
