// SPDX-License-Identifier: MIT
package analysis

import (
	"image"

	"direction/internal/spectrum"
)

// FrameProcessor is the standard interface for components that analyze one
// prepared frame. Implementations are called once per captured frame, so they
// should avoid work that does not scale with the frame itself.
type FrameProcessor interface {
	// Process analyzes a single N×N 8-bit grayscale frame.
	Process(img image.Image) (Result, error)
}

// ClosableProcessor combines FrameProcessor with a Close method for resource cleanup.
type ClosableProcessor interface {
	FrameProcessor
	Close() error // Close releases any resources held by the processor.
}

// Result is everything derived from one frame.
type Result struct {
	Spectrum *spectrum.Spectrum // Centered dB power spectrum, width N/2, height N
	Mirror   *spectrum.Spectrum // Reversed spectrum for the secondary view, nil if disabled
	Estimate spectrum.Estimate  // Per-bin energies and the winning direction
	Err      error              // Per-frame failure in batch processing
}

// Direction returns the detected direction in degrees, or false when the
// frame carries no sufficiently strong directional signal.
func (r Result) Direction() (int, bool) {
	if r.Err != nil || !r.Estimate.Found {
		return 0, false
	}
	return r.Estimate.Degrees, true
}
