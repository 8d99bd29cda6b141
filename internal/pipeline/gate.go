// SPDX-License-Identifier: MIT
package pipeline

import (
	"image"
	"math"
)

func (e *Engine) EnableGate() {
	e.gateEnabled.Store(true)
}

func (e *Engine) DisableGate() {
	e.gateEnabled.Store(false)
}

// SetGateThreshold adjusts the contrast gate.
// The value is in the range of 0.0-1.0 where 0=always open, 1=closed to
// everything but pure black and white frames. It is kept in whole pixel levels.
func (e *Engine) SetGateThreshold(threshold float64) {
	if threshold < 0.0 || math.IsNaN(threshold) {
		threshold = 0.0
	}
	if threshold > 1.0 {
		threshold = 1.0
	}

	// A span s fails the gate when s/255 < threshold, i.e. s < ceil(255*threshold).
	e.gateThreshold.Store(int32(math.Ceil(threshold * math.MaxUint8)))
}

// GetGateThreshold returns the current contrast gate threshold as a float64.
func (e *Engine) GetGateThreshold() float64 {
	return float64(e.gateThreshold.Load()) / math.MaxUint8
}

// passesGate reports whether a frame carries enough contrast to analyze.
// Only gray frames are measured; anything else goes on to the detector,
// which decides whether it can be used.
func (e *Engine) passesGate(img image.Image) bool {
	if !e.gateEnabled.Load() {
		return true
	}
	g, ok := img.(*image.Gray)
	if !ok || g == nil {
		return true
	}
	return contrast(g) >= int(e.gateThreshold.Load())
}

// contrast returns the spread between the darkest and brightest pixel.
func contrast(g *image.Gray) int {
	b := g.Bounds()
	if b.Empty() {
		return 0
	}
	if len(g.Pix) < g.PixOffset(b.Max.X-1, b.Max.Y-1)+1 {
		// Malformed; let the detector reject it.
		return math.MaxUint8
	}
	lo, hi := uint8(math.MaxUint8), uint8(0)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := g.Pix[g.PixOffset(b.Min.X, y) : g.PixOffset(b.Min.X, y)+b.Dx()]
		for _, v := range row {
			lo = min(lo, v)
			hi = max(hi, v)
		}
	}
	return int(hi) - int(lo)
}
