// SPDX-License-Identifier: MIT
/*
Package spectrum holds the result of analyzing one frame: a grid of power
values in decibels, the table that maps grid cells to directions, and the
estimate of the dominant direction.

A Spectrum is immutable. Derived views such as Mirror return new instances,
and accessors that expose the values hand out copies.
*/
package spectrum

import (
	"errors"
	"fmt"
	"image"
	"math"
)

// ErrShapeMismatch is returned when values do not fill a width×height grid.
var ErrShapeMismatch = errors.New("spectrum values do not match width*height")

// Spectrum is a row-major grid of dB values.
type Spectrum struct {
	values []float32
	width  int
	height int
}

// New returns a Spectrum holding a copy of values.
func New(values []float32, width, height int) (*Spectrum, error) {
	if width <= 0 || height <= 0 || len(values) != width*height {
		return nil, fmt.Errorf("%w: %d values for %dx%d", ErrShapeMismatch, len(values), width, height)
	}
	v := make([]float32, len(values))
	copy(v, values)
	return &Spectrum{values: v, width: width, height: height}, nil
}

// wrap takes ownership of values without copying. Callers guarantee the shape.
func wrap(values []float32, width, height int) *Spectrum {
	return &Spectrum{values: values, width: width, height: height}
}

// FromOwned builds a Spectrum around a freshly allocated buffer the caller
// hands over and never touches again.
func FromOwned(values []float32, width, height int) (*Spectrum, error) {
	if width <= 0 || height <= 0 || len(values) != width*height {
		return nil, fmt.Errorf("%w: %d values for %dx%d", ErrShapeMismatch, len(values), width, height)
	}
	return wrap(values, width, height), nil
}

// Width returns the number of columns (N/2).
func (s *Spectrum) Width() int { return s.width }

// Height returns the number of rows (N).
func (s *Spectrum) Height() int { return s.height }

// Len returns the number of values, Width × Height.
func (s *Spectrum) Len() int { return len(s.values) }

// At returns the value at column x, row y.
func (s *Spectrum) At(x, y int) float32 {
	return s.values[y*s.width+x]
}

// Value returns the value at linear index i.
func (s *Spectrum) Value(i int) float32 {
	return s.values[i]
}

// Values returns a copy of the value sequence.
func (s *Spectrum) Values() []float32 {
	v := make([]float32, len(s.values))
	copy(v, s.values)
	return v
}

// ValuesInto copies the values into dst, which must have length Len().
func (s *Spectrum) ValuesInto(dst []float32) error {
	if len(dst) != len(s.values) {
		return fmt.Errorf("destination slice length %d does not match required length %d", len(dst), len(s.values))
	}
	copy(dst, s.values)
	return nil
}

// Mirror returns a new Spectrum with the value sequence reversed end to end.
// It is not an axis flip; Mirror(Mirror(s)) equals s.
func (s *Spectrum) Mirror() *Spectrum {
	n := len(s.values)
	v := make([]float32, n)
	for i, x := range s.values {
		v[n-1-i] = x
	}
	return wrap(v, s.width, s.height)
}

// Equal reports whether both spectra have the same shape and values. NaN
// values compare equal to each other.
func (s *Spectrum) Equal(other *Spectrum) bool {
	if other == nil || s.width != other.width || s.height != other.height {
		return false
	}
	for i, a := range s.values {
		b := other.values[i]
		if a != b && !(isNaN(a) && isNaN(b)) {
			return false
		}
	}
	return true
}

// Gray renders the spectrum as an 8-bit image. Values are truncated toward
// zero and saturated to [0, 255]; NaN and -Inf render black.
func (s *Spectrum) Gray() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, s.width, s.height))
	for y := range s.height {
		row := img.Pix[y*img.Stride : y*img.Stride+s.width]
		for x := range row {
			row[x] = toPixel(s.values[y*s.width+x])
		}
	}
	return img
}

func toPixel(v float32) uint8 {
	switch {
	case isNaN(v) || v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v)
	}
}

func isNaN(v float32) bool { return v != v }

func isFinite(v float32) bool {
	return !math.IsInf(float64(v), 0) && !isNaN(v)
}
