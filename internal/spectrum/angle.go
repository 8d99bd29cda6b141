// SPDX-License-Identifier: MIT
package spectrum

import (
	"errors"
	"fmt"
	"math"

	"direction/pkg/bitint"
)

// angleEpsilon offsets x so the x=0 column never divides by zero.
const angleEpsilon = 1e-6

// invalidAngle marks cells outside the valid radius.
const invalidAngle int8 = math.MinInt8

// Bins lists every quantized direction, ascending. Ties between bins with equal
// energy resolve to the earliest entry.
var Bins = [...]int{-90, -80, -70, -60, -50, -40, -30, -20, -10, 0, 10, 20, 30, 40, 50, 60, 70, 80, 90}

// ErrInvalidSize is returned for image sizes that are not a power of two >= 4.
var ErrInvalidSize = errors.New("image size must be a power of two >= 4")

// AngleTable maps each cell of a (N/2)×N spectrum grid to the direction, in
// degrees, its polar angle quantizes to. The table depends only on N and is
// never mutated after NewAngleTable returns, so it can be shared freely.
type AngleTable struct {
	width  int
	height int
	angles []int8
	valid  int
}

// NewAngleTable builds the table for an N×N input image.
func NewAngleTable(n int) (*AngleTable, error) {
	if n < 4 || !bitint.IsPowerOfTwo(n) {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidSize, n)
	}

	width, height := n/2, n
	half := float64(n) / 2
	t := &AngleTable{
		width:  width,
		height: height,
		angles: make([]int8, width*height),
	}

	for y := range height {
		dy := half - float64(y)
		for x := range width {
			i := y*width + x
			dx := float64(x) + angleEpsilon
			if math.Sqrt(dx*dx+dy*dy) > half {
				t.angles[i] = invalidAngle
				continue
			}
			raw := int(math.Round(math.Atan(dy/dx) * 180 / math.Pi))
			bin, ok := quantize(raw)
			if !ok {
				t.angles[i] = invalidAngle
				continue
			}
			t.angles[i] = int8(bin)
			t.valid++
		}
	}

	return t, nil
}

// quantize maps a whole-degree angle to its 10° bin. Both ends of the range
// fold into the 90° bin. The offsets of ±1 shift the rounding boundary so the
// bins partition [-90, 90] without gaps.
func quantize(raw int) (int, bool) {
	switch {
	case raw >= -90 && raw <= -85:
		return 90, true
	case raw >= -84 && raw <= 0:
		return roundDiv(raw+1, 10) * 10, true
	case raw >= 1 && raw <= 85:
		return roundDiv(raw-1, 10) * 10, true
	case raw >= 86 && raw <= 90:
		return 90, true
	default:
		return 0, false
	}
}

// roundDiv returns n/d rounded half away from zero, d > 0.
func roundDiv(n, d int) int {
	if n < 0 {
		return -((-n*2 + d) / (2 * d))
	}
	return (n*2 + d) / (2 * d)
}

// At returns the bin for the cell at linear index i, or false if the cell lies
// outside the valid radius or i is out of range.
func (t *AngleTable) At(i int) (int, bool) {
	if i < 0 || i >= len(t.angles) {
		return 0, false
	}
	a := t.angles[i]
	if a == invalidAngle {
		return 0, false
	}
	return int(a), true
}

// Width returns the number of columns (N/2).
func (t *AngleTable) Width() int { return t.width }

// Height returns the number of rows (N).
func (t *AngleTable) Height() int { return t.height }

// Len returns Width()*Height().
func (t *AngleTable) Len() int { return len(t.angles) }

// ValidCount returns the number of cells inside the valid radius.
func (t *AngleTable) ValidCount() int { return t.valid }

// BinCounts returns how many valid cells fall into each bin.
func (t *AngleTable) BinCounts() map[int]int {
	counts := make(map[int]int, len(Bins))
	for _, a := range t.angles {
		if a != invalidAngle {
			counts[int(a)]++
		}
	}
	return counts
}

// binIndex returns the position of deg in Bins.
func binIndex(deg int) int {
	return (deg + 90) / 10
}
