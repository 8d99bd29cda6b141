// SPDX-License-Identifier: MIT
package spectrum

import (
	"errors"
	"fmt"
)

// Default thresholds for direction estimation.
const (
	DefaultNoiseFloorDB = 100 // Cells at or below this level carry no direction
	DefaultMinBinEnergy = 800 // Winning bin total needed to report a direction
)

// ErrTableMismatch is returned when the angle table and spectrum grids differ.
var ErrTableMismatch = errors.New("angle table does not match spectrum shape")

// Params tunes direction estimation.
type Params struct {
	NoiseFloorDB float32 // Cells with dB <= NoiseFloorDB are ignored
	MinBinEnergy int     // Winning totals below this report no direction
}

// DefaultParams returns the standard noise floor and energy threshold.
func DefaultParams() Params {
	return Params{
		NoiseFloorDB: DefaultNoiseFloorDB,
		MinBinEnergy: DefaultMinBinEnergy,
	}
}

// Estimate is the outcome of accumulating spectral energy per direction bin.
type Estimate struct {
	Degrees int            // Winning bin in [-90, 90]; meaningful only if Found
	Found   bool           // Winning total reached Params.MinBinEnergy
	Energy  int            // Accumulated total of the winning bin
	Totals  [len(Bins)]int // Accumulated totals, indexed like Bins
}

// Total returns the accumulated energy of the bin for deg.
func (e Estimate) Total(deg int) int {
	if deg < -90 || deg > 90 || deg%10 != 0 {
		return 0
	}
	return e.Totals[binIndex(deg)]
}

// Estimate accumulates the truncated dB value of every strong, finite cell
// into its direction bin and picks the bin with the largest total. Equal
// totals resolve to the smallest angle.
func (s *Spectrum) Estimate(t *AngleTable, p Params) (Estimate, error) {
	var est Estimate
	if t == nil || t.width != s.width || t.height != s.height {
		return est, fmt.Errorf("%w: spectrum %dx%d", ErrTableMismatch, s.width, s.height)
	}

	for i, v := range s.values {
		a := t.angles[i]
		if a == invalidAngle || !isFinite(v) || v <= p.NoiseFloorDB {
			continue
		}
		est.Totals[binIndex(int(a))] += int(v)
	}

	best := 0
	for i := 1; i < len(est.Totals); i++ {
		if est.Totals[i] > est.Totals[best] {
			best = i
		}
	}

	est.Energy = est.Totals[best]
	if est.Energy > 0 && est.Energy >= p.MinBinEnergy {
		est.Degrees = Bins[best]
		est.Found = true
	}
	return est, nil
}

// Direction returns the dominant direction in degrees using DefaultParams, or
// false when no bin carries enough energy or t does not fit the spectrum.
func (s *Spectrum) Direction(t *AngleTable) (int, bool) {
	est, err := s.Estimate(t, DefaultParams())
	if err != nil || !est.Found {
		return 0, false
	}
	return est.Degrees, true
}
