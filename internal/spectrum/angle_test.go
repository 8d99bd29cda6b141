// SPDX-License-Identifier: MIT
package spectrum

import (
	"errors"
	"fmt"
	"math"
	"testing"
)

const testImageSize = 256

// referenceValidCount recomputes the number of cells inside the valid radius
// directly from the geometry, independent of the table code.
func referenceValidCount(n int) int {
	half := float64(n) / 2
	count := 0
	for y := 0; y < n; y++ {
		for x := 0; x < n/2; x++ {
			dx := float64(x) + 1e-6
			dy := half - float64(y)
			if math.Sqrt(dx*dx+dy*dy) <= half {
				count++
			}
		}
	}
	return count
}

func TestNewAngleTable_InvalidSize(t *testing.T) {
	for _, n := range []int{-256, 0, 1, 2, 3, 100, 255, 257} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			table, err := NewAngleTable(n)
			if !errors.Is(err, ErrInvalidSize) {
				t.Errorf("NewAngleTable(%d) error = %v, want ErrInvalidSize", n, err)
			}
			if table != nil {
				t.Errorf("NewAngleTable(%d) returned a table on error", n)
			}
		})
	}
}

func TestAngleTable_Shape(t *testing.T) {
	table, err := NewAngleTable(testImageSize)
	if err != nil {
		t.Fatalf("NewAngleTable: %v", err)
	}
	if table.Width() != testImageSize/2 || table.Height() != testImageSize {
		t.Errorf("shape = %dx%d, want %dx%d", table.Width(), table.Height(), testImageSize/2, testImageSize)
	}
	if table.Len() != table.Width()*table.Height() {
		t.Errorf("Len() = %d, want %d", table.Len(), table.Width()*table.Height())
	}
}

func TestAngleTable_ValidCount(t *testing.T) {
	for _, n := range []int{4, 16, 64, 256} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			table, err := NewAngleTable(n)
			if err != nil {
				t.Fatalf("NewAngleTable: %v", err)
			}
			want := referenceValidCount(n)
			if got := table.ValidCount(); got != want {
				t.Errorf("ValidCount() = %d, want %d", got, want)
			}

			counted := 0
			for i := range table.Len() {
				if _, ok := table.At(i); ok {
					counted++
				}
			}
			if counted != want {
				t.Errorf("cells reported valid by At = %d, want %d", counted, want)
			}
		})
	}
}

func TestAngleTable_ValidCountIsHalfDisk(t *testing.T) {
	table, err := NewAngleTable(testImageSize)
	if err != nil {
		t.Fatalf("NewAngleTable: %v", err)
	}
	r := float64(testImageSize) / 2
	area := math.Pi * r * r / 2
	got := float64(table.ValidCount())
	if math.Abs(got-area)/area > 0.02 {
		t.Errorf("ValidCount() = %.0f, expected close to half-disk area %.0f", got, area)
	}
}

func TestAngleTable_BinsAreQuantized(t *testing.T) {
	table, err := NewAngleTable(testImageSize)
	if err != nil {
		t.Fatalf("NewAngleTable: %v", err)
	}
	allowed := make(map[int]bool, len(Bins))
	for _, b := range Bins {
		allowed[b] = true
	}
	for i := range table.Len() {
		deg, ok := table.At(i)
		if ok && !allowed[deg] {
			t.Fatalf("cell %d has angle %d, not a 10° bin in [-90, 90]", i, deg)
		}
	}

	total := 0
	for deg, n := range table.BinCounts() {
		if !allowed[deg] {
			t.Errorf("BinCounts has unexpected bin %d", deg)
		}
		total += n
	}
	if total != table.ValidCount() {
		t.Errorf("BinCounts total = %d, want %d", total, table.ValidCount())
	}
}

func TestAngleTable_KnownCells(t *testing.T) {
	table, err := NewAngleTable(testImageSize)
	if err != nil {
		t.Fatalf("NewAngleTable: %v", err)
	}
	w := table.Width()
	mid := testImageSize / 2

	tests := []struct {
		name    string
		x, y    int
		wantDeg int
		wantOK  bool
	}{
		{"zero frequency", 0, mid, 0, true},
		{"horizontal axis", 100, mid, 0, true},
		{"top of vertical axis", 0, 0, 90, true},
		{"bottom of vertical axis", 0, testImageSize - 1, 90, true},
		{"upper diagonal", 10, mid - 10, 40, true},
		{"lower diagonal", 10, mid + 10, -40, true},
		{"corner outside radius", w - 1, 0, 0, false},
		{"corner outside radius bottom", w - 1, testImageSize - 1, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deg, ok := table.At(tt.y*w + tt.x)
			if ok != tt.wantOK {
				t.Fatalf("At(%d,%d) ok = %v, want %v", tt.x, tt.y, ok, tt.wantOK)
			}
			if ok && deg != tt.wantDeg {
				t.Errorf("At(%d,%d) = %d, want %d", tt.x, tt.y, deg, tt.wantDeg)
			}
		})
	}
}

func TestAngleTable_AtOutOfRange(t *testing.T) {
	table, err := NewAngleTable(16)
	if err != nil {
		t.Fatalf("NewAngleTable: %v", err)
	}
	for _, i := range []int{-1, table.Len(), table.Len() + 100} {
		if _, ok := table.At(i); ok {
			t.Errorf("At(%d) reported a valid angle", i)
		}
	}
}

func TestQuantize(t *testing.T) {
	tests := []struct {
		raw    int
		want   int
		wantOK bool
	}{
		{-91, 0, false},
		{-90, 90, true},
		{-85, 90, true},
		{-84, -80, true},
		{-76, -80, true},
		{-75, -70, true},
		{-16, -20, true},
		{-15, -10, true},
		{-6, -10, true},
		{-5, 0, true},
		{0, 0, true},
		{1, 0, true},
		{5, 0, true},
		{6, 10, true},
		{15, 10, true},
		{16, 20, true},
		{45, 40, true},
		{75, 70, true},
		{76, 80, true},
		{85, 80, true},
		{86, 90, true},
		{90, 90, true},
		{91, 0, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.raw), func(t *testing.T) {
			got, ok := quantize(tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("quantize(%d) ok = %v, want %v", tt.raw, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("quantize(%d) = %d, want %d", tt.raw, got, tt.want)
			}
		})
	}
}

func TestQuantize_NoGaps(t *testing.T) {
	prev, _ := quantize(-84)
	for raw := -83; raw <= 85; raw++ {
		got, ok := quantize(raw)
		if !ok {
			t.Fatalf("quantize(%d) not valid", raw)
		}
		if got != prev && got != prev+10 {
			t.Fatalf("quantize(%d) = %d jumps from %d", raw, got, prev)
		}
		prev = got
	}
}

func BenchmarkNewAngleTable(b *testing.B) {
	b.ReportAllocs()
	for b.Loop() {
		_, _ = NewAngleTable(testImageSize)
	}
}
