/*
Package bitint provides the power-of-2 helpers used to size the 2D FFT
plans, spectra and angle tables. Every frame analyzed by the detector is a
square of side N where N is a power of two, so these checks sit on the
configuration path rather than the per-frame hot path.

Usage:

	// Reject an analysis size the transform cannot be planned for
	if !bitint.IsPowerOfTwo(size) { ... }

	// Suggest the nearest usable size for a frame of arbitrary side
	size := bitint.PrevPowerOfTwo(min(w, h)) // 300 -> 256

----------------------------------------------------------------------

What this code does:

	NextPowerOfTwo returns the smallest power of 2 >= size. The
	subtraction (size-1) keeps exact powers of 2 unchanged:

	  size = 8   -> size-1 = 7 (0111) -> bits.Len = 3 -> 1<<3 = 8
	  size = 9   -> size-1 = 8 (1000) -> bits.Len = 4 -> 1<<4 = 16

	PrevPowerOfTwo returns the largest power of 2 <= size, which is
	the highest set bit of size itself:

	  size = 300 (1 0010 1100) -> bits.Len = 9 -> 1<<8 = 256
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the next power of 2 >= size.
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// PrevPowerOfTwo returns the largest power of 2 <= size, or 0 when size is
// not positive.
//
//	Input  Output
//	256    256
//	300    256
//	1      1
//	0      0
func PrevPowerOfTwo(size int) int {
	if size <= 0 {
		return 0
	}
	return 1 << (bits.Len(uint(size)) - 1)
}

// IsPowerOfTwo checks if n is a power of 2 using bit manipulation.
// Powers of 2 have exactly one bit set, so n&(n-1) clears it to zero.
//
//	Input  Output  Binary
//	8      true    1000 & 0111 = 0000
//	7      false   0111 & 0110 = 0110
//	0      false   Not positive
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// Log2 returns log2(n) for a power of two n, and -1 otherwise.
func Log2(n int) int {
	if !IsPowerOfTwo(n) {
		return -1
	}
	return bits.TrailingZeros(uint(n))
}
