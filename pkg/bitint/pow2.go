/*
Package bitint provides the power-of-two helpers used when sizing analysis
windows and the radix-2 transform.

Design Principles:
- Zero Allocations: All operations use stack memory only
- Predictable Performance: O(1) constant time operations
- Real-Time Safe: No locks, syscalls, or blocking operations

Usage:

	// Verify a transform size is valid
	isValid := bitint.IsPowerOfTwo(windowSize)

	// Number of butterfly stages for a 32768 point transform
	stages := bitint.Log2(32768) // Returns 15

	// Reverse the low 3 bits of an index
	j := bitint.ReverseBits(1, 3) // 001 -> 100, returns 4

----------------------------------------------------------------------

What this code does:

	NextPowerOfTwo returns the next power of 2 greater than or
	equal to size. The subtraction (size-1) keeps exact powers of 2
	unchanged: bits.Len(7) = 3 and 1 << 3 = 8, whereas bits.Len(8)
	would be 4 and double the input.

	ReverseBits mirrors the low m bits of an index. bits.Reverse flips
	the whole machine word, so the result is shifted back down by
	(word size - m) to leave only the mirrored low bits.
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the next power of 2 >= size.
//
// Examples:
//
//	Input  Output  Explanation
//	4      4      Already power of 2 (preserved)
//	5      8      Next power after 5
//	0      1      Handle zero case
//	-1     1      Handle negative case
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo checks if n is a power of 2 using bit manipulation.
// The expression (n & (n-1)) == 0 works because:
//   - Powers of 2 have exactly one bit set
//   - Subtracting 1 from a power of 2 sets all lower bits
//   - AND operation will be 0 only for powers of 2
//
// Examples:
//
//	Input  Output  Binary
//	8      true    1000 & 0111 = 0000
//	7      false   0111 & 0110 = 0110
//	0      false   Not positive
//	-8     false   Not positive
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// Log2 returns the exponent m of a power of two n = 2^m.
// The result is only meaningful when IsPowerOfTwo(n) holds.
func Log2(n int) int {
	if n <= 0 {
		return 0
	}
	return bits.Len(uint(n)) - 1
}

// ReverseBits reverses the low m bits of k.
func ReverseBits(k, m int) int {
	if m <= 0 {
		return 0
	}
	return int(bits.Reverse(uint(k)) >> (bits.UintSize - m))
}
