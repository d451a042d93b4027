// SPDX-License-Identifier: MIT
/*
Package spectrum implements the fixed-size, in-place radix-2 transform used
by the tuner.

An Engine owns three arrays of length N: the real and imaginary parts of the
spectrum and an independent copy of the raw samples used for loudness
measurement. Load overwrites all three every cycle; Transform then rewrites
the real/imaginary pair in place. Nothing is retained between cycles.

Performance:
  - All buffers are allocated once in New
  - Load, Transform and Inverse perform no allocations
  - Twiddle factors are computed per sub-block, O(1) extra space
*/
package spectrum

import (
	"errors"
	"fmt"
	"math"

	"tuner/pkg/bitint"
)

var (
	ErrInvalidSampleCount      = errors.New("spectrum: invalid sample count")
	ErrNullSource              = errors.New("spectrum: nil sample source")
	ErrBufferSizeNotPowerOfTwo = errors.New("spectrum: transform size must be a power of two")
)

// Engine loads one window of samples and transforms it in place.
// An Engine is driven by one goroutine at a time.
type Engine struct {
	size   int // N, a power of two
	stages int // M = log2(N)

	real     []float64
	imag     []float64
	snapshot []int16 // Raw samples, untouched by Transform.
	count    int     // Samples captured in the current window.
}

// New allocates an engine for transforms of size n = 2^M.
func New(n int) (*Engine, error) {
	if !bitint.IsPowerOfTwo(n) {
		return nil, fmt.Errorf("%w, got %d", ErrBufferSizeNotPowerOfTwo, n)
	}
	return &Engine{
		size:     n,
		stages:   bitint.Log2(n),
		real:     make([]float64, n),
		imag:     make([]float64, n),
		snapshot: make([]int16, n),
	}, nil
}

// Size returns the transform size N.
func (e *Engine) Size() int { return e.size }

// Count returns the number of samples loaded by the last Load.
func (e *Engine) Count() int { return e.count }

// Real returns the real part of the spectrum. The slice aliases engine
// storage and must not be modified or retained across cycles.
func (e *Engine) Real() []float64 { return e.real }

// Imag returns the imaginary part of the spectrum, with the same rules as Real.
func (e *Engine) Imag() []float64 { return e.imag }

// Bin returns the real and imaginary parts of bin k.
func (e *Engine) Bin(k int) (float64, float64) {
	return e.real[k], e.imag[k]
}

// Snapshot returns the raw samples of the current window, [0, Count()).
func (e *Engine) Snapshot() []int16 {
	return e.snapshot[:e.count]
}

// Load copies count samples into the real array and the snapshot, clears the
// imaginary array and zero-pads all three from count to N. samples must hold
// at least count values and count must lie in [0, N]. On error the engine is
// left unchanged.
func (e *Engine) Load(samples []int16, count int) error {
	if samples == nil {
		return ErrNullSource
	}
	if count < 0 || count > e.size || count > len(samples) {
		return fmt.Errorf("%w: %d (window %d, source %d)", ErrInvalidSampleCount, count, e.size, len(samples))
	}

	for i, s := range samples[:count] {
		e.real[i] = float64(s)
		e.imag[i] = 0
	}
	copy(e.snapshot, samples[:count])

	clear(e.real[count:])
	clear(e.imag[count:])
	clear(e.snapshot[count:])

	e.count = count
	return nil
}

// Transform computes the forward discrete Fourier transform of the loaded
// window in place: a bit-reversal permutation followed by M butterfly stages.
//
// At stage l the half-block size is l1 = 2^l. Sub-block k uses the twiddle
// u + iv = cos(q) - i sin(q) with q = k*pi/l1, and each pair j, i = j+l1 of
// the sub-block is combined as
//
//	a    = x[i] * (u + iv)
//	x[i] = x[j] - a
//	x[j] = x[j] + a
func (e *Engine) Transform() {
	e.permute()

	n := e.size
	re, im := e.real, e.imag
	for l := range e.stages {
		l1 := 1 << l
		l2 := l1 << 1
		step := math.Pi / float64(l1)
		q := 0.0
		for k := 0; k < l1; k++ {
			u := math.Cos(q)
			v := -math.Sin(q)
			q += step
			for j := k; j < n; j += l2 {
				i := j + l1
				a1 := re[i]*u - im[i]*v
				a2 := re[i]*v + im[i]*u
				re[i] = re[j] - a1
				re[j] += a1
				im[i] = im[j] - a2
				im[j] += a2
			}
		}
	}
}

// Inverse undoes Transform: conjugate, forward transform, conjugate and scale
// by 1/N. It exists to verify the forward transform; the tuner never calls it.
func (e *Engine) Inverse() {
	for i := range e.imag {
		e.imag[i] = -e.imag[i]
	}
	e.Transform()
	scale := 1 / float64(e.size)
	for i := range e.real {
		e.real[i] *= scale
		e.imag[i] = -e.imag[i] * scale
	}
}

// permute reorders (real[k], imag[k]) pairs into bit-reversed index order.
func (e *Engine) permute() {
	for k := range e.size {
		j := bitint.ReverseBits(k, e.stages)
		if k < j {
			e.real[k], e.real[j] = e.real[j], e.real[k]
			e.imag[k], e.imag[j] = e.imag[j], e.imag[k]
		}
	}
}
