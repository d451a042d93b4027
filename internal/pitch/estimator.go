// SPDX-License-Identifier: MIT
/*
Package pitch extracts the per-cycle results from a transformed window: the
fundamental frequency and the peak sample volume.

Fundamental frequency:

 1. Find the dominant bin d, the bin of maximum magnitude in [0, N/2).
 2. Estimate f = (d + 1) * sampleRate / N.
 3. If bin d/2, d/3 or d/4 has a magnitude above the harmonic threshold,
    the dominant bin is taken to be a harmonic and f becomes f/2, f/3 or
    f/4. The checks run in that order and the last one that matches wins.

The threshold applies to raw, unnormalised magnitudes of 16-bit samples.
*/
package pitch

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	DefaultSampleRate        = 44100.0
	DefaultHarmonicThreshold = 1030421.0
)

var (
	ErrNilSpectrum       = errors.New("pitch: nil spectrum")
	ErrInvalidSampleRate = errors.New("pitch: sample rate must be positive")
)

// Spectrum is the transformed window an Estimator reads. *spectrum.Engine
// satisfies it.
type Spectrum interface {
	Size() int
	Real() []float64
	Imag() []float64
	Snapshot() []int16
}

// Result is the output of one analysis cycle.
type Result struct {
	FundamentalHz int    `json:"fundamental_hz"`
	PeakVolume    uint16 `json:"peak_volume"`
}

// Estimator reads a Spectrum owned by the same goroutine.
type Estimator struct {
	src        Spectrum
	sampleRate float64
	threshold  float64
	magnitudes []float64 // Pre-allocated, N/2 bins.
}

// NewEstimator creates an estimator over src. A threshold <= 0 selects
// DefaultHarmonicThreshold.
func NewEstimator(src Spectrum, sampleRate, threshold float64) (*Estimator, error) {
	if src == nil {
		return nil, ErrNilSpectrum
	}
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("%w, got %f", ErrInvalidSampleRate, sampleRate)
	}
	if threshold <= 0 {
		threshold = DefaultHarmonicThreshold
	}
	return &Estimator{
		src:        src,
		sampleRate: sampleRate,
		threshold:  threshold,
		magnitudes: make([]float64, src.Size()/2),
	}, nil
}

// BinWidth returns the frequency spacing of the transform bins in Hz.
func (e *Estimator) BinWidth() float64 {
	return e.sampleRate / float64(e.src.Size())
}

// FundamentalFrequency returns the estimated fundamental in whole Hz,
// truncated toward zero. A dominant bin of 0 (silence or a DC offset) has no
// harmonics to test and yields 0.
func (e *Estimator) FundamentalFrequency() int {
	if len(e.magnitudes) == 0 {
		return 0
	}

	re, im := e.src.Real(), e.src.Imag()
	for k := range e.magnitudes {
		e.magnitudes[k] = math.Sqrt(re[k]*re[k] + im[k]*im[k])
	}

	// MaxIdx returns the first maximum: ties resolve to the lowest bin.
	d := floats.MaxIdx(e.magnitudes)
	if d == 0 {
		return 0
	}

	base := float64(d+1) * e.BinWidth()
	freq := base
	if e.magnitudes[d/2] > e.threshold {
		freq = base / 2
	}
	if e.magnitudes[d/3] > e.threshold {
		freq = base / 3
	}
	if e.magnitudes[d/4] > e.threshold {
		freq = base / 4
	}

	return int(freq)
}

// PeakVolume returns the largest absolute sample value of the captured
// window. |-32768| is 32768, so the result is an unsigned 16-bit amplitude.
func (e *Estimator) PeakVolume() uint16 {
	var peak int32
	for _, s := range e.src.Snapshot() {
		// Branchless abs and max.
		a := int32(s)
		mask := a >> 31
		a = (a ^ mask) - mask
		diff := a - peak
		peak += (diff & (diff >> 31)) ^ diff
	}
	return uint16(peak)
}

// Estimate computes both results for the current window.
func (e *Estimator) Estimate() Result {
	return Result{
		FundamentalHz: e.FundamentalFrequency(),
		PeakVolume:    e.PeakVolume(),
	}
}
