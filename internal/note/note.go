// SPDX-License-Identifier: MIT
/*
Package note names the frequencies reported by the tuner.

Notes use twelve-tone equal temperament relative to a reference A4
(440 Hz unless configured otherwise). Cents measure the distance from the
nearest note, in [-50, 50].
*/
package note

import (
	"errors"
	"fmt"
	"math"
)

// ReferenceA4 is the standard concert pitch in Hz.
const ReferenceA4 = 440.0

// ErrNoPitch is returned for frequencies that cannot be named (zero or
// negative, as published for gated or silent windows).
var ErrNoPitch = errors.New("note: no pitch")

var names = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Note is a named equal-tempered pitch and the deviation of a measured
// frequency from it.
type Note struct {
	Name      string  `json:"name"`      // Pitch class, e.g. "A#"
	Octave    int     `json:"octave"`    // Scientific pitch octave, A4 = 4
	MIDI      int     `json:"midi"`      // MIDI note number, A4 = 69
	Target    float64 `json:"target_hz"` // Exact frequency of the note
	Frequency float64 `json:"frequency"` // Measured frequency
	Cents     float64 `json:"cents"`     // Measured - target, in cents
}

// String returns the note in scientific pitch notation, e.g. "A4".
func (n Note) String() string {
	return fmt.Sprintf("%s%d", n.Name, n.Octave)
}

// FromFrequency returns the note nearest to hz. reference is the frequency
// of A4; a value <= 0 selects ReferenceA4.
func FromFrequency(hz, reference float64) (Note, error) {
	if hz <= 0 || math.IsNaN(hz) || math.IsInf(hz, 0) {
		return Note{}, fmt.Errorf("%w: %v Hz", ErrNoPitch, hz)
	}
	if reference <= 0 {
		reference = ReferenceA4
	}

	semitones := 12 * math.Log2(hz/reference)
	nearest := math.Round(semitones)
	midi := int(nearest) + 69

	return Note{
		Name:      names[mod12(midi)],
		Octave:    floorDiv12(midi) - 1,
		MIDI:      midi,
		Target:    reference * math.Pow(2, nearest/12),
		Frequency: hz,
		Cents:     100 * (semitones - nearest),
	}, nil
}

// Frequency returns the equal-tempered frequency of a MIDI note number.
func Frequency(midi int, reference float64) float64 {
	if reference <= 0 {
		reference = ReferenceA4
	}
	return reference * math.Pow(2, float64(midi-69)/12)
}

func mod12(n int) int {
	m := n % 12
	if m < 0 {
		m += 12
	}
	return m
}

func floorDiv12(n int) int {
	if n < 0 {
		return -((-n + 11) / 12)
	}
	return n / 12
}
