// SPDX-License-Identifier: MIT
package note

import (
	"fmt"
	"math"
	"strings"
)

// Tuning is the set of open-string notes of an instrument, lowest first.
type Tuning struct {
	Name    string
	Strings []int // MIDI note numbers
}

// Built-in tunings.
var (
	Chromatic = Tuning{Name: "chromatic"}
	Guitar    = Tuning{Name: "guitar", Strings: []int{40, 45, 50, 55, 59, 64}} // E2 A2 D3 G3 B3 E4
	Bass      = Tuning{Name: "bass", Strings: []int{28, 33, 38, 43}}         // E1 A1 D2 G2
)

// LookupTuning returns the built-in tuning with the given name.
func LookupTuning(name string) (Tuning, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", Chromatic.Name:
		return Chromatic, nil
	case Guitar.Name:
		return Guitar, nil
	case Bass.Name:
		return Bass, nil
	default:
		return Tuning{}, fmt.Errorf("unknown tuning %q", name)
	}
}

// Nearest returns the note hz should be tuned to. A chromatic tuning names
// the nearest semitone; an instrument tuning picks the closest open string
// and reports cents against it, which may exceed 50.
func (t Tuning) Nearest(hz, reference float64) (Note, error) {
	n, err := FromFrequency(hz, reference)
	if err != nil || len(t.Strings) == 0 {
		return n, err
	}

	semitones := 12 * math.Log2(hz/referenceOrDefault(reference))
	best := t.Strings[0]
	for _, s := range t.Strings[1:] {
		if math.Abs(semitones-float64(s-69)) < math.Abs(semitones-float64(best-69)) {
			best = s
		}
	}

	return Note{
		Name:      names[mod12(best)],
		Octave:    floorDiv12(best) - 1,
		MIDI:      best,
		Target:    Frequency(best, reference),
		Frequency: hz,
		Cents:     100 * (semitones - float64(best-69)),
	}, nil
}

func referenceOrDefault(reference float64) float64 {
	if reference <= 0 {
		return ReferenceA4
	}
	return reference
}
