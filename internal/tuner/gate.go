// SPDX-License-Identifier: MIT
package tuner

import "math"

const fullScale = -math.MinInt16 // 32768

func (a *Analyzer) EnableGate() {
	a.gateEnabled.Store(true)
}

func (a *Analyzer) DisableGate() {
	a.gateEnabled.Store(false)
}

func (a *Analyzer) GateEnabled() bool {
	return a.gateEnabled.Load()
}

// SetGateThreshold adjusts the noise gate threshold.
// The value is in the range of 0.0-1.0 where 0=always open, 1=always closed.
func (a *Analyzer) SetGateThreshold(threshold float64) {
	if threshold < 0.0 || math.IsNaN(threshold) {
		threshold = 0.0
	}
	if threshold > 1.0 {
		threshold = 1.0
	}

	a.gateThreshold.Store(uint32(threshold * fullScale))
}

// GateThreshold returns the current noise gate threshold as a float64.
// The value is in the range of 0.0-1.0 where 0=always open, 1=always closed.
func (a *Analyzer) GateThreshold() float64 {
	return float64(a.gateThreshold.Load()) / fullScale
}

// gated reports whether a window with the given peak stays closed.
func (a *Analyzer) gated(peak uint16) bool {
	return a.gateEnabled.Load() && uint32(peak) <= a.gateThreshold.Load()
}
