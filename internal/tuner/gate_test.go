// SPDX-License-Identifier: MIT
package tuner

import (
	"fmt"
	"math"
	"testing"
)

func TestGateEnable(t *testing.T) {
	a := &Analyzer{}

	if a.gateEnabled.Load() {
		t.Error("Gate should be disabled initially")
	}

	a.EnableGate()
	if !a.GateEnabled() {
		t.Error("Gate should be enabled after EnableGate()")
	}

	a.DisableGate()
	if a.gateEnabled.Load() {
		t.Error("Gate should be disabled after DisableGate()")
	}

	a.EnableGate()
	a.EnableGate() // Multiple calls should be idempotent
	if !a.gateEnabled.Load() {
		t.Error("Gate should remain enabled after multiple EnableGate()")
	}
}

func TestGateThresholdBoundaries(t *testing.T) {
	tests := []struct {
		input    float64
		expected float64
	}{
		{-0.1, 0.0},       // Below min
		{0.0, 0.0},        // Minimum
		{0.5, 0.5},        // Middle
		{1.0, 1.0},        // Maximum
		{1.5, 1.0},        // Above max
		{math.NaN(), 0.0}, // Not a number
	}

	a := &Analyzer{}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%.2f", tt.input), func(t *testing.T) {
			a.SetGateThreshold(tt.input)
			got := a.GateThreshold()
			if math.Abs(got-tt.expected) > 1.0/fullScale {
				t.Errorf("Gate threshold conversion: got %.5f, want %.5f", got, tt.expected)
			}
		})
	}
}

func TestGateDetection(t *testing.T) {
	tests := []struct {
		desc      string
		peak      uint16
		enabled   bool
		threshold float64
		gated     bool
	}{
		{"Gate disabled/Silence", 0, false, 0.1, false},
		{"Gate disabled/Quiet signal", 100, false, 0.1, false},
		{"Gate enabled/Silence/Zero threshold", 0, true, 0, true},
		{"Gate enabled/Quiet signal/Low threshold", 100, true, 0.001, false},
		{"Gate enabled/Quiet signal/Mid threshold", 100, true, 0.1, true},
		{"Gate enabled/Loud signal/Mid threshold", 30000, true, 0.1, false},
		{"Gate enabled/Full scale/Unity", 32768, true, 1.0, true},
	}

	a := &Analyzer{}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			a.gateEnabled.Store(tt.enabled)
			a.SetGateThreshold(tt.threshold)
			if got := a.gated(tt.peak); got != tt.gated {
				t.Errorf("gated(%d) = %t, want %t", tt.peak, got, tt.gated)
			}
		})
	}
}

func TestGateHotPath(t *testing.T) {
	a := &Analyzer{}
	a.EnableGate()
	a.SetGateThreshold(0.1)

	allocs := testing.AllocsPerRun(100, func() {
		for p := range uint16(1024) {
			_ = a.gated(p * 32)
		}
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in gate check, got %.1f", allocs)
	}
}
