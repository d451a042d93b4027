package tui

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tuner/internal/note"
	"tuner/internal/tuner"
)

type fakeLatest struct {
	result tuner.AnalysisResult
	ok     bool
}

func (f *fakeLatest) Latest() (tuner.AnalysisResult, bool) { return f.result, f.ok }

type fakeGate struct {
	enabled   bool
	threshold float64
}

func (g *fakeGate) EnableGate()            { g.enabled = true }
func (g *fakeGate) DisableGate()           { g.enabled = false }
func (g *fakeGate) GateEnabled() bool      { return g.enabled }
func (g *fakeGate) GateThreshold() float64 { return g.threshold }

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func isQuit(t *testing.T, cmd tea.Cmd) bool {
	t.Helper()
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func update(t *testing.T, m TunerModel, msg tea.Msg) (TunerModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	tm, ok := next.(TunerModel)
	require.True(t, ok)
	return tm, cmd
}

func TestTunerModelWaitsForFirstResult(t *testing.T) {
	m := NewTunerModel(&fakeLatest{}, nil, 0)
	assert.Equal(t, DefaultRefreshInterval, m.interval)
	assert.NotNil(t, m.Init())

	m, cmd := update(t, m, tickMsg(time.Now()))
	assert.NotNil(t, cmd, "tick must be rescheduled")
	assert.Contains(t, m.View(), "Waiting for the first window")
	assert.Contains(t, m.View(), "q: Quit")
}

func TestTunerModelShowsNote(t *testing.T) {
	n, err := note.FromFrequency(441, note.ReferenceA4)
	require.NoError(t, err)
	src := &fakeLatest{ok: true, result: tuner.AnalysisResult{
		Sequence:      3,
		FundamentalHz: 441,
		PeakVolume:    16384,
		Note:          &n,
	}}

	m, _ := update(t, NewTunerModel(src, nil, time.Millisecond), tickMsg(time.Now()))
	view := m.View()
	assert.Contains(t, view, "A4")
	assert.Contains(t, view, "441 Hz (target 440.00 Hz)")
	assert.Contains(t, view, "+3.9 cents")
	assert.Contains(t, view, volumeBar(16384, volumeWidth))
}

func TestTunerModelGatedAndUnnamed(t *testing.T) {
	src := &fakeLatest{ok: true, result: tuner.AnalysisResult{Gated: true, PeakVolume: 3}}
	m, _ := update(t, NewTunerModel(src, nil, time.Millisecond), tickMsg(time.Now()))
	assert.Contains(t, m.View(), "below the noise gate")

	src.result = tuner.AnalysisResult{FundamentalHz: 5}
	m, _ = update(t, m, tickMsg(time.Now()))
	assert.Contains(t, m.View(), "5 Hz")
}

func TestTunerModelKeys(t *testing.T) {
	gate := &fakeGate{enabled: true, threshold: 0.001}
	m := NewTunerModel(&fakeLatest{}, gate, time.Millisecond)
	assert.Contains(t, m.View(), "g: Gate on (threshold 0.0010)")

	m, cmd := update(t, m, runeKey('g'))
	assert.False(t, gate.enabled)
	assert.False(t, isQuit(t, cmd))
	assert.Contains(t, m.View(), "g: Gate off")

	m, _ = update(t, m, runeKey('g'))
	assert.True(t, gate.enabled)

	_, cmd = update(t, m, runeKey('q'))
	assert.True(t, isQuit(t, cmd))

	_, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.True(t, isQuit(t, cmd))
}

func TestCentsMeter(t *testing.T) {
	tests := []struct {
		cents  float64
		needle int
	}{
		{0, 20},
		{50, 40},
		{-50, 0},
		{25, 30},
		{-12.4, 15},
		{80, 40},
		{-300, 0},
	}
	for _, tt := range tests {
		meter := []rune(centsMeter(tt.cents, meterWidth))
		require.Len(t, meter, meterWidth)
		assert.Equal(t, '●', meter[tt.needle], "cents %v", tt.cents)
		if tt.needle != meterWidth/2 {
			assert.Equal(t, '|', meter[meterWidth/2], "cents %v", tt.cents)
		}
	}
}

func TestVolumeBar(t *testing.T) {
	tests := []struct {
		peak   uint16
		filled int
	}{
		{0, 0},
		{16384, 15},
		{32767, 30},
		{32768, 30},
	}
	for _, tt := range tests {
		bar := volumeBar(tt.peak, volumeWidth)
		assert.Equal(t, volumeWidth, utf8.RuneCountInString(bar))
		assert.Equal(t, tt.filled, strings.Count(bar, "█"), "peak %d", tt.peak)
	}
}
