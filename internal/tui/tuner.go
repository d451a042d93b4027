package tui

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"tuner/internal/tuner"
)

const (
	DefaultRefreshInterval = 50 * time.Millisecond

	meterWidth    = 41 // Odd so the centre column marks 0 cents
	volumeWidth   = 30
	inTuneCents   = 5.0
	fullScalePeak = 32768.0
)

var gateKey = key.NewBinding(key.WithKeys("g"))

// LatestProvider exposes the most recent analysis result.
// *tuner.Analyzer satisfies it.
type LatestProvider interface {
	Latest() (tuner.AnalysisResult, bool)
}

// GateControl toggles the noise gate. *tuner.Analyzer satisfies it.
type GateControl interface {
	EnableGate()
	DisableGate()
	GateEnabled() bool
	GateThreshold() float64
}

type tickMsg time.Time

// TunerModel polls the latest result and draws the note, the cents meter
// and the input level.
type TunerModel struct {
	source   LatestProvider
	gate     GateControl // May be nil
	interval time.Duration

	result tuner.AnalysisResult
	have   bool
}

func NewTunerModel(source LatestProvider, gate GateControl, interval time.Duration) TunerModel {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return TunerModel{source: source, gate: gate, interval: interval}
}

func (m TunerModel) Init() tea.Cmd {
	return m.tick()
}

func (m TunerModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m TunerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.result, m.have = m.source.Latest()
		return m, m.tick()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, quitKey):
			return m, tea.Quit
		case key.Matches(msg, gateKey):
			if m.gate != nil {
				if m.gate.GateEnabled() {
					m.gate.DisableGate()
				} else {
					m.gate.EnableGate()
				}
			}
		}
	}
	return m, nil
}

func (m TunerModel) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Tuner"))
	sb.WriteString("\n\n")

	r := m.result
	switch {
	case !m.have:
		sb.WriteString(dimStyle.Render("Waiting for the first window..."))
		sb.WriteString("\n")
	case r.Gated:
		sb.WriteString(noteStyle.Render("--"))
		sb.WriteString("\n\n")
		sb.WriteString(dimStyle.Render("below the noise gate"))
		sb.WriteString("\n")
	case r.Note == nil:
		sb.WriteString(noteStyle.Render("?"))
		sb.WriteString("\n\n")
		fmt.Fprintf(&sb, "%d Hz\n", r.FundamentalHz)
	default:
		n := r.Note
		sb.WriteString(noteStyle.Render(n.String()))
		sb.WriteString("\n\n")
		fmt.Fprintf(&sb, "%d Hz (target %.2f Hz)\n", r.FundamentalHz, n.Target)

		style := offTuneStyle
		if math.Abs(n.Cents) <= inTuneCents {
			style = inTuneStyle
		}
		sb.WriteString(style.Render(fmt.Sprintf("%+.1f cents", n.Cents)))
		sb.WriteString("\n")
		sb.WriteString(centsMeter(n.Cents, meterWidth))
		sb.WriteString("\n")
	}

	if m.have {
		fmt.Fprintf(&sb, "\nlevel %s %5d\n", volumeBar(r.PeakVolume, volumeWidth), r.PeakVolume)
	}

	sb.WriteString("\n")
	sb.WriteString(infoStyle.Render(m.help()))
	return sb.String()
}

func (m TunerModel) help() string {
	if m.gate == nil {
		return "q: Quit"
	}
	state := "off"
	if m.gate.GateEnabled() {
		state = "on"
	}
	return fmt.Sprintf("g: Gate %s (threshold %.4f) • q: Quit", state, m.gate.GateThreshold())
}

// centsMeter draws a needle on a scale from -50 to +50 cents. Offsets beyond
// the scale pin the needle to the nearest end.
func centsMeter(cents float64, width int) string {
	if width < 3 {
		width = 3
	}
	center := width / 2
	pos := center + int(math.Round(cents/50*float64(center)))
	pos = max(0, min(width-1, pos))

	scale := []rune(strings.Repeat("·", width))
	scale[center] = '|'
	scale[pos] = '●'
	return string(scale)
}

// volumeBar draws the peak level as a fraction of full scale.
func volumeBar(peak uint16, width int) string {
	filled := int(math.Round(float64(peak) / fullScalePeak * float64(width)))
	filled = max(0, min(width, filled))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// RunTuner shows the live tuner until the user quits or ctx ends.
func RunTuner(ctx context.Context, source LatestProvider, gate GateControl, interval time.Duration) error {
	p := tea.NewProgram(
		NewTunerModel(source, gate, interval),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
