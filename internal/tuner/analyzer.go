// SPDX-License-Identifier: MIT
/*
Package tuner runs the analysis cycle: wait for a complete window, load it
into the spectrum engine, transform, estimate the fundamental and the peak
volume, and publish the result.

	Synchronize -> Load -> [gate] -> Transform -> Estimate -> Publish -> Reset

One Analyzer is driven by one goroutine. Latest and the gate controls may be
called from any goroutine.
*/
package tuner

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"tuner/internal/buffer"
	"tuner/internal/log"
	"tuner/internal/note"
	"tuner/internal/pitch"
	"tuner/internal/spectrum"
)

var logger = log.For("tuner")

// Skip reasons reported to the Observer.
const (
	SkipTimeout = "timeout"
	SkipError   = "error"
)

// Source is the consumer side of the shared window. *buffer.SharedBuffer
// satisfies it.
type Source interface {
	Capacity() int
	Synchronize(ctx context.Context) error
	Samples() []int16
	SampleCount() int
	Reset() error
}

// Publisher receives every AnalysisResult. transport.Transport satisfies it.
type Publisher interface {
	Send(data any) error
}

// Observer is notified of completed and skipped cycles.
type Observer interface {
	CycleCompleted(r AnalysisResult, elapsed time.Duration)
	CycleSkipped(reason string)
	PublishFailed()
}

// AnalysisResult is the published outcome of one cycle.
type AnalysisResult struct {
	Sequence      uint64     `json:"sequence"`
	Timestamp     time.Time  `json:"timestamp"`
	FundamentalHz int        `json:"fundamental_hz"`
	PeakVolume    uint16     `json:"peak_volume"`
	Samples       int        `json:"samples"`
	Gated         bool       `json:"gated"`
	Note          *note.Note `json:"note,omitempty"`
}

func (r AnalysisResult) String() string {
	switch {
	case r.Gated:
		return fmt.Sprintf("#%d gated (peak %d)", r.Sequence, r.PeakVolume)
	case r.Note != nil:
		return fmt.Sprintf("#%d %d Hz %s %+.1f cents (peak %d)", r.Sequence, r.FundamentalHz, r.Note, r.Note.Cents, r.PeakVolume)
	default:
		return fmt.Sprintf("#%d %d Hz (peak %d)", r.Sequence, r.FundamentalHz, r.PeakVolume)
	}
}

// Options configures an Analyzer.
type Options struct {
	SampleRate        float64     // Hz; <= 0 selects pitch.DefaultSampleRate
	HarmonicThreshold float64     // <= 0 selects pitch.DefaultHarmonicThreshold
	GateThreshold     float64     // Fraction of full scale in [0, 1]
	GateEnabled       bool        // Publish 0 Hz for windows at or below GateThreshold
	ReferenceA4       float64     // Hz; <= 0 selects note.ReferenceA4
	Tuning            note.Tuning // Note naming; the zero value is chromatic
}

// Analyzer owns the spectrum engine and estimator for one window size.
type Analyzer struct {
	src       Source
	engine    *spectrum.Engine
	estimator *pitch.Estimator
	publisher Publisher
	observer  Observer
	opts      Options

	gateEnabled   atomic.Bool
	gateThreshold atomic.Uint32 // Peak amplitude, 0-32768

	sequence uint64
	latest   atomic.Pointer[AnalysisResult]
}

// New creates an Analyzer reading windows from src. publisher and observer
// may be nil.
func New(src Source, opts Options, publisher Publisher, observer Observer) (*Analyzer, error) {
	if src == nil {
		return nil, errors.New("tuner: nil source")
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = pitch.DefaultSampleRate
	}

	engine, err := spectrum.New(src.Capacity())
	if err != nil {
		return nil, fmt.Errorf("tuner: %w", err)
	}
	estimator, err := pitch.NewEstimator(engine, opts.SampleRate, opts.HarmonicThreshold)
	if err != nil {
		return nil, fmt.Errorf("tuner: %w", err)
	}

	a := &Analyzer{
		src:       src,
		engine:    engine,
		estimator: estimator,
		publisher: publisher,
		observer:  observer,
		opts:      opts,
	}
	a.gateEnabled.Store(opts.GateEnabled)
	a.SetGateThreshold(opts.GateThreshold)

	logger.Infof("window %d samples at %.0f Hz (bin width %.4f Hz)",
		engine.Size(), opts.SampleRate, estimator.BinWidth())
	return a, nil
}

// Run performs cycles until ctx is done or the source is closed. A
// synchronisation timeout skips the cycle and the loop carries on. Run
// returns nil on a clean shutdown.
func (a *Analyzer) Run(ctx context.Context) error {
	logger.Debugf("consumer loop started")
	defer logger.Debugf("consumer loop stopped")

	for {
		_, err := a.Cycle(ctx)
		switch {
		case err == nil:
		case errors.Is(err, buffer.ErrSynchronizeTimeout):
			logger.Warnf("no complete window within the sync timeout, skipping cycle")
			a.skipped(SkipTimeout)
		case errors.Is(err, buffer.ErrClosed),
			errors.Is(err, context.Canceled),
			errors.Is(err, context.DeadlineExceeded):
			return nil
		default:
			a.skipped(SkipError)
			return err
		}
	}
}

// Cycle waits for one complete window, analyses it and hands the slot back
// to the producer.
func (a *Analyzer) Cycle(ctx context.Context) (AnalysisResult, error) {
	if err := a.src.Synchronize(ctx); err != nil {
		return AnalysisResult{}, err
	}

	result, err := a.Process(a.src.Samples(), a.src.SampleCount())
	if err != nil {
		return result, err
	}

	if err := a.src.Reset(); err != nil {
		return result, fmt.Errorf("tuner: reset: %w", err)
	}
	return result, nil
}

// Process analyses count samples of one window directly, without the
// shared buffer.
func (a *Analyzer) Process(samples []int16, count int) (AnalysisResult, error) {
	start := time.Now()

	if err := a.engine.Load(samples, count); err != nil {
		return AnalysisResult{}, fmt.Errorf("tuner: %w", err)
	}

	a.sequence++
	result := AnalysisResult{
		Sequence:   a.sequence,
		Timestamp:  start,
		PeakVolume: a.estimator.PeakVolume(),
		Samples:    count,
	}

	if a.gated(result.PeakVolume) {
		result.Gated = true
	} else {
		a.engine.Transform()
		result.FundamentalHz = a.estimator.FundamentalFrequency()
	}

	if result.FundamentalHz > 0 {
		n, err := a.opts.Tuning.Nearest(float64(result.FundamentalHz), a.opts.ReferenceA4)
		if err == nil {
			result.Note = &n
		}
	}

	a.latest.Store(&result)
	a.publish(result)

	if a.observer != nil {
		a.observer.CycleCompleted(result, time.Since(start))
	}
	return result, nil
}

// Latest returns the most recent result and whether one exists.
func (a *Analyzer) Latest() (AnalysisResult, bool) {
	r := a.latest.Load()
	if r == nil {
		return AnalysisResult{}, false
	}
	return *r, true
}

// WindowSize returns the transform size N.
func (a *Analyzer) WindowSize() int {
	return a.engine.Size()
}

func (a *Analyzer) publish(result AnalysisResult) {
	if a.publisher == nil {
		return
	}
	if err := a.publisher.Send(result); err != nil {
		logger.Errorf("publish #%d: %v", result.Sequence, err)
		if a.observer != nil {
			a.observer.PublishFailed()
		}
		return
	}
	logger.Debugf("published %v", result)
}

func (a *Analyzer) skipped(reason string) {
	if a.observer != nil {
		a.observer.CycleSkipped(reason)
	}
}
