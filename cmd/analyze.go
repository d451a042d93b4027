package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"tuner/internal/audio"
	"tuner/internal/buffer"
	"tuner/internal/config"
	"tuner/internal/tuner"
)

// resultCollector keeps every published result in order.
type resultCollector struct {
	mu      sync.Mutex
	results []tuner.AnalysisResult
}

func (c *resultCollector) Send(data any) error {
	r, ok := data.(tuner.AnalysisResult)
	if !ok {
		return fmt.Errorf("unexpected result type %T", data)
	}
	c.mu.Lock()
	c.results = append(c.results, r)
	c.mu.Unlock()
	return nil
}

func (c *resultCollector) Results() []tuner.AnalysisResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]tuner.AnalysisResult(nil), c.results...)
}

// analyzeFile streams a WAV file through the same window hand-off and
// analysis cycle as live capture and prints one line per window.
func analyzeFile(ctx context.Context, cfg *config.Config, path string, w io.Writer, asJSON bool) error {
	src, err := audio.OpenFile(path)
	if err != nil {
		return err
	}
	logger.Infof("%s: %.0f Hz, %d channel(s), %d-bit, %s",
		path, src.SampleRate(), src.Channels(), src.BitDepth(), src.Duration().Round(time.Millisecond))

	window, err := buffer.New(cfg.Analysis.WindowSize, 0)
	if err != nil {
		return err
	}
	defer window.Close()

	analyzerOpts, err := analyzerOptions(cfg, src.SampleRate())
	if err != nil {
		return err
	}
	collector := &resultCollector{}
	analyzer, err := tuner.New(window, analyzerOpts, collector, nil)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	analyzerDone := make(chan error, 1)
	go func() { analyzerDone <- analyzer.Run(ctx) }()

	streamErr := src.Stream(ctx, window, cfg.Audio.FramesPerBuffer)
	cancel()
	runErr := <-analyzerDone

	if streamErr != nil && !errors.Is(streamErr, context.Canceled) {
		return streamErr
	}
	if runErr != nil {
		return runErr
	}

	return printResults(w, collector.Results(), float64(window.Capacity())/src.SampleRate(), asJSON)
}

func printResults(w io.Writer, results []tuner.AnalysisResult, windowSeconds float64, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		for _, r := range results {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		return nil
	}

	for _, r := range results {
		offset := float64(r.Sequence-1) * windowSeconds
		if _, err := fmt.Fprintf(w, "%8.3fs  %s\n", offset, r); err != nil {
			return err
		}
	}
	return nil
}
