package transport

import (
	"fmt"
	"sync"

	"tuner/internal/tuner"
)

// LoggingTransport writes results to the log. Consecutive results that
// show the same reading (note, or gated/silent state) are logged at debug
// level only, so a held note does not flood the log.
type LoggingTransport struct {
	mu   sync.Mutex
	last string
}

func NewLoggingTransport() *LoggingTransport {
	return &LoggingTransport{}
}

// Send logs data. Analysis results are summarised; anything else is
// printed with %v.
func (lt *LoggingTransport) Send(data any) error {
	r, ok := data.(tuner.AnalysisResult)
	if !ok {
		logger.Infof("%v", data)
		return nil
	}

	reading := readingOf(r)
	lt.mu.Lock()
	changed := reading != lt.last
	lt.last = reading
	lt.mu.Unlock()

	if changed {
		logger.Infof("%v", r)
	} else {
		logger.Debugf("%v", r)
	}
	return nil
}

func (lt *LoggingTransport) Close() error {
	return nil
}

// readingOf is the part of a result a player would notice changing.
func readingOf(r tuner.AnalysisResult) string {
	switch {
	case r.Gated:
		return "gated"
	case r.Note != nil:
		return r.Note.String()
	default:
		return fmt.Sprintf("%d Hz", r.FundamentalHz)
	}
}

var _ Transport = (*LoggingTransport)(nil)
