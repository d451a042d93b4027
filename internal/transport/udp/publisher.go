// SPDX-License-Identifier: MIT
package udp

import (
	"fmt"
	"sync"
	"time"

	"tuner/internal/tuner"
)

// LatestProvider exposes the most recent analysis result.
// *tuner.Analyzer satisfies it.
type LatestProvider interface {
	Latest() (tuner.AnalysisResult, bool)
}

// UDPPublisher periodically fetches the latest analysis result, packs it
// into the binary packet format and sends it over UDP using a UDPSender.
// A result is sent once; ticks without a new result send nothing.
// It runs in a separate goroutine managed by Start and Stop methods.
type UDPPublisher struct {
	sender   *UDPSender     // The underlying UDP sender instance.
	source   LatestProvider // Where results are read from.
	interval time.Duration  // The interval at which results are polled.

	ticker   *time.Ticker   // Ticker that triggers packet sending.
	doneChan chan struct{}  // Channel used to signal the publisher goroutine to stop.
	stopOnce sync.Once      // Ensures the stop logic runs only once per Start/Stop cycle.
	wg       sync.WaitGroup // Waits for the publisher goroutine to finish during Stop.
	mu       sync.Mutex     // Protects access to ticker and doneChan during Start/Stop.

	sequenceNum  uint32 // Monotonically increasing sequence number for packets.
	lastResult   uint64 // Sequence of the last result sent.
	packetBuffer []byte // Reusable buffer for constructing the binary packet.
}

// NewUDPPublisher creates and initializes a new UDPPublisher.
// If the provided interval is invalid (<= 0), it defaults to 16ms (~60Hz).
func NewUDPPublisher(interval time.Duration, sender *UDPSender, source LatestProvider) (*UDPPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	if source == nil {
		return nil, fmt.Errorf("UDPPublisher: result source cannot be nil")
	}

	if interval <= 0 {
		interval = 16 * time.Millisecond // Default to ~60Hz if invalid
		logger.Warnf("invalid publish interval, defaulting to %s", interval)
	}

	return &UDPPublisher{
		sender:       sender,
		source:       source,
		interval:     interval,
		packetBuffer: make([]byte, 0, PacketSize),
	}, nil
}

// Start begins the periodic publishing process.
// It is safe to call Start multiple times; subsequent calls are no-ops if already started.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		logger.Warnf("publisher Start called but already running")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{} // Reset stopOnce for this run

	// Local copies so the goroutine never reads p.ticker/p.doneChan.
	ticker := p.ticker
	doneChan := p.doneChan

	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		logger.Infof("publisher started (interval %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.buildAndSendPacket()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop gracefully signals the publisher goroutine to terminate and waits for it to exit.
// It is safe to call Stop multiple times; subsequent calls are no-ops.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}

	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})

	p.mu.Unlock()

	p.wg.Wait()
	logger.Infof("publisher stopped after %d packets", p.sequenceNum)
	return nil
}

// buildAndSendPacket sends the latest result if it has not been sent yet.
func (p *UDPPublisher) buildAndSendPacket() {
	r, ok := p.source.Latest()
	if !ok || r.Sequence == p.lastResult {
		return
	}
	p.lastResult = r.Sequence

	p.sequenceNum++
	pkt := FromResult(p.sequenceNum, r)

	var err error
	p.packetBuffer, err = pkt.AppendBinary(p.packetBuffer[:0])
	if err != nil {
		logger.Errorf("packing packet %d: %v", p.sequenceNum, err)
		return
	}

	if err := p.sender.Send(p.packetBuffer); err != nil {
		logger.Warnf("sending packet %d: %v", p.sequenceNum, err)
		return
	}
	logger.Debugf("sent packet %d (%d bytes)", p.sequenceNum, len(p.packetBuffer))
}

// FromResult converts an analysis result into its wire form.
func FromResult(seq uint32, r tuner.AnalysisResult) Packet {
	pkt := Packet{
		Sequence:      seq,
		Timestamp:     r.Timestamp,
		FundamentalHz: uint32(max(r.FundamentalHz, 0)),
		PeakVolume:    r.PeakVolume,
		Gated:         r.Gated,
		MIDI:          -1,
	}
	if r.Note != nil && r.Note.MIDI >= 0 && r.Note.MIDI <= 127 {
		pkt.MIDI = int8(r.Note.MIDI)
		pkt.Cents = float32(r.Note.Cents)
	}
	return pkt
}

// Close implements the io.Closer interface. It stops the publisher
// goroutine and closes the sender.
func (p *UDPPublisher) Close() error {
	if err := p.Stop(); err != nil {
		return err
	}
	return p.sender.Close()
}

// Ensure UDPPublisher satisfies the io.Closer interface at compile time.
var _ interface{ Close() error } = (*UDPPublisher)(nil)
