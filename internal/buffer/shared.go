// SPDX-License-Identifier: MIT
/*
Package buffer hands complete sample windows from a capture producer to a
single analysis consumer.

A SharedBuffer is a single-slot mailbox. The producer fills one window of
int16 samples and marks it ready; the consumer blocks in Synchronize until
the window is complete, reads it, and calls Reset to hand the slot back.

State machine:

	Idle --MarkWriting--> Writing --MarkReady--> Ready --Reset--> Idle

Every state transition happens under the flag lock. While a window is being
written the producer additionally holds the rendezvous token, and
Synchronize acquires and releases that token before returning, so the
consumer never observes a partially written window.

Thread Safety:
  - One producer goroutine calls MarkWriting, Append, MarkReady, Write, Flush
  - One consumer goroutine calls Synchronize, the accessors and Reset
  - Close may be called from any goroutine
*/
package buffer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"tuner/internal/log"
	"tuner/pkg/bitint"
)

var (
	ErrSynchronizeTimeout      = errors.New("buffer: synchronize timed out")
	ErrClosed                  = errors.New("buffer: closed")
	ErrInvalidTransition       = errors.New("buffer: invalid state transition")
	ErrWriteInProgress         = errors.New("buffer: write in progress")
	ErrWindowPending           = errors.New("buffer: window pending consumption")
	ErrBufferSizeNotPowerOfTwo = errors.New("buffer: capacity must be a power of two")
)

var logger = log.For("buffer")

// State is the position of the shared window in its hand-off cycle.
type State uint32

const (
	Idle State = iota
	Writing
	Ready
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Writing:
		return "writing"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// SharedBuffer is the synchronised hand-off of one analysis window.
type SharedBuffer struct {
	flagMu sync.Mutex    // Guards state, index, ready and closed.
	state  State         // Current hand-off state.
	index  int           // Write index: samples held in the current window.
	ready  chan struct{} // Closed when the current window becomes Ready.
	closed bool

	rendezvous chan struct{} // Holds one token while the producer writes.
	samples    []int16       // Window storage, fixed capacity.
	timeout    time.Duration // Bound on Synchronize; zero waits indefinitely.

	done      chan struct{}
	closeOnce sync.Once

	dropped atomic.Uint64 // Samples rejected because no window could take them.
}

// New allocates a shared window of the given capacity. capacity must be a
// power of two. syncTimeout bounds every Synchronize call; zero disables the
// bound and leaves cancellation to the caller's context.
func New(capacity int, syncTimeout time.Duration) (*SharedBuffer, error) {
	if !bitint.IsPowerOfTwo(capacity) {
		return nil, fmt.Errorf("%w, got %d", ErrBufferSizeNotPowerOfTwo, capacity)
	}
	if syncTimeout < 0 {
		syncTimeout = 0
	}

	logger.Debugf("allocating window (capacity %d samples, sync timeout %s)", capacity, syncTimeout)

	return &SharedBuffer{
		ready:      make(chan struct{}),
		rendezvous: make(chan struct{}, 1),
		samples:    make([]int16, capacity),
		timeout:    syncTimeout,
		done:       make(chan struct{}),
	}, nil
}

// Capacity returns the fixed window size N.
func (b *SharedBuffer) Capacity() int {
	return len(b.samples)
}

// State returns the current hand-off state.
func (b *SharedBuffer) State() State {
	b.flagMu.Lock()
	defer b.flagMu.Unlock()
	return b.state
}

// Dropped returns the number of samples discarded because a window was
// pending consumption or already full.
func (b *SharedBuffer) Dropped() uint64 {
	return b.dropped.Load()
}

// --- Producer side ---

// MarkWriting moves an Idle window to Writing and takes the rendezvous token.
// The producer must not be observed by the consumer until MarkReady.
func (b *SharedBuffer) MarkWriting() error {
	b.flagMu.Lock()
	defer b.flagMu.Unlock()
	return b.beginLocked()
}

// Append copies samples into the window being written and returns how many
// fit. Samples beyond the window capacity are dropped.
func (b *SharedBuffer) Append(samples []int16) (int, error) {
	b.flagMu.Lock()
	if b.closed {
		b.flagMu.Unlock()
		return 0, ErrClosed
	}
	if b.state != Writing {
		state := b.state
		b.flagMu.Unlock()
		return 0, fmt.Errorf("%w: append while %s", ErrInvalidTransition, state)
	}
	start := b.index
	b.flagMu.Unlock()

	n := b.copyFrom(start, samples)

	b.flagMu.Lock()
	b.index = start + n
	b.flagMu.Unlock()

	return n, nil
}

// MarkReady moves a Writing window to Ready, releases the rendezvous token
// and wakes the consumer.
func (b *SharedBuffer) MarkReady() error {
	b.flagMu.Lock()
	defer b.flagMu.Unlock()
	if b.state != Writing {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.state, Ready)
	}
	b.completeLocked()
	return nil
}

// Write is the capture callback entry point. It starts a window on the first
// packet, appends the packet and marks the window Ready once it holds
// Capacity samples. A packet that arrives while the previous window is still
// pending is dropped and reported with ErrWindowPending.
func (b *SharedBuffer) Write(packet []int16) (int, error) {
	b.flagMu.Lock()
	if b.closed {
		b.flagMu.Unlock()
		return 0, ErrClosed
	}
	switch b.state {
	case Ready:
		b.flagMu.Unlock()
		b.dropped.Add(uint64(len(packet)))
		return 0, ErrWindowPending
	case Idle:
		if err := b.beginLocked(); err != nil {
			b.flagMu.Unlock()
			return 0, err
		}
	}
	start := b.index
	b.flagMu.Unlock()

	n := b.copyFrom(start, packet)

	b.flagMu.Lock()
	b.index = start + n
	if b.index == len(b.samples) {
		b.completeLocked()
	}
	b.flagMu.Unlock()

	return n, nil
}

// Flush marks a partially written window Ready, e.g. at the end of a file.
// Flushing an Idle or Ready window is a no-op.
func (b *SharedBuffer) Flush() error {
	b.flagMu.Lock()
	defer b.flagMu.Unlock()
	if b.state == Writing {
		b.completeLocked()
	}
	return nil
}

// beginLocked performs Idle -> Writing. flagMu must be held.
func (b *SharedBuffer) beginLocked() error {
	if b.closed {
		return ErrClosed
	}
	if b.state != Idle {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.state, Writing)
	}
	select {
	case b.rendezvous <- struct{}{}:
	default:
		// Token still held: a previous writer never released it.
		return fmt.Errorf("%w: rendezvous token held", ErrInvalidTransition)
	}
	b.state = Writing
	return nil
}

// completeLocked performs Writing -> Ready. flagMu must be held.
func (b *SharedBuffer) completeLocked() {
	b.state = Ready
	<-b.rendezvous
	close(b.ready)
}

func (b *SharedBuffer) copyFrom(start int, samples []int16) int {
	n := copy(b.samples[start:], samples)
	if n < len(samples) {
		b.dropped.Add(uint64(len(samples) - n))
	}
	return n
}

// --- Consumer side ---

// Synchronize blocks until the producer has completed a window. It returns
// ErrSynchronizeTimeout when the configured bound expires, ctx.Err() when the
// context ends first and ErrClosed after Close. None of these modify the
// buffer; the caller skips the cycle and may call Synchronize again.
func (b *SharedBuffer) Synchronize(ctx context.Context) error {
	b.flagMu.Lock()
	ready := b.ready
	b.flagMu.Unlock()

	var expired <-chan time.Time
	if b.timeout > 0 {
		timer := time.NewTimer(b.timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-ready:
	case <-expired:
		return ErrSynchronizeTimeout
	case <-ctx.Done():
		return ctx.Err()
	case <-b.done:
		return ErrClosed
	}

	// Rendezvous: the token is only free once the writer has let go of it.
	select {
	case b.rendezvous <- struct{}{}:
		<-b.rendezvous
	case <-expired:
		return ErrSynchronizeTimeout
	case <-ctx.Done():
		return ctx.Err()
	case <-b.done:
		return ErrClosed
	}
	return nil
}

// Samples returns the captured window, Samples()[:SampleCount()]. The slice
// aliases the buffer and is valid only between Synchronize and Reset.
func (b *SharedBuffer) Samples() []int16 {
	b.flagMu.Lock()
	defer b.flagMu.Unlock()
	return b.samples[:b.index]
}

// SampleCount returns the number of samples in the window.
func (b *SharedBuffer) SampleCount() int {
	b.flagMu.Lock()
	defer b.flagMu.Unlock()
	return b.index
}

// ByteSize returns the size of the captured samples in bytes.
func (b *SharedBuffer) ByteSize() int {
	return b.SampleCount() * 2
}

// Reset clears the write index and hands the slot back to the producer.
// Resetting while the producer is writing is rejected with ErrWriteInProgress.
func (b *SharedBuffer) Reset() error {
	b.flagMu.Lock()
	defer b.flagMu.Unlock()
	if b.state == Writing {
		return ErrWriteInProgress
	}
	if b.state == Ready {
		b.ready = make(chan struct{})
	}
	b.index = 0
	b.state = Idle
	return nil
}

// Close wakes any pending Synchronize with ErrClosed and rejects further
// writes. It is safe to call more than once.
func (b *SharedBuffer) Close() error {
	b.closeOnce.Do(func() {
		b.flagMu.Lock()
		b.closed = true
		b.flagMu.Unlock()
		close(b.done)
		logger.Debugf("closed (%d samples dropped)", b.dropped.Load())
	})
	return nil
}
