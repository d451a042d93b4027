// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-audio/wav"

	"tuner/internal/buffer"
)

const streamPollInterval = time.Millisecond

var ErrInvalidWAV = errors.New("audio: invalid WAV file")

// WindowWriter is the producer side of a shared window. *buffer.SharedBuffer
// satisfies it.
type WindowWriter interface {
	Capacity() int
	Write(packet []int16) (int, error)
	Flush() error
	State() buffer.State
}

// FileSource holds channel 0 of a decoded WAV file as 16-bit samples.
type FileSource struct {
	sampleRate float64
	channels   int
	bitDepth   int
	samples    []int16
}

// OpenFile decodes the WAV file at path.
func OpenFile(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, err := DecodeWAV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return src, nil
}

// DecodeWAV reads a 16, 24 or 32-bit PCM WAV stream. Wider samples are scaled
// down to 16 bits; only the first channel is kept.
func DecodeWAV(r io.ReadSeeker) (*FileSource, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, ErrInvalidWAV
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}

	channels := int(d.NumChans)
	bitDepth := int(d.BitDepth)
	if channels < 1 {
		return nil, fmt.Errorf("%w: %d channels", ErrInvalidWAV, channels)
	}
	switch bitDepth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: unsupported bit depth %d", ErrInvalidWAV, bitDepth)
	}

	shift := bitDepth - 16
	samples := make([]int16, len(buf.Data)/channels)
	for i := range samples {
		samples[i] = int16(buf.Data[i*channels] >> shift)
	}

	return &FileSource{
		sampleRate: float64(d.SampleRate),
		channels:   channels,
		bitDepth:   bitDepth,
		samples:    samples,
	}, nil
}

func (s *FileSource) SampleRate() float64 { return s.sampleRate }
func (s *FileSource) Channels() int        { return s.channels }
func (s *FileSource) BitDepth() int        { return s.bitDepth }
func (s *FileSource) Samples() []int16     { return s.samples }

// Duration returns the playing time of the file.
func (s *FileSource) Duration() time.Duration {
	if s.sampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(s.samples)) / s.sampleRate * float64(time.Second))
}

// Stream feeds the file to w in packets of packetSize samples, as a capture
// callback would, but waits for each window to be consumed instead of
// dropping packets. Packets are cut at window boundaries. The trailing
// partial window is flushed, and Stream returns once it has been consumed.
func (s *FileSource) Stream(ctx context.Context, w WindowWriter, packetSize int) error {
	if packetSize < 1 {
		return fmt.Errorf("audio: invalid packet size %d", packetSize)
	}
	capacity := w.Capacity()

	for off := 0; off < len(s.samples); {
		if err := waitFor(ctx, func() bool { return w.State() != buffer.Ready }); err != nil {
			return err
		}

		room := capacity - off%capacity
		end := min(off+min(packetSize, room), len(s.samples))
		n, err := w.Write(s.samples[off:end])
		if err != nil && !errors.Is(err, buffer.ErrWindowPending) {
			return err
		}
		off += n
	}

	if err := w.Flush(); err != nil {
		return err
	}
	return waitFor(ctx, func() bool { return w.State() == buffer.Idle })
}

func waitFor(ctx context.Context, cond func() bool) error {
	if cond() {
		return nil
	}

	ticker := time.NewTicker(streamPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if cond() {
				return nil
			}
		}
	}
}
