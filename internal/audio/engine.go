// SPDX-License-Identifier: MIT
/*
Package audio produces sample packets for the tuner:
- Real-time capture from a PortAudio input stream
- Offline playback of WAV files
- 16-bit WAV recording of the captured input

Capture Thread Safety:
- The PortAudio callback is the single producer of the shared window
- Pre-allocates buffers to avoid GC in hot path
- Locks OS thread during audio processing
*/
package audio

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"tuner/internal/buffer"
	"tuner/internal/log"
)

var logger = log.For("audio")

// PacketWriter receives capture packets. *buffer.SharedBuffer satisfies it.
type PacketWriter interface {
	Write(packet []int16) (int, error)
}

// Options configures the capture engine.
type Options struct {
	DeviceID        int     // PortAudio device index, -1 for the default input
	SampleRate      float64 // Hz
	FramesPerBuffer int     // Frames per callback
	Channels        int     // Captured channels; channel 0 is analysed
	LowLatency      bool    // Use the device's low input latency
}

type Engine struct {
	opts Options
	sink PacketWriter

	// Audio input handling.
	inputBuffer  []int16 // Interleaved copy of the callback buffer
	monoBuffer   []int16 // Channel 0 of inputBuffer
	inputDevice  *portaudio.DeviceInfo
	inputLatency time.Duration
	inputStream  *portaudio.Stream

	packets atomic.Uint64 // Packets delivered to the sink
	dropped atomic.Uint64 // Packets refused while a window was pending

	// Recording state.
	recordMu   sync.Mutex // Serialises Start/StopRecording
	recorder   atomic.Pointer[Recorder]
	outputFile *os.File
}

// NewEngine opens the configured input device and prepares an engine that
// writes mono packets to sink.
func NewEngine(opts Options, sink PacketWriter) (*Engine, error) {
	engine, err := newEngine(opts, sink)
	if err != nil {
		return nil, err
	}

	inputDevice, err := InputDevice(opts.DeviceID)
	if err != nil {
		return nil, err
	}
	engine.inputDevice = inputDevice

	if opts.LowLatency {
		engine.inputLatency = inputDevice.DefaultLowInputLatency
	} else {
		engine.inputLatency = inputDevice.DefaultHighInputLatency
	}

	logger.Infof("input %q, %d channel(s) at %.0f Hz, %d frames per buffer, latency %s",
		inputDevice.Name, opts.Channels, opts.SampleRate, opts.FramesPerBuffer, engine.inputLatency)
	return engine, nil
}

// newEngine allocates the engine buffers without touching PortAudio.
func newEngine(opts Options, sink PacketWriter) (*Engine, error) {
	if sink == nil {
		return nil, errors.New("audio: nil packet writer")
	}
	if opts.Channels < 1 {
		return nil, fmt.Errorf("audio: invalid channel count %d", opts.Channels)
	}
	if opts.FramesPerBuffer < 1 {
		return nil, fmt.Errorf("audio: invalid frames per buffer %d", opts.FramesPerBuffer)
	}

	return &Engine{
		opts:        opts,
		sink:        sink,
		inputBuffer: make([]int16, opts.FramesPerBuffer*opts.Channels),
		monoBuffer:  make([]int16, opts.FramesPerBuffer),
	}, nil
}

func (e *Engine) StartInputStream() error {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: e.opts.Channels,
			Device:   e.inputDevice,
			Latency:  e.inputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: e.opts.FramesPerBuffer,
		SampleRate:      e.opts.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, e.processInputStream)
	if err != nil {
		return err
	}
	e.inputStream = stream

	if err := e.inputStream.Start(); err != nil {
		e.inputStream.Close()
		return err
	}

	return nil
}

func (e *Engine) StopInputStream() error {
	if e.inputStream != nil {
		if err := e.inputStream.Stop(); err != nil {
			return err
		}

		if err := e.inputStream.Close(); err != nil {
			return err
		}

		e.inputStream = nil
	}

	return nil
}

// Packets returns the number of packets accepted by the sink.
func (e *Engine) Packets() uint64 {
	return e.packets.Load()
}

// Dropped returns the number of packets refused because the previous window
// had not been consumed yet.
func (e *Engine) Dropped() uint64 {
	return e.dropped.Load()
}

// processInputStream is the capture callback.
// Performance Critical:
// - Runs in a dedicated OS thread (LockOSThread)
// - Uses pre-allocated buffers only
func (e *Engine) processInputStream(in []int16) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	n := copy(e.inputBuffer, in)
	e.processBuffer(e.inputBuffer[:n])

	if r := e.recorder.Load(); r != nil {
		if err := r.Write(e.inputBuffer[:n]); err != nil {
			logger.Errorf("writing to WAV file: %v", err)
		}
	}
}

// processBuffer extracts channel 0 and hands it to the sink.
// Performance Critical (Hot Path):
// - No allocations
// - A pending window drops the packet instead of blocking
func (e *Engine) processBuffer(interleaved []int16) {
	mono := interleaved
	if e.opts.Channels > 1 {
		frames := len(interleaved) / e.opts.Channels
		for i := range frames {
			e.monoBuffer[i] = interleaved[i*e.opts.Channels]
		}
		mono = e.monoBuffer[:frames]
	}

	_, err := e.sink.Write(mono)
	switch {
	case err == nil:
		e.packets.Add(1)
	case errors.Is(err, buffer.ErrWindowPending):
		e.dropped.Add(1)
	case errors.Is(err, buffer.ErrClosed):
	default:
		logger.Errorf("writing packet: %v", err)
	}
}
