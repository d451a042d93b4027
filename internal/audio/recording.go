package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const recordingBitDepth = 16

var ErrRecorderClosed = errors.New("audio: recorder closed")

// Recorder writes interleaved 16-bit samples to a PCM WAV stream.
type Recorder struct {
	mu      sync.Mutex
	encoder *wav.Encoder
	buf     *audio.IntBuffer
	frames  int64
	closed  bool
}

// NewRecorder prepares a 16-bit PCM encoder on w. The header is finalised by
// Close.
func NewRecorder(w io.WriteSeeker, sampleRate, channels int) *Recorder {
	format := &audio.Format{NumChannels: channels, SampleRate: sampleRate}
	return &Recorder{
		encoder: wav.NewEncoder(w, sampleRate, recordingBitDepth, channels, 1),
		buf: &audio.IntBuffer{
			Format:         format,
			SourceBitDepth: recordingBitDepth,
		},
	}
}

// Write appends interleaved samples. The conversion buffer grows to the
// largest packet seen, so steady-state writes do not allocate.
func (r *Recorder) Write(samples []int16) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRecorderClosed
	}

	if cap(r.buf.Data) < len(samples) {
		r.buf.Data = make([]int, len(samples))
	}
	r.buf.Data = r.buf.Data[:len(samples)]
	for i, s := range samples {
		r.buf.Data[i] = int(s)
	}

	if err := r.encoder.Write(r.buf); err != nil {
		return err
	}
	r.frames += int64(len(samples) / r.buf.Format.NumChannels)
	return nil
}

// Frames returns the number of frames written so far.
func (r *Recorder) Frames() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Close finalises the WAV header. The underlying writer stays open.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.encoder.Close()
}

// StartRecording records the raw capture input, all channels, to filename.
func (e *Engine) StartRecording(filename string) error {
	e.recordMu.Lock()
	defer e.recordMu.Unlock()

	if e.recorder.Load() != nil {
		return fmt.Errorf("already recording")
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	e.outputFile = file
	e.recorder.Store(NewRecorder(file, int(e.opts.SampleRate), e.opts.Channels))

	logger.Infof("recording to %s", filename)
	return nil
}

// Recording reports whether a recording is in progress.
func (e *Engine) Recording() bool {
	return e.recorder.Load() != nil
}

func (e *Engine) StopRecording() error {
	e.recordMu.Lock()
	defer e.recordMu.Unlock()

	r := e.recorder.Swap(nil)
	if r == nil {
		return nil
	}

	encErr := r.Close()

	var fileErr error
	if e.outputFile != nil {
		fileErr = e.outputFile.Close()
		e.outputFile = nil
	}

	logger.Infof("recording stopped after %d frames", r.Frames())
	return errors.Join(encErr, fileErr)
}

func (e *Engine) Close() error {
	if err := e.StopRecording(); err != nil {
		return err
	}

	if err := e.StopInputStream(); err != nil {
		return err
	}

	return nil
}
