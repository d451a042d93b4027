package config

import "time"

// Core configuration constants that define the boundaries and defaults
// for the tuner.
const (
	// Default values for the audio input
	DefaultDeviceID        = MinDeviceID // Default to system default device
	DefaultSampleRate      = 44100       // CD-quality audio
	DefaultFramesPerBuffer = 512         // Balanced latency/performance
	DefaultChannels        = 1           // Mono audio
	DefaultLowLatency      = false       // Standard latency mode

	// Default values for the analysis cycle
	DefaultWindowSize        = 32768     // Samples per analysis window, 2^15
	DefaultHarmonicThreshold = 1030421.0 // Raw magnitude scale
	DefaultSyncTimeout       = 2 * time.Second
	DefaultGateEnabled       = true
	DefaultGateThreshold     = 0.001 // ~0.1% of full scale
	DefaultReferenceA4       = 440.0
	DefaultTuning            = "chromatic"

	// Default values for recordings
	DefaultFormat    = "wav"
	DefaultBitDepth  = 16
	DefaultOutputDir = "./recordings"

	// Hardware and processing limits
	MinDeviceID     = -1      // -1 represents system default device
	MinSampleRate   = 8000    // Minimum usable sample rate (Hz)
	MaxSampleRate   = 192000  // Maximum supported sample rate (Hz)
	MaxBufferFrames = 8192    // Maximum frames per buffer (power of 2)
	MinWindowSize   = 256     // Smallest useful analysis window
	MaxWindowSize   = 1 << 20 // Largest analysis window
)
