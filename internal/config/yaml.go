// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"tuner/internal/log"
	"tuner/internal/note"
	"tuner/pkg/bitint"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

var logger = log.For("config")

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	LogLevel  string          `yaml:"log_level"` // Logging level (e.g., "debug", "info", "warn", "error").
	Audio     AudioConfig     `yaml:"audio"`     // Audio capture settings.
	Analysis  AnalysisConfig  `yaml:"analysis"`  // Analysis cycle settings.
	Recording RecordingConfig `yaml:"recording"` // Audio recording settings.
	Transport TransportConfig `yaml:"transport"` // Result publishing settings.
	Metrics   MetricsConfig   `yaml:"metrics"`   // Prometheus endpoint settings.
}

// AudioConfig holds settings related to audio input.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index for audio input (-1 for default).
	SampleRate      float64 `yaml:"sample_rate"`       // Sample rate in Hz (e.g., 44100, 48000).
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Frames per capture callback.
	LowLatency      bool    `yaml:"low_latency"`       // Request low latency settings from PortAudio device.
	InputChannels   int     `yaml:"input_channels"`    // Channels to capture; only the first is analysed.
}

// AnalysisConfig holds settings for the analysis cycle.
type AnalysisConfig struct {
	WindowSize        int           `yaml:"window_size"`        // Samples per window, a power of two.
	HarmonicThreshold float64       `yaml:"harmonic_threshold"` // Magnitude above which a subharmonic bin is taken as the fundamental.
	SyncTimeout       time.Duration `yaml:"sync_timeout"`       // Bound on waiting for a window; 0 waits indefinitely.
	GateEnabled       bool          `yaml:"gate_enabled"`       // Publish 0 Hz for quiet windows.
	GateThreshold     float64       `yaml:"gate_threshold"`     // Fraction of full scale, 0.0-1.0.
	ReferenceA4       float64       `yaml:"reference_a4"`       // Concert pitch in Hz.
	Tuning            string        `yaml:"tuning"`             // chromatic, guitar or bass.
}

// RecordingConfig holds settings related to audio recording functionality.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`    // Enable audio recording to file.
	OutputDir string `yaml:"output_dir"` // Directory to save recorded audio files.
	Format    string `yaml:"format"`     // File format for recordings, "wav".
	BitDepth  int    `yaml:"bit_depth"`  // Bit depth for recorded audio, 16.
}

// TransportConfig holds settings related to sending results over the network.
type TransportConfig struct {
	LogEnabled bool `yaml:"log_enabled"` // Log every result.

	UDPEnabled       bool          `yaml:"udp_enabled"`        // Enable sending result packets over UDP.
	UDPTargetAddress string        `yaml:"udp_target_address"` // Target address and port for UDP packets (e.g., "127.0.0.1:9090").
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`  // Interval between polls for a new result.

	WebSocketEnabled bool   `yaml:"websocket_enabled"` // Serve results to WebSocket clients.
	WebSocketAddress string `yaml:"websocket_address"` // Listen address, e.g. ":8080".
	WebSocketPath    string `yaml:"websocket_path"`    // Upgrade path, e.g. "/ws".

	MQTTEnabled  bool   `yaml:"mqtt_enabled"`  // Publish results to an MQTT broker.
	MQTTBroker   string `yaml:"mqtt_broker"`   // e.g. "tcp://localhost:1883".
	MQTTTopic    string `yaml:"mqtt_topic"`    // Topic results are published to.
	MQTTClientID string `yaml:"mqtt_client_id"`
	MQTTUsername string `yaml:"mqtt_username"`
	MQTTPassword string `yaml:"mqtt_password"`
	MQTTQoS      int    `yaml:"mqtt_qos"`    // 0, 1 or 2.
	MQTTRetain   bool   `yaml:"mqtt_retain"` // Retain the latest result at the broker.
}

// MetricsConfig holds settings for the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"` // Listen address, e.g. ":9100".
	Path    string `yaml:"path"`    // Defaults to "/metrics".
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: "info",
		Audio: AudioConfig{
			InputDevice:     DefaultDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			LowLatency:      DefaultLowLatency,
			InputChannels:   DefaultChannels,
		},
		Analysis: AnalysisConfig{
			WindowSize:        DefaultWindowSize,
			HarmonicThreshold: DefaultHarmonicThreshold,
			SyncTimeout:       DefaultSyncTimeout,
			GateEnabled:       DefaultGateEnabled,
			GateThreshold:     DefaultGateThreshold,
			ReferenceA4:       DefaultReferenceA4,
			Tuning:            DefaultTuning,
		},
		Recording: RecordingConfig{
			Enabled:   false,
			OutputDir: DefaultOutputDir,
			Format:    DefaultFormat,
			BitDepth:  DefaultBitDepth,
		},
		Transport: TransportConfig{
			LogEnabled:       true,
			UDPEnabled:       false,
			UDPTargetAddress: "127.0.0.1:9090",
			UDPSendInterval:  33 * time.Millisecond, // Default ~30Hz.
			WebSocketEnabled: false,
			WebSocketAddress: ":8080",
			WebSocketPath:    "/ws",
			MQTTEnabled:      false,
			MQTTBroker:       "tcp://localhost:1883",
			MQTTTopic:        "tuner/pitch",
			MQTTClientID:     "tuner",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: ":9100",
			Path:    "/metrics",
		},
	}
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("config.yaml"). If no file is found, it uses built-in
// defaults. After loading defaults or from file, it applies environment variable
// overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, candidate := range []string{"config.yaml", "tuner.yaml"} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		logger.Debugf("loaded %s", path)
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate reports every invalid setting, each wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
		}
	}

	_, ok := log.ParseLevel(c.LogLevel)
	check(ok, "log_level %q is not a level", c.LogLevel)

	// Audio
	check(c.Audio.InputDevice >= MinDeviceID, "audio.input_device %d below %d", c.Audio.InputDevice, MinDeviceID)
	check(c.Audio.SampleRate >= MinSampleRate && c.Audio.SampleRate <= MaxSampleRate,
		"audio.sample_rate %.0f outside [%d, %d]", c.Audio.SampleRate, MinSampleRate, MaxSampleRate)
	check(c.Audio.FramesPerBuffer > 0 && c.Audio.FramesPerBuffer <= MaxBufferFrames,
		"audio.frames_per_buffer %d outside [1, %d]", c.Audio.FramesPerBuffer, MaxBufferFrames)
	check(c.Audio.InputChannels >= 1, "audio.input_channels must be at least 1")

	// Analysis
	check(bitint.IsPowerOfTwo(c.Analysis.WindowSize), "analysis.window_size %d is not a power of two (next is %d)",
		c.Analysis.WindowSize, bitint.NextPowerOfTwo(c.Analysis.WindowSize))
	check(c.Analysis.WindowSize >= MinWindowSize && c.Analysis.WindowSize <= MaxWindowSize,
		"analysis.window_size %d outside [%d, %d]", c.Analysis.WindowSize, MinWindowSize, MaxWindowSize)
	check(c.Analysis.HarmonicThreshold > 0, "analysis.harmonic_threshold must be positive")
	check(c.Analysis.SyncTimeout >= 0, "analysis.sync_timeout must not be negative")
	check(c.Analysis.GateThreshold >= 0 && c.Analysis.GateThreshold <= 1,
		"analysis.gate_threshold %v outside [0, 1]", c.Analysis.GateThreshold)
	check(c.Analysis.ReferenceA4 > 0, "analysis.reference_a4 must be positive")
	_, err := note.LookupTuning(c.Analysis.Tuning)
	check(err == nil, "analysis.tuning %q is not a known tuning", c.Analysis.Tuning)

	// Recording
	if c.Recording.Enabled {
		check(c.Recording.Format == DefaultFormat, "recording.format %q is not supported", c.Recording.Format)
		check(c.Recording.BitDepth == DefaultBitDepth, "recording.bit_depth %d is not supported", c.Recording.BitDepth)
		check(c.Recording.OutputDir != "", "recording.output_dir must be set")
	}

	// Transport
	if c.Transport.UDPEnabled {
		_, _, err := net.SplitHostPort(c.Transport.UDPTargetAddress)
		check(err == nil, "transport.udp_target_address %q appears invalid", c.Transport.UDPTargetAddress)
		check(c.Transport.UDPSendInterval > 0, "transport.udp_send_interval must be positive when UDP is enabled")
	}
	if c.Transport.WebSocketEnabled {
		_, _, err := net.SplitHostPort(c.Transport.WebSocketAddress)
		check(err == nil, "transport.websocket_address %q appears invalid", c.Transport.WebSocketAddress)
	}
	if c.Transport.MQTTEnabled {
		check(c.Transport.MQTTBroker != "", "transport.mqtt_broker must be set when MQTT is enabled")
		check(c.Transport.MQTTTopic != "", "transport.mqtt_topic must be set when MQTT is enabled")
		check(c.Transport.MQTTQoS >= 0 && c.Transport.MQTTQoS <= 2, "transport.mqtt_qos %d outside [0, 2]", c.Transport.MQTTQoS)
	}

	// Metrics
	if c.Metrics.Enabled {
		_, _, err := net.SplitHostPort(c.Metrics.Address)
		check(err == nil, "metrics.address %q appears invalid", c.Metrics.Address)
	}

	return errors.Join(errs...)
}

// applyEnvOverrides applies ENV_* variables on top of the file settings.
// Values that fail to parse are logged and ignored.
func (cfg *Config) applyEnvOverrides() {
	envString("ENV_LOG_LEVEL", &cfg.LogLevel)

	// ENV_{...}
	// Audio and analysis.
	envInt("ENV_INPUT_DEVICE", &cfg.Audio.InputDevice)
	envFloat("ENV_SAMPLE_RATE", &cfg.Audio.SampleRate)
	envInt("ENV_WINDOW_SIZE", &cfg.Analysis.WindowSize)
	envDuration("ENV_SYNC_TIMEOUT", &cfg.Analysis.SyncTimeout)
	envBool("ENV_GATE_ENABLED", &cfg.Analysis.GateEnabled)
	envFloat("ENV_GATE_THRESHOLD", &cfg.Analysis.GateThreshold)
	envString("ENV_TUNING", &cfg.Analysis.Tuning)

	// ENV_UDP_{...}
	envBool("ENV_UDP_ENABLED", &cfg.Transport.UDPEnabled)
	envString("ENV_UDP_TARGET_ADDRESS", &cfg.Transport.UDPTargetAddress)
	envDuration("ENV_UDP_SEND_INTERVAL", &cfg.Transport.UDPSendInterval)

	// ENV_WS_{...}
	envBool("ENV_WS_ENABLED", &cfg.Transport.WebSocketEnabled)
	envString("ENV_WS_ADDRESS", &cfg.Transport.WebSocketAddress)

	// ENV_MQTT_{...}
	envBool("ENV_MQTT_ENABLED", &cfg.Transport.MQTTEnabled)
	envString("ENV_MQTT_BROKER", &cfg.Transport.MQTTBroker)
	envString("ENV_MQTT_TOPIC", &cfg.Transport.MQTTTopic)
	envString("ENV_MQTT_USERNAME", &cfg.Transport.MQTTUsername)
	envString("ENV_MQTT_PASSWORD", &cfg.Transport.MQTTPassword)

	// ENV_METRICS_{...}
	envBool("ENV_METRICS_ENABLED", &cfg.Metrics.Enabled)
	envString("ENV_METRICS_ADDRESS", &cfg.Metrics.Address)
}

func envString(key string, dst *string) {
	if val, ok := os.LookupEnv(key); ok {
		*dst = val
		logger.Debugf("overriding from %s", key)
	}
}

func envBool(key string, dst *bool) {
	envParse(key, dst, strconv.ParseBool)
}

func envInt(key string, dst *int) {
	envParse(key, dst, strconv.Atoi)
}

func envFloat(key string, dst *float64) {
	envParse(key, dst, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

func envDuration(key string, dst *time.Duration) {
	envParse(key, dst, time.ParseDuration)
}

func envParse[T any](key string, dst *T, parse func(string) (T, error)) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	v, err := parse(val)
	if err != nil {
		logger.Warnf("ignoring %s=%q: %v", key, val, err)
		return
	}
	*dst = v
	logger.Debugf("overriding from %s: %v", key, v)
}
