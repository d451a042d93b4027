// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if cfg == nil {
		t.Fatal("expected default config, got nil")
	}
	if cfg.Analysis.WindowSize != DefaultWindowSize || cfg.Analysis.HarmonicThreshold != DefaultHarmonicThreshold {
		t.Errorf("defaults not applied: %+v", cfg.Analysis)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig("nonexistent.yaml")
	if err == nil {
		t.Errorf("expected error for missing file, got nil")
	}
	if cfg != nil {
		t.Errorf("expected nil config on error, got %+v", cfg)
	}
}

func TestLoadConfig_UnmarshalError(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, ":\n:bad")
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Error("expected unmarshal error, got nil or wrong error")
	}
}

func TestLoadConfig_File(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, `
log_level: debug
audio:
  sample_rate: 48000
analysis:
  window_size: 16384
  sync_timeout: 500ms
  tuning: guitar
transport:
  udp_enabled: true
  udp_target_address: 10.0.0.2:9999
  udp_send_interval: 20ms
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.LogLevel != "debug" || cfg.Audio.SampleRate != 48000 {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Analysis.WindowSize != 16384 || cfg.Analysis.SyncTimeout != 500*time.Millisecond || cfg.Analysis.Tuning != "guitar" {
		t.Errorf("analysis = %+v", cfg.Analysis)
	}
	if !cfg.Transport.UDPEnabled || cfg.Transport.UDPSendInterval != 20*time.Millisecond {
		t.Errorf("transport = %+v", cfg.Transport)
	}
	// Unset keys keep their defaults.
	if cfg.Audio.FramesPerBuffer != DefaultFramesPerBuffer || cfg.Analysis.HarmonicThreshold != DefaultHarmonicThreshold {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("ENV_WINDOW_SIZE", "8192")
	t.Setenv("ENV_SYNC_TIMEOUT", "750ms")
	t.Setenv("ENV_UDP_ENABLED", "true")
	t.Setenv("ENV_MQTT_TOPIC", "studio/tuner")
	t.Setenv("ENV_GATE_THRESHOLD", "not-a-number") // ignored

	path := writeTempConfig(t, "analysis:\n  window_size: 4096\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Analysis.WindowSize != 8192 {
		t.Errorf("window_size = %d, env should win over the file", cfg.Analysis.WindowSize)
	}
	if cfg.Analysis.SyncTimeout != 750*time.Millisecond {
		t.Errorf("sync_timeout = %s", cfg.Analysis.SyncTimeout)
	}
	if !cfg.Transport.UDPEnabled || cfg.Transport.MQTTTopic != "studio/tuner" {
		t.Errorf("transport = %+v", cfg.Transport)
	}
	if cfg.Analysis.GateThreshold != DefaultGateThreshold {
		t.Errorf("gate_threshold = %v, unparsable override should be ignored", cfg.Analysis.GateThreshold)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string // Expected in the error; empty means valid.
	}{
		{"Defaults", func(*Config) {}, ""},
		{"Window not power of two", func(c *Config) { c.Analysis.WindowSize = 30000 }, "analysis.window_size"},
		{"Window too small", func(c *Config) { c.Analysis.WindowSize = 64 }, "analysis.window_size"},
		{"Sample rate too low", func(c *Config) { c.Audio.SampleRate = 4000 }, "audio.sample_rate"},
		{"Frames per buffer too large", func(c *Config) { c.Audio.FramesPerBuffer = 16384 }, "audio.frames_per_buffer"},
		{"No channels", func(c *Config) { c.Audio.InputChannels = 0 }, "audio.input_channels"},
		{"Zero threshold", func(c *Config) { c.Analysis.HarmonicThreshold = 0 }, "analysis.harmonic_threshold"},
		{"Negative sync timeout", func(c *Config) { c.Analysis.SyncTimeout = -time.Second }, "analysis.sync_timeout"},
		{"Gate above unity", func(c *Config) { c.Analysis.GateThreshold = 1.5 }, "analysis.gate_threshold"},
		{"Unknown tuning", func(c *Config) { c.Analysis.Tuning = "banjo" }, "analysis.tuning"},
		{"Bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"24-bit recording", func(c *Config) { c.Recording.Enabled = true; c.Recording.BitDepth = 24 }, "recording.bit_depth"},
		{"24-bit recording disabled", func(c *Config) { c.Recording.BitDepth = 24 }, ""},
		{"UDP without port", func(c *Config) {
			c.Transport.UDPEnabled = true
			c.Transport.UDPTargetAddress = "127.0.0.1"
		}, "transport.udp_target_address"},
		{"UDP zero interval", func(c *Config) {
			c.Transport.UDPEnabled = true
			c.Transport.UDPSendInterval = 0
		}, "transport.udp_send_interval"},
		{"MQTT without topic", func(c *Config) {
			c.Transport.MQTTEnabled = true
			c.Transport.MQTTTopic = ""
		}, "transport.mqtt_topic"},
		{"MQTT bad QoS", func(c *Config) {
			c.Transport.MQTTEnabled = true
			c.Transport.MQTTQoS = 3
		}, "transport.mqtt_qos"},
		{"Metrics bad address", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.Address = "9100"
		}, "metrics.address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			err := cfg.Validate()

			if tt.field == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Validate() error = %v, want ErrInvalidConfig", err)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("Validate() error %q does not name %s", err, tt.field)
			}
		})
	}
}

func TestValidateReportsEveryError(t *testing.T) {
	cfg := Default()
	cfg.Analysis.WindowSize = 1000
	cfg.Audio.SampleRate = 1

	err := cfg.Validate()
	for _, field := range []string{"analysis.window_size", "audio.sample_rate"} {
		if err == nil || !strings.Contains(err.Error(), field) {
			t.Errorf("Validate() error %v missing %s", err, field)
		}
	}
}
