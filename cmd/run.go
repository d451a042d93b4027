package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"tuner/internal/audio"
	"tuner/internal/buffer"
	"tuner/internal/config"
	"tuner/internal/log"
	"tuner/internal/metrics"
	"tuner/internal/transport"
	"tuner/internal/transport/udp"
	"tuner/internal/tui"
	"tuner/internal/tuner"
)

var logger = log.For("cmd")

// runLive captures from the input device until ctx ends or the tuner
// display is closed.
//
// The program flow is divided into three distinct phases:
//
//  1. Startup Phase (Cold Path): PortAudio, the shared window, metrics,
//     transports, the analyzer and finally the input stream.
//  2. Concurrent Phase (Hot Path): the capture callback fills windows while
//     the analyzer goroutine consumes them.
//  3. Shutdown Phase (Cold Path): stop the stream, stop recording, close the
//     window so the analyzer returns, then close transports.
func runLive(ctx context.Context, cfg *config.Config, opts *options) error {
	// ==================== STARTUP PHASE (Cold Path) ====================

	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	if opts.Pick {
		sel, ok, err := tui.PickDevice()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		cfg.Audio.InputDevice = sel.DeviceID
		cfg.Audio.SampleRate = sel.SampleRate
	}

	if opts.TUI {
		f, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()
		log.SetOutput(f)
		defer log.SetOutput(os.Stderr)
	}

	window, err := buffer.New(cfg.Analysis.WindowSize, cfg.Analysis.SyncTimeout)
	if err != nil {
		return err
	}
	defer window.Close()

	var observer tuner.Observer
	if cfg.Metrics.Enabled {
		m, err := metrics.New()
		if err != nil {
			return err
		}
		if err := m.Tuner.TrackDroppedSamples(window.Dropped); err != nil {
			return err
		}
		stop := serveMetrics(m, cfg.Metrics)
		defer stop()
		observer = m.Tuner
	}

	publisher, err := buildTransports(cfg.Transport)
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Errorf("closing transports: %v", err)
		}
	}()

	analyzerOpts, err := analyzerOptions(cfg, cfg.Audio.SampleRate)
	if err != nil {
		return err
	}
	analyzer, err := tuner.New(window, analyzerOpts, publisher, observer)
	if err != nil {
		return err
	}

	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewUDPSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			return err
		}
		udpPublisher, err := udp.NewUDPPublisher(cfg.Transport.UDPSendInterval, sender, analyzer)
		if err != nil {
			sender.Close()
			return err
		}
		udpPublisher.Start()
		defer udpPublisher.Close()
	}

	engine, err := audio.NewEngine(audio.Options{
		DeviceID:        cfg.Audio.InputDevice,
		SampleRate:      cfg.Audio.SampleRate,
		FramesPerBuffer: cfg.Audio.FramesPerBuffer,
		Channels:        cfg.Audio.InputChannels,
		LowLatency:      cfg.Audio.LowLatency,
	}, window)
	if err != nil {
		return err
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	analyzerDone := make(chan error, 1)
	go func() { analyzerDone <- analyzer.Run(ctx) }()

	// CRITICAL: Start of real-time audio processing
	if err := engine.StartInputStream(); err != nil {
		cancel()
		<-analyzerDone
		return err
	}

	if cfg.Recording.Enabled {
		if err := os.MkdirAll(cfg.Recording.OutputDir, 0o755); err != nil {
			logger.Errorf("creating recording directory: %v", err)
		} else if err := engine.StartRecording(filepath.Join(cfg.Recording.OutputDir, recordingName(time.Now()))); err != nil {
			logger.Errorf("starting recording: %v", err)
		}
	}

	var runErr error
	if opts.TUI {
		runErr = tui.RunTuner(ctx, analyzer, analyzer, tui.DefaultRefreshInterval)
	} else {
		select {
		case <-ctx.Done():
		case runErr = <-analyzerDone:
			analyzerDone <- runErr
		}
	}

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	if err := engine.Close(); err != nil {
		logger.Errorf("closing audio engine: %v", err)
	}
	cancel()
	window.Close()
	if err := <-analyzerDone; err != nil && runErr == nil {
		runErr = err
	}

	logger.Infof("captured %d packets, %d dropped while a window was pending", engine.Packets(), engine.Dropped())
	return runErr
}

// buildTransports assembles the enabled publishers. UDP is driven
// separately from the latest result.
func buildTransports(cfg config.TransportConfig) (transport.Multi, error) {
	var multi transport.Multi

	if cfg.LogEnabled {
		multi = append(multi, transport.NewLoggingTransport())
	}

	if cfg.WebSocketEnabled {
		ws, err := transport.NewWebSocketTransport(cfg.WebSocketAddress, cfg.WebSocketPath)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("websocket: %w", err), multi.Close())
		}
		logger.Infof("serving WebSocket clients at ws://%s%s", ws.Addr(), cfg.WebSocketPath)
		multi = append(multi, ws)
	}

	if cfg.MQTTEnabled {
		mq, err := transport.NewMQTTTransport(transport.MQTTConfig{
			Broker:   cfg.MQTTBroker,
			ClientID: cfg.MQTTClientID,
			Username: cfg.MQTTUsername,
			Password: cfg.MQTTPassword,
			Topic:    cfg.MQTTTopic,
			QoS:      byte(cfg.MQTTQoS),
			Retain:   cfg.MQTTRetain,
		})
		if err != nil {
			return nil, errors.Join(fmt.Errorf("mqtt: %w", err), multi.Close())
		}
		multi = append(multi, mq)
	}

	return multi, nil
}

// serveMetrics starts the Prometheus endpoint and returns its shutdown.
func serveMetrics(m *metrics.Metrics, cfg config.MetricsConfig) func() {
	mux := http.NewServeMux()
	m.RegisterHandlers(mux, cfg.Path)
	server := &http.Server{
		Addr:              cfg.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Infof("serving metrics at %s%s", cfg.Address, cfg.Path)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("metrics server: %v", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Warnf("metrics server shutdown: %v", err)
		}
	}
}
