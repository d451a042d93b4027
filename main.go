package main

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"tuner/cmd"
	"tuner/internal/log"
	"tuner/pkg/build"
)

// main wires build metadata, signal handling and the command line.
func main() {
	// Development builds carry no ldflags metadata and keep the defaults.
	if err := build.Initialize(); err != nil {
		log.Debugf("build info: %v", err)
	}

	// Limit OS threads to optimize for real-time audio processing:
	// - One thread dedicated to the capture callback (time-critical)
	// - One thread for analysis, transports and I/O
	runtime.GOMAXPROCS(2)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		stop()
		log.Fatalf("%v", err)
	}
}
