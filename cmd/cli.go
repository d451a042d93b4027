// Package cmd implements the tuner command line.
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tuner/internal/audio"
	"tuner/internal/config"
	"tuner/internal/log"
	"tuner/internal/note"
	"tuner/internal/tuner"
	"tuner/pkg/build"
)

// options holds the command line flags. Flags override the loaded
// configuration only when set explicitly.
type options struct {
	ConfigPath      string
	DeviceID        int
	Channels        int
	SampleRate      float64
	FramesPerBuffer int
	LowLatency      bool
	WindowSize      int
	Tuning          string
	ReferenceA4     float64
	Record          bool
	OutputDir       string
	Verbose         bool

	// run
	TUI     bool
	Pick    bool
	LogFile string

	// analyze
	JSON bool
}

// Execute runs the command line against ctx.
func Execute(ctx context.Context, args []string) error {
	root := newRootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func newRootCommand() *cobra.Command {
	buildInfo := build.Get()
	opts := &options{}
	var cfg *config.Config

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         "Real-time pitch detection for instrument tuning",
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.LoadConfig(opts.ConfigPath)
			if err != nil {
				return err
			}
			if err := applyFlags(cmd, opts, loaded); err != nil {
				return err
			}
			cfg = loaded

			level, _ := log.ParseLevel(cfg.LogLevel)
			if opts.Verbose {
				level = log.LevelDebug
			}
			log.SetLevel(level)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLive(cmd.Context(), cfg, opts)
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := audio.Initialize(); err != nil {
				return err
			}
			defer audio.Terminate()
			return audio.ListDevices(cmd.OutOrStdout())
		},
	}

	analyzeCmd := &cobra.Command{
		Use:   "analyze <file.wav>",
		Short: "Run the analysis cycle over a WAV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return analyzeFile(cmd.Context(), cfg, args[0], cmd.OutOrStdout(), opts.JSON)
		},
	}
	analyzeCmd.Flags().BoolVar(&opts.JSON, "json", false, "Print one JSON object per analysis window")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), build.Get())
		},
	}

	rootCmd.AddCommand(listCmd, analyzeCmd, versionCmd)

	// Configuration file
	rootCmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "",
		"Path to a YAML configuration file (default: ./config.yaml or ./tuner.yaml if present)")

	// Audio Device Configuration
	rootCmd.PersistentFlags().IntVarP(&opts.DeviceID, "device", "d", config.DefaultDeviceID,
		"Specify input device ID. Use 'list' command to see available devices.")
	rootCmd.PersistentFlags().IntVarP(&opts.Channels, "channels", "c", config.DefaultChannels,
		"Number of channels to capture; the first is analysed")
	rootCmd.PersistentFlags().Float64VarP(&opts.SampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	rootCmd.PersistentFlags().IntVarP(&opts.FramesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per buffer (affects latency)")
	rootCmd.PersistentFlags().BoolVarP(&opts.LowLatency, "low-latency", "l", config.DefaultLowLatency,
		"Use low latency mode for real-time processing")

	// Analysis Configuration
	rootCmd.PersistentFlags().IntVarP(&opts.WindowSize, "window-size", "w", config.DefaultWindowSize,
		"Samples per analysis window, a power of two")
	rootCmd.PersistentFlags().StringVarP(&opts.Tuning, "tuning", "t", config.DefaultTuning,
		"Note naming: chromatic, guitar or bass")
	rootCmd.PersistentFlags().Float64Var(&opts.ReferenceA4, "reference", config.DefaultReferenceA4,
		"Concert pitch of A4 in Hz")

	// Recording Configuration
	rootCmd.Flags().BoolVarP(&opts.Record, "record", "r", false,
		"Record audio from the specified input device")
	rootCmd.Flags().StringVarP(&opts.OutputDir, "output", "o", config.DefaultOutputDir,
		"Directory for recordings, named recording-DD-MM-YYYY-HHMMSS.wav")

	// Display Configuration
	rootCmd.Flags().BoolVar(&opts.TUI, "tui", false, "Show the live tuner display")
	rootCmd.Flags().BoolVar(&opts.Pick, "pick", false, "Choose the input device interactively before starting")
	rootCmd.Flags().StringVar(&opts.LogFile, "log-file", "tuner.log", "Log destination while the tuner display is shown")

	// Debug Configuration
	rootCmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false,
		"Show verbose output")

	return rootCmd
}

// applyFlags copies explicitly set flags over cfg and revalidates it.
func applyFlags(cmd *cobra.Command, opts *options, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("device") {
		cfg.Audio.InputDevice = opts.DeviceID
	}
	if flags.Changed("channels") {
		cfg.Audio.InputChannels = opts.Channels
	}
	if flags.Changed("sample-rate") {
		cfg.Audio.SampleRate = opts.SampleRate
	}
	if flags.Changed("frames-per-buffer") {
		cfg.Audio.FramesPerBuffer = opts.FramesPerBuffer
	}
	if flags.Changed("low-latency") {
		cfg.Audio.LowLatency = opts.LowLatency
	}
	if flags.Changed("window-size") {
		cfg.Analysis.WindowSize = opts.WindowSize
	}
	if flags.Changed("tuning") {
		cfg.Analysis.Tuning = opts.Tuning
	}
	if flags.Changed("reference") {
		cfg.Analysis.ReferenceA4 = opts.ReferenceA4
	}
	if flags.Changed("record") {
		cfg.Recording.Enabled = opts.Record
	}
	if flags.Changed("output") {
		cfg.Recording.OutputDir = opts.OutputDir
	}
	return cfg.Validate()
}

// analyzerOptions maps the analysis settings onto the tuner.
func analyzerOptions(cfg *config.Config, sampleRate float64) (tuner.Options, error) {
	tuning, err := note.LookupTuning(cfg.Analysis.Tuning)
	if err != nil {
		return tuner.Options{}, err
	}
	return tuner.Options{
		SampleRate:        sampleRate,
		HarmonicThreshold: cfg.Analysis.HarmonicThreshold,
		GateThreshold:     cfg.Analysis.GateThreshold,
		GateEnabled:       cfg.Analysis.GateEnabled,
		ReferenceA4:       cfg.Analysis.ReferenceA4,
		Tuning:            tuning,
	}, nil
}

func recordingName(now time.Time) string {
	return "recording-" + now.UTC().Format("02-01-2006-150405") + "." + config.DefaultFormat
}
