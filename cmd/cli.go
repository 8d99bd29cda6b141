package cmd

import (
	"fmt"
	"time"

	"direction/internal/config"
	"direction/pkg/build"

	"github.com/spf13/cobra"
)

const (
	CommandAnalyze = "analyze"
	CommandTable   = "table"
)

// ParseArgs builds the configuration from the YAML file, the environment and
// the command line, in increasing order of precedence. It returns a nil
// config when cobra handled the invocation itself (help, version).
func ParseArgs(args []string) (*config.Config, error) {
	buildInfo := build.GetBuildInfo()

	var (
		cfg        *config.Config
		configPath string

		imageSize int
		workers   int
		logLevel  string
		verbose   bool

		framesDir   string
		loop        bool
		interval    time.Duration
		minContrast float64
		udpTarget   string
		wsAddress   string

		snapshotDir string
		format      string
	)

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
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
			loaded, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			cfg = loaded

			// Only flags given explicitly override the file.
			flags := cmd.Flags()
			if flags.Changed("size") {
				cfg.Analysis.ImageSize = imageSize
			}
			if flags.Changed("workers") {
				cfg.Analysis.Workers = workers
			}
			if flags.Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if verbose {
				cfg.Debug = true
			}
			if flags.Changed("frames") {
				cfg.Source.FramesDir = framesDir
			}
			if flags.Changed("loop") {
				cfg.Source.Loop = loop
			}
			if flags.Changed("interval") {
				cfg.Source.Interval = interval
			}
			if flags.Changed("gate") {
				cfg.Gate.Enabled = minContrast > 0
				cfg.Gate.MinContrast = minContrast
			}
			if flags.Changed("udp") {
				cfg.Transport.UDPEnabled = udpTarget != ""
				cfg.Transport.UDPTargetAddress = udpTarget
			}
			if flags.Changed("ws") {
				cfg.Transport.WSEnabled = wsAddress != ""
				cfg.Transport.WSAddress = wsAddress
			}
			if flags.Changed("snapshots") {
				cfg.Recording.Enabled = snapshotDir != ""
				cfg.Recording.OutputDir = snapshotDir
			}
			if flags.Changed("format") {
				cfg.Recording.Format = format
			}

			return cfg.Validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Source.FramesDir == "" {
				return fmt.Errorf("no frames directory given (use --frames or source.frames_dir)")
			}
			cfg.Command = ""
			return nil
		},
	}
	rootCmd.SetVersionTemplate(buildInfo.String() + "\n")

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// Analyze command
	analyzeCmd := &cobra.Command{
		Use:   "analyze FILE...",
		Short: "Print the dominant direction of each image file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Command = CommandAnalyze
			cfg.Args = args
			return nil
		},
	}
	analyzeCmd.Flags().StringVar(&snapshotDir, "snapshots", "",
		"Write spectrum and mirror images of every file to this directory")
	rootCmd.AddCommand(analyzeCmd)

	// Table command
	tableCmd := &cobra.Command{
		Use:   "table",
		Short: "Print how the angle table divides the spectrum into direction bins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Command = CommandTable
			return nil
		},
	}
	rootCmd.AddCommand(tableCmd)

	// Analysis Configuration
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to a YAML configuration file (default: ./config.yaml if present)")
	rootCmd.PersistentFlags().IntVarP(&imageSize, "size", "n", config.DefaultImageSize,
		"Side of the square gray input frames, a power of two")
	rootCmd.PersistentFlags().IntVarP(&workers, "workers", "w", config.DefaultWorkers,
		"Number of frames analyzed in parallel")
	rootCmd.PersistentFlags().StringVar(&format, "format", config.DefaultFormat,
		"Snapshot image format (png, bmp, tiff)")

	// Debug Configuration
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", config.DefaultLogLevel,
		"Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", config.DefaultVerbosity,
		"Show verbose output")

	// Frame Loop Configuration
	rootCmd.Flags().StringVarP(&framesDir, "frames", "f", config.DefaultFramesDir,
		"Directory of frames to analyze in lexical order")
	rootCmd.Flags().BoolVarP(&loop, "loop", "l", config.DefaultLoop,
		"Start over after the last frame")
	rootCmd.Flags().DurationVarP(&interval, "interval", "i", config.DefaultFrameInterval,
		"Delay between frames")
	rootCmd.Flags().Float64Var(&minContrast, "gate", config.DefaultMinContrast,
		"Skip frames whose pixel range is below this fraction of 255 (0 disables)")
	rootCmd.Flags().StringVar(&udpTarget, "udp", "",
		"Publish spectra over UDP to host:port")
	rootCmd.Flags().StringVar(&wsAddress, "ws", "",
		"Serve direction events over WebSocket on this address")
	rootCmd.Flags().StringVar(&snapshotDir, "snapshots", "",
		"Write spectrum and mirror images of every frame to this directory")

	// Execute the CLI
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}

	return cfg, nil
}
