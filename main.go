package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"direction/cmd"
	"direction/internal/analysis"
	"direction/internal/config"
	applog "direction/internal/log"
	"direction/internal/pipeline"
	"direction/internal/transport"
	"direction/internal/transport/udp"
	"direction/pkg/build"
)

// main is the entry point for the direction detector.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and configuration
//   - Execute one-off commands if requested
//
// 2. Concurrent Phase (Hot Path):
//   - Build the angle table and the FFT engine pool
//   - Start transports and the UDP publisher
//   - Run the frame loop
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals
//   - Stop recording and publishing
//   - Clean up resources
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	// Development builds have no linker flags and run with placeholders.
	if err := build.Initialize(); err != nil {
		applog.Debugf("Build: %v", err)
	}

	cfg, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		applog.Fatalf("%v", err)
	}
	if cfg == nil {
		// Help or version output only.
		return
	}
	configureLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if err := run(ctx, cfg); err != nil {
		stop()
		applog.Fatalf("%v", err)
	}
	stop()
}

func configureLogging(cfg *config.Config) {
	level, _ := applog.ParseLevel(cfg.LogLevel)
	if cfg.Debug {
		level = applog.LevelDebug
	}
	applog.SetLevel(level)
	applog.Debugf("Build: %s", build.GetBuildInfo())
}

func run(ctx context.Context, cfg *config.Config) error {
	// Handle one-off commands that don't run the frame loop.
	if cfg.Command != "" {
		return cmd.Execute(ctx, cfg, os.Stdout)
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	detector, err := analysis.NewDetector(analysis.Options{
		ImageSize: cfg.ImageSize(),
		Workers:   cfg.Analysis.Workers,
		Params:    cfg.Params(),
		Mirror:    cfg.Analysis.Mirror,
	})
	if err != nil {
		return err
	}
	defer detector.Close()

	transports := transport.Multi{transport.NewLoggingTransport()}
	if cfg.Transport.WSEnabled {
		ws, err := transport.NewWebSocketTransport(cfg.Transport.WSAddress)
		if err != nil {
			return err
		}
		transports = append(transports, ws)
	}
	defer transports.Close()

	engine, err := pipeline.NewEngine(cfg, detector, transports)
	if err != nil {
		return err
	}
	defer engine.Close()

	if cfg.Recording.Enabled {
		if err := engine.StartRecording(cfg.Recording.OutputDir); err != nil {
			return err
		}
		applog.Infof("Recording snapshots to %s", cfg.Recording.OutputDir)
	}

	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewUDPSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			return err
		}
		defer sender.Close()

		publisher, err := udp.NewUDPPublisher(cfg.Transport.UDPSendInterval, sender, engine, cfg.ImageSize())
		if err != nil {
			return err
		}
		publisher.Start()
		defer publisher.Close()
	}

	src, err := pipeline.NewDirSource(cfg.Source.FramesDir, cfg.Source.Loop)
	if err != nil {
		return err
	}
	applog.Infof("Reading %d frames from %s (loop: %v)", src.Len(), cfg.Source.FramesDir, cfg.Source.Loop)

	// Block until the source ends or a termination signal is received.
	err = engine.Run(ctx, src)

	// ==================== SHUTDOWN PHASE (Cold Path) ====================
	// Deferred closes run in reverse: publisher, sender, engine (stops
	// recording), transports, detector.

	if errors.Is(err, context.Canceled) {
		applog.Infof("Shutting down")
		return nil
	}
	return err
}
