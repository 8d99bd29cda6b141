// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	applog "direction/internal/log"
	"direction/pkg/bitint"

	"gopkg.in/yaml.v3"
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`             // Enable debug mode (forces the debug log level).
	LogLevel  string          `yaml:"log_level"`         // Logging level ("debug", "info", "warn", "error").
	Command   string          `yaml:"command,omitempty"` // One-off command chosen on the command line ("analyze", "table").
	Args      []string        `yaml:"-"`                 // Positional arguments of the one-off command.
	Analysis  AnalysisConfig  `yaml:"analysis"`          // Spectral analysis settings.
	Gate      GateConfig      `yaml:"gate"`              // Low-contrast frame rejection.
	Source    SourceConfig    `yaml:"source"`            // Where frames come from.
	Recording RecordingConfig `yaml:"recording"`         // Spectrum snapshot settings.
	Transport TransportConfig `yaml:"transport"`         // Data transport settings (UDP, WebSocket).
}

// AnalysisConfig holds the parameters of the spectral pipeline.
type AnalysisConfig struct {
	ImageSize    int     `yaml:"image_size"`     // Side N of the square gray frames; a power of two.
	NoiseFloorDB float32 `yaml:"noise_floor_db"` // Spectrum values at or below this level are ignored.
	MinBinEnergy int     `yaml:"min_bin_energy"` // Smallest winning bin energy that counts as a direction.
	Workers      int     `yaml:"workers"`        // FFT engines working in parallel.
	Mirror       bool    `yaml:"mirror"`         // Also produce the reversed spectrum.
}

// GateConfig holds settings for skipping frames with too little contrast.
type GateConfig struct {
	Enabled     bool    `yaml:"enabled"`      // Apply the contrast gate.
	MinContrast float64 `yaml:"min_contrast"` // Minimum (max-min)/255 pixel range of an accepted frame.
}

// SourceConfig holds settings of the frame source.
type SourceConfig struct {
	FramesDir string        `yaml:"frames_dir"` // Directory of image files read in lexical order.
	Interval  time.Duration `yaml:"interval"`   // Delay between frames (0 for as fast as possible).
	Loop      bool          `yaml:"loop"`       // Restart from the first file when exhausted.
}

// RecordingConfig holds settings related to spectrum snapshots.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`    // Write a spectrum and mirror image for each frame.
	OutputDir string `yaml:"output_dir"` // Directory the snapshots are written to.
	Format    string `yaml:"format"`     // Snapshot encoding ("png", "bmp", "tiff").
}

// TransportConfig holds settings related to sending processed data over the network.
type TransportConfig struct {
	UDPEnabled       bool          `yaml:"udp_enabled"`        // Enable sending spectrum packets over UDP.
	UDPTargetAddress string        `yaml:"udp_target_address"` // Target address and port for UDP packets (e.g., "127.0.0.1:9090").
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`  // Interval between sending UDP packets.
	WSEnabled        bool          `yaml:"websocket_enabled"`  // Broadcast direction events over WebSocket.
	WSAddress        string        `yaml:"websocket_address"`  // Listen address of the WebSocket server.
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Debug:    false,
		LogLevel: DefaultLogLevel,
		Analysis: AnalysisConfig{
			ImageSize:    DefaultImageSize,
			NoiseFloorDB: DefaultNoiseFloorDB,
			MinBinEnergy: DefaultMinBinEnergy,
			Workers:      DefaultWorkers,
			Mirror:       DefaultMirror,
		},
		Gate: GateConfig{
			Enabled:     DefaultGateEnabled,
			MinContrast: DefaultMinContrast,
		},
		Source: SourceConfig{
			FramesDir: DefaultFramesDir,
			Interval:  DefaultFrameInterval,
			Loop:      DefaultLoop,
		},
		Recording: RecordingConfig{
			Enabled:   DefaultRecordSnapshots,
			OutputDir: DefaultOutputDir,
			Format:    DefaultFormat,
		},
		Transport: TransportConfig{
			UDPEnabled:       DefaultUDPEnabled,
			UDPTargetAddress: DefaultUDPTargetAddress,
			UDPSendInterval:  DefaultUDPSendInterval,
			WSEnabled:        DefaultWSEnabled,
			WSAddress:        DefaultWSAddress,
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
		candidates := []string{
			"config.yaml",
		}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
		if path == "" {
			cfg.applyEnvOverrides()
			if err := cfg.Validate(); err != nil {
				return nil, fmt.Errorf("invalid default configuration: %w", err)
			}
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate reports every setting the detector cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("log_level %q is not a known level", c.LogLevel))
	}

	// Analysis Validation
	a := c.Analysis
	if a.ImageSize < MinImageSize || a.ImageSize > MaxImageSize || !bitint.IsPowerOfTwo(a.ImageSize) {
		errs = append(errs, fmt.Errorf("analysis.image_size %d must be a power of two in [%d, %d] (nearest: %s)",
			a.ImageSize, MinImageSize, MaxImageSize, sizeHint(a.ImageSize)))
	}
	if a.Workers < 1 || a.Workers > MaxWorkers {
		errs = append(errs, fmt.Errorf("analysis.workers %d must be in [1, %d]", a.Workers, MaxWorkers))
	}
	if f := float64(a.NoiseFloorDB); math.IsNaN(f) || math.IsInf(f, 0) {
		errs = append(errs, fmt.Errorf("analysis.noise_floor_db must be finite"))
	}
	if a.MinBinEnergy < 0 {
		errs = append(errs, fmt.Errorf("analysis.min_bin_energy %d must not be negative", a.MinBinEnergy))
	}

	// Gate Validation
	if c.Gate.MinContrast < 0 || c.Gate.MinContrast > 1 || math.IsNaN(c.Gate.MinContrast) {
		errs = append(errs, fmt.Errorf("gate.min_contrast %v must be in [0, 1]", c.Gate.MinContrast))
	}

	// Source Validation
	if c.Source.Interval < 0 {
		errs = append(errs, fmt.Errorf("source.interval must not be negative"))
	}

	// Recording Validation
	if !slices.Contains(SnapshotFormats, c.Recording.Format) {
		errs = append(errs, fmt.Errorf("recording.format %q must be one of %s",
			c.Recording.Format, strings.Join(SnapshotFormats, ", ")))
	}
	if c.Recording.Enabled && c.Recording.OutputDir == "" {
		errs = append(errs, fmt.Errorf("recording.output_dir must be set when recording is enabled"))
	}

	// Transport Validation
	if c.Transport.UDPEnabled {
		if c.Transport.UDPTargetAddress == "" {
			errs = append(errs, fmt.Errorf("transport.udp_target_address must be set when UDP is enabled"))
		} else if !strings.Contains(c.Transport.UDPTargetAddress, ":") {
			errs = append(errs, fmt.Errorf("transport.udp_target_address '%s' appears invalid (missing port?)", c.Transport.UDPTargetAddress))
		}
		if c.Transport.UDPSendInterval <= 0 {
			errs = append(errs, fmt.Errorf("transport.udp_send_interval must be positive when UDP is enabled"))
		}
	}
	if c.Transport.WSEnabled && c.Transport.WSAddress == "" {
		errs = append(errs, fmt.Errorf("transport.websocket_address must be set when WebSocket is enabled"))
	}

	return errors.Join(errs...)
}

// nearestSizes returns the valid sizes just below and just above n. They are
// equal when n lies outside the limits.
func nearestSizes(n int) (lo, hi int) {
	lo = min(max(bitint.PrevPowerOfTwo(n), MinImageSize), MaxImageSize)
	hi = max(min(bitint.NextPowerOfTwo(n), MaxImageSize), MinImageSize)
	return lo, hi
}

func sizeHint(n int) string {
	lo, hi := nearestSizes(n)
	if lo == hi {
		return strconv.Itoa(lo)
	}
	return fmt.Sprintf("%d or %d", lo, hi)
}

// applyEnvOverrides lets ENV_* variables replace file or default settings.
// Unparseable values are reported and ignored.
func (cfg *Config) applyEnvOverrides() {
	// ENV_{...}
	// These are general overrides.

	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Debug = bVal
			applog.Infof("Config: Overriding debug from env: %v", bVal)
		} else {
			applog.Warnf("Config: Ignoring ENV_DEBUG=%q: %v", val, err)
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		cfg.LogLevel = val
		applog.Infof("Config: Overriding log_level from env: %s", val)
	}

	// ENV_IMAGE_SIZE
	if val, ok := os.LookupEnv("ENV_IMAGE_SIZE"); ok {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Analysis.ImageSize = n
			applog.Infof("Config: Overriding analysis.image_size from env: %d", n)
		} else {
			applog.Warnf("Config: Ignoring ENV_IMAGE_SIZE=%q: %v", val, err)
		}
	}

	// ENV_UDP_{...}
	// These are specific to the transport layer.

	// ENV_UDP_ENABLED
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Transport.UDPEnabled = bVal
			applog.Infof("Config: Overriding transport.udp_enabled from env: %v", bVal)
		} else {
			applog.Warnf("Config: Ignoring ENV_UDP_ENABLED=%q: %v", val, err)
		}
	}
	// ENV_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		cfg.Transport.UDPTargetAddress = val
		applog.Infof("Config: Overriding transport.udp_target_address from env: %s", val)
	}
	// ENV_UDP_SEND_INTERVAL
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			cfg.Transport.UDPSendInterval = dur
			applog.Infof("Config: Overriding transport.udp_send_interval from env: %s", dur)
		} else {
			applog.Warnf("Config: Ignoring ENV_UDP_SEND_INTERVAL=%q: %v", val, err)
		}
	}

	// ENV_WS_ADDRESS
	if val, ok := os.LookupEnv("ENV_WS_ADDRESS"); ok {
		cfg.Transport.WSAddress = val
		cfg.Transport.WSEnabled = val != ""
		applog.Infof("Config: Overriding transport.websocket_address from env: %s", val)
	}
}
