package config

import (
	"time"

	"direction/internal/spectrum"
)

// Core configuration constants that define the boundaries and defaults
// for the detector.
const (
	// Analysis defaults
	DefaultImageSize    = 256                          // Side of the square input frame
	DefaultWorkers      = 1                            // One engine in the pool
	DefaultNoiseFloorDB = spectrum.DefaultNoiseFloorDB // dB values at or below are ignored
	DefaultMinBinEnergy = spectrum.DefaultMinBinEnergy // Minimum winning bin energy
	DefaultMirror       = true                         // Produce the reversed spectrum

	// Gate defaults
	DefaultGateEnabled = false
	DefaultMinContrast = 0.02 // Fraction of the full 0..255 pixel range

	// Frame source defaults
	DefaultFramesDir     = ""
	DefaultFrameInterval = 33 * time.Millisecond // ~30 fps
	DefaultLoop          = false

	// Snapshot defaults
	DefaultRecordSnapshots = false
	DefaultOutputDir       = "./snapshots"
	DefaultFormat          = "png"

	// Transport defaults
	DefaultUDPEnabled       = false
	DefaultUDPTargetAddress = "127.0.0.1:9090"
	DefaultUDPSendInterval  = 33 * time.Millisecond
	DefaultWSEnabled        = false
	DefaultWSAddress        = "127.0.0.1:8080"

	// Debug defaults
	DefaultLogLevel  = "info"
	DefaultVerbosity = false

	// Limits
	MinImageSize = 4
	MaxImageSize = 4096 // Rows of a packet carry a u16 row index
	MaxWorkers   = 64
)

// SnapshotFormats lists the image encodings accepted for snapshot recording.
var SnapshotFormats = []string{"png", "bmp", "tiff"}

// Params returns the direction estimation parameters of the analysis section.
func (c *Config) Params() spectrum.Params {
	return spectrum.Params{
		NoiseFloorDB: c.Analysis.NoiseFloorDB,
		MinBinEnergy: c.Analysis.MinBinEnergy,
	}
}

// ImageSize returns the frame side; the one parameter the core is built with.
func (c *Config) ImageSize() int {
	return c.Analysis.ImageSize
}
