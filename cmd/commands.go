// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	"direction/internal/analysis"
	"direction/internal/config"
	applog "direction/internal/log"
	"direction/internal/pipeline"
	"direction/internal/spectrum"
	"direction/pkg/bitint"
)

// Execute runs the one-off command selected by ParseArgs.
func Execute(ctx context.Context, cfg *config.Config, w io.Writer) error {
	switch cfg.Command {
	case CommandAnalyze:
		return Analyze(ctx, cfg, cfg.Args, w)
	case CommandTable:
		return Table(cfg, w)
	default:
		return fmt.Errorf("unknown command %q", cfg.Command)
	}
}

// Analyze prints the direction of every file, one line each, in argument
// order. Files that cannot be read or analyzed are reported inline and
// counted in the returned error.
func Analyze(ctx context.Context, cfg *config.Config, files []string, w io.Writer) error {
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

	if cfg.Recording.Enabled {
		if err := os.MkdirAll(cfg.Recording.OutputDir, 0o755); err != nil {
			return fmt.Errorf("failed to create snapshot directory: %w", err)
		}
	}

	imgs := make([]image.Image, len(files))
	decodeErrs := make([]error, len(files))
	for i, file := range files {
		imgs[i], decodeErrs[i] = pipeline.DecodeFile(file)
	}

	// Undecodable files are left nil and fail in the detector; their decode
	// error is what gets printed.
	results, err := detector.ProcessBatch(ctx, imgs)
	if err != nil {
		return err
	}

	failed := 0
	for i, file := range files {
		r := results[i]
		if decodeErrs[i] != nil {
			r.Err = decodeErrs[i]
		}
		if r.Err != nil {
			failed++
			fmt.Fprintf(w, "%s: error: %v\n", file, r.Err)
			continue
		}

		if deg, ok := r.Direction(); ok {
			fmt.Fprintf(w, "%s: direction %d°\n", file, deg)
		} else {
			fmt.Fprintf(w, "%s: no direction\n", file)
		}
		applog.Debugf("Analyze: %s bin energies %v", file, r.Estimate.Totals)

		if cfg.Recording.Enabled {
			if err := pipeline.WriteSnapshots(cfg.Recording.OutputDir, filepath.Base(file), cfg.Recording.Format, r); err != nil {
				applog.Errorf("Analyze: Error writing snapshots for %s: %v", file, err)
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files could not be analyzed", failed, len(files))
	}
	return nil
}

// Table prints the angle table for the configured size: the grid, the number
// of cells inside the half-disk and how many fall into each direction bin.
func Table(cfg *config.Config, w io.Writer) error {
	t, err := spectrum.NewAngleTable(cfg.ImageSize())
	if err != nil {
		return err
	}

	n := cfg.ImageSize()
	fmt.Fprintf(w, "size %d (2^%d): %dx%d cells, %d valid\n", n, bitint.Log2(n), t.Width(), t.Height(), t.ValidCount())
	counts := t.BinCounts()
	for _, deg := range spectrum.Bins {
		fmt.Fprintf(w, "%4d° %6d\n", deg, counts[deg])
	}
	return nil
}
