package pipeline

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"direction/internal/analysis"
	"direction/internal/spectrum"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// ErrUnknownFormat is returned for a snapshot format other than png, bmp or tiff.
var ErrUnknownFormat = errors.New("pipeline: unknown snapshot format")

func (e *Engine) StartRecording(dir string) error {
	e.recMu.Lock()
	defer e.recMu.Unlock()

	if e.isRecording.Load() {
		return fmt.Errorf("already recording")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	e.outputDir = dir

	e.isRecording.Store(true)
	return nil
}

func (e *Engine) StopRecording() error {
	e.recMu.Lock()
	defer e.recMu.Unlock()

	e.isRecording.Store(false)
	return nil
}

// IsRecording reports whether snapshots are being written.
func (e *Engine) IsRecording() bool {
	return e.isRecording.Load()
}

// record writes the snapshots of one frame while recording is on.
func (e *Engine) record(name string, r analysis.Result) error {
	if !e.isRecording.Load() {
		return nil
	}
	e.recMu.Lock()
	defer e.recMu.Unlock()
	// Re-check under the lock; StopRecording may have won the race.
	if !e.isRecording.Load() {
		return nil
	}
	return WriteSnapshots(e.outputDir, name, e.format, r)
}

// WriteSnapshots renders the spectrum of a frame, and its mirror when
// present, as gray images named after the frame:
// <frame>-spectrum.<format> and <frame>-mirror.<format>.
func WriteSnapshots(dir, frame, format string, r analysis.Result) error {
	if r.Spectrum == nil {
		return nil
	}
	base := strings.TrimSuffix(frame, filepath.Ext(frame))

	views := []struct {
		suffix string
		s      *spectrum.Spectrum
	}{
		{"spectrum", r.Spectrum},
		{"mirror", r.Mirror},
	}
	for _, v := range views {
		if v.s == nil {
			continue
		}
		path := filepath.Join(dir, fmt.Sprintf("%s-%s.%s", base, v.suffix, format))
		if err := writeImage(path, format, v.s.Gray()); err != nil {
			return err
		}
	}
	return nil
}

func writeImage(path, format string, img image.Image) (err error) {
	enc, err := encoder(format)
	if err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()

	if err := enc(file, img); err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	return nil
}

func encoder(format string) (func(io.Writer, image.Image) error, error) {
	switch format {
	case "png":
		return png.Encode, nil
	case "bmp":
		return bmp.Encode, nil
	case "tiff":
		return func(w io.Writer, img image.Image) error {
			return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}
