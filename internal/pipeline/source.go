// SPDX-License-Identifier: MIT
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	// Decoders registered with image.Decode.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrNoFrames is returned when a directory holds no readable image files.
var ErrNoFrames = errors.New("pipeline: no image files found")

// FrameExtensions lists the file extensions a DirSource picks up.
var FrameExtensions = []string{".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff", ".webp"}

// Frame is one image handed to the engine.
type Frame struct {
	Name  string // Base name of the source file
	Index uint64 // Position in the stream, counting from 1
	Image image.Image
}

// FrameSource produces frames until it returns io.EOF.
type FrameSource interface {
	Next(ctx context.Context) (Frame, error)
}

// DirSource reads the image files of a directory in lexical order.
type DirSource struct {
	dir   string
	files []string
	pos   int
	loop  bool
	index uint64
}

// NewDirSource lists the frames in dir. With loop set the source starts over
// after the last file instead of returning io.EOF.
func NewDirSource(dir string, loop bool) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read frames directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !IsFrameFile(e.Name()) {
			continue
		}
		files = append(files, e.Name())
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoFrames, dir)
	}
	slices.Sort(files)

	return &DirSource{dir: dir, files: files, loop: loop}, nil
}

// Len returns the number of files in one pass over the directory.
func (s *DirSource) Len() int {
	return len(s.files)
}

// Next decodes the next file. A file that fails to decode is reported with
// its name filled in; the following call moves on to the next file.
func (s *DirSource) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if s.pos == len(s.files) {
		if !s.loop {
			return Frame{}, io.EOF
		}
		s.pos = 0
	}

	name := s.files[s.pos]
	s.pos++
	s.index++

	f := Frame{Name: name, Index: s.index}
	img, err := DecodeFile(filepath.Join(s.dir, name))
	if err != nil {
		return f, err
	}
	f.Image = img
	return f, nil
}

// IsFrameFile reports whether name has one of the FrameExtensions.
func IsFrameFile(name string) bool {
	return slices.Contains(FrameExtensions, strings.ToLower(filepath.Ext(name)))
}

// DecodeFile reads an image file in any registered format.
func DecodeFile(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	if p, ok := img.(*image.Paletted); ok {
		if g, ok := grayPaletted(p); ok {
			return g, nil
		}
	}
	return img, nil
}

// grayPaletted expands a paletted image whose palette holds only gray levels,
// as 8-bit BMP files decode, into an *image.Gray.
func grayPaletted(p *image.Paletted) (*image.Gray, bool) {
	levels := make([]uint8, len(p.Palette))
	for i, c := range p.Palette {
		g, ok := color.GrayModel.Convert(c).(color.Gray)
		r, gg, b, _ := c.RGBA()
		if !ok || r != gg || gg != b {
			return nil, false
		}
		levels[i] = g.Y
	}

	b := p.Bounds()
	out := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		src := p.Pix[p.PixOffset(b.Min.X, y):]
		dst := out.Pix[out.PixOffset(b.Min.X, y):]
		for x := range b.Dx() {
			idx := int(src[x])
			if idx >= len(levels) {
				return nil, false
			}
			dst[x] = levels[idx]
		}
	}
	return out, true
}
