package utils

import (
	"image"
	"math"
	"math/rand/v2"
	"sync"
)

// MockTransport implements the Transport interface for testing.
type MockTransport struct {
	mu     sync.Mutex
	Sent   []any
	Closed bool
}

// Send stores the data for later inspection instead of transmitting.
func (m *MockTransport) Send(data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, data)
	return nil
}

// Close marks the transport closed.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// Messages returns a snapshot of everything sent so far.
func (m *MockTransport) Messages() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]any, len(m.Sent))
	copy(out, m.Sent)
	return out
}

// ConstantImage returns an n×n gray image with every pixel set to v.
func ConstantImage(n int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, n, n))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

// ColumnNoiseImage returns an n×n image where each column holds one random
// level, so all spectral energy lies on the horizontal frequency axis.
func ColumnNoiseImage(n int, seed uint64) *image.Gray {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	levels := make([]uint8, n)
	for x := range levels {
		levels[x] = uint8(rng.IntN(256))
	}
	img := image.NewGray(image.Rect(0, 0, n, n))
	for y := range n {
		copy(img.Pix[y*img.Stride:y*img.Stride+n], levels)
	}
	return img
}

// RowNoiseImage returns an n×n image where each row holds one random level,
// so all spectral energy lies on the vertical frequency axis.
func RowNoiseImage(n int, seed uint64) *image.Gray {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	img := image.NewGray(image.Rect(0, 0, n, n))
	for y := range n {
		level := uint8(rng.IntN(256))
		row := img.Pix[y*img.Stride : y*img.Stride+n]
		for x := range row {
			row[x] = level
		}
	}
	return img
}

// StripeImage returns an n×n image of sinusoidal stripes with the given
// period in pixels. The stripes run at angle degrees from the x axis.
func StripeImage(n int, period, angle float64) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, n, n))
	rad := angle * math.Pi / 180
	// The wave vector is perpendicular to the stripes.
	kx, ky := -math.Sin(rad), math.Cos(rad)
	for y := range n {
		for x := range n {
			phase := 2 * math.Pi * (float64(x)*kx + float64(y)*ky) / period
			img.Pix[y*img.Stride+x] = uint8(127.5 + 127*math.Sin(phase))
		}
	}
	return img
}

// NoiseImage returns an n×n image of independent random pixels.
func NoiseImage(n int, seed uint64) *image.Gray {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	img := image.NewGray(image.Rect(0, 0, n, n))
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.IntN(256))
	}
	return img
}
