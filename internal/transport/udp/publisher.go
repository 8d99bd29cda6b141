// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	applog "direction/internal/log"
	"direction/internal/transport"
)

// UDPPublisher periodically fetches the latest spectrum, packs it into row
// chunks (see Header) and sends them over UDP using a UDPSender.
// It runs in a separate goroutine managed by Start and Stop methods.
type UDPPublisher struct {
	sender   *UDPSender                 // The underlying UDP sender instance.
	provider transport.SpectrumProvider // Source of the latest spectrum.
	interval time.Duration              // The interval at which spectra are sent.
	width    int                        // Spectrum columns (N/2).
	height   int                        // Spectrum rows (N).

	ticker   *time.Ticker   // Ticker that triggers packet sending.
	doneChan chan struct{}  // Channel used to signal the publisher goroutine to stop.
	stopOnce sync.Once      // Ensures the stop logic runs only once per Start/Stop cycle.
	wg       sync.WaitGroup // Waits for the publisher goroutine to finish during Stop.
	mu       sync.Mutex     // Protects access to ticker and doneChan during Start/Stop.

	sequenceNum uint32 // Incremented once per published spectrum.
	lastIndex   uint64 // Frame index of the last published spectrum.
	published   bool   // Whether lastIndex is set.

	// Pre-allocated buffers to reduce allocations in the hot path (publish).
	values       []float32
	packetBuffer *bytes.Buffer
}

// NewUDPPublisher creates and initializes a new UDPPublisher for spectra of
// frames with side imageSize. If the provided interval is invalid (<= 0), it
// defaults to 33ms (~30Hz).
func NewUDPPublisher(interval time.Duration, sender *UDPSender, provider transport.SpectrumProvider, imageSize int) (*UDPPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	if provider == nil {
		return nil, fmt.Errorf("UDPPublisher: spectrum provider cannot be nil")
	}
	if imageSize < 2 || imageSize >= 1<<16 {
		return nil, fmt.Errorf("UDPPublisher: image size %d out of range", imageSize)
	}

	if interval <= 0 {
		interval = 33 * time.Millisecond
		applog.Warnf("UDPPublisher: Invalid interval provided, defaulting to %s", interval)
	}

	width, height := imageSize/2, imageSize
	applog.Infof("UDPPublisher: Initializing (Interval: %s, Spectrum: %dx%d, Chunks: %d)",
		interval, width, height, ChunkCount(width, height))

	return &UDPPublisher{
		sender:       sender,
		provider:     provider,
		interval:     interval,
		width:        width,
		height:       height,
		values:       make([]float32, width*height),
		packetBuffer: new(bytes.Buffer),
	}, nil
}

// Start begins the periodic publishing process.
// It launches a goroutine that ticks at the configured interval, calling
// publish on each tick until Stop is called.
// It is safe to call Start multiple times; subsequent calls are no-ops if already started.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		applog.Warnf("UDPPublisher: Start called but already running.")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	// Capture local variables for the goroutine to avoid data races on p.ticker/p.doneChan
	ticker := p.ticker
	doneChan := p.doneChan

	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		applog.Infof("UDPPublisher: Publisher goroutine started (Interval: %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				if _, err := p.publish(); err != nil {
					applog.Errorf("UDPPublisher: %v", err)
				}
			case <-doneChan:
				applog.Infof("UDPPublisher: Publisher goroutine received stop signal.")
				return
			}
		}
	}()
}

// Stop gracefully signals the publisher goroutine to terminate and waits for it to exit.
// It is safe to call Stop multiple times; subsequent calls are no-ops.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		applog.Debugf("UDPPublisher: Stop called but not running.")
		return nil
	}

	p.stopOnce.Do(func() {
		applog.Infof("UDPPublisher: Initiating stop sequence...")
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})

	p.mu.Unlock()

	p.wg.Wait()
	applog.Infof("UDPPublisher: Publisher goroutine finished.")
	return nil
}

// publish sends the latest spectrum if it has not been sent yet and returns
// the number of datagrams written. Only the publisher goroutine calls it.
func (p *UDPPublisher) publish() (int, error) {
	// --- 1. Fetch Data ---
	info, err := p.provider.LatestInto(p.values)
	if errors.Is(err, transport.ErrNoSpectrum) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("error getting spectrum: %w", err)
	}
	if info.Width != p.width || info.Height != p.height {
		return 0, fmt.Errorf("spectrum is %dx%d, publisher expects %dx%d", info.Width, info.Height, p.width, p.height)
	}
	if p.published && info.Index == p.lastIndex {
		return 0, nil
	}

	// --- 2. Pack and Send Chunks ---
	p.sequenceNum++
	h := Header{
		Sequence:  p.sequenceNum,
		Timestamp: time.Now().UnixNano(),
		Width:     uint16(p.width),
		Height:    uint16(p.height),
		Found:     info.Found,
		Chunks:    uint16(ChunkCount(p.width, p.height)),
	}
	if info.Found {
		h.Direction = int16(info.Degrees)
	}

	rows := RowsPerChunk(p.width)
	sent := 0
	for start := 0; start < p.height; start += rows {
		count := min(rows, p.height-start)
		h.RowStart = uint16(start)
		h.RowCount = uint16(count)

		chunk := p.values[start*p.width : (start+count)*p.width]
		if err := writePacket(p.packetBuffer, h, chunk); err != nil {
			return sent, fmt.Errorf("error packing chunk %d: %w", h.Chunk, err)
		}
		if err := p.sender.Send(p.packetBuffer.Bytes()); err != nil {
			return sent, err
		}
		sent++
		h.Chunk++
	}

	p.lastIndex = info.Index
	p.published = true
	applog.Debugf("UDPPublisher: Sent spectrum %d of frame %d in %d packets", p.sequenceNum, info.Index, sent)
	return sent, nil
}

// Close implements the io.Closer interface. It gracefully stops the publisher goroutine.
func (p *UDPPublisher) Close() error {
	applog.Debugf("UDPPublisher: Close called, stopping publisher...")
	return p.Stop()
}

// Ensure UDPPublisher satisfies the io.Closer interface at compile time.
var _ interface{ Close() error } = (*UDPPublisher)(nil)
