// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
)

// ErrNoSpectrum is returned by a SpectrumProvider before the first frame.
var ErrNoSpectrum = errors.New("transport: no spectrum available yet")

// ErrClosed is returned when sending through a closed transport.
var ErrClosed = errors.New("transport: closed")

// Transport defines a generic interface for sending processed data or events.
// Implementations should be thread-safe.
type Transport interface {
	Send(data any) error
	Close() error
}

// DirectionEvent is published once per frame that reached the detector or
// the gate. It marshals to the JSON object clients consume.
type DirectionEvent struct {
	Frame     string `json:"frame"`             // Source name of the frame
	Index     uint64 `json:"index"`             // Position of the frame in the stream
	Timestamp int64  `json:"timestamp"`         // Nanoseconds since epoch
	Degrees   int    `json:"degrees"`           // Winning bin; meaningful only if Found
	Found     bool   `json:"found"`             // A direction passed the energy threshold
	Energy    int    `json:"energy"`            // Energy of the winning bin
	Skipped   bool   `json:"skipped,omitempty"` // Rejected by the contrast gate
}

// FrameInfo describes the spectrum copied out by a SpectrumProvider.
type FrameInfo struct {
	Index   uint64
	Width   int
	Height  int
	Degrees int
	Found   bool
}

// SpectrumProvider exposes the most recent spectrum to publishers running on
// their own schedule.
type SpectrumProvider interface {
	// LatestInto copies the latest spectrum into dst, which must hold
	// exactly Width*Height values, and describes it. It returns
	// ErrNoSpectrum until a frame has been analyzed.
	LatestInto(dst []float32) (FrameInfo, error)
}

// Multi fans every message out to several transports.
type Multi []Transport

// Send delivers data to every transport and joins their errors.
func (m Multi) Send(data any) error {
	var errs []error
	for _, t := range m {
		if err := t.Send(data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every transport and joins their errors.
func (m Multi) Close() error {
	var errs []error
	for _, t := range m {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ Transport = Multi(nil)
