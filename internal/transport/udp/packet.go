// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

/*
UDP Packet Structure (BigEndian)

A spectrum of Width×Height float32 values rarely fits one datagram, so it is
split into chunks of whole rows. Every chunk of one spectrum carries the
same Sequence number.

+------------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description              |
|-------------------|----------------|--------------|--------------------------|
| Sequence Number   | uint32         | 4            | One per spectrum         |
| Timestamp         | int64          | 8            | Nanoseconds since epoch  |
| Width             | uint16         | 2            | Values per row (N/2)     |
| Height            | uint16         | 2            | Rows in the spectrum (N) |
| Direction         | int16          | 2            | Degrees, 0 if not found  |
| Found             | uint8          | 1            | 1 if Direction is valid  |
| Chunk             | uint16         | 2            | Index of this chunk      |
| Chunks            | uint16         | 2            | Chunks in the spectrum   |
| Row Start         | uint16         | 2            | First row in this chunk  |
| Row Count         | uint16         | 2            | Rows in this chunk (R)   |
| Values            | []float32      | R*Width*4    | dB values, row-major     |
+------------------------------------------------------------------------------+
*/

const (
	// HeaderSize is the encoded size of Header.
	HeaderSize = 27
	// MaxPayload bounds a datagram well below the 65507 byte UDP limit.
	MaxPayload = 60000
)

// ErrMalformedPacket is returned when a datagram does not hold a header and exactly its values.
var ErrMalformedPacket = errors.New("udp: malformed packet")

// Header precedes the values of every chunk.
type Header struct {
	Sequence  uint32
	Timestamp int64
	Width     uint16
	Height    uint16
	Direction int16
	Found     bool
	Chunk     uint16
	Chunks    uint16
	RowStart  uint16
	RowCount  uint16
}

// RowsPerChunk returns how many rows of the given width fit one datagram.
func RowsPerChunk(width int) int {
	return max(1, (MaxPayload-HeaderSize)/(width*4))
}

// ChunkCount returns how many datagrams a width×height spectrum needs.
func ChunkCount(width, height int) int {
	rows := RowsPerChunk(width)
	return (height + rows - 1) / rows
}

// writePacket encodes h followed by values into buf, replacing its contents.
func writePacket(buf *bytes.Buffer, h Header, values []float32) error {
	buf.Reset()
	if err := binary.Write(buf, binary.BigEndian, h); err != nil {
		return err
	}
	return binary.Write(buf, binary.BigEndian, values)
}

// DecodePacket parses one datagram. The returned values are newly allocated.
func DecodePacket(b []byte) (Header, []float32, error) {
	var h Header
	if len(b) < HeaderSize {
		return h, nil, fmt.Errorf("%w: %d bytes", ErrMalformedPacket, len(b))
	}
	r := bytes.NewReader(b)
	if err := binary.Read(r, binary.BigEndian, &h); err != nil {
		return h, nil, err
	}

	n := int(h.RowCount) * int(h.Width)
	if r.Len() != n*4 {
		return h, nil, fmt.Errorf("%w: %d value bytes for %d values", ErrMalformedPacket, r.Len(), n)
	}
	values := make([]float32, n)
	if err := binary.Read(r, binary.BigEndian, values); err != nil {
		return h, nil, err
	}
	return h, values, nil
}
