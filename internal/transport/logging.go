// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"

	applog "direction/internal/log"
)

// LoggingTransport implements the Transport interface by logging data to the console.
type LoggingTransport struct{}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	applog.Infof("Transport: Using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs the received data. Direction events go out at info level, which
// makes them the console output of the frame loop; anything else is debug.
func (lt *LoggingTransport) Send(data any) error {
	if ev, ok := data.(DirectionEvent); ok {
		switch {
		case ev.Skipped:
			applog.Debugf("Transport: frame %d (%s) skipped by gate", ev.Index, ev.Frame)
		case ev.Found:
			applog.Infof("Transport: frame %d (%s) direction %d° (energy %d)", ev.Index, ev.Frame, ev.Degrees, ev.Energy)
		default:
			applog.Infof("Transport: frame %d (%s) no direction", ev.Index, ev.Frame)
		}
		return nil
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		// Log type and raw data if marshaling fails
		applog.Debugf("Transport: Received (%T): %+v (JSON marshal error: %v)", data, data, err)
		return nil
	}
	applog.Debugf("Transport: Received (%T): %s", data, jsonData)
	return nil // Logging transport never fails to "send"
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	applog.Debugf("Transport: LoggingTransport closed")
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
