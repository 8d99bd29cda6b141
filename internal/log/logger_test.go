// SPDX-License-Identifier: MIT
package log

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in     string
		want   LogLevel
		wantOK bool
	}{
		{"debug", LevelDebug, true},
		{"INFO", LevelInfo, true},
		{" warn ", LevelWarn, true},
		{"warning", LevelWarn, true},
		{"Error", LevelError, true},
		{"fatal", LevelFatal, true},
		{"verbose", LevelInfo, false},
		{"", LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLevel(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseLevel(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	prev := GetLevel()
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(prev)
	})

	SetLevel(LevelWarn)
	Debugf("hidden %d", 1)
	Infof("hidden %d", 2)
	Warnf("shown %d", 3)
	Errorf("shown %d", 4)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("messages below the level were logged:\n%s", out)
	}
	if !strings.Contains(out, "[WARN]  shown 3") || !strings.Contains(out, "[ERROR] shown 4") {
		t.Errorf("expected warn and error messages, got:\n%s", out)
	}
}

func TestLevelString(t *testing.T) {
	if LogLevel(42).String() != "UNKNOWN" {
		t.Errorf("LogLevel(42).String() = %q, want UNKNOWN", LogLevel(42).String())
	}
}
