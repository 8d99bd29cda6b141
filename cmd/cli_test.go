// SPDX-License-Identifier: MIT
package cmd

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"direction/internal/config"
	applog "direction/internal/log"
	"direction/pkg/utils"
)

func TestMain(m *testing.M) {
	applog.SetOutput(io.Discard)
	m.Run()
}

func writeFrame(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseArgs_Root(t *testing.T) {
	cfg, err := ParseArgs([]string{"--frames", "./frames", "-n", "128", "-w", "3", "--loop",
		"--interval", "10ms", "--gate", "0.1", "--udp", "127.0.0.1:9999", "--ws", ":8081", "-v"})
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	if cfg.Command != "" {
		t.Errorf("Command = %q, want the frame loop", cfg.Command)
	}
	if cfg.ImageSize() != 128 || cfg.Analysis.Workers != 3 || !cfg.Debug {
		t.Errorf("analysis flags not applied: %+v", cfg.Analysis)
	}
	if cfg.Source.FramesDir != "./frames" || !cfg.Source.Loop || cfg.Source.Interval != 10*time.Millisecond {
		t.Errorf("source = %+v", cfg.Source)
	}
	if !cfg.Gate.Enabled || cfg.Gate.MinContrast != 0.1 {
		t.Errorf("gate = %+v", cfg.Gate)
	}
	tr := cfg.Transport
	if !tr.UDPEnabled || tr.UDPTargetAddress != "127.0.0.1:9999" || !tr.WSEnabled || tr.WSAddress != ":8081" {
		t.Errorf("transport = %+v", tr)
	}
}

func TestParseArgs_Defaults(t *testing.T) {
	cfg, err := ParseArgs([]string{"table"})
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	if cfg.Command != CommandTable || cfg.ImageSize() != config.DefaultImageSize {
		t.Errorf("Command = %q, size = %d", cfg.Command, cfg.ImageSize())
	}
	if cfg.Gate.Enabled || cfg.Transport.UDPEnabled || cfg.Recording.Enabled {
		t.Errorf("flags left at default changed the config: %+v", cfg)
	}
}

func TestParseArgs_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("analysis:\n  image_size: 64\n  workers: 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := ParseArgs([]string{"table", "--config", path})
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	if cfg.ImageSize() != 64 || cfg.Analysis.Workers != 2 {
		t.Errorf("file values not loaded: %+v", cfg.Analysis)
	}

	cfg, err = ParseArgs([]string{"table", "--config", path, "--size", "32"})
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	if cfg.ImageSize() != 32 || cfg.Analysis.Workers != 2 {
		t.Errorf("flag did not override the file: %+v", cfg.Analysis)
	}
}

func TestParseArgs_Analyze(t *testing.T) {
	cfg, err := ParseArgs([]string{"analyze", "a.png", "b.png", "--snapshots", "out", "--format", "bmp"})
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	if cfg.Command != CommandAnalyze || len(cfg.Args) != 2 || cfg.Args[1] != "b.png" {
		t.Errorf("Command = %q, Args = %v", cfg.Command, cfg.Args)
	}
	if !cfg.Recording.Enabled || cfg.Recording.OutputDir != "out" || cfg.Recording.Format != "bmp" {
		t.Errorf("recording = %+v", cfg.Recording)
	}
}

func TestParseArgs_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no frames", []string{}, "no frames directory"},
		{"bad size", []string{"table", "--size", "100"}, "analysis.image_size"},
		{"bad format", []string{"table", "--format", "gif"}, "recording.format"},
		{"analyze without files", []string{"analyze"}, "requires at least 1 arg"},
		{"table with args", []string{"table", "x"}, "unknown command"},
		{"unknown flag", []string{"--nope"}, "unknown flag"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseArgs(tt.args)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("ParseArgs(%v) error = %v, want %q", tt.args, err, tt.want)
			}
			if cfg != nil {
				t.Errorf("ParseArgs(%v) returned a config on error", tt.args)
			}
		})
	}
}

func TestParseArgs_Version(t *testing.T) {
	cfg, err := ParseArgs([]string{"--version"})
	if err != nil || cfg != nil {
		t.Errorf("ParseArgs(--version) = %v, %v; want nil, nil", cfg, err)
	}
}

func TestAnalyze(t *testing.T) {
	dir := t.TempDir()
	cols := writeFrame(t, dir, "cols.png", utils.ColumnNoiseImage(128, 1))
	rows := writeFrame(t, dir, "rows.png", utils.RowNoiseImage(128, 1))
	flat := writeFrame(t, dir, "flat.png", utils.ConstantImage(128, 7))
	small := writeFrame(t, dir, "small.png", utils.ConstantImage(64, 7))
	missing := filepath.Join(dir, "missing.png")

	cfg := config.Default()
	cfg.Analysis.ImageSize = 128
	cfg.Analysis.Workers = 2
	cfg.Recording.Enabled = true
	cfg.Recording.OutputDir = filepath.Join(dir, "snaps")

	var out bytes.Buffer
	err := Analyze(context.Background(), cfg, []string{cols, rows, flat, small, missing}, &out)
	if err == nil || !strings.Contains(err.Error(), "2 of 5") {
		t.Errorf("Analyze error = %v, want 2 of 5 failures", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	want := []string{
		cols + ": direction 0°",
		rows + ": direction 90°",
		flat + ": no direction",
		small + ": error:",
		missing + ": error:",
	}
	if len(lines) != len(want) {
		t.Fatalf("output:\n%s\nwant %d lines", out.String(), len(want))
	}
	for i := range want {
		if !strings.HasPrefix(lines[i], want[i]) {
			t.Errorf("line %d = %q, want prefix %q", i, lines[i], want[i])
		}
	}

	for _, name := range []string{"cols-spectrum.png", "cols-mirror.png", "flat-spectrum.png"} {
		if _, err := os.Stat(filepath.Join(cfg.Recording.OutputDir, name)); err != nil {
			t.Errorf("snapshot %s: %v", name, err)
		}
	}
}

func TestExecute_Table(t *testing.T) {
	cfg := config.Default()
	cfg.Analysis.ImageSize = 16
	cfg.Command = CommandTable

	var out bytes.Buffer
	if err := Execute(context.Background(), cfg, &out); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 20 {
		t.Fatalf("got %d lines, want header and 19 bins:\n%s", len(lines), out.String())
	}
	if !strings.HasPrefix(lines[0], "size 16 (2^4): 8x16 cells") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasPrefix(strings.TrimSpace(lines[1]), "-90°") || !strings.HasPrefix(strings.TrimSpace(lines[19]), "90°") {
		t.Errorf("bins not listed from -90° to 90°:\n%s", out.String())
	}

	cfg.Command = "bogus"
	if err := Execute(context.Background(), cfg, &out); err == nil {
		t.Error("expected error for unknown command")
	}
}
