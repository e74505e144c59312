package main

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writePNG(t *testing.T, path string, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write png: %v", err)
	}
	return buf.Bytes()
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestOptimizeWithFlags(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "photo.png")
	out := filepath.Join(dir, "photo-small.png")
	writePNG(t, in, 200, 100)

	stdout, err := execute(t, "optimize", "--input", in, "--output", out, "--format", "png", "--max-width", "50", "--max-height", "50")
	if err != nil {
		t.Fatalf("optimize: %v", err)
	}
	if !strings.Contains(stdout, "50x25") {
		t.Fatalf("expected dimensions in output, got %q", stdout)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if cfg.Width != 50 || cfg.Height != 25 {
		t.Fatalf("expected 50x25, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestOptimizeDefaultOutputPath(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "photo.png")
	writePNG(t, in, 20, 20)

	if _, err := execute(t, "optimize", "-i", in, "--format", "jpeg"); err != nil {
		t.Fatalf("optimize: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "photo.optimized.jpg")); err != nil {
		t.Fatalf("expected default output file: %v", err)
	}
}

func TestOptimizeSettingsDisabledCopiesInput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "photo.png")
	out := filepath.Join(dir, "copy.png")
	original := writePNG(t, in, 30, 30)

	settingsPath := filepath.Join(dir, "settings.yaml")
	if err := os.WriteFile(settingsPath, []byte("enabled: false\nformat: webp\n"), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	stdout, err := execute(t, "optimize", "-i", in, "-o", out, "--settings", settingsPath)
	if err != nil {
		t.Fatalf("optimize: %v", err)
	}
	if !strings.Contains(stdout, "disabled") {
		t.Fatalf("expected disabled notice, got %q", stdout)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !bytes.Equal(data, original) {
		t.Fatal("expected the input bytes to be copied unchanged")
	}
}

func TestOptimizeSettingsEnabled(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "photo.png")
	out := filepath.Join(dir, "out.png")
	writePNG(t, in, 120, 60)

	settingsPath := filepath.Join(dir, "settings.yaml")
	doc := "enabled: true\nformat: png\nquality: 80\nmax_width: 60\nmax_height: 60\n"
	if err := os.WriteFile(settingsPath, []byte(doc), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	if _, err := execute(t, "optimize", "-i", in, "-o", out, "--settings", settingsPath); err != nil {
		t.Fatalf("optimize: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if cfg.Width != 60 || cfg.Height != 30 {
		t.Fatalf("expected 60x30, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestOptimizeRejectsBadFlags(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "photo.png")
	writePNG(t, in, 10, 10)

	if _, err := execute(t, "optimize", "-i", in, "--quality", "0"); err == nil {
		t.Fatal("expected quality validation error")
	}
	if _, err := execute(t, "optimize"); err == nil {
		t.Fatal("expected missing --input error")
	}
	if _, err := execute(t, "optimize", "-i", filepath.Join(dir, "missing.png")); err == nil {
		t.Fatal("expected read error for missing input")
	}
}
