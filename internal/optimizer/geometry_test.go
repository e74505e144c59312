package optimizer

import (
	"image"
	"math"
	"testing"

	"github.com/edashow/mediaflow/internal/domain"
)

func TestWatermarkOffset(t *testing.T) {
	cases := []struct {
		pos  domain.Position
		want image.Point
	}{
		{domain.PositionTopLeft, image.Pt(20, 20)},
		{domain.PositionTopRight, image.Pt(880, 20)},
		{domain.PositionBottomLeft, image.Pt(20, 730)},
		{domain.PositionBottomRight, image.Pt(880, 730)},
		{domain.PositionCenter, image.Pt(450, 375)},
		{domain.Position("diagonal"), image.Pt(880, 730)},
	}
	for _, tc := range cases {
		if got := WatermarkOffset(tc.pos, 1000, 800, 100, 50); got != tc.want {
			t.Fatalf("position %s: expected %v, got %v", tc.pos, tc.want, got)
		}
	}
}

func TestWatermarkOffsetClampsDegenerate(t *testing.T) {
	positions := []domain.Position{
		domain.PositionTopLeft,
		domain.PositionTopRight,
		domain.PositionBottomLeft,
		domain.PositionBottomRight,
		domain.PositionCenter,
	}
	for _, pos := range positions {
		got := WatermarkOffset(pos, 50, 40, 300, 200)
		if got.X < 0 || got.Y < 0 {
			t.Fatalf("position %s: expected non-negative offset, got %v", pos, got)
		}
	}
}

func TestFitInsideNeverUpscales(t *testing.T) {
	sizes := [][2]int{{1, 1}, {640, 480}, {1920, 1080}, {1080, 1080}, {100, 1080}}
	for _, s := range sizes {
		w, h := FitInside(s[0], s[1], 1920, 1080)
		if w != s[0] || h != s[1] {
			t.Fatalf("%dx%d: expected unchanged, got %dx%d", s[0], s[1], w, h)
		}
	}
}

func TestFitInsidePreservesAspect(t *testing.T) {
	sizes := [][2]int{{4000, 3000}, {3000, 4000}, {1921, 1080}, {1920, 1081}, {10000, 7}, {7, 10000}, {2500, 2500}}
	for _, s := range sizes {
		w, h := FitInside(s[0], s[1], 1920, 1080)
		if w > 1920 || h > 1080 {
			t.Fatalf("%dx%d: %dx%d exceeds bounds", s[0], s[1], w, h)
		}
		wantH := float64(w) * float64(s[1]) / float64(s[0])
		wantW := float64(h) * float64(s[0]) / float64(s[1])
		if math.Abs(wantH-float64(h)) > 1 && math.Abs(wantW-float64(w)) > 1 {
			t.Fatalf("%dx%d: aspect drift, got %dx%d", s[0], s[1], w, h)
		}
	}

	if w, h := FitInside(4000, 1000, 1920, 1080); w != 1920 || h != 480 {
		t.Fatalf("expected 1920x480, got %dx%d", w, h)
	}
	if w, h := FitInside(1000, 4000, 1920, 1080); w != 270 || h != 1080 {
		t.Fatalf("expected 270x1080, got %dx%d", w, h)
	}
}

func TestOpacityAlpha(t *testing.T) {
	cases := map[int]uint8{0: 0, 50: 128, 100: 255, 150: 255, -5: 0}
	for in, want := range cases {
		if got := opacityAlpha(in); got != want {
			t.Fatalf("opacityAlpha(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestIntrinsicSizeFallback(t *testing.T) {
	if w, h := intrinsicSize(0, 500); w != FallbackWidth || h != FallbackHeight {
		t.Fatalf("expected fallback size, got %dx%d", w, h)
	}
	if w, h := intrinsicSize(640, 480); w != 640 || h != 480 {
		t.Fatalf("expected reported size, got %dx%d", w, h)
	}
}

func TestMimeTypeAndExtension(t *testing.T) {
	if got := MimeType(domain.FormatPNG); got != "image/png" {
		t.Fatalf("expected image/png, got %s", got)
	}
	if got := Extension(domain.FormatJPEG); got != "jpg" {
		t.Fatalf("expected jpg, got %s", got)
	}
	if got := MimeType(domain.Format("heic")); got != "image/webp" {
		t.Fatalf("expected webp fallback mime, got %s", got)
	}
	if got := Extension(domain.Format("heic")); got != "webp" {
		t.Fatalf("expected webp fallback extension, got %s", got)
	}
}
