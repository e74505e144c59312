package optimizer

import (
	"image"
	"math"

	"github.com/edashow/mediaflow/internal/domain"
)

const (
	// FallbackWidth and FallbackHeight stand in for the intrinsic size when a
	// decoder reports a non-positive dimension.
	FallbackWidth  = 1920
	FallbackHeight = 1080

	WatermarkPadding = 20
)

func intrinsicSize(w, h int) (int, int) {
	if w <= 0 || h <= 0 {
		return FallbackWidth, FallbackHeight
	}
	return w, h
}

// FitInside shrinks (w, h) to fit the (maxW, maxH) box preserving aspect ratio.
// Sizes already inside the box are returned unchanged.
func FitInside(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}

	ratio := math.Min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	tw := int(math.Round(float64(w) * ratio))
	th := int(math.Round(float64(h) * ratio))
	return max(1, tw), max(1, th)
}

// WatermarkOffset places a wmW x wmH overlay on an imgW x imgH canvas.
// Unknown positions are treated as bottom-right. Offsets never go negative.
func WatermarkOffset(pos domain.Position, imgW, imgH, wmW, wmH int) image.Point {
	left := imgW - wmW - WatermarkPadding
	top := imgH - wmH - WatermarkPadding

	switch pos {
	case domain.PositionTopLeft:
		left, top = WatermarkPadding, WatermarkPadding
	case domain.PositionTopRight:
		top = WatermarkPadding
	case domain.PositionBottomLeft:
		left = WatermarkPadding
	case domain.PositionCenter:
		left = floorDiv(imgW-wmW, 2)
		top = floorDiv(imgH-wmH, 2)
	}

	return image.Pt(max(0, left), max(0, top))
}

func watermarkWidth(targetWidth, sizePercent int) int {
	return int(math.Round(float64(targetWidth) * float64(sizePercent) / 100))
}

// opacityAlpha converts a 0-100 opacity into the 0-255 mask value.
func opacityAlpha(opacity int) uint8 {
	opacity = min(100, max(0, opacity))
	return uint8(math.Round(255 * float64(opacity) / 100))
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
