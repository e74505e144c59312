package optimizer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
	"github.com/edashow/mediaflow/internal/domain"
	"github.com/gen2brain/webp"
	_ "golang.org/x/image/webp"
)

// webpMethod trades encode speed for size; 4 is libwebp's default.
const webpMethod = 4

// stdlibTransformer is the cgo-free backend. webp goes through libwebp
// compiled to WebAssembly, so lossy quality behaves as with libvips.
type stdlibTransformer struct{}

func (t stdlibTransformer) Transform(ctx context.Context, input []byte, plan Plan) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}

	src, err := imaging.Decode(bytes.NewReader(input))
	if err != nil {
		return Output{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	bounds := src.Bounds()
	w, h := intrinsicSize(bounds.Dx(), bounds.Dy())
	targetW, targetH := FitInside(w, h, plan.MaxWidth, plan.MaxHeight)

	var canvas image.Image = src
	if targetW != bounds.Dx() || targetH != bounds.Dy() {
		canvas = imaging.Resize(src, targetW, targetH, imaging.Lanczos)
	}

	if err := ctx.Err(); err != nil {
		return Output{}, err
	}

	out := Output{Width: targetW, Height: targetH}
	if plan.Watermark != nil {
		marked, err := watermarkStd(canvas, targetW, targetH, plan.Watermark)
		if err != nil {
			out.WatermarkErr = err
		} else {
			canvas = marked
			out.Watermarked = true
		}
	}

	if err := ctx.Err(); err != nil {
		return Output{}, err
	}

	data, err := encodeStd(canvas, plan.Format, plan.Quality)
	if err != nil {
		return Output{}, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	out.Data = data
	return out, nil
}

func watermarkStd(base image.Image, width, height int, wm *WatermarkPlan) (image.Image, error) {
	logo, err := imaging.Decode(bytes.NewReader(wm.Logo))
	if err != nil {
		return nil, fmt.Errorf("decode logo: %w", err)
	}

	logoW := watermarkWidth(width, wm.Size)
	if logoW < 1 {
		return nil, fmt.Errorf("watermark width rounds to zero (size=%d%%, width=%d)", wm.Size, width)
	}

	resized := imaging.Resize(logo, logoW, 0, imaging.Lanczos)
	if resized.Bounds().Empty() {
		return nil, errors.New("resized logo is empty")
	}
	applyOpacity(resized, opacityAlpha(wm.Opacity))

	lb := resized.Bounds()
	offset := WatermarkOffset(wm.Position, width, height, logoW, lb.Dy())
	return imaging.Overlay(base, resized, offset, 1.0), nil
}

// applyOpacity multiplies every alpha sample by mask/255 (destination-in).
func applyOpacity(img *image.NRGBA, mask uint8) {
	if mask == 255 {
		return
	}
	b := img.Bounds()
	for y := 0; y < b.Dy(); y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+b.Dx()*4]
		for i := 3; i < len(row); i += 4 {
			row[i] = uint8((uint32(row[i])*uint32(mask) + 127) / 255)
		}
	}
}

func encodeStd(img image.Image, format domain.Format, quality int) ([]byte, error) {
	var buf bytes.Buffer

	switch format {
	case domain.FormatJPEG:
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
	case domain.FormatPNG:
		if err := imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression)); err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
	case domain.FormatWebP:
		if err := webp.Encode(&buf, img, webp.Options{Quality: quality, Method: webpMethod}); err != nil {
			return nil, fmt.Errorf("encode webp: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	return buf.Bytes(), nil
}
