//go:build govips && cgo

package optimizer

import (
	"context"
	"errors"
	"fmt"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/edashow/mediaflow/internal/domain"
)

type govipsTransformer struct{}

func (t govipsTransformer) Transform(ctx context.Context, input []byte, plan Plan) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}

	img, err := vips.NewImageFromBuffer(input)
	if err != nil {
		return Output{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	defer img.Close()

	w, h := intrinsicSize(img.Width(), img.Height())
	targetW, targetH := FitInside(w, h, plan.MaxWidth, plan.MaxHeight)
	if targetW != img.Width() || targetH != img.Height() {
		hscale := float64(targetW) / float64(w)
		vscale := float64(targetH) / float64(h)
		if err := img.ResizeWithVScale(hscale, vscale, vips.KernelLanczos3); err != nil {
			return Output{}, fmt.Errorf("resize image: %w", err)
		}
	}

	if err := ctx.Err(); err != nil {
		return Output{}, err
	}

	out := Output{Width: targetW, Height: targetH}
	if plan.Watermark != nil {
		if err := watermarkGovips(img, targetW, targetH, plan.Watermark); err != nil {
			out.WatermarkErr = err
		} else {
			out.Watermarked = true
		}
	}

	if err := ctx.Err(); err != nil {
		return Output{}, err
	}

	data, err := exportGovips(img, plan.Format, plan.Quality)
	if err != nil {
		return Output{}, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	out.Data = data
	return out, nil
}

// watermarkGovips composites the logo in place. On error the base image has
// not been modified.
func watermarkGovips(base *vips.ImageRef, width, height int, wm *WatermarkPlan) error {
	logo, err := vips.NewImageFromBuffer(wm.Logo)
	if err != nil {
		return fmt.Errorf("decode logo: %w", err)
	}
	defer logo.Close()

	logoW := watermarkWidth(width, wm.Size)
	if logoW < 1 {
		return fmt.Errorf("watermark width rounds to zero (size=%d%%, width=%d)", wm.Size, width)
	}
	if logo.Width() <= 0 {
		return errors.New("logo has invalid width")
	}
	if err := logo.Resize(float64(logoW)/float64(logo.Width()), vips.KernelLanczos3); err != nil {
		return fmt.Errorf("resize logo: %w", err)
	}

	if !logo.HasAlpha() {
		if err := logo.AddAlpha(); err != nil {
			return fmt.Errorf("add logo alpha: %w", err)
		}
	}

	bands := logo.Bands()
	scale := make([]float64, bands)
	offset := make([]float64, bands)
	for i := range scale {
		scale[i] = 1
	}
	scale[bands-1] = float64(opacityAlpha(wm.Opacity)) / 255
	if err := logo.Linear(scale, offset); err != nil {
		return fmt.Errorf("apply logo opacity: %w", err)
	}

	pos := WatermarkOffset(wm.Position, width, height, logoW, logo.Height())
	if err := base.Composite(logo, vips.BlendModeOver, pos.X, pos.Y); err != nil {
		return fmt.Errorf("composite logo: %w", err)
	}
	return nil
}

func exportGovips(img *vips.ImageRef, format domain.Format, quality int) ([]byte, error) {
	switch format {
	case domain.FormatJPEG:
		params := vips.NewJpegExportParams()
		params.Quality = quality
		params.OptimizeCoding = true
		params.TrellisQuant = true
		params.OvershootDeringing = true
		params.OptimizeScans = true
		params.Interlace = true
		data, _, err := img.ExportJpeg(params)
		if err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
		return data, nil
	case domain.FormatPNG:
		params := vips.NewPngExportParams()
		params.Quality = quality
		params.Compression = 9
		data, _, err := img.ExportPng(params)
		if err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
		return data, nil
	case domain.FormatWebP:
		params := vips.NewWebpExportParams()
		params.Quality = quality
		data, _, err := img.ExportWebp(params)
		if err != nil {
			return nil, fmt.Errorf("encode webp: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}
