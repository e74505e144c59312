// Package optimizer resizes, re-encodes and watermarks images.
package optimizer

import (
	"context"
	"errors"
	"strings"

	"github.com/edashow/mediaflow/internal/domain"
	"go.uber.org/zap"
)

const (
	DefaultFormat    = domain.FormatWebP
	DefaultQuality   = 85
	DefaultMaxWidth  = 1920
	DefaultMaxHeight = 1080
)

var (
	ErrDecode = errors.New("decode source image")
	ErrEncode = errors.New("encode output image")
)

// Options are the effective parameters of one optimize call. Zero values
// select the defaults.
type Options struct {
	Format    domain.Format
	Quality   int
	MaxWidth  int
	MaxHeight int
	Watermark *Watermark
}

type Watermark struct {
	LogoURL  string
	Position domain.Position
	// Opacity is 0-100.
	Opacity int
	// Size is the logo width as a percentage of the output width.
	Size int
}

type Result struct {
	Data        []byte
	Format      domain.Format
	Width       int
	Height      int
	Watermarked bool
}

type Optimizer struct {
	transformer Transformer
	logos       LogoFetcher
	settings    SettingsSource
	logger      *zap.Logger
}

type Option func(*Optimizer)

func WithSettings(src SettingsSource) Option {
	return func(o *Optimizer) { o.settings = src }
}

func WithLogoFetcher(f LogoFetcher) Option {
	return func(o *Optimizer) { o.logos = f }
}

func WithTransformer(t Transformer) Option {
	return func(o *Optimizer) { o.transformer = t }
}

func New(logger *zap.Logger, opts ...Option) *Optimizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Optimizer{
		transformer: newTransformer(),
		logos:       NewHTTPLogoFetcher(0, 0),
		logger:      logger.Named("optimizer"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (opts Options) normalized() Options {
	out := opts
	out.Format = domain.ParseFormat(string(opts.Format))
	if out.Quality <= 0 {
		out.Quality = DefaultQuality
	}
	if out.Quality > 100 {
		out.Quality = 100
	}
	if out.MaxWidth <= 0 {
		out.MaxWidth = DefaultMaxWidth
	}
	if out.MaxHeight <= 0 {
		out.MaxHeight = DefaultMaxHeight
	}
	return out
}

// Optimize decodes input, fits it inside the configured box, optionally
// watermarks it and encodes it in the requested format. Watermark problems are
// logged and never fail the call; decode and encode failures do.
func (o *Optimizer) Optimize(ctx context.Context, input []byte, opts Options) (Result, error) {
	opts = opts.normalized()

	plan := Plan{
		Format:    opts.Format,
		Quality:   opts.Quality,
		MaxWidth:  opts.MaxWidth,
		MaxHeight: opts.MaxHeight,
	}
	if wm := opts.Watermark; wm != nil && strings.TrimSpace(wm.LogoURL) != "" {
		plan.Watermark = o.prepareWatermark(ctx, wm)
	}

	out, err := o.transformer.Transform(ctx, input, plan)
	if err != nil {
		return Result{}, err
	}
	if out.WatermarkErr != nil {
		o.logger.Warn("watermark skipped",
			zap.String("logo_url", opts.Watermark.LogoURL),
			zap.Error(out.WatermarkErr),
		)
	}

	return Result{
		Data:        out.Data,
		Format:      opts.Format,
		Width:       out.Width,
		Height:      out.Height,
		Watermarked: out.Watermarked,
	}, nil
}

func (o *Optimizer) prepareWatermark(ctx context.Context, wm *Watermark) *WatermarkPlan {
	if o.logos == nil {
		return nil
	}
	logo, err := o.logos.FetchLogo(ctx, wm.LogoURL)
	if err != nil {
		o.logger.Warn("watermark logo unavailable",
			zap.String("logo_url", wm.LogoURL),
			zap.Error(err),
		)
		return nil
	}
	return &WatermarkPlan{
		Logo:     logo,
		Position: wm.Position,
		Opacity:  wm.Opacity,
		Size:     wm.Size,
	}
}
