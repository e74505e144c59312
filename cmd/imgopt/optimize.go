package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/edashow/mediaflow/internal/domain"
	"github.com/edashow/mediaflow/internal/optimizer"
	"github.com/edashow/mediaflow/internal/settings"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type optimizeFlags struct {
	input        string
	output       string
	settingsFile string
	format       string
	quality      int
	maxWidth     int
	maxHeight    int
	logoURL      string
	position     string
	opacity      int
	size         int
	logoTimeout  time.Duration
	logoPrivate  bool
}

func newOptimizeCmd(logger func() *zap.Logger) *cobra.Command {
	var f optimizeFlags

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Optimize one image file",
		Long: `Optimize reads --input, applies the given options and writes the result.

With --settings the options come from a YAML settings document instead of flags;
when that document disables optimization the input is copied unchanged.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOptimize(cmd.Context(), cmd, f, logger())
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.input, "input", "i", "", "source image path")
	flags.StringVarP(&f.output, "output", "o", "", "destination path (default: <input>.optimized.<ext>)")
	flags.StringVar(&f.settingsFile, "settings", "", "YAML image settings file; overrides the option flags")
	flags.StringVar(&f.format, "format", string(optimizer.DefaultFormat), "output format: webp, jpeg or png")
	flags.IntVar(&f.quality, "quality", optimizer.DefaultQuality, "encoder quality 1-100")
	flags.IntVar(&f.maxWidth, "max-width", optimizer.DefaultMaxWidth, "bounding box width")
	flags.IntVar(&f.maxHeight, "max-height", optimizer.DefaultMaxHeight, "bounding box height")
	flags.StringVar(&f.logoURL, "watermark-url", "", "logo URL; enables the watermark")
	flags.StringVar(&f.position, "watermark-position", string(domain.PositionBottomRight), "watermark anchor")
	flags.IntVar(&f.opacity, "watermark-opacity", 50, "watermark opacity 0-100")
	flags.IntVar(&f.size, "watermark-size", 15, "watermark width as a percentage of the output width")
	flags.DurationVar(&f.logoTimeout, "logo-timeout", 10*time.Second, "logo download timeout")
	flags.BoolVar(&f.logoPrivate, "logo-allow-private", false, "allow logo URLs on loopback and private networks")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func runOptimize(ctx context.Context, cmd *cobra.Command, f optimizeFlags, logger *zap.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	input, err := os.ReadFile(f.input)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	var fetchOpts []optimizer.LogoFetcherOption
	if f.logoPrivate {
		fetchOpts = append(fetchOpts, optimizer.AllowPrivateNetworks())
	}
	opts := []optimizer.Option{optimizer.WithLogoFetcher(optimizer.NewHTTPLogoFetcher(f.logoTimeout, 0, fetchOpts...))}
	var store *settings.FileStore
	if f.settingsFile != "" {
		store, err = settings.NewFileStore(f.settingsFile, logger)
		if err != nil {
			return err
		}
		opts = append(opts, optimizer.WithSettings(store))
	}
	engine := optimizer.New(logger, opts...)

	var result optimizer.Result
	if store != nil {
		outcome, err := engine.ProcessWithSettings(ctx, input)
		if err != nil {
			return err
		}
		if !outcome.Applied() {
			dst := f.output
			if dst == "" {
				dst = defaultOutput(f.input, strings.TrimPrefix(filepath.Ext(f.input), "."))
			}
			if err := os.WriteFile(dst, input, 0o644); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: optimization disabled, copied to %s\n", f.input, dst)
			return nil
		}
		result = *outcome.Result
	} else {
		explicit, err := f.options()
		if err != nil {
			return err
		}
		result, err = engine.Optimize(ctx, input, explicit)
		if err != nil {
			return err
		}
	}

	dst := f.output
	if dst == "" {
		dst = defaultOutput(f.input, optimizer.Extension(result.Format))
	}
	if err := os.WriteFile(dst, result.Data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%dx%d %s, %d -> %d bytes)\n",
		f.input, dst, result.Width, result.Height, result.Format, len(input), len(result.Data))
	return nil
}

func (f optimizeFlags) options() (optimizer.Options, error) {
	if f.quality < 1 || f.quality > 100 {
		return optimizer.Options{}, errors.New("--quality must be between 1 and 100")
	}
	if f.maxWidth < 1 || f.maxHeight < 1 {
		return optimizer.Options{}, errors.New("--max-width and --max-height must be positive")
	}

	opts := optimizer.Options{
		Format:    domain.ParseFormat(f.format),
		Quality:   f.quality,
		MaxWidth:  f.maxWidth,
		MaxHeight: f.maxHeight,
	}
	if strings.TrimSpace(f.logoURL) == "" {
		return opts, nil
	}
	if f.opacity < 0 || f.opacity > 100 {
		return opts, errors.New("--watermark-opacity must be between 0 and 100")
	}
	if f.size < 1 || f.size > 100 {
		return opts, errors.New("--watermark-size must be between 1 and 100")
	}
	opts.Watermark = &optimizer.Watermark{
		LogoURL:  strings.TrimSpace(f.logoURL),
		Position: domain.Position(strings.ToLower(f.position)),
		Opacity:  f.opacity,
		Size:     f.size,
	}
	return opts, nil
}

func defaultOutput(input, ext string) string {
	base := strings.TrimSuffix(input, filepath.Ext(input)) + ".optimized"
	if ext == "" {
		return base
	}
	return base + "." + ext
}
