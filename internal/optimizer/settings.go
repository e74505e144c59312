package optimizer

import (
	"context"
	"errors"

	"github.com/edashow/mediaflow/internal/domain"
	"go.uber.org/zap"
)

// SettingsSource yields the singleton image settings. ok is false when no
// row has been saved yet.
type SettingsSource interface {
	Get(ctx context.Context) (settings domain.ImageSettings, ok bool, err error)
}

type OutcomeStatus string

const (
	// OutcomeDisabled tells the caller to serve the original bytes.
	OutcomeDisabled OutcomeStatus = "disabled"
	OutcomeApplied  OutcomeStatus = "applied"
)

type Outcome struct {
	Status OutcomeStatus
	Result *Result
}

func (o Outcome) Applied() bool {
	return o.Status == OutcomeApplied && o.Result != nil
}

var errNoSettingsSource = errors.New("no settings source configured")

// OptionsFromSettings maps persisted settings onto optimize options. The
// watermark is attached only when it is enabled and has a logo.
func OptionsFromSettings(s domain.ImageSettings) Options {
	opts := Options{
		Format:    s.Format,
		Quality:   s.Quality,
		MaxWidth:  s.MaxWidth,
		MaxHeight: s.MaxHeight,
	}
	if s.HasWatermark() {
		opts.Watermark = &Watermark{
			LogoURL:  s.WatermarkLogoURL,
			Position: s.WatermarkPosition,
			Opacity:  s.WatermarkOpacity,
			Size:     s.WatermarkSize,
		}
	}
	return opts
}

// ProcessWithSettings optimizes input using the persisted settings. Missing,
// disabled or unreadable settings produce OutcomeDisabled with a nil error.
func (o *Optimizer) ProcessWithSettings(ctx context.Context, input []byte) (Outcome, error) {
	settings, ok, err := o.loadSettings(ctx)
	if err != nil {
		o.logger.Warn("image settings unavailable, optimization disabled", zap.Error(err))
		return Outcome{Status: OutcomeDisabled}, nil
	}
	if !ok || !settings.Enabled {
		return Outcome{Status: OutcomeDisabled}, nil
	}

	result, err := o.Optimize(ctx, input, OptionsFromSettings(settings))
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Status: OutcomeApplied, Result: &result}, nil
}

func (o *Optimizer) loadSettings(ctx context.Context) (domain.ImageSettings, bool, error) {
	if o.settings == nil {
		return domain.ImageSettings{}, false, errNoSettingsSource
	}
	return o.settings.Get(ctx)
}
