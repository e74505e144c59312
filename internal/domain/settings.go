package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Format is an output encoding supported by the optimizer.
type Format string

const (
	FormatWebP Format = "webp"
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
)

// ParseFormat maps user input onto a Format. Anything unrecognised becomes webp.
func ParseFormat(in string) Format {
	switch strings.ToLower(strings.TrimSpace(in)) {
	case "jpeg", "jpg":
		return FormatJPEG
	case "png":
		return FormatPNG
	default:
		return FormatWebP
	}
}

func (f Format) Valid() bool {
	switch f {
	case FormatWebP, FormatJPEG, FormatPNG:
		return true
	}
	return false
}

// Position anchors a watermark on the output image.
type Position string

const (
	PositionTopLeft     Position = "top-left"
	PositionTopRight    Position = "top-right"
	PositionBottomLeft  Position = "bottom-left"
	PositionBottomRight Position = "bottom-right"
	PositionCenter      Position = "center"
)

func (p Position) Valid() bool {
	switch p {
	case PositionTopLeft, PositionTopRight, PositionBottomLeft, PositionBottomRight, PositionCenter:
		return true
	}
	return false
}

// SettingsID is the primary key of the singleton settings row.
const SettingsID = "default"

// ImageSettings is the persisted, deployment-wide optimizer configuration.
// Watermark fields only matter when WatermarkEnabled is set.
type ImageSettings struct {
	ID                string    `json:"id" yaml:"id"`
	Enabled           bool      `json:"enabled" yaml:"enabled"`
	Format            Format    `json:"format" yaml:"format"`
	Quality           int       `json:"quality" yaml:"quality"`
	MaxWidth          int       `json:"max_width" yaml:"max_width"`
	MaxHeight         int       `json:"max_height" yaml:"max_height"`
	WatermarkEnabled  bool      `json:"watermark_enabled" yaml:"watermark_enabled"`
	WatermarkLogoURL  string    `json:"watermark_logo_url,omitempty" yaml:"watermark_logo_url,omitempty"`
	WatermarkPosition Position  `json:"watermark_position" yaml:"watermark_position"`
	WatermarkOpacity  int       `json:"watermark_opacity" yaml:"watermark_opacity"`
	WatermarkSize     int       `json:"watermark_size" yaml:"watermark_size"`
	UpdatedAt         time.Time `json:"updated_at" yaml:"updated_at,omitempty"`
}

// DefaultImageSettings mirrors the values the admin form starts from.
func DefaultImageSettings() ImageSettings {
	return ImageSettings{
		ID:                SettingsID,
		Enabled:           false,
		Format:            FormatWebP,
		Quality:           85,
		MaxWidth:          1920,
		MaxHeight:         1080,
		WatermarkPosition: PositionBottomRight,
		WatermarkOpacity:  50,
		WatermarkSize:     15,
	}
}

// HasWatermark reports whether a watermark should be attached to optimize calls.
func (s ImageSettings) HasWatermark() bool {
	return s.WatermarkEnabled && strings.TrimSpace(s.WatermarkLogoURL) != ""
}

func (s ImageSettings) Validate() error {
	if !s.Format.Valid() {
		return fmt.Errorf("unsupported format: %q", s.Format)
	}
	if s.Quality < 1 || s.Quality > 100 {
		return errors.New("quality must be between 1 and 100")
	}
	if s.MaxWidth < 1 {
		return errors.New("max_width must be positive")
	}
	if s.MaxHeight < 1 {
		return errors.New("max_height must be positive")
	}
	if !s.WatermarkEnabled {
		return nil
	}
	if !s.WatermarkPosition.Valid() {
		return fmt.Errorf("unsupported watermark_position: %q", s.WatermarkPosition)
	}
	if s.WatermarkOpacity < 0 || s.WatermarkOpacity > 100 {
		return errors.New("watermark_opacity must be between 0 and 100")
	}
	if s.WatermarkSize < 1 || s.WatermarkSize > 100 {
		return errors.New("watermark_size must be between 1 and 100")
	}
	return nil
}
