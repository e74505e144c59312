package optimizer

import (
	"context"

	"github.com/edashow/mediaflow/internal/domain"
)

// Plan is a normalized optimize request handed to a codec backend.
type Plan struct {
	Format    domain.Format
	Quality   int
	MaxWidth  int
	MaxHeight int
	Watermark *WatermarkPlan
}

// WatermarkPlan carries an already fetched logo.
type WatermarkPlan struct {
	Logo     []byte
	Position domain.Position
	Opacity  int
	Size     int
}

// Output is what a backend produced. WatermarkErr is set when the watermark
// stage was abandoned; Data is still valid in that case.
type Output struct {
	Data         []byte
	Width        int
	Height       int
	Watermarked  bool
	WatermarkErr error
}

type Transformer interface {
	Transform(ctx context.Context, input []byte, plan Plan) (Output, error)
}
