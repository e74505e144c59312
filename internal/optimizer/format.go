package optimizer

import "github.com/edashow/mediaflow/internal/domain"

// MimeType returns the content type for a format; unknown values get webp's.
func MimeType(format domain.Format) string {
	switch format {
	case domain.FormatJPEG:
		return "image/jpeg"
	case domain.FormatPNG:
		return "image/png"
	default:
		return "image/webp"
	}
}

// Extension returns the file extension (no dot); unknown values get webp's.
func Extension(format domain.Format) string {
	switch format {
	case domain.FormatJPEG:
		return "jpg"
	case domain.FormatPNG:
		return "png"
	default:
		return "webp"
	}
}
