package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/edashow/mediaflow/internal/domain"
	"github.com/edashow/mediaflow/internal/optimizer"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	headerImageWidth   = "X-Image-Width"
	headerImageHeight  = "X-Image-Height"
	headerOptimization = "X-Image-Optimization"

	modeSettings = "settings"
	modeExplicit = "explicit"

	uploadField = "image"
)

// handleOptimizeImage optimizes one uploaded image synchronously. With
// mode=settings the persisted settings decide; when they disable optimization
// the original bytes are echoed back.
func (s *Server) handleOptimizeImage(c *gin.Context) {
	if s.optimizer == nil {
		respondError(c, http.StatusServiceUnavailable, "optimizer is unavailable")
		return
	}

	if c.Request.ContentLength > s.maxUploadBytes {
		respondError(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("image exceeds %d bytes", s.maxUploadBytes))
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUploadBytes)
	input, contentType, err := readUpload(c)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("image exceeds %d bytes", s.maxUploadBytes))
			return
		}
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	mode := strings.ToLower(strings.TrimSpace(c.DefaultPostForm("mode", modeSettings)))
	ctx := c.Request.Context()

	var result optimizer.Result
	switch mode {
	case modeSettings:
		outcome, err := s.optimizer.ProcessWithSettings(ctx, input)
		if err != nil {
			s.optimizeFailed(c, mode, err)
			return
		}
		if !outcome.Applied() {
			s.metrics.optimizeTotal.WithLabelValues(mode, string(optimizer.OutcomeDisabled)).Inc()
			c.Header(headerOptimization, string(optimizer.OutcomeDisabled))
			c.Data(http.StatusOK, contentType, input)
			return
		}
		result = *outcome.Result
	case modeExplicit:
		opts, err := explicitOptions(c)
		if err != nil {
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}
		result, err = s.optimizer.Optimize(ctx, input, opts)
		if err != nil {
			s.optimizeFailed(c, mode, err)
			return
		}
	default:
		respondError(c, http.StatusBadRequest, fmt.Sprintf("unsupported mode: %s", mode))
		return
	}

	s.metrics.optimizeTotal.WithLabelValues(mode, string(optimizer.OutcomeApplied)).Inc()
	c.Header(headerOptimization, string(optimizer.OutcomeApplied))
	c.Header(headerImageWidth, strconv.Itoa(result.Width))
	c.Header(headerImageHeight, strconv.Itoa(result.Height))
	if result.Watermarked {
		c.Header("X-Image-Watermarked", "true")
	}
	c.Data(http.StatusOK, optimizer.MimeType(result.Format), result.Data)
}

func (s *Server) optimizeFailed(c *gin.Context, mode string, err error) {
	s.metrics.optimizeTotal.WithLabelValues(mode, "error").Inc()
	switch {
	case errors.Is(err, optimizer.ErrDecode):
		respondError(c, http.StatusUnprocessableEntity, "image could not be decoded")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respondError(c, http.StatusServiceUnavailable, "request cancelled")
	default:
		s.logger.Error("optimize failed", zap.String("mode", mode), zap.Error(err))
		respondError(c, http.StatusInternalServerError, "failed to optimize image")
	}
}

func readUpload(c *gin.Context) ([]byte, string, error) {
	file, header, err := c.Request.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", err
		}
		return nil, "", fmt.Errorf("multipart field %q is required", uploadField)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, "", errors.New("uploaded image is empty")
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

// explicitOptions reads optimize options from form fields. Empty fields keep
// the optimizer defaults.
func explicitOptions(c *gin.Context) (optimizer.Options, error) {
	var opts optimizer.Options
	var err error

	if raw := strings.TrimSpace(c.PostForm("format")); raw != "" {
		opts.Format = domain.ParseFormat(raw)
	}
	if opts.Quality, err = formInt(c, "quality", 1, 100); err != nil {
		return opts, err
	}
	if opts.MaxWidth, err = formInt(c, "max_width", 1, 0); err != nil {
		return opts, err
	}
	if opts.MaxHeight, err = formInt(c, "max_height", 1, 0); err != nil {
		return opts, err
	}

	logoURL := strings.TrimSpace(c.PostForm("watermark_url"))
	if logoURL == "" {
		return opts, nil
	}
	wm := &optimizer.Watermark{
		LogoURL:  logoURL,
		Position: domain.Position(strings.ToLower(strings.TrimSpace(c.DefaultPostForm("watermark_position", string(domain.PositionBottomRight))))),
		Opacity:  50,
		Size:     15,
	}
	if v, err := formInt(c, "watermark_opacity", 0, 100); err != nil {
		return opts, err
	} else if c.PostForm("watermark_opacity") != "" {
		wm.Opacity = v
	}
	if v, err := formInt(c, "watermark_size", 1, 100); err != nil {
		return opts, err
	} else if v > 0 {
		wm.Size = v
	}
	opts.Watermark = wm
	return opts, nil
}

// formInt parses an optional integer form field. A zero max means unbounded;
// an empty field yields 0.
func formInt(c *gin.Context, field string, lo, hi int) (int, error) {
	raw := strings.TrimSpace(c.PostForm(field))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", field)
	}
	if v < lo || (hi > 0 && v > hi) {
		if hi > 0 {
			return 0, fmt.Errorf("%s must be between %d and %d", field, lo, hi)
		}
		return 0, fmt.Errorf("%s must be at least %d", field, lo)
	}
	return v, nil
}
