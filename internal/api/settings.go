package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/edashow/mediaflow/internal/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// handleGetSettings returns the saved settings, or the form defaults with
// saved=false when nothing has been stored yet.
func (s *Server) handleGetSettings(c *gin.Context) {
	if s.settings == nil {
		respondError(c, http.StatusServiceUnavailable, "settings store is unavailable")
		return
	}

	current, ok, err := s.settings.Get(c.Request.Context())
	if err != nil {
		s.logger.Error("load settings failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "failed to load settings")
		return
	}
	if !ok {
		current = domain.DefaultImageSettings()
	}
	c.JSON(http.StatusOK, gin.H{
		"saved":    ok,
		"settings": current,
	})
}

func (s *Server) handlePutSettings(c *gin.Context) {
	if s.settings == nil {
		respondError(c, http.StatusServiceUnavailable, "settings store is unavailable")
		return
	}

	next := domain.DefaultImageSettings()
	if err := decodeJSON(c, &next); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	next.ID = domain.SettingsID
	if err := next.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := c.Request.Context()
	if err := s.settings.Save(ctx, next); err != nil {
		s.logger.Error("save settings failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "failed to save settings")
		return
	}

	saved, ok, err := s.settings.Get(ctx)
	if err != nil || !ok {
		saved = next
	}
	s.logger.Info("image settings updated",
		zap.Bool("enabled", saved.Enabled),
		zap.String("format", string(saved.Format)),
		zap.Bool("watermark", saved.HasWatermark()),
	)
	c.JSON(http.StatusOK, gin.H{
		"saved":    true,
		"settings": saved,
	})
}

// decodeJSON decodes exactly one JSON value and rejects unknown fields.
func decodeJSON(c *gin.Context, into any) error {
	const maxBodyBytes = 1 << 20
	decoder := json.NewDecoder(io.LimitReader(c.Request.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(into); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("invalid JSON body: multiple JSON values are not allowed")
	}
	return nil
}
