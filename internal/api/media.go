package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/edashow/mediaflow/internal/domain"
	"github.com/edashow/mediaflow/internal/events"
	"github.com/edashow/mediaflow/internal/id"
	"github.com/edashow/mediaflow/internal/pipeline"
	"github.com/edashow/mediaflow/internal/queue"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var errSourceMissing = errors.New("source object is missing")

func (s *Server) handleCreateMedia(c *gin.Context) {
	var req domain.CreateMediaRequest
	if err := decodeJSON(c, &req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := c.Request.Context()
	now := time.Now().UTC()
	mediaID := id.New()
	sourceType := strings.ToLower(strings.TrimSpace(req.SourceType))
	objectKey := strings.TrimSpace(req.ObjectKey)
	uploadState := "not_required"
	presignedPutURL := ""

	if sourceType == domain.SourceTypeS3Presigned {
		objectKey = fmt.Sprintf("uploads/%s/source", mediaID)
		url, err := s.storage.PresignedPutURL(ctx, objectKey, s.presignTTL)
		if err != nil {
			s.logger.Error("generate presigned url failed", zap.String("media_id", mediaID), zap.Error(err))
			respondError(c, http.StatusInternalServerError, "failed to generate upload URL")
			return
		}
		presignedPutURL = url
		uploadState = "ready"
	}

	media := domain.Media{
		ID:          mediaID,
		Status:      domain.MediaStatusCreated,
		SourceType:  sourceType,
		Filename:    strings.TrimSpace(req.Filename),
		ContentType: strings.TrimSpace(req.ContentType),
		ObjectKey:   objectKey,
		UploadedBy:  strings.TrimSpace(req.UploadedBy),
		WebhookURL:  strings.TrimSpace(req.WebhookURL),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.mediaStore.Create(ctx, media); err != nil {
		s.logger.Error("create media failed", zap.String("media_id", media.ID), zap.Error(err))
		respondError(c, http.StatusInternalServerError, "failed to create media")
		return
	}
	s.publish(ctx, events.TypeMediaCreated, media.ID, media)

	c.JSON(http.StatusAccepted, gin.H{
		"media_id": media.ID,
		"status":   media.Status,
		"upload": gin.H{
			"object_key":          media.ObjectKey,
			"presigned_put_url":   presignedPutURL,
			"presigned_url_state": uploadState,
		},
		"start_url": fmt.Sprintf("/v1/media/%s/start", media.ID),
	})
}

func (s *Server) handleGetMedia(c *gin.Context) {
	media, ok := s.loadMedia(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, media)
}

func (s *Server) handleStartMedia(c *gin.Context) {
	if s.queueClient == nil {
		respondError(c, http.StatusServiceUnavailable, "queue is unavailable")
		return
	}

	media, ok := s.loadMedia(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if media.Status != domain.MediaStatusCreated {
		respondError(c, http.StatusConflict, fmt.Sprintf("media is already %s", media.Status))
		return
	}

	if err := s.verifySourceExists(ctx, media); err != nil {
		status := http.StatusConflict
		switch {
		case errors.Is(err, errSourceMissing):
		case errors.Is(err, pipeline.ErrSourceOutsideRoot):
			status = http.StatusBadRequest
		default:
			s.logger.Warn("source check failed", zap.String("media_id", media.ID), zap.Error(err))
			status = http.StatusBadGateway
		}
		respondError(c, status, err.Error())
		return
	}

	payload := queue.OptimizeMediaPayload{
		MediaID:     media.ID,
		SourceType:  media.SourceType,
		WebhookURL:  media.WebhookURL,
		ObjectKey:   media.ObjectKey,
		RequestedAt: time.Now().UTC(),
	}

	taskInfo, err := s.queueClient.EnqueueOptimizeMedia(ctx, payload)
	if errors.Is(err, queue.ErrAlreadyQueued) {
		respondError(c, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("enqueue failed", zap.String("media_id", media.ID), zap.Error(err))
		respondError(c, http.StatusInternalServerError, "failed to enqueue media")
		return
	}
	s.metrics.queueEnqueued.WithLabelValues(taskInfo.Queue).Inc()

	if _, err := s.mediaStore.UpdateStatus(ctx, media.ID, domain.MediaStatusQueued); err != nil {
		s.logger.Warn("update status failed", zap.String("media_id", media.ID), zap.Error(err))
	}
	s.publish(ctx, events.TypeMediaQueued, media.ID, payload)

	c.JSON(http.StatusAccepted, gin.H{
		"media_id":    media.ID,
		"status":      domain.MediaStatusQueued,
		"queue":       taskInfo.Queue,
		"task_id":     taskInfo.ID,
		"state":       taskInfo.State.String(),
		"enqueued_at": taskInfo.NextProcessAt,
	})
}

func (s *Server) loadMedia(c *gin.Context) (domain.Media, bool) {
	mediaID := strings.TrimSpace(c.Param("id"))
	if !id.Valid(mediaID) {
		respondError(c, http.StatusBadRequest, "invalid media id")
		return domain.Media{}, false
	}

	media, ok, err := s.mediaStore.Get(c.Request.Context(), mediaID)
	if err != nil {
		s.logger.Error("fetch media failed", zap.String("media_id", mediaID), zap.Error(err))
		respondError(c, http.StatusInternalServerError, "failed to load media")
		return domain.Media{}, false
	}
	if !ok {
		respondError(c, http.StatusNotFound, "media not found")
		return domain.Media{}, false
	}
	return media, true
}

func (s *Server) verifySourceExists(ctx context.Context, media domain.Media) error {
	var (
		exists bool
		err    error
	)
	switch media.SourceType {
	case domain.SourceTypeLocalFile:
		exists, err = s.localSources.Exists(media.ObjectKey)
	default:
		exists, err = s.storage.ObjectExists(ctx, media.ObjectKey)
	}
	if err != nil {
		return fmt.Errorf("source object check failed: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", errSourceMissing, media.ObjectKey)
	}
	return nil
}

func (s *Server) publish(ctx context.Context, eventType, mediaID string, data any) {
	if err := s.publisher.Publish(ctx, events.Event{Type: eventType, MediaID: mediaID, Data: data}); err != nil {
		s.logger.Warn("event publish failed",
			zap.String("media_id", mediaID),
			zap.String("type", eventType),
			zap.Error(err),
		)
	}
}
