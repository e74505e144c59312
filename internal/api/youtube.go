package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/edashow/mediaflow/internal/youtube"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (s *Server) handleYouTubeChannel(c *gin.Context) {
	if !s.youtubeReady(c) {
		return
	}
	channelURL := strings.TrimSpace(c.Query("url"))
	if channelURL == "" {
		respondError(c, http.StatusBadRequest, "url query parameter is required")
		return
	}

	overview, err := s.youtube.ChannelOverview(c.Request.Context(), channelURL, videoLimit(c))
	if err != nil {
		s.youtubeFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, overview)
}

func (s *Server) handleYouTubeVideos(c *gin.Context) {
	if !s.youtubeReady(c) {
		return
	}
	videos, err := s.youtube.LatestVideos(c.Request.Context(), c.Param("id"), videoLimit(c))
	if err != nil {
		s.youtubeFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"videos": videos})
}

func (s *Server) handleYouTubeVideo(c *gin.Context) {
	if !s.youtubeReady(c) {
		return
	}
	video, err := s.youtube.VideoDetails(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.youtubeFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, video)
}

func (s *Server) youtubeReady(c *gin.Context) bool {
	if s.youtube == nil {
		respondError(c, http.StatusServiceUnavailable, "youtube integration is not configured")
		return false
	}
	return true
}

func (s *Server) youtubeFailed(c *gin.Context, err error) {
	switch {
	case errors.Is(err, youtube.ErrChannelNotFound), errors.Is(err, youtube.ErrVideoNotFound):
		respondError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, youtube.ErrMissingAPIKey):
		respondError(c, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Warn("youtube request failed", zap.String("route", routeLabel(c)), zap.Error(err))
		respondError(c, http.StatusBadGateway, "youtube request failed")
	}
}

func videoLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", ""))
	if err != nil {
		return youtube.DefaultVideoLimit
	}
	return limit
}
