package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/edashow/mediaflow/internal/events"
	"github.com/edashow/mediaflow/internal/optimizer"
	"github.com/edashow/mediaflow/internal/pipeline"
	"github.com/edashow/mediaflow/internal/queue"
	"github.com/edashow/mediaflow/internal/settings"
	"github.com/edashow/mediaflow/internal/store"
	"github.com/edashow/mediaflow/internal/youtube"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const defaultMaxUploadBytes = 25 << 20

type Server struct {
	logger         *zap.Logger
	engine         *gin.Engine
	queueClient    queueEnqueuer
	mediaStore     store.MediaStore
	storage        objectStorage
	localSources   localSources
	optimizer      imageOptimizer
	settings       settings.Store
	youtube        youtube.Service
	publisher      events.Publisher
	rateLimiter    RateLimiter
	metrics        *metrics
	tracer         trace.Tracer
	presignTTL     time.Duration
	maxUploadBytes int64
	corsOrigins    []string
}

type queueEnqueuer interface {
	EnqueueOptimizeMedia(ctx context.Context, payload queue.OptimizeMediaPayload) (*asynq.TaskInfo, error)
}

type objectStorage interface {
	PresignedPutURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error)
	ObjectExists(ctx context.Context, objectKey string) (bool, error)
}

type localSources interface {
	Exists(key string) (bool, error)
}

type imageOptimizer interface {
	Optimize(ctx context.Context, input []byte, opts optimizer.Options) (optimizer.Result, error)
	ProcessWithSettings(ctx context.Context, input []byte) (optimizer.Outcome, error)
}

// Options wires the server's collaborators. Only MediaStore, Optimizer and
// Settings are required; missing collaborators disable their routes.
type Options struct {
	Queue          queueEnqueuer
	MediaStore     store.MediaStore
	Storage        objectStorage
	LocalInputDir  string
	Optimizer      imageOptimizer
	Settings       settings.Store
	YouTube        youtube.Service
	Publisher      events.Publisher
	RateLimiter    RateLimiter
	PresignTTL     time.Duration
	MaxUploadBytes int64
	CORSOrigins    []string
}

func NewServer(logger *zap.Logger, opts Options) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.PresignTTL <= 0 {
		opts.PresignTTL = 15 * time.Minute
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	if opts.Storage == nil {
		opts.Storage = unavailableObjectStorage{}
	}
	if opts.Publisher == nil {
		opts.Publisher = events.Nop{}
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}

	s := &Server{
		logger:         logger.Named("api"),
		queueClient:    opts.Queue,
		mediaStore:     opts.MediaStore,
		storage:        opts.Storage,
		localSources:   pipeline.LocalFileFetcher{BaseDir: opts.LocalInputDir},
		optimizer:      opts.Optimizer,
		settings:       opts.Settings,
		youtube:        opts.YouTube,
		publisher:      opts.Publisher,
		rateLimiter:    opts.RateLimiter,
		metrics:        newMetrics(),
		tracer:         otel.Tracer("mediaflow/api"),
		presignTTL:     opts.PresignTTL,
		maxUploadBytes: opts.MaxUploadBytes,
		corsOrigins:    opts.CORSOrigins,
	}
	s.engine = s.routes()
	return s
}

type unavailableObjectStorage struct{}

func (unavailableObjectStorage) PresignedPutURL(_ context.Context, _ string, _ time.Duration) (string, error) {
	return "", errors.New("object storage is unavailable")
}

func (unavailableObjectStorage) ObjectExists(_ context.Context, _ string) (bool, error) {
	return false, errors.New("object storage is unavailable")
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(
		s.withRecovery(),
		s.withRequestLogging(),
		cors.New(s.corsConfig()),
		s.withTracing(),
		s.metrics.withHTTPMetrics(),
	)

	router.GET("/healthz", s.handleHealthz)
	router.GET("/metrics", gin.WrapH(s.metrics.metricsHandler()))

	v1 := router.Group("/v1")
	v1.Use(s.withRateLimit())
	{
		v1.POST("/images/optimize", s.handleOptimizeImage)

		v1.POST("/media", s.handleCreateMedia)
		v1.GET("/media/:id", s.handleGetMedia)
		v1.POST("/media/:id/start", s.handleStartMedia)

		v1.GET("/settings/image", s.handleGetSettings)
		v1.PUT("/settings/image", s.handlePutSettings)

		v1.GET("/youtube/channel", s.handleYouTubeChannel)
		v1.GET("/youtube/channels/:id/videos", s.handleYouTubeVideos)
		v1.GET("/youtube/videos/:id", s.handleYouTubeVideo)
	}

	return router
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", userIDHeader},
		ExposeHeaders: []string{"Content-Length", headerImageWidth, headerImageHeight, headerOptimization, "X-RateLimit-Remaining", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	for _, origin := range s.corsOrigins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = s.corsOrigins
	return cfg
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"backend": optimizer.BackendName(),
	})
}

func respondError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}
