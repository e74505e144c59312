package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/edashow/mediaflow/internal/config"
	"github.com/edashow/mediaflow/internal/domain"
	"github.com/edashow/mediaflow/internal/events"
	"github.com/edashow/mediaflow/internal/optimizer"
	"github.com/edashow/mediaflow/internal/pipeline"
	"github.com/edashow/mediaflow/internal/queue"
	"github.com/edashow/mediaflow/internal/storage"
	"github.com/edashow/mediaflow/internal/store"
	"github.com/edashow/mediaflow/internal/webhook"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	outcomeOptimized = domain.MediaStatusOptimized
	outcomeSkipped   = domain.MediaStatusSkipped
	outcomeFailed    = domain.MediaStatusFailed
	outcomeRetry     = "retry"
)

type Server struct {
	logger          *zap.Logger
	server          *asynq.Server
	sem             chan struct{}
	localProcessor  processor
	objectProcessor processor
	webhookClient   webhookSender
	publisher       events.Publisher
	mediaStore      store.MediaStore
	logStore        store.OptimizationLogStore
	metrics         *metrics
	tracer          trace.Tracer
}

type processor interface {
	Process(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
}

type webhookSender interface {
	Send(ctx context.Context, endpoint string, delivery webhook.Delivery) error
}

type Deps struct {
	ObjectStore   storage.ObjectStore
	Engine        pipeline.Engine
	WebhookClient *webhook.Client
	Publisher     events.Publisher
	MediaStore    store.MediaStore
	LogStore      store.OptimizationLogStore
}

func NewServer(logger *zap.Logger, queueCfg config.QueueConfig, workerCfg config.WorkerConfig, deps Deps) (*Server, error) {
	if deps.ObjectStore == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("optimizer is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("worker")

	localProcessor, err := pipeline.NewLocalProcessor(workerCfg.LocalInputDir, workerCfg.LocalOutputDir, deps.Engine)
	if err != nil {
		return nil, fmt.Errorf("initialize local processor: %w", err)
	}

	objectProcessor, err := pipeline.NewObjectStoreProcessor(deps.ObjectStore, deps.Engine)
	if err != nil {
		return nil, fmt.Errorf("initialize object-store processor: %w", err)
	}

	logStore := deps.LogStore
	if logStore == nil {
		if both, ok := deps.MediaStore.(store.OptimizationLogStore); ok {
			logStore = both
		}
	}

	publisher := deps.Publisher
	if publisher == nil {
		publisher = events.Nop{}
	}

	s := &Server{
		logger: logger,
		server: asynq.NewServer(
			queueCfg.RedisClientOpt(),
			asynq.Config{
				Concurrency: workerCfg.Concurrency,
				Queues: map[string]int{
					queueCfg.Name: 1,
				},
				LogLevel: asynq.WarnLevel,
				ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
					retried, _ := asynq.GetRetryCount(ctx)
					maxRetry, _ := asynq.GetMaxRetry(ctx)
					logger.Warn("task failed",
						zap.String("type", task.Type()),
						zap.Int("retry", retried),
						zap.Int("max_retry", maxRetry),
						zap.Error(err),
					)
				}),
			},
		),
		sem:             make(chan struct{}, max(1, workerCfg.MaxActiveJobs)),
		localProcessor:  localProcessor,
		objectProcessor: objectProcessor,
		publisher:       publisher,
		mediaStore:      deps.MediaStore,
		logStore:        logStore,
		metrics:         newMetrics(),
		tracer:          otel.Tracer("mediaflow/worker"),
	}
	if deps.WebhookClient != nil {
		s.webhookClient = deps.WebhookClient
	}
	return s, nil
}

// Run blocks until the process receives SIGTERM or SIGINT.
func (s *Server) Run() error {
	return s.server.Run(s.mux())
}

// Start begins processing in the background; pair it with Shutdown.
func (s *Server) Start() error {
	return s.server.Start(s.mux())
}

func (s *Server) mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeOptimizeMedia, s.handleOptimizeMedia)
	return mux
}

func (s *Server) Shutdown() {
	s.server.Shutdown()
}

func (s *Server) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

func (s *Server) handleOptimizeMedia(ctx context.Context, task *asynq.Task) error {
	startedAt := time.Now()
	outcome := outcomeFailed

	payload, err := queue.ParseOptimizeMediaPayload(task)
	if err != nil {
		return fmt.Errorf("parse payload: %v: %w", err, asynq.SkipRetry)
	}

	ctx, span := s.tracer.Start(ctx, "worker.optimize_media", trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.String("media.id", payload.MediaID),
		attribute.String("media.source_type", payload.SourceType),
	)
	defer span.End()
	defer func() {
		s.metrics.mediaDuration.WithLabelValues(payload.SourceType, outcome).Observe(time.Since(startedAt).Seconds())
		s.metrics.mediaTotal.WithLabelValues(payload.SourceType, outcome).Inc()
	}()

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		outcome = outcomeRetry
		return ctx.Err()
	}
	s.metrics.activeJobs.Inc()
	defer func() {
		<-s.sem
		s.metrics.activeJobs.Dec()
	}()

	media, found := s.loadMedia(ctx, payload.MediaID)
	if found && media.Terminal() {
		s.logger.Info("media already processed, dropping task",
			zap.String("media_id", payload.MediaID),
			zap.String("status", media.Status),
		)
		outcome = media.Status
		return nil
	}

	s.logger.Info("optimizing media",
		zap.String("media_id", payload.MediaID),
		zap.String("source_type", payload.SourceType),
		zap.String("object_key", payload.ObjectKey),
	)
	s.updateStatus(ctx, payload.MediaID, domain.MediaStatusProcessing)

	request := pipeline.Request{
		MediaID:    payload.MediaID,
		SourceType: payload.SourceType,
		ObjectKey:  payload.ObjectKey,
	}

	var result pipeline.Result
	switch payload.SourceType {
	case domain.SourceTypeLocalFile:
		result, err = s.localProcessor.Process(ctx, request)
	default:
		result, err = s.objectProcessor.Process(ctx, request)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pipeline failed")

		if !finalAttempt(ctx, err) {
			outcome = outcomeRetry
			s.updateStatus(ctx, payload.MediaID, domain.MediaStatusQueued)
			return fmt.Errorf("run pipeline: %w", err)
		}

		s.complete(ctx, payload.MediaID, store.Completion{
			Status:        domain.MediaStatusFailed,
			OriginalBytes: int64(result.SourceBytes),
			Error:         err.Error(),
		})
		s.notify(ctx, payload, webhook.EventMediaFailed, events.TypeMediaFailed, map[string]any{
			"media_id":     payload.MediaID,
			"status":       domain.MediaStatusFailed,
			"source_type":  payload.SourceType,
			"object_key":   payload.ObjectKey,
			"requested_at": payload.RequestedAt,
			"error":        err.Error(),
		})
		if errors.Is(err, optimizer.ErrDecode) {
			return fmt.Errorf("run pipeline: %v: %w", err, asynq.SkipRetry)
		}
		return fmt.Errorf("run pipeline: %w", err)
	}

	if result.Skipped {
		outcome = outcomeSkipped
		s.complete(ctx, payload.MediaID, store.Completion{
			Status:        domain.MediaStatusSkipped,
			OriginalBytes: int64(result.SourceBytes),
		})
		s.notify(ctx, payload, webhook.EventMediaSkipped, events.TypeMediaSkipped, map[string]any{
			"media_id":     payload.MediaID,
			"status":       domain.MediaStatusSkipped,
			"object_key":   payload.ObjectKey,
			"requested_at": payload.RequestedAt,
			"reason":       "optimization disabled",
		})
		span.SetStatus(codes.Ok, "skipped")
		return nil
	}

	out := result.Output
	s.logger.Info("media optimized",
		zap.String("media_id", payload.MediaID),
		zap.String("optimized_key", out.Key),
		zap.Int("width", out.Width),
		zap.Int("height", out.Height),
		zap.Int("source_bytes", result.SourceBytes),
		zap.Int("output_bytes", out.Bytes),
	)
	s.complete(ctx, payload.MediaID, store.Completion{
		Status:         domain.MediaStatusOptimized,
		OptimizedKey:   out.Key,
		Format:         out.Format,
		Width:          out.Width,
		Height:         out.Height,
		OriginalBytes:  int64(result.SourceBytes),
		OptimizedBytes: int64(out.Bytes),
	})
	if out.Watermarked {
		s.metrics.watermarkedTotal.Inc()
	}
	s.recordUsage(ctx, media, payload.MediaID, result, time.Since(startedAt))

	s.notify(ctx, payload, webhook.EventMediaOptimized, events.TypeMediaOptimized, map[string]any{
		"media_id":      payload.MediaID,
		"status":        domain.MediaStatusOptimized,
		"object_key":    payload.ObjectKey,
		"optimized_key": out.Key,
		"format":        out.Format,
		"mime_type":     out.MimeType,
		"width":         out.Width,
		"height":        out.Height,
		"bytes":         out.Bytes,
		"watermarked":   out.Watermarked,
		"requested_at":  payload.RequestedAt,
		"completed_at":  time.Now().UTC(),
	})

	outcome = outcomeOptimized
	span.SetStatus(codes.Ok, "optimized")
	return nil
}

// finalAttempt reports whether a failed task will not be retried. Undecodable
// input never succeeds on retry.
func finalAttempt(ctx context.Context, err error) bool {
	if errors.Is(err, optimizer.ErrDecode) {
		return true
	}
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return true
	}
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	return retried >= maxRetry
}

func (s *Server) loadMedia(ctx context.Context, mediaID string) (domain.Media, bool) {
	if s.mediaStore == nil {
		return domain.Media{}, false
	}
	media, ok, err := s.mediaStore.Get(ctx, mediaID)
	if err != nil {
		s.logger.Warn("media lookup failed", zap.String("media_id", mediaID), zap.Error(err))
		return domain.Media{}, false
	}
	return media, ok
}

func (s *Server) updateStatus(ctx context.Context, mediaID, status string) {
	if s.mediaStore == nil {
		return
	}
	if _, err := s.mediaStore.UpdateStatus(ctx, mediaID, status); err != nil {
		s.logger.Warn("media status update failed",
			zap.String("media_id", mediaID),
			zap.String("status", status),
			zap.Error(err),
		)
	}
}

func (s *Server) complete(ctx context.Context, mediaID string, c store.Completion) {
	if s.mediaStore == nil {
		return
	}
	if _, err := s.mediaStore.Complete(ctx, mediaID, c); err != nil {
		s.logger.Warn("media completion write failed",
			zap.String("media_id", mediaID),
			zap.String("status", c.Status),
			zap.Error(err),
		)
	}
}

// notify delivers the per-media webhook and the lifecycle event. Both are
// best effort; the optimized object is already stored.
func (s *Server) notify(ctx context.Context, payload queue.OptimizeMediaPayload, hookEvent, eventType string, body map[string]any) {
	if payload.WebhookURL != "" && s.webhookClient != nil {
		err := s.webhookClient.Send(ctx, payload.WebhookURL, webhook.Delivery{
			Event:   hookEvent,
			MediaID: payload.MediaID,
			Data:    body,
		})
		if err != nil {
			s.metrics.webhookFailuresTotal.Inc()
			s.logger.Warn("webhook delivery failed",
				zap.String("media_id", payload.MediaID),
				zap.String("event", hookEvent),
				zap.Error(err),
			)
		}
	}

	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events.Event{Type: eventType, MediaID: payload.MediaID, Data: body}); err != nil {
		s.logger.Warn("event publish failed",
			zap.String("media_id", payload.MediaID),
			zap.String("type", eventType),
			zap.Error(err),
		)
	}
}

func (s *Server) recordUsage(ctx context.Context, media domain.Media, mediaID string, result pipeline.Result, computeDuration time.Duration) {
	if s.logStore == nil {
		return
	}

	uploader := "anonymous"
	if strings.TrimSpace(media.UploadedBy) != "" {
		uploader = media.UploadedBy
	}

	pixelsProcessed := int64(result.Output.Width) * int64(result.Output.Height)

	bytesSaved := int64(result.SourceBytes - result.Output.Bytes)
	if bytesSaved < 0 {
		bytesSaved = 0
	}

	computeTimeMS := computeDuration.Milliseconds()
	if computeTimeMS < 1 {
		computeTimeMS = 1
	}

	entry := domain.OptimizationLog{
		MediaID:         mediaID,
		UploadedBy:      uploader,
		PixelsProcessed: pixelsProcessed,
		BytesSaved:      bytesSaved,
		ComputeTimeMS:   computeTimeMS,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.logStore.CreateOptimizationLog(ctx, entry); err != nil {
		s.logger.Warn("optimization log write failed", zap.String("media_id", mediaID), zap.Error(err))
		return
	}

	s.metrics.pixelsProcessedTotal.Add(float64(pixelsProcessed))
	s.metrics.bytesSavedTotal.Add(float64(bytesSaved))
	s.metrics.computeTimeMSTotal.Add(float64(computeTimeMS))
}
