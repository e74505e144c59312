// Package events publishes media lifecycle events to external sinks.
package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/edashow/mediaflow/internal/config"
	"go.uber.org/zap"
)

const typePrefix = "dev.mediaflow."

const (
	TypeMediaCreated   = typePrefix + "media.created"
	TypeMediaQueued    = typePrefix + "media.queued"
	TypeMediaOptimized = typePrefix + "media.optimized"
	TypeMediaSkipped   = typePrefix + "media.skipped"
	TypeMediaFailed    = typePrefix + "media.failed"
)

type Event struct {
	Type       string
	MediaID    string
	OccurredAt time.Time
	Data       any
}

type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Multi fans an event out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, evt Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Open builds the publishers named in cfg.Sinks. No sinks yields Nop.
func Open(cfg config.EventsConfig, logger *zap.Logger) (Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var out Multi
	for _, sink := range cfg.Sinks {
		switch strings.ToLower(strings.TrimSpace(sink)) {
		case "cloudevents":
			p, err := NewCloudEventsPublisher(cfg.CloudEventsURL, cfg.Source)
			if err != nil {
				_ = out.Close()
				return nil, err
			}
			out = append(out, p)
		case "amqp":
			p, err := NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.Source)
			if err != nil {
				_ = out.Close()
				return nil, err
			}
			out = append(out, p)
		case "", "none":
		default:
			_ = out.Close()
			return nil, fmt.Errorf("unsupported event sink: %s", sink)
		}
		logger.Info("event sink enabled", zap.String("sink", sink))
	}

	if len(out) == 0 {
		return Nop{}, nil
	}
	return out, nil
}

func stamp(evt Event) Event {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	return evt
}
