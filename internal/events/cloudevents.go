package events

import (
	"context"
	"errors"
	"fmt"
	"strings"

	ce "github.com/cloudevents/sdk-go/v2"
	"github.com/cloudevents/sdk-go/v2/client"
	"github.com/google/uuid"
)

// CloudEventsPublisher posts binary-mode CloudEvents over HTTP, e.g. to a
// Knative broker.
type CloudEventsPublisher struct {
	client client.Client
	source string
}

func NewCloudEventsPublisher(sinkURL, source string) (*CloudEventsPublisher, error) {
	if strings.TrimSpace(sinkURL) == "" {
		return nil, errors.New("cloudevents sink url is required")
	}
	c, err := ce.NewClientHTTP(ce.WithTarget(sinkURL))
	if err != nil {
		return nil, fmt.Errorf("create cloudevents client: %w", err)
	}
	return &CloudEventsPublisher{client: c, source: source}, nil
}

func (p *CloudEventsPublisher) Publish(ctx context.Context, evt Event) error {
	evt = stamp(evt)

	event := ce.NewEvent()
	event.SetID(uuid.NewString())
	event.SetSource(p.source)
	event.SetType(evt.Type)
	event.SetSubject(evt.MediaID)
	event.SetTime(evt.OccurredAt)
	if evt.Data != nil {
		if err := event.SetData(ce.ApplicationJSON, evt.Data); err != nil {
			return fmt.Errorf("set event data: %w", err)
		}
	}

	if result := p.client.Send(ctx, event); !ce.IsACK(result) {
		return fmt.Errorf("deliver cloudevent %s: %w", evt.Type, result)
	}
	return nil
}

func (p *CloudEventsPublisher) Close() error {
	return nil
}
