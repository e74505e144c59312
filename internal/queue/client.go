package queue

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
)

const (
	MaxRetry    = 5
	TaskTimeout = 3 * time.Minute
)

// ErrAlreadyQueued is returned when the media already has a pending task.
var ErrAlreadyQueued = errors.New("media optimization already queued")

type Client struct {
	client *asynq.Client
	queue  string
}

func NewClient(redisOpt asynq.RedisClientOpt, queueName string) *Client {
	return &Client{
		client: asynq.NewClient(redisOpt),
		queue:  queueName,
	}
}

func (c *Client) EnqueueOptimizeMedia(ctx context.Context, payload OptimizeMediaPayload) (*asynq.TaskInfo, error) {
	task, err := NewOptimizeMediaTask(payload)
	if err != nil {
		return nil, err
	}
	info, err := c.client.EnqueueContext(
		ctx,
		task,
		asynq.Queue(c.queue),
		asynq.TaskID(TaskID(payload.MediaID)),
		asynq.MaxRetry(MaxRetry),
		asynq.Timeout(TaskTimeout),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil, ErrAlreadyQueued
	}
	return info, err
}

func (c *Client) Close() error {
	return c.client.Close()
}
