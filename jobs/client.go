package jobs

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
)

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
	clock  func() time.Time
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) (*Client, error) {
	client := asynq.NewClient(redisOpts)
	return &Client{client: client, clock: func() time.Time { return time.Now().UTC() }}, nil
}

// Enqueue submits a task of a known type scheduled for now.
func (c *Client) Enqueue(ctx context.Context, taskType string, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	task, err := NewTask(taskType, c.clock())
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, append([]asynq.Option{asynq.Queue(QueueDefault)}, opts...)...)
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
