package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/jacobwhite/taskdeck/internal/config"
)

// Client enqueues domain events onto the shared event queue. Events are
// JSON-encoded and delivered at-least-once; handlers must tolerate replays.
type Client struct {
	client *asynq.Client
	queue  string
	logger *slog.Logger
}

func NewClient(redisCfg *config.RedisConfig, queueCfg config.QueueConfig, logger *slog.Logger) *Client {
	return &Client{
		client: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     redisCfg.Addr,
			Password: redisCfg.Password,
			DB:       redisCfg.DB,
		}),
		queue:  queueCfg.EventQueue,
		logger: logger,
	}
}

// Enqueue publishes an event with the given type and JSON-encoded payload.
func (c *Client) Enqueue(ctx context.Context, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}

	task := asynq.NewTask(eventType, data)
	info, err := c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.MaxRetry(5),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue %s event: %w", eventType, err)
	}

	c.logger.Debug("event enqueued",
		slog.String("event_type", eventType),
		slog.String("task_id", info.ID),
		slog.String("queue", info.Queue))
	return nil
}

func (c *Client) Close() error {
	return c.client.Close()
}
