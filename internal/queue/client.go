package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nominahq/payslip-service/internal/config"
)

type Client struct {
	client *asynq.Client
}

func NewClient(cfg config.RedisConfig) *Client {
	return &Client{
		client: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) EnqueuePayslipIngest(payload PayslipIngestPayload) error {
	return c.enqueue(TypePayslipIngest, payload, asynq.MaxRetry(3), asynq.Timeout(2*time.Minute))
}

// EnqueueNotifyDeliver queues a best-effort employee notification on the
// low-priority queue.
func (c *Client) EnqueueNotifyDeliver(payload NotifyDeliverPayload) error {
	return c.enqueue(TypeNotifyDeliver, payload, asynq.MaxRetry(5), asynq.Timeout(30*time.Second), asynq.Queue("low"))
}

func (c *Client) enqueue(taskType string, payload interface{}, opts ...asynq.Option) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(taskType, data)
	_, err = c.client.Enqueue(task, opts...)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return nil
}
