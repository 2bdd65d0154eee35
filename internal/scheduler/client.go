package scheduler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"signup_funnel_backend/internal/email"
	"signup_funnel_backend/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const emailMaxRetry = 5

type Client struct {
	client        *asynq.Client
	queue         string
	reminderDelay time.Duration
}

// EmailQueue hands emails to the worker.
type EmailQueue interface {
	EnqueueEmail(ctx context.Context, msg email.Message) error
}

// ReminderScheduler schedules the abandoned-checkout reminder for a lead.
type ReminderScheduler interface {
	ScheduleCheckoutReminder(ctx context.Context, payload CheckoutReminderPayload) error
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	return &Client{
		client:        asynq.NewClient(opt),
		queue:         queue,
		reminderDelay: cfg.GetCheckoutReminderDelay(),
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Client) EnqueueEmail(ctx context.Context, msg email.Message) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewSendEmailTask(SendEmailPayload{Message: msg})
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue), asynq.MaxRetry(emailMaxRetry))
	return err
}

// ScheduleCheckoutReminder is a no-op if a reminder for the lead is already pending.
func (c *Client) ScheduleCheckoutReminder(ctx context.Context, payload CheckoutReminderPayload) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewCheckoutReminderTask(payload)
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.ProcessIn(c.reminderDelay),
		asynq.Queue(c.queue),
		asynq.TaskID(checkoutReminderTaskID(payload.LeadID)),
		asynq.MaxRetry(emailMaxRetry),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
