package scheduler

import (
	"context"
	"errors"
	"fmt"

	"signup_funnel_backend/internal/email"
	"signup_funnel_backend/internal/funnel/ports"
	"signup_funnel_backend/platform/config"
	"signup_funnel_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// LeadReader looks up whether a lead has converted.
type LeadReader interface {
	GetLead(ctx context.Context, leadID uuid.UUID) (ports.LeadSnapshot, error)
}

type Worker struct {
	server       *asynq.Server
	mux          *asynq.ServeMux
	sender       email.Sender
	leads        LeadReader
	resumeURL    string
	supportPhone string
	log          *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, notify config.NotificationConfig, sender email.Sender, leads LeadReader, log *logger.Logger) (*Worker, error) {
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

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	return newWorker(server, notify, sender, leads, log), nil
}

func newWorker(server *asynq.Server, notify config.NotificationConfig, sender email.Sender, leads LeadReader, log *logger.Logger) *Worker {
	mux := asynq.NewServeMux()
	w := &Worker{
		server:       server,
		mux:          mux,
		sender:       sender,
		leads:        leads,
		resumeURL:    notify.GetAppBaseURL(),
		supportPhone: notify.GetSupportPhone(),
		log:          log,
	}

	mux.HandleFunc(TaskSendEmail, w.handleSendEmail)
	mux.HandleFunc(TaskCheckoutReminder, w.handleCheckoutReminder)

	return w
}

// Run processes tasks until ctx is cancelled, then drains in-flight tasks.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil || w.server == nil {
		return nil
	}

	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	w.log.Info("scheduler worker started")

	<-ctx.Done()
	w.log.Info("shutdown signal received, draining scheduler worker")
	w.server.Shutdown()
	return nil
}

func (w *Worker) handleSendEmail(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseSendEmailPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	messageID, err := w.sender.Send(ctx, payload.Message)
	if err != nil {
		return err
	}

	w.log.Info("email sent", "template", string(payload.Message.Template), "messageId", messageID)
	return nil
}

func (w *Worker) handleCheckoutReminder(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseCheckoutReminderPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	lead, err := w.leads.GetLead(ctx, leadID)
	if errors.Is(err, ports.ErrLeadNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if lead.Converted || payload.Email == "" {
		return nil
	}

	messageID, err := w.sender.Send(ctx, email.Message{
		Template: email.TemplateCheckoutReminder,
		To:       payload.Email,
		Fields: map[string]string{
			email.FieldFirstName:    payload.FirstName,
			email.FieldAddress:      payload.FormattedAddress,
			email.FieldResumeURL:    w.resumeURL,
			email.FieldSupportPhone: w.supportPhone,
		},
	})
	if err != nil {
		return err
	}

	w.log.Info("checkout reminder sent", "leadId", payload.LeadID, "messageId", messageID)
	return nil
}
