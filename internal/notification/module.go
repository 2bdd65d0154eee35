// Package notification sends customer emails in response to funnel events.
// Funnel code never talks to email providers directly; it publishes events and
// this module turns them into emails, reminders and archived receipts.
package notification

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"signup_funnel_backend/internal/adapters/storage"
	"signup_funnel_backend/internal/email"
	"signup_funnel_backend/internal/events"
	"signup_funnel_backend/internal/funnel/domain"
	"signup_funnel_backend/internal/scheduler"
	"signup_funnel_backend/platform/config"
	"signup_funnel_backend/platform/logger"
)

const receiptContentType = "text/html; charset=utf-8"

// Module handles all notification-related event subscriptions.
type Module struct {
	sender         email.Sender
	queue          scheduler.EmailQueue
	reminders      scheduler.ReminderScheduler
	receipts       storage.StorageService
	receiptsBucket string
	cfg            config.NotificationConfig
	log            *logger.Logger
}

// New creates a notification module that sends emails inline until a queue is set.
func New(sender email.Sender, cfg config.NotificationConfig, log *logger.Logger) *Module {
	return &Module{
		sender: sender,
		cfg:    cfg,
		log:    log,
	}
}

// SetEmailQueue routes emails through the task queue instead of sending inline.
func (m *Module) SetEmailQueue(q scheduler.EmailQueue) { m.queue = q }

// SetReminderScheduler enables abandoned-checkout reminders.
func (m *Module) SetReminderScheduler(r scheduler.ReminderScheduler) { m.reminders = r }

// SetReceiptArchive enables archiving order receipts to object storage.
func (m *Module) SetReceiptArchive(store storage.StorageService, bucket string) {
	m.receipts = store
	m.receiptsBucket = bucket
}

// RegisterHandlers subscribes to the funnel events on the event bus.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.FunnelLeadCaptured{}.EventName(), m)
	bus.Subscribe(events.FunnelAddressNotQualified{}.EventName(), m)
	bus.Subscribe(events.FunnelCheckoutCompleted{}.EventName(), m)

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	m.log.Debug("notification event received", "event", event.EventName(), "eventId", event.EventID())
	switch e := event.(type) {
	case events.FunnelLeadCaptured:
		return m.handleLeadCaptured(ctx, e)
	case events.FunnelAddressNotQualified:
		return m.handleAddressNotQualified(ctx, e)
	case events.FunnelCheckoutCompleted:
		return m.handleCheckoutCompleted(ctx, e)
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
		return nil
	}
}

func (m *Module) handleLeadCaptured(ctx context.Context, e events.FunnelLeadCaptured) error {
	m.log.Info("processing lead captured notification", "leadId", e.LeadID, "created", e.Created)

	if m.reminders != nil {
		err := m.reminders.ScheduleCheckoutReminder(ctx, scheduler.CheckoutReminderPayload{
			LeadID:           e.LeadID.String(),
			Email:            e.Email,
			FirstName:        e.FirstName,
			FormattedAddress: e.FormattedAddress,
		})
		if err != nil {
			m.log.Error("failed to schedule checkout reminder", "error", err, "leadId", e.LeadID)
		}
	}

	if !e.Created {
		return nil
	}
	return m.deliver(ctx, email.Message{
		Template: email.TemplateLeadWelcome,
		To:       e.Email,
		Fields:   m.baseFields(e.FirstName, e.FormattedAddress),
	})
}

func (m *Module) handleAddressNotQualified(ctx context.Context, e events.FunnelAddressNotQualified) error {
	if strings.TrimSpace(e.Email) == "" {
		m.log.Info("not-qualified session has no contact data, skipping waitlist email", "sessionId", e.SessionID, "reason", e.Reason)
		return nil
	}

	return m.deliver(ctx, email.Message{
		Template: email.TemplateWaitlist,
		To:       e.Email,
		Fields:   m.baseFields(e.FirstName, e.FormattedAddress),
	})
}

func (m *Module) handleCheckoutCompleted(ctx context.Context, e events.FunnelCheckoutCompleted) error {
	m.log.Info("processing checkout completed notification", "leadId", e.LeadID, "customerId", e.CustomerID)

	msg := email.Message{
		Template: email.TemplateOrderConfirmation,
		To:       e.Email,
		Fields:   orderFields(m.baseFields(e.FirstName, e.FormattedAddress), e),
	}

	if m.receipts != nil {
		if err := m.archiveReceipt(ctx, e, msg); err != nil {
			m.log.Error("failed to archive order receipt", "error", err, "customerId", e.CustomerID)
		}
	}

	return m.deliver(ctx, msg)
}

func (m *Module) archiveReceipt(ctx context.Context, e events.FunnelCheckoutCompleted, msg email.Message) error {
	_, body, err := email.Render(msg)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("receipts/%s.html", e.CustomerID)
	if _, err := m.receipts.PutObject(ctx, m.receiptsBucket, key, receiptContentType, bytes.NewReader([]byte(body)), int64(len(body))); err != nil {
		return err
	}
	m.log.Info("order receipt archived", "customerId", e.CustomerID, "key", key)
	return nil
}

func (m *Module) deliver(ctx context.Context, msg email.Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return nil
	}

	if m.queue != nil {
		if err := m.queue.EnqueueEmail(ctx, msg); err != nil {
			m.log.Error("failed to enqueue email", "error", err, "template", string(msg.Template))
			return err
		}
		return nil
	}

	messageID, err := m.sender.Send(ctx, msg)
	if err != nil {
		m.log.Error("failed to send email", "error", err, "template", string(msg.Template))
		return err
	}
	m.log.Info("email sent", "template", string(msg.Template), "messageId", messageID)
	return nil
}

func (m *Module) baseFields(firstName, address string) map[string]string {
	return map[string]string{
		email.FieldFirstName:    strings.TrimSpace(firstName),
		email.FieldAddress:      address,
		email.FieldResumeURL:    m.cfg.GetAppBaseURL(),
		email.FieldSupportPhone: m.cfg.GetSupportPhone(),
	}
}

func orderFields(fields map[string]string, e events.FunnelCheckoutCompleted) map[string]string {
	fields[email.FieldPlanName] = e.PlanName
	fields[email.FieldPlanPrice] = formatUSD(e.PlanPriceCents)
	fields[email.FieldTotal] = formatUSD(e.AmountCents)
	fields[email.FieldPaymentReference] = e.PaymentReference
	if e.RouterAdded {
		fields[email.FieldRouterPrice] = formatUSD(e.RouterPriceCents)
	}
	return fields
}

func formatUSD(cents int64) string {
	return "$" + domain.Cents(cents).String()
}
