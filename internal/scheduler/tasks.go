package scheduler

import (
	"encoding/json"

	"signup_funnel_backend/internal/email"

	"github.com/hibiken/asynq"
)

const TaskSendEmail = "email.send"

const TaskCheckoutReminder = "funnel.checkout_reminder"

type SendEmailPayload struct {
	Message email.Message `json:"message"`
}

// CheckoutReminderPayload carries everything the reminder email needs so the
// worker only has to check whether the lead has converted meanwhile.
type CheckoutReminderPayload struct {
	LeadID           string `json:"leadId"`
	Email            string `json:"email"`
	FirstName        string `json:"firstName"`
	FormattedAddress string `json:"formattedAddress"`
}

func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSendEmail, data), nil
}

func ParseSendEmailPayload(task *asynq.Task) (SendEmailPayload, error) {
	var payload SendEmailPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return SendEmailPayload{}, err
	}
	return payload, nil
}

func NewCheckoutReminderTask(payload CheckoutReminderPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCheckoutReminder, data), nil
}

func ParseCheckoutReminderPayload(task *asynq.Task) (CheckoutReminderPayload, error) {
	var payload CheckoutReminderPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return CheckoutReminderPayload{}, err
	}
	return payload, nil
}

func checkoutReminderTaskID(leadID string) string {
	return "checkout-reminder:" + leadID
}
