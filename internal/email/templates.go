package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

// Template names a transactional email.
type Template string

const (
	TemplateLeadWelcome       Template = "lead_welcome"
	TemplateWaitlist          Template = "waitlist"
	TemplateCheckoutReminder  Template = "checkout_reminder"
	TemplateOrderConfirmation Template = "order_confirmation"
)

// Field keys understood by the templates.
const (
	FieldFirstName        = "firstName"
	FieldAddress          = "address"
	FieldPlanName         = "planName"
	FieldPlanPrice        = "planPrice"
	FieldRouterPrice      = "routerPrice"
	FieldTotal            = "total"
	FieldPaymentReference = "paymentReference"
	FieldResumeURL        = "resumeUrl"
	FieldSupportPhone     = "supportPhone"
)

type baseEmailData struct {
	Title      string
	Heading    string
	Subheading string
	CTALabel   string
	CTAURL     string
}

type messageEmailData struct {
	baseEmailData
	Fields map[string]string
}

type templateDef struct {
	file    string
	subject func(fields map[string]string) string
	base    func(fields map[string]string) baseEmailData
}

var templateDefs = map[Template]templateDef{
	TemplateLeadWelcome: {
		file: "lead_welcome.html",
		subject: func(f map[string]string) string {
			return fmt.Sprintf(subjectLeadWelcome, firstNameOr(f, "there"))
		},
		base: func(f map[string]string) baseEmailData {
			return baseEmailData{
				Title:    "Good news, you're covered",
				Heading:  "Good news, you're covered",
				CTALabel: "Choose your plan",
				CTAURL:   f[FieldResumeURL],
			}
		},
	},
	TemplateWaitlist: {
		file:    "waitlist.html",
		subject: func(map[string]string) string { return subjectWaitlist },
		base: func(map[string]string) baseEmailData {
			return baseEmailData{Title: "You're on the list", Heading: "You're on the list"}
		},
	},
	TemplateCheckoutReminder: {
		file:    "checkout_reminder.html",
		subject: func(map[string]string) string { return subjectCheckoutReminder },
		base: func(f map[string]string) baseEmailData {
			return baseEmailData{
				Title:    "Finish your order",
				Heading:  "Finish your order",
				CTALabel: "Pick up where you left off",
				CTAURL:   f[FieldResumeURL],
			}
		},
	},
	TemplateOrderConfirmation: {
		file: "order_confirmation.html",
		subject: func(f map[string]string) string {
			return fmt.Sprintf(subjectOrderConfirmation, f[FieldPlanName])
		},
		base: func(map[string]string) baseEmailData {
			return baseEmailData{Title: "Order confirmed", Heading: "Thanks for your order"}
		},
	},
}

// Render produces the subject and HTML body for a message.
func Render(msg Message) (subject string, html string, err error) {
	def, ok := templateDefs[msg.Template]
	if !ok {
		return "", "", fmt.Errorf("unknown email template %q", msg.Template)
	}
	fields := msg.Fields
	if fields == nil {
		fields = map[string]string{}
	}

	html, err = renderEmailTemplate(def.file, messageEmailData{
		baseEmailData: def.base(fields),
		Fields:        fields,
	})
	if err != nil {
		return "", "", err
	}
	return def.subject(fields), html, nil
}

func renderEmailTemplate(name string, data any) (string, error) {
	templates := []string{"templates/base.html", "templates/" + name}
	tmpl, err := template.New("base.html").ParseFS(templateFS, templates...)
	if err != nil {
		return "", fmt.Errorf("parse email template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template %s: %w", name, err)
	}
	return buf.String(), nil
}

func firstNameOr(fields map[string]string, fallback string) string {
	if name := fields[FieldFirstName]; name != "" {
		return name
	}
	return fallback
}
