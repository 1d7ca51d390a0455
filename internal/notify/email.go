package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"

	"github.com/akivoy/orion/internal/config"
	"github.com/akivoy/orion/internal/observability"
)

// EmailSender delivers the lead and quotation notices over SMTP.
type EmailSender struct {
	cfg config.SMTPConfig
	log *observability.Logger
}

// NewEmailSender creates a sender from configuration.
func NewEmailSender(cfg config.SMTPConfig, log *observability.Logger) *EmailSender {
	return &EmailSender{cfg: cfg, log: log}
}

// Send delivers one plain-text email, attaching the given PDF files.
func (e *EmailSender) Send(ctx context.Context, to, subject, body string, attachments ...string) error {
	msg := mail.NewMsg()
	if err := msg.From(e.cfg.From); err != nil {
		return fmt.Errorf("email: sender address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("email: recipient address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)
	for _, path := range attachments {
		msg.AttachFile(path)
	}

	client, err := mail.NewClient(e.cfg.Host,
		mail.WithPort(e.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(e.cfg.Username),
		mail.WithPassword(e.cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return fmt.Errorf("email: client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("email: send to %s: %w", to, err)
	}
	e.log.Info(ctx, "email delivered", "to", to, "subject", subject)
	return nil
}

// NotifyLead tells the sales team a new opportunity was registered from a
// conversation.
func (e *EmailSender) NotifyLead(ctx context.Context, partnerName, partnerPhone, clientEmail, summary string) error {
	subject := "He creado un lead en el Odoo de Orion desde WhatsApp"

	var body strings.Builder
	body.WriteString(strings.Repeat("=", 50))
	body.WriteString("\nNombre del cliente: " + partnerName + "\n")
	body.WriteString("Teléfono del cliente: " + partnerPhone + "\n")
	body.WriteString("Email del cliente: " + clientEmail + "\n")
	body.WriteString("Resumen de la conversación: \n" + summary)

	return e.Send(ctx, e.cfg.AdminEmail, subject, body.String())
}

// NotifySaleOrder emails the customer their new quotation, attaching the
// PDF when available. Outside production, the notice goes to the admin
// address so customers never see test traffic.
func (e *EmailSender) NotifySaleOrder(ctx context.Context, email, message, pdfPath string) error {
	to := email
	if !e.cfg.Production {
		to = e.cfg.AdminEmail
	}

	var attachments []string
	if pdfPath != "" {
		attachments = append(attachments, pdfPath)
	}
	return e.Send(ctx, to, "Se ha creado un presupuesto para usted", message, attachments...)
}
