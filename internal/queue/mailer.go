package queue

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	log "github.com/sirupsen/logrus"

	"github.com/iliyamo/campus-reservation/internal/config"
)

// Mailer delivers one plain-text message.
type Mailer interface {
	Send(ctx context.Context, to Recipient, subject, body string) error
}

// SendGridMailer sends through the SendGrid v3 API.
type SendGridMailer struct {
	client *sendgrid.Client
	from   *mail.Email
}

// NewSendGridMailer returns nil when no API key is configured.
func NewSendGridMailer(cfg config.MailConfig) *SendGridMailer {
	if !cfg.Enabled() {
		return nil
	}
	return &SendGridMailer{
		client: sendgrid.NewSendClient(cfg.APIKey),
		from:   mail.NewEmail(cfg.FromName, cfg.FromEmail),
	}
}

func (m *SendGridMailer) Send(ctx context.Context, to Recipient, subject, body string) error {
	msg := mail.NewSingleEmail(m.from, subject, mail.NewEmail(to.Name, to.Email), body, "")
	resp, err := m.client.SendWithContext(ctx, msg)
	if err != nil {
		return errors.Wrapf(err, "sendgrid send to %s", to.Email)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("sendgrid returned %d: %s", resp.StatusCode, resp.Body)
	}
	log.WithFields(log.Fields{"component": "mailer", "to": to.Email, "status": resp.StatusCode}).Debug("mail sent")
	return nil
}

// composeMail renders the subject and body for ev.
func composeMail(ev BookingEvent) (subject, body string) {
	units := strings.Join(ev.UnitIDs, ", ")
	switch ev.Type {
	case EventCancelled:
		subject = "Booking cancelled"
		body = fmt.Sprintf("Booking %s for %s has been cancelled.\n", ev.BookingID, units)
	default:
		subject = "Booking confirmed"
		body = fmt.Sprintf("Booking %s for %s is confirmed.\n", ev.BookingID, units)
	}
	if team := ev.Metadata["teamName"]; team != "" {
		body += "Team: " + team + "\n"
	}
	return subject, body
}
