package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wneessen/go-mail"

	"github.com/kozaktomas/face-attendance/internal/config"
)

// SMTPSender delivers mail through an SMTP relay. STARTTLS is used when the
// relay offers it and PLAIN auth when a user is configured.
type SMTPSender struct {
	cfg config.SMTPConfig
	now func() time.Time
}

// NewSMTPSender creates a sender for the given relay
func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg, now: time.Now}
}

// newMessage builds the plain-text message for one recipient.
func (s *SMTPSender) newMessage(to, subject, body string) (*mail.Msg, error) {
	from := s.cfg.Sender()
	domain := "localhost"
	if at := strings.LastIndex(from, "@"); at >= 0 && at < len(from)-1 {
		domain = from[at+1:]
	}

	msg := mail.NewMsg(mail.WithCharset(mail.CharsetUTF8))
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", from, err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetDateWithValue(s.now())
	msg.SetMessageIDWithValue(uuid.NewString() + "@" + domain)
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}

func (s *SMTPSender) newClient() (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if s.cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.User),
			mail.WithPassword(s.cfg.Password))
	}

	client, err := mail.NewClient(s.cfg.Server, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating SMTP client: %w", err)
	}
	return client, nil
}

// Send delivers one message. The context deadline bounds the whole session.
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	if s.cfg.Server == "" {
		return fmt.Errorf("SMTP server not configured")
	}

	msg, err := s.newMessage(to, subject, body)
	if err != nil {
		return err
	}
	client, err := s.newClient()
	if err != nil {
		return err
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending mail to %s: %w", to, err)
	}
	return nil
}
