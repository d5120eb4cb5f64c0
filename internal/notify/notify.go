// Package notify sends attendance confirmations. Sends are best effort: they
// run in the background and failures are only logged.
package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

// Sender delivers a single plain-text message
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Message is a notification waiting to be sent
type Message struct {
	To      string
	Subject string
	Body    string
}

// PunchInMessage builds the check-in confirmation
func PunchInMessage(to, name string, at time.Time, status string) Message {
	date := at.Format(constants.DateLayout)
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Punch In Confirmation - %s", date),
		Body: fmt.Sprintf("Hello %s,\n\nYou have successfully punched in at %s on %s.\n\nStatus: %s\n\nThank you.",
			name, at.Format(constants.TimeOfDayLayout), date, status),
	}
}

// PunchOutMessage builds the check-out confirmation
func PunchOutMessage(to, name string, at time.Time) Message {
	date := at.Format(constants.DateLayout)
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Punch Out Confirmation - %s", date),
		Body: fmt.Sprintf("Hello %s,\n\nYou have successfully punched out at %s on %s.\n\nStatus: Punched Out\n\nThank you.",
			name, at.Format(constants.TimeOfDayLayout), date),
	}
}

// Dispatcher sends messages asynchronously
type Dispatcher struct {
	sender  Sender
	timeout time.Duration
	logger  logrus.FieldLogger
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher. A zero timeout uses the default.
func NewDispatcher(sender Sender, timeout time.Duration, logger logrus.FieldLogger) *Dispatcher {
	if timeout <= 0 {
		timeout = constants.NotificationTimeoutSeconds * time.Second
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Dispatcher{
		sender:  sender,
		timeout: timeout,
		logger:  logger,
	}
}

// Dispatch queues msg for sending and returns immediately.
// Messages without a recipient are dropped.
func (d *Dispatcher) Dispatch(msg Message) {
	if d == nil || d.sender == nil {
		return
	}
	if strings.TrimSpace(msg.To) == "" {
		d.logger.WithField("subject", msg.Subject).Debug("Skipping notification without recipient")
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		log := d.logger.WithFields(logrus.Fields{
			"to":      msg.To,
			"subject": msg.Subject,
		})
		if err := d.sender.Send(ctx, msg.To, msg.Subject, msg.Body); err != nil {
			log.WithError(err).Warn("Failed to send notification")
			return
		}
		log.Info("Notification sent")
	}()
}

// Wait blocks until every dispatched message has been handled
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}

// LogSender writes messages to the log instead of sending them. Used when
// SMTP is not configured.
type LogSender struct {
	Logger logrus.FieldLogger
}

// Send logs the message
func (s *LogSender) Send(ctx context.Context, to, subject, body string) error {
	s.Logger.WithFields(logrus.Fields{
		"to":      to,
		"subject": subject,
	}).Info("SMTP disabled, notification not delivered")
	return nil
}
