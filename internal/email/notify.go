package email

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const notificationTimeout = 5 * time.Second

// SendAsync delivers a notification without blocking the caller. Failures
// are logged and dropped; notifications are best effort.
func SendAsync(sender Sender, recipient string, msg Message, logger *zerolog.Logger) {
	if sender == nil {
		return
	}
	recipient = strings.TrimSpace(recipient)
	if recipient == "" || msg.Subject == "" || msg.Body == "" {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notificationTimeout)
		defer cancel()
		if err := sender.Send(ctx, recipient, msg.Subject, msg.Body); err != nil && logger != nil {
			logger.Error().Err(err).Str("recipient", recipient).Msg("Failed to send notification email")
		}
	}()
}
