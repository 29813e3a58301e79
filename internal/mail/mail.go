// Package mail renders transactional emails and hands them to a delivery
// provider.
package mail

import (
	"context"
	"log/slog"
)

type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender only logs messages. It stands in for a provider in local setups
// without an API key.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(_ context.Context, msg Message) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("mail not delivered, no provider configured", "to", msg.To, "subject", msg.Subject)
	return nil
}
