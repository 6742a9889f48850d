// Package notify renders and delivers transactional and campaign email.
package notify

import (
	"context"
	"errors"
	"log/slog"
)

type Message struct {
	To      string
	Subject string
	HTML    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

var ErrCircuitOpen = errors.New("email provider circuit open")

// LogSender is used when no provider key is configured.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "email not sent: no provider configured",
		"to", msg.To,
		"subject", msg.Subject,
	)
	return nil
}
