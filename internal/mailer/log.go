package mailer

import (
	"context"
	"log/slog"
	"strings"
)

// LogMailer writes outgoing mail to the log instead of sending it.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, e Email) error {
	m.logger.InfoContext(ctx, "email (log driver)",
		"to", strings.Join(e.To, ","),
		"subject", e.Subject,
		"text_bytes", len(e.TextBody),
		"html_bytes", len(e.HTMLBody),
	)
	return nil
}
