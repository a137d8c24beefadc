package mailer

import (
	"fmt"
	"log/slog"

	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/config"
)

// New picks the transport named by MAIL_DRIVER.
func New(cfg config.Config, logger *slog.Logger) (Service, error) {
	switch cfg.Mail.Driver {
	case "smtp":
		return NewSMTPMailer(cfg.SMTP), nil
	case "mailtrap":
		return NewMailtrapMailer(cfg.Mail.MailtrapURL, cfg.Mail.MailtrapKey, nil), nil
	case "log", "":
		return NewLogMailer(logger), nil
	default:
		return nil, fmt.Errorf("unsupported MAIL_DRIVER %q", cfg.Mail.Driver)
	}
}
