package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/config"
)

var ErrStartTLSUnsupported = errors.New("mailer: server does not offer STARTTLS")

const (
	tlsModeImplicit = "tls"
	tlsModeStart    = "starttls"
)

type SMTPMailer struct {
	cfg          config.SMTPConfig
	dialTimeout  time.Duration
	writeTimeout time.Duration

	// host, or "local" when unset
	messageIDDomain string
}

// NewSMTPMailer sends through a plain, implicit-TLS or STARTTLS SMTP relay.
func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	domain := cfg.Host
	if domain == "" {
		domain = "local"
	}
	return &SMTPMailer{
		cfg:             cfg,
		dialTimeout:     5 * time.Second,
		writeTimeout:    10 * time.Second,
		messageIDDomain: domain,
	}
}

func (m *SMTPMailer) mode() string { return strings.ToLower(strings.TrimSpace(m.cfg.TLSMode)) }

func (m *SMTPMailer) tlsConfig() *tls.Config {
	return &tls.Config{ServerName: m.cfg.Host, InsecureSkipVerify: m.cfg.SkipVerifyTLS}
}

func (m *SMTPMailer) Send(ctx context.Context, e Email) error {
	raw, err := buildMIMEMessage(e, m.messageIDDomain)
	if err != nil {
		return err
	}

	conn, err := m.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	c, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Quit()

	if err := m.secure(c); err != nil {
		return err
	}
	if err := m.authenticate(c); err != nil {
		return err
	}

	_ = conn.SetWriteDeadline(time.Now().Add(m.writeTimeout))
	return deliver(c, e.From, e.AllRecipients(), raw)
}

// dial connects to the relay, wrapping the connection in TLS for the implicit mode.
func (m *SMTPMailer) dial(ctx context.Context) (net.Conn, error) {
	addr := net.JoinHostPort(m.cfg.Host, m.cfg.Port)
	d := &net.Dialer{Timeout: m.dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("smtp dial %s: %w", addr, err)
	}
	if m.mode() != tlsModeImplicit {
		return conn, nil
	}
	tc := tls.Client(conn, m.tlsConfig())
	if err := tc.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("smtp tls handshake: %w", err)
	}
	return tc, nil
}

func (m *SMTPMailer) secure(c *smtp.Client) error {
	if m.mode() != tlsModeStart {
		return nil
	}
	if ok, _ := c.Extension("STARTTLS"); !ok {
		return ErrStartTLSUnsupported
	}
	if err := c.StartTLS(m.tlsConfig()); err != nil {
		return fmt.Errorf("smtp starttls: %w", err)
	}
	return nil
}

// authenticate is skipped without credentials; local catch-all relays run without AUTH.
func (m *SMTPMailer) authenticate(c *smtp.Client) error {
	if m.cfg.User == "" || m.cfg.Pass == "" {
		return nil
	}
	if ok, _ := c.Extension("AUTH"); !ok {
		return nil
	}
	if err := c.Auth(smtp.PlainAuth("", m.cfg.User, m.cfg.Pass, m.cfg.Host)); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	return nil
}

func deliver(c *smtp.Client, from string, rcpts []string, raw string) error {
	if err := c.Mail(from); err != nil {
		return fmt.Errorf("smtp MAIL FROM: %w", err)
	}
	for _, r := range rcpts {
		if err := c.Rcpt(r); err != nil {
			return fmt.Errorf("smtp RCPT TO %s: %w", r, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA: %w", err)
	}
	if _, err := w.Write([]byte(raw)); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp DATA close: %w", err)
	}
	return nil
}
