package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// MailtrapMailer sends through the Mailtrap HTTP sending API.
type MailtrapMailer struct {
	apiURL string
	token  string
	http   *http.Client
}

type mailtrapAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type mailtrapPayload struct {
	From     mailtrapAddress   `json:"from"`
	To       []mailtrapAddress `json:"to"`
	Cc       []mailtrapAddress `json:"cc,omitempty"`
	Bcc      []mailtrapAddress `json:"bcc,omitempty"`
	ReplyTo  *mailtrapAddress  `json:"reply_to,omitempty"`
	Subject  string            `json:"subject"`
	Text     string            `json:"text,omitempty"`
	HTML     string            `json:"html,omitempty"`
	Category string            `json:"category,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
}

func NewMailtrapMailer(apiURL, token string, hc *http.Client) *MailtrapMailer {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &MailtrapMailer{apiURL: apiURL, token: token, http: hc}
}

func (m *MailtrapMailer) Send(ctx context.Context, e Email) error {
	if m.apiURL == "" || m.token == "" {
		return fmt.Errorf("mailtrap: credentials not configured")
	}
	if len(e.To) == 0 || e.From == "" || e.Subject == "" {
		return fmt.Errorf("mailtrap: from, to and subject are required")
	}

	p := mailtrapPayload{
		From:     mailtrapAddress{Email: e.From, Name: e.FromName},
		To:       addresses(e.To),
		Cc:       addresses(e.Cc),
		Bcc:      addresses(e.Bcc),
		Subject:  e.Subject,
		Text:     e.TextBody,
		HTML:     e.HTMLBody,
		Category: "Transactional",
		Headers:  e.Headers,
	}
	if e.ReplyTo != "" {
		p.ReplyTo = &mailtrapAddress{Email: e.ReplyTo}
	}

	body, err := json.Marshal(p)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+m.token)
	req.Header.Set("Content-Type", "application/json")

	res, err := m.http.Do(req)
	if err != nil {
		return fmt.Errorf("mailtrap: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("mailtrap: http %d: %s", res.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}

func addresses(in []string) []mailtrapAddress {
	if len(in) == 0 {
		return nil
	}
	out := make([]mailtrapAddress, 0, len(in))
	for _, a := range in {
		out = append(out, mailtrapAddress{Email: a})
	}
	return out
}
