package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/shared/taxid"
)

// Messenger delivers a text message to a phone number.
type Messenger interface {
	SendText(ctx context.Context, phone, text string) error
}

// WhatsAppClient posts messages to a WhatsApp gateway HTTP API.
type WhatsAppClient struct {
	apiURL string
	token  string
	http   *http.Client
}

func NewWhatsAppClient(apiURL, token string, hc *http.Client) *WhatsAppClient {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &WhatsAppClient{apiURL: apiURL, token: token, http: hc}
}

func (c *WhatsAppClient) SendText(ctx context.Context, phone, text string) error {
	if c.apiURL == "" {
		return fmt.Errorf("whatsapp: api url not configured")
	}
	body, err := json.Marshal(map[string]string{
		"phone":   taxid.Digits(phone),
		"message": text,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("whatsapp: http %d: %s", res.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
