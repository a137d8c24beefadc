// Package functions calls the store's /functions/v1 procedures over HTTP.
package functions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/checkout"
)

const maxBody = 1 << 20

// Error is a procedure failure: a non-2xx answer or an {"error": ...} body.
type Error struct {
	Function   string
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("functions %s: http %d: %s", e.Function, e.StatusCode, e.Message)
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New points the client at baseURL, e.g. https://loja.example.com/functions/v1.
// token, when set, is sent as a bearer token for admin procedures.
func New(baseURL, token string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 20 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), token: token, http: hc}
}

type envelope struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
}

// Invoke posts body to the named procedure and decodes the answer into out.
func (c *Client) Invoke(ctx context.Context, name string, body, out any) error {
	var rd io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+name, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("functions %s: %w", name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("functions %s: read body: %w", name, err)
	}

	var env envelope
	_ = json.Unmarshal(raw, &env)
	if resp.StatusCode < 200 || resp.StatusCode > 299 || env.Error != "" || (env.Success != nil && !*env.Success) {
		msg := env.Error
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &Error{Function: name, StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("functions %s: decode: %w", name, err)
	}
	return nil
}

func (c *Client) CreatePixOrder(ctx context.Context, r checkout.OrderRequest) (checkout.PixOrderResult, error) {
	var out checkout.PixOrderResult
	err := c.Invoke(ctx, "create-pix-order", r, &out)
	return out, err
}

func (c *Client) CheckPayment(ctx context.Context, orderNSU string) (checkout.PaymentStatus, error) {
	var out checkout.PaymentStatus
	err := c.Invoke(ctx, "check-payment", map[string]string{"order_nsu": orderNSU}, &out)
	return out, err
}

func (c *Client) SendOrderEmails(ctx context.Context, orderNSU string) error {
	return c.Invoke(ctx, "send-order-emails", map[string]string{"order_nsu": orderNSU}, nil)
}

var (
	_ checkout.OrderCreator  = (*Client)(nil)
	_ checkout.StatusChecker = (*Client)(nil)
	_ checkout.Notifier      = (*Client)(nil)
)
