package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type CheckoutItem struct {
	Name        string
	Quantity    int
	PriceCents  int64
	Description string
}

type Customer struct {
	Name  string
	Email string
	Phone string
	TaxID string
}

type CheckoutRequest struct {
	OrderNSU        string
	Items           []CheckoutItem
	TotalCents      int64
	Customer        Customer
	ReturnURL       string
	NotificationURL string
	MaxInstallments int
}

type CheckoutResponse struct {
	ProviderRef string
	RedirectURL string
}

// CheckoutProvider creates a hosted checkout the buyer is redirected to.
type CheckoutProvider interface {
	Name() string
	CreateCheckout(ctx context.Context, req CheckoutRequest) (CheckoutResponse, error)
}

type BoletoRequest struct {
	OrderNSU    string
	AmountCents int64
	DueDate     string // YYYY-MM-DD
	Description string
	Customer    Customer
}

type BoletoResponse struct {
	ProviderTitleID string
	BankSlipURL     string
	DigitableLine   string
	Status          string
}

// BoletoIssuer registers boletos with a bank or PSP.
type BoletoIssuer interface {
	Name() string
	IssueBoleto(ctx context.Context, req BoletoRequest) (BoletoResponse, error)
}

// jsonClient is the transport shared by the provider clients.
type jsonClient struct {
	provider  string
	baseURL   string
	http      *http.Client
	headers   map[string]string
	decodeErr func(body []byte) string
}

func newJSONClient(provider, baseURL string, timeout time.Duration, hc *http.Client) jsonClient {
	if hc == nil {
		if timeout <= 0 {
			timeout = 20 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return jsonClient{
		provider: provider,
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     hc,
		headers:  map[string]string{},
	}
}

func (c jsonClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", c.provider, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", c.provider, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", c.provider, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", c.provider, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		ge := &GatewayError{Provider: c.provider, StatusCode: resp.StatusCode}
		if c.decodeErr != nil {
			ge.Message = c.decodeErr(raw)
		}
		return ge
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", c.provider, err)
	}
	return nil
}

func centsToFloat(cents int64) float64 {
	return float64(cents) / 100
}
