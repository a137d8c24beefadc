package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// MercadoPago creates checkout preferences (Checkout Pro).
type MercadoPago struct {
	c jsonClient
}

func NewMercadoPago(baseURL, accessToken string, timeout time.Duration, hc *http.Client) *MercadoPago {
	c := newJSONClient(ProviderMercadoPago, baseURL, timeout, hc)
	c.headers["Authorization"] = "Bearer " + accessToken
	c.decodeErr = mercadoPagoError
	return &MercadoPago{c: c}
}

func (m *MercadoPago) Name() string { return ProviderMercadoPago }

type mpItem struct {
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string  `json:"currency_id"`
}

type mpPreference struct {
	Items             []mpItem          `json:"items"`
	Payer             map[string]string `json:"payer,omitempty"`
	ExternalReference string            `json:"external_reference"`
	BackURLs          map[string]string `json:"back_urls,omitempty"`
	AutoReturn        string            `json:"auto_return,omitempty"`
	NotificationURL   string            `json:"notification_url,omitempty"`
	PaymentMethods    map[string]int    `json:"payment_methods,omitempty"`
}

func (m *MercadoPago) CreateCheckout(ctx context.Context, req CheckoutRequest) (CheckoutResponse, error) {
	pref := mpPreference{ExternalReference: req.OrderNSU, NotificationURL: req.NotificationURL}
	for _, it := range req.Items {
		pref.Items = append(pref.Items, mpItem{
			Title:      it.Name,
			Quantity:   it.Quantity,
			UnitPrice:  centsToFloat(it.PriceCents),
			CurrencyID: "BRL",
		})
	}
	if req.Customer.Email != "" {
		pref.Payer = map[string]string{"name": req.Customer.Name, "email": req.Customer.Email}
	}
	if req.ReturnURL != "" {
		pref.BackURLs = map[string]string{"success": req.ReturnURL, "pending": req.ReturnURL, "failure": req.ReturnURL}
		pref.AutoReturn = "approved"
	}
	if req.MaxInstallments > 0 {
		pref.PaymentMethods = map[string]int{"installments": req.MaxInstallments}
	}

	var out struct {
		ID               string `json:"id"`
		InitPoint        string `json:"init_point"`
		SandboxInitPoint string `json:"sandbox_init_point"`
	}
	if err := m.c.do(ctx, http.MethodPost, "/checkout/preferences", pref, &out); err != nil {
		return CheckoutResponse{}, err
	}
	link := out.InitPoint
	if link == "" {
		link = out.SandboxInitPoint
	}
	if link == "" {
		return CheckoutResponse{}, &GatewayError{Provider: ProviderMercadoPago, StatusCode: http.StatusOK, Message: "resposta sem link de pagamento"}
	}
	return CheckoutResponse{ProviderRef: out.ID, RedirectURL: link}, nil
}

func mercadoPagoError(body []byte) string {
	var e struct {
		Message string `json:"message"`
		Cause   []struct {
			Description string `json:"description"`
		} `json:"cause"`
	}
	if json.Unmarshal(body, &e) != nil {
		return ""
	}
	if len(e.Cause) > 0 && e.Cause[0].Description != "" {
		return e.Cause[0].Description
	}
	return e.Message
}
