package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/shared/taxid"
)

// PagSeguro creates PagBank hosted checkouts.
type PagSeguro struct {
	c jsonClient
}

func NewPagSeguro(baseURL, token string, timeout time.Duration, hc *http.Client) *PagSeguro {
	c := newJSONClient(ProviderPagSeguro, baseURL, timeout, hc)
	c.headers["Authorization"] = "Bearer " + token
	c.decodeErr = pagSeguroError
	return &PagSeguro{c: c}
}

func (p *PagSeguro) Name() string { return ProviderPagSeguro }

type psItem struct {
	ReferenceID string `json:"reference_id,omitempty"`
	Name        string `json:"name"`
	Quantity    int    `json:"quantity"`
	UnitAmount  int64  `json:"unit_amount"`
}

type psCustomer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	TaxID string `json:"tax_id,omitempty"`
}

type psCheckout struct {
	ReferenceID      string      `json:"reference_id"`
	Customer         *psCustomer `json:"customer,omitempty"`
	Items            []psItem    `json:"items"`
	RedirectURL      string      `json:"redirect_url,omitempty"`
	NotificationURLs []string    `json:"notification_urls,omitempty"`
}

func (p *PagSeguro) CreateCheckout(ctx context.Context, req CheckoutRequest) (CheckoutResponse, error) {
	body := psCheckout{ReferenceID: req.OrderNSU, RedirectURL: req.ReturnURL}
	for _, it := range req.Items {
		body.Items = append(body.Items, psItem{Name: it.Name, Quantity: it.Quantity, UnitAmount: it.PriceCents})
	}
	if req.Customer.Email != "" {
		body.Customer = &psCustomer{Name: req.Customer.Name, Email: req.Customer.Email, TaxID: taxid.Digits(req.Customer.TaxID)}
	}
	if req.NotificationURL != "" {
		body.NotificationURLs = []string{req.NotificationURL}
	}

	var out struct {
		ID    string `json:"id"`
		Links []struct {
			Rel  string `json:"rel"`
			Href string `json:"href"`
		} `json:"links"`
	}
	if err := p.c.do(ctx, http.MethodPost, "/checkouts", body, &out); err != nil {
		return CheckoutResponse{}, err
	}
	for _, l := range out.Links {
		if strings.EqualFold(l.Rel, "PAY") {
			return CheckoutResponse{ProviderRef: out.ID, RedirectURL: l.Href}, nil
		}
	}
	return CheckoutResponse{}, &GatewayError{Provider: ProviderPagSeguro, StatusCode: http.StatusOK, Message: "resposta sem link de pagamento"}
}

func pagSeguroError(body []byte) string {
	var e struct {
		ErrorMessages []struct {
			Description string `json:"description"`
			Parameter   string `json:"parameter_name"`
		} `json:"error_messages"`
	}
	if json.Unmarshal(body, &e) != nil {
		return ""
	}
	msgs := make([]string, 0, len(e.ErrorMessages))
	for _, m := range e.ErrorMessages {
		if m.Parameter != "" {
			msgs = append(msgs, m.Parameter+": "+m.Description)
		} else if m.Description != "" {
			msgs = append(msgs, m.Description)
		}
	}
	return strings.Join(msgs, "; ")
}
