package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/shared/taxid"
)

const AsaasSandboxURL = "https://sandbox.asaas.com/api/v3"

// Asaas issues registered boletos through the Asaas v3 API.
type Asaas struct {
	c jsonClient
}

func NewAsaas(baseURL, apiKey string, timeout time.Duration, hc *http.Client) *Asaas {
	c := newJSONClient(ProviderAsaas, baseURL, timeout, hc)
	c.headers["access_token"] = apiKey
	c.decodeErr = asaasError
	return &Asaas{c: c}
}

func (a *Asaas) Name() string { return ProviderAsaas }

type asaasCustomer struct {
	ID                string `json:"id,omitempty"`
	Name              string `json:"name"`
	Email             string `json:"email,omitempty"`
	CpfCnpj           string `json:"cpfCnpj"`
	MobilePhone       string `json:"mobilePhone,omitempty"`
	ExternalReference string `json:"externalReference,omitempty"`
}

type asaasPayment struct {
	ID                string  `json:"id,omitempty"`
	Customer          string  `json:"customer"`
	BillingType       string  `json:"billingType"`
	Value             float64 `json:"value"`
	DueDate           string  `json:"dueDate"`
	Description       string  `json:"description,omitempty"`
	ExternalReference string  `json:"externalReference,omitempty"`
	Status            string  `json:"status,omitempty"`
	BankSlipURL       string  `json:"bankSlipUrl,omitempty"`
}

type asaasList struct {
	Data []asaasCustomer `json:"data"`
}

func (a *Asaas) IssueBoleto(ctx context.Context, req BoletoRequest) (BoletoResponse, error) {
	customerID, err := a.customer(ctx, req.Customer)
	if err != nil {
		return BoletoResponse{}, err
	}

	var pay asaasPayment
	if err := a.c.do(ctx, http.MethodPost, "/payments", asaasPayment{
		Customer:          customerID,
		BillingType:       "BOLETO",
		Value:             centsToFloat(req.AmountCents),
		DueDate:           req.DueDate,
		Description:       req.Description,
		ExternalReference: req.OrderNSU,
	}, &pay); err != nil {
		return BoletoResponse{}, err
	}

	var ident struct {
		IdentificationField string `json:"identificationField"`
	}
	if err := a.c.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(pay.ID)+"/identificationField", nil, &ident); err != nil {
		return BoletoResponse{}, err
	}

	return BoletoResponse{
		ProviderTitleID: pay.ID,
		BankSlipURL:     pay.BankSlipURL,
		DigitableLine:   ident.IdentificationField,
		Status:          NormalizeStatus(pay.Status),
	}, nil
}

// customer finds the Asaas customer by CPF/CNPJ, creating it when missing.
func (a *Asaas) customer(ctx context.Context, in Customer) (string, error) {
	doc := taxid.Digits(in.TaxID)

	var found asaasList
	if err := a.c.do(ctx, http.MethodGet, "/customers?cpfCnpj="+url.QueryEscape(doc), nil, &found); err != nil {
		return "", err
	}
	if len(found.Data) > 0 && found.Data[0].ID != "" {
		return found.Data[0].ID, nil
	}

	var created asaasCustomer
	if err := a.c.do(ctx, http.MethodPost, "/customers", asaasCustomer{
		Name:        in.Name,
		Email:       strings.ToLower(in.Email),
		CpfCnpj:     doc,
		MobilePhone: taxid.Digits(in.Phone),
	}, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

func asaasError(body []byte) string {
	var e struct {
		Errors []struct {
			Description string `json:"description"`
		} `json:"errors"`
	}
	if json.Unmarshal(body, &e) != nil {
		return ""
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, x := range e.Errors {
		if x.Description != "" {
			msgs = append(msgs, x.Description)
		}
	}
	return strings.Join(msgs, "; ")
}
