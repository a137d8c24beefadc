package payments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsaas_IssueBoleto(t *testing.T) {
	var created map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key-1", r.Header.Get("access_token"))
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/customers":
			assert.Equal(t, "52998224725", r.URL.Query().Get("cpfCnpj"))
			_, _ = w.Write([]byte(`{"data":[]}`))
		case r.Method == http.MethodPost && r.URL.Path == "/customers":
			_, _ = w.Write([]byte(`{"id":"cus_1"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/payments":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
			_, _ = w.Write([]byte(`{"id":"pay_1","status":"PENDING","bankSlipUrl":"https://asaas.example/b/pay_1"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/payments/pay_1/identificationField":
			_, _ = w.Write([]byte(`{"identificationField":"23793.38128 60000.000003 00000.000400 1 84340000004250"}`))
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	a := NewAsaas(srv.URL, "key-1", time.Second, srv.Client())
	out, err := a.IssueBoleto(context.Background(), BoletoRequest{
		OrderNSU:    "TN2026101500001",
		AmountCents: 4250,
		DueDate:     "2026-10-18",
		Customer:    Customer{Name: "Maria", Email: "maria@example.com", TaxID: "529.982.247-25"},
	})
	require.NoError(t, err)
	assert.Equal(t, "pay_1", out.ProviderTitleID)
	assert.Equal(t, TitlePending, out.Status)
	assert.Contains(t, out.DigitableLine, "23793")

	assert.Equal(t, "cus_1", created["customer"])
	assert.Equal(t, "BOLETO", created["billingType"])
	assert.Equal(t, 42.5, created["value"])
	assert.Equal(t, "TN2026101500001", created["externalReference"])
}

func TestAsaas_ErrorMessageSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":[{"code":"invalid_cpfCnpj","description":"O CPF/CNPJ informado é inválido."}]}`))
	}))
	defer srv.Close()

	_, err := NewAsaas(srv.URL, "k", time.Second, srv.Client()).IssueBoleto(context.Background(), BoletoRequest{})
	var ge *GatewayError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, http.StatusBadRequest, ge.StatusCode)
	assert.Equal(t, "O CPF/CNPJ informado é inválido.", GatewayMessage(err))
}

func TestMercadoPago_CreateCheckout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/checkout/preferences", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "TN2026101500002", body["external_reference"])
		items := body["items"].([]any)
		require.Len(t, items, 1)
		assert.Equal(t, 21.25, items[0].(map[string]any)["unit_price"])
		_, _ = w.Write([]byte(`{"id":"pref-1","init_point":"https://mp.example/checkout/pref-1"}`))
	}))
	defer srv.Close()

	mp := NewMercadoPago(srv.URL, "tok", time.Second, srv.Client())
	out, err := mp.CreateCheckout(context.Background(), CheckoutRequest{
		OrderNSU:  "TN2026101500002",
		Items:     []CheckoutItem{{Name: "Páprica", Quantity: 2, PriceCents: 2125}},
		ReturnURL: "https://loja.example/pedido",
	})
	require.NoError(t, err)
	assert.Equal(t, "pref-1", out.ProviderRef)
	assert.Equal(t, "https://mp.example/checkout/pref-1", out.RedirectURL)
}

func TestMercadoPago_ErrorCausePreferred(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"invalid_token","cause":[{"description":"Token de acesso inválido"}]}`))
	}))
	defer srv.Close()

	_, err := NewMercadoPago(srv.URL, "bad", time.Second, srv.Client()).CreateCheckout(context.Background(), CheckoutRequest{})
	assert.Equal(t, "Token de acesso inválido", GatewayMessage(err))
}

func TestPagSeguro_CreateCheckout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/checkouts", r.URL.Path)
		var body psCheckout
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Items, 1)
		assert.Equal(t, int64(2125), body.Items[0].UnitAmount)
		_, _ = w.Write([]byte(`{"id":"CHEC_1","links":[{"rel":"SELF","href":"https://x/self"},{"rel":"PAY","href":"https://pagseguro.example/pay/CHEC_1"}]}`))
	}))
	defer srv.Close()

	out, err := NewPagSeguro(srv.URL, "tok", time.Second, srv.Client()).CreateCheckout(context.Background(), CheckoutRequest{
		OrderNSU: "TN2026101500003",
		Items:    []CheckoutItem{{Name: "Cominho", Quantity: 1, PriceCents: 2125}},
	})
	require.NoError(t, err)
	assert.Equal(t, "CHEC_1", out.ProviderRef)
	assert.Equal(t, "https://pagseguro.example/pay/CHEC_1", out.RedirectURL)
}

func TestPagSeguro_ErrorMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error_messages":[{"parameter_name":"customer.email","description":"invalid"}]}`))
	}))
	defer srv.Close()

	_, err := NewPagSeguro(srv.URL, "tok", time.Second, srv.Client()).CreateCheckout(context.Background(), CheckoutRequest{})
	assert.Equal(t, "customer.email: invalid", GatewayMessage(err))
	assert.Contains(t, err.Error(), "pagseguro: http 400")
}
