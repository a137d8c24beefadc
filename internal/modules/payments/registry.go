package payments

import (
	"context"
	"net/http"
	"strings"

	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/config"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/settings"
)

// Registry builds provider clients from the credentials stored in settings.
type Registry struct {
	settings *settings.Store
	cfg      config.PaymentsConfig
	http     *http.Client
}

func NewRegistry(st *settings.Store, cfg config.PaymentsConfig, hc *http.Client) *Registry {
	return &Registry{settings: st, cfg: cfg, http: hc}
}

// Checkout returns the redirect checkout client of gateway. Only gateways with an API
// integration have one.
func (r *Registry) Checkout(ctx context.Context, gateway string) (CheckoutProvider, error) {
	var gs settings.GatewaySettings
	ok, err := r.settings.Get(ctx, settings.GatewayKey(gateway), &gs)
	if err != nil {
		return nil, err
	}
	if !ok || !gs.Enabled || strings.TrimSpace(gs.AccessToken) == "" {
		return nil, ErrNotConfigured
	}
	switch gateway {
	case ProviderMercadoPago:
		return NewMercadoPago(r.cfg.MercadoPagoBaseURL, gs.AccessToken, r.cfg.ProviderTimeout, r.http), nil
	case ProviderPagSeguro:
		return NewPagSeguro(r.cfg.PagSeguroBaseURL, gs.AccessToken, r.cfg.ProviderTimeout, r.http), nil
	default:
		return nil, ErrNotConfigured
	}
}

// Boleto returns the registered boleto issuer and its settings.
func (r *Registry) Boleto(ctx context.Context) (BoletoIssuer, settings.BoletoRegisteredSettings, error) {
	var bs settings.BoletoRegisteredSettings
	ok, err := r.settings.Get(ctx, settings.KeyBoletoRegistered, &bs)
	if err != nil {
		return nil, bs, err
	}
	if !ok || !bs.Enabled || strings.TrimSpace(bs.APIKey) == "" {
		return nil, bs, ErrNotConfigured
	}
	if bs.Provider != "" && bs.Provider != ProviderAsaas {
		return nil, bs, ErrNotConfigured
	}
	base := r.cfg.AsaasBaseURL
	if bs.Sandbox {
		base = AsaasSandboxURL
	}
	return NewAsaas(base, bs.APIKey, r.cfg.ProviderTimeout, r.http), bs, nil
}
