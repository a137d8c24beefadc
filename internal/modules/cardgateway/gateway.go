// Package cardgateway decides how a card payment is taken and turns that decision into a
// client action.
package cardgateway

import (
	"context"
	"strings"

	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/settings"
)

// Priority is the order in which gateway settings are consulted; the first enabled wins.
var Priority = []string{"mercadopago", "pagseguro", "infinitepay", "cielo", "stone"}

// Gateways with a hosted checkout API.
var redirectCapable = map[string]bool{"mercadopago": true, "pagseguro": true}

const DefaultInstructions = "Para pagar com cartão, entre em contato conosco pelo WhatsApp ou e-mail informando o número do pedido."

type Kind string

const (
	KindWhatsApp Kind = "whatsapp"
	KindLink     Kind = "external_link"
	KindManual   Kind = "manual"
	KindRedirect Kind = "redirect"
)

// Gateway is one of WhatsAppGateway, LinkGateway, ManualGateway or RedirectGateway.
type Gateway interface {
	Kind() Kind
	Name() string
	gateway()
}

type WhatsAppGateway struct {
	Provider string
	Number   string
}

type LinkGateway struct {
	Provider string
	URL      string
}

type ManualGateway struct {
	Provider     string
	Instructions string
}

type RedirectGateway struct {
	Provider        string
	MaxInstallments int
}

func (WhatsAppGateway) Kind() Kind { return KindWhatsApp }
func (LinkGateway) Kind() Kind     { return KindLink }
func (ManualGateway) Kind() Kind   { return KindManual }
func (RedirectGateway) Kind() Kind { return KindRedirect }

func (g WhatsAppGateway) Name() string { return g.Provider }
func (g LinkGateway) Name() string     { return g.Provider }
func (g ManualGateway) Name() string   { return g.Provider }
func (g RedirectGateway) Name() string { return g.Provider }

func (WhatsAppGateway) gateway() {}
func (LinkGateway) gateway()     {}
func (ManualGateway) gateway()   {}
func (RedirectGateway) gateway() {}

// Classify picks the variant from the populated fields of one gateway record.
func Classify(provider string, gs settings.GatewaySettings) Gateway {
	if redirectCapable[provider] &&
		strings.EqualFold(gs.CheckoutMode, "redirect") &&
		strings.TrimSpace(gs.AccessToken) != "" {
		return RedirectGateway{Provider: provider, MaxInstallments: gs.MaxInstallments}
	}
	if n := strings.TrimSpace(gs.WhatsAppNumber); n != "" {
		return WhatsAppGateway{Provider: provider, Number: n}
	}
	if l := strings.TrimSpace(gs.PaymentLink); l != "" {
		return LinkGateway{Provider: provider, URL: l}
	}
	instr := strings.TrimSpace(gs.Instructions)
	if instr == "" {
		instr = DefaultInstructions
	}
	return ManualGateway{Provider: provider, Instructions: instr}
}

type SettingsReader interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
}

type Resolver struct {
	settings SettingsReader
}

func NewResolver(s SettingsReader) *Resolver { return &Resolver{settings: s} }

// Resolve returns the first enabled gateway in Priority, or a ManualGateway with the
// default instructions when none is configured.
func (r *Resolver) Resolve(ctx context.Context) (Gateway, error) {
	for _, name := range Priority {
		var gs settings.GatewaySettings
		ok, err := r.settings.Get(ctx, settings.GatewayKey(name), &gs)
		if err != nil {
			return nil, err
		}
		if ok && gs.Enabled {
			return Classify(name, gs), nil
		}
	}
	return ManualGateway{Instructions: DefaultInstructions}, nil
}

// Redirect returns the named provider's redirect variant; ok is false when that provider
// is disabled or not set up for redirect checkout.
func (r *Resolver) Redirect(ctx context.Context, provider string) (RedirectGateway, bool, error) {
	var gs settings.GatewaySettings
	found, err := r.settings.Get(ctx, settings.GatewayKey(provider), &gs)
	if err != nil || !found || !gs.Enabled {
		return RedirectGateway{}, false, err
	}
	rg, ok := Classify(provider, gs).(RedirectGateway)
	return rg, ok, nil
}
