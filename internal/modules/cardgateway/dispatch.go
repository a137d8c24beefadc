package cardgateway

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/orders"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/shared/apperr"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/shared/taxid"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/pkg/view"
)

const genericGatewayMsg = "Não foi possível iniciar o pagamento com cartão. Tente novamente ou escolha outra forma de pagamento."

type ActionKind string

const (
	ActionOpenURL     ActionKind = "open_url"
	ActionRedirect    ActionKind = "redirect"
	ActionShowMessage ActionKind = "show_message"
)

// Action tells the client what to do next.
type Action struct {
	Kind     ActionKind `json:"kind"`
	Gateway  string     `json:"gateway,omitempty"`
	URL      string     `json:"url,omitempty"`
	Message  string     `json:"message,omitempty"`
	OrderNSU string     `json:"order_nsu,omitempty"`
}

// Checkout is the cart and buyer data a card payment starts from.
type Checkout struct {
	Items         []orders.ItemInput
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	CustomerTaxID string
	CouponCode    string
	ReturnURL     string
}

func (c Checkout) SubtotalCents() int64 {
	var total int64
	for _, it := range c.Items {
		total += it.PriceCents * int64(it.Quantity)
	}
	return total
}

type RedirectResult struct {
	OrderID     string
	OrderNSU    string
	RedirectURL string
}

// RedirectStarter creates the order and the hosted checkout of a redirect gateway.
type RedirectStarter interface {
	StartRedirect(ctx context.Context, gw RedirectGateway, c Checkout) (RedirectResult, error)
}

type Dispatcher struct {
	redirect RedirectStarter
}

func NewDispatcher(r RedirectStarter) *Dispatcher { return &Dispatcher{redirect: r} }

func (d *Dispatcher) Dispatch(ctx context.Context, g Gateway, c Checkout) (Action, error) {
	switch gw := g.(type) {
	case WhatsAppGateway:
		return Action{Kind: ActionOpenURL, Gateway: gw.Provider, URL: WhatsAppURL(gw.Number, WhatsAppMessage(c))}, nil
	case LinkGateway:
		return Action{Kind: ActionOpenURL, Gateway: gw.Provider, URL: gw.URL}, nil
	case ManualGateway:
		return Action{Kind: ActionShowMessage, Gateway: gw.Provider, Message: gw.Instructions}, nil
	case RedirectGateway:
		if d.redirect == nil {
			return Action{}, apperr.GatewayErr(genericGatewayMsg, fmt.Errorf("no redirect starter for %s", gw.Provider))
		}
		res, err := d.redirect.StartRedirect(ctx, gw, c)
		if err != nil {
			if _, ok := apperr.As(err); ok {
				return Action{}, err
			}
			return Action{}, apperr.GatewayErr(genericGatewayMsg, err)
		}
		return Action{Kind: ActionRedirect, Gateway: gw.Provider, URL: res.RedirectURL, OrderNSU: res.OrderNSU}, nil
	default:
		return Action{}, fmt.Errorf("unknown gateway %T", g)
	}
}

// WhatsAppURL builds a wa.me chat link with a pre-filled message.
func WhatsAppURL(number, message string) string {
	digits := taxid.Digits(number)
	if len(digits) == 10 || len(digits) == 11 {
		digits = "55" + digits
	}
	u := "https://wa.me/" + digits
	if message == "" {
		return u
	}
	return u + "?text=" + strings.ReplaceAll(url.QueryEscape(message), "+", "%20")
}

// WhatsAppMessage summarises the cart for the store's WhatsApp chat.
func WhatsAppMessage(c Checkout) string {
	var b strings.Builder
	b.WriteString("Olá! Gostaria de pagar meu pedido com cartão.\n\n")
	for _, it := range c.Items {
		fmt.Fprintf(&b, "%dx %s - %s\n", it.Quantity, it.Name, view.MoneyFromCents(it.PriceCents*int64(it.Quantity)))
	}
	fmt.Fprintf(&b, "\nTotal: %s", view.MoneyFromCents(c.SubtotalCents()))
	if c.CustomerName != "" {
		fmt.Fprintf(&b, "\nNome: %s", c.CustomerName)
	}
	return b.String()
}
