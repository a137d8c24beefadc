package checkout

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/cardgateway"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/coupons"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/orders"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/payments"
)

// CheckoutProviders hands out the hosted checkout client of a gateway.
type CheckoutProviders interface {
	Checkout(ctx context.Context, gateway string) (payments.CheckoutProvider, error)
}

// CardService starts redirect checkouts; it is the cardgateway.RedirectStarter of the app.
type CardService struct {
	db        *gorm.DB
	coupons   *coupons.Service
	providers CheckoutProviders
	baseURL   string
	logger    *slog.Logger
}

func NewCardService(db *gorm.DB, cps *coupons.Service, providers CheckoutProviders, publicBaseURL string, logger *slog.Logger) *CardService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CardService{db: db, coupons: cps, providers: providers, baseURL: strings.TrimRight(publicBaseURL, "/"), logger: logger}
}

var _ cardgateway.RedirectStarter = (*CardService)(nil)

func (s *CardService) StartRedirect(ctx context.Context, gw cardgateway.RedirectGateway, c cardgateway.Checkout) (cardgateway.RedirectResult, error) {
	r := OrderRequest{
		Items:         c.Items,
		CustomerName:  c.CustomerName,
		CustomerEmail: c.CustomerEmail,
		CustomerPhone: c.CustomerPhone,
		CustomerTaxID: c.CustomerTaxID,
		CouponCode:    c.CouponCode,
	}
	if err := validateCustomer(r, false); err != nil {
		return cardgateway.RedirectResult{}, err
	}
	provider, err := s.providers.Checkout(ctx, gw.Provider)
	if err != nil {
		if errors.Is(err, payments.ErrNotConfigured) {
			return cardgateway.RedirectResult{}, ErrCardUnavailable
		}
		return cardgateway.RedirectResult{}, err
	}

	// Phase 1: pending card order.
	var (
		o     orders.Order
		items []orders.OrderItem
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		o, items, err = placeOrder(ctx, tx, s.coupons, r, orders.CreateInput{
			PaymentMethod:   orders.MethodCard,
			Status:          orders.StatusPending,
			PaymentProvider: provider.Name(),
		})
		return err
	})
	if err != nil {
		return cardgateway.RedirectResult{}, err
	}

	// Phase 2: provider call, outside any transaction.
	req := payments.CheckoutRequest{
		OrderNSU:        o.NSU,
		TotalCents:      o.TotalCents,
		ReturnURL:       s.returnURL(c.ReturnURL, o.NSU),
		MaxInstallments: gw.MaxInstallments,
		Customer: payments.Customer{
			Name:  o.CustomerName,
			Email: o.CustomerEmail,
			Phone: c.CustomerPhone,
			TaxID: c.CustomerTaxID,
		},
	}
	req.Items = checkoutItems(items, o.DiscountCents)
	resp, perr := provider.CreateCheckout(ctx, req)

	// Phase 3: finalize.
	if perr != nil {
		s.logger.ErrorContext(ctx, "card checkout failed", "order_nsu", o.NSU, "provider", provider.Name(), "err", perr)
		if err := abandon(ctx, s.db, s.coupons, o, provider.Name()+": "+perr.Error()); err != nil {
			s.logger.ErrorContext(ctx, "order cancel failed", "order_nsu", o.NSU, "err", err)
		}
		return cardgateway.RedirectResult{}, gatewayError(perr)
	}
	if err := s.db.WithContext(ctx).Model(&orders.Order{}).
		Where("id = ?", o.ID).
		Updates(map[string]any{"provider_ref": resp.ProviderRef, "updated_at": time.Now()}).Error; err != nil {
		return cardgateway.RedirectResult{}, err
	}

	s.logger.InfoContext(ctx, "card checkout started", "order_nsu", o.NSU, "provider", provider.Name())
	return cardgateway.RedirectResult{OrderID: o.ID, OrderNSU: o.NSU, RedirectURL: resp.RedirectURL}, nil
}

func (s *CardService) returnURL(requested, nsu string) string {
	if requested != "" {
		return requested
	}
	if s.baseURL == "" {
		return ""
	}
	return s.baseURL + "/pedido/" + nsu
}

// checkoutItems turns order lines into provider items. A discount becomes a single
// "Pedido" line so the charged total matches the order.
func checkoutItems(items []orders.OrderItem, discountCents int64) []payments.CheckoutItem {
	if discountCents <= 0 {
		out := make([]payments.CheckoutItem, 0, len(items))
		for _, it := range items {
			out = append(out, payments.CheckoutItem{Name: it.Name, Quantity: it.Quantity, PriceCents: it.PriceCents})
		}
		return out
	}
	var total int64
	names := make([]string, 0, len(items))
	for _, it := range items {
		total += it.LineTotalCents
		names = append(names, it.Name)
	}
	return []payments.CheckoutItem{{
		Name:        "Pedido com desconto",
		Quantity:    1,
		PriceCents:  total - discountCents,
		Description: strings.Join(names, ", "),
	}}
}
