package checkout

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/coupons"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/orders"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/payments"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/settings"
)

const (
	ModeManual     = "manual"
	ModeRegistered = "registered"

	defaultDueDays = 3
)

// BoletoIssuers hands out the configured registered-boleto client.
type BoletoIssuers interface {
	Boleto(ctx context.Context) (payments.BoletoIssuer, settings.BoletoRegisteredSettings, error)
}

type BoletoOrderResult struct {
	OrderID         string `json:"order_id"`
	OrderNSU        string `json:"order_nsu"`
	TotalCents      int64  `json:"total_cents"`
	DiscountCents   int64  `json:"discount_cents"`
	Mode            string `json:"mode"`
	DueDate         string `json:"due_date"`
	BankName        string `json:"bank_name,omitempty"`
	BankCode        string `json:"bank_code,omitempty"`
	Agency          string `json:"agency,omitempty"`
	Account         string `json:"account,omitempty"`
	Beneficiary     string `json:"beneficiary,omitempty"`
	BeneficiaryID   string `json:"beneficiary_document,omitempty"`
	Instructions    string `json:"instructions,omitempty"`
	ProviderTitleID string `json:"provider_title_id,omitempty"`
	BankSlipURL     string `json:"bank_slip_url,omitempty"`
	DigitableLine   string `json:"digitable_line,omitempty"`
}

type BoletoService struct {
	db       *gorm.DB
	settings *settings.Store
	coupons  *coupons.Service
	issuers  BoletoIssuers
	logger   *slog.Logger
	now      func() time.Time
}

func NewBoletoService(db *gorm.DB, st *settings.Store, cps *coupons.Service, issuers BoletoIssuers, logger *slog.Logger) *BoletoService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BoletoService{db: db, settings: st, coupons: cps, issuers: issuers, logger: logger, now: time.Now}
}

// CreateOrder issues a boleto order. An empty mode picks registered when it is enabled.
func (s *BoletoService) CreateOrder(ctx context.Context, r OrderRequest, mode string) (BoletoOrderResult, error) {
	if err := validateCustomer(r, true); err != nil {
		return BoletoOrderResult{}, err
	}
	if mode == "" {
		var reg settings.BoletoRegisteredSettings
		ok, err := s.settings.Get(ctx, settings.KeyBoletoRegistered, &reg)
		if err != nil {
			return BoletoOrderResult{}, err
		}
		mode = ModeManual
		if ok && reg.Enabled {
			mode = ModeRegistered
		}
	}
	if mode == ModeRegistered {
		return s.registered(ctx, r)
	}
	return s.manual(ctx, r)
}

func (s *BoletoService) manual(ctx context.Context, r OrderRequest) (BoletoOrderResult, error) {
	var bs settings.BoletoSettings
	ok, err := s.settings.Get(ctx, settings.KeyBoleto, &bs)
	if err != nil {
		return BoletoOrderResult{}, err
	}
	if !ok || !bs.Enabled {
		return BoletoOrderResult{}, ErrBoletoUnavailable
	}
	due := dueDate(s.now(), bs.DueDays)

	var out BoletoOrderResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, _, err := placeOrder(ctx, tx, s.coupons, r, orders.CreateInput{
			PaymentMethod:   orders.MethodBoleto,
			Status:          orders.StatusPending,
			PaymentProvider: payments.ProviderManual,
		})
		if err != nil {
			return err
		}
		if _, err := payments.CreateTitle(ctx, tx, payments.NewTitle{
			OrderID:     o.ID,
			Provider:    payments.ProviderManual,
			AmountCents: o.TotalCents,
			DueDate:     due,
		}); err != nil {
			return err
		}
		out = BoletoOrderResult{
			OrderID:       o.ID,
			OrderNSU:      o.NSU,
			TotalCents:    o.TotalCents,
			DiscountCents: o.DiscountCents,
			Mode:          ModeManual,
			DueDate:       due,
			BankName:      bs.BankName,
			BankCode:      bs.BankCode,
			Agency:        bs.Agency,
			Account:       bs.Account,
			Beneficiary:   bs.Beneficiary,
			BeneficiaryID: bs.BeneficiaryID,
			Instructions:  bs.Instructions,
		}
		return nil
	})
	if err != nil {
		return BoletoOrderResult{}, err
	}
	s.logger.InfoContext(ctx, "boleto order created", "order_nsu", out.OrderNSU, "mode", ModeManual)
	return out, nil
}

// registered follows create-order, call-provider, finalize. The provider call runs outside
// any transaction; a failure cancels the order.
func (s *BoletoService) registered(ctx context.Context, r OrderRequest) (BoletoOrderResult, error) {
	issuer, reg, err := s.issuers.Boleto(ctx)
	if err != nil {
		if errors.Is(err, payments.ErrNotConfigured) {
			return BoletoOrderResult{}, ErrBoletoUnavailable
		}
		return BoletoOrderResult{}, err
	}
	due := dueDate(s.now(), reg.DueDays)

	var o orders.Order
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		o, _, err = placeOrder(ctx, tx, s.coupons, r, orders.CreateInput{
			PaymentMethod:   orders.MethodBoleto,
			Status:          orders.StatusPending,
			PaymentProvider: issuer.Name(),
		})
		return err
	})
	if err != nil {
		return BoletoOrderResult{}, err
	}

	resp, perr := issuer.IssueBoleto(ctx, payments.BoletoRequest{
		OrderNSU:    o.NSU,
		AmountCents: o.TotalCents,
		DueDate:     due,
		Description: "Pedido " + o.NSU,
		Customer: payments.Customer{
			Name:  o.CustomerName,
			Email: o.CustomerEmail,
			Phone: r.CustomerPhone,
			TaxID: r.CustomerTaxID,
		},
	})
	if perr != nil {
		s.logger.ErrorContext(ctx, "boleto issue failed", "order_nsu", o.NSU, "provider", issuer.Name(), "err", perr)
		if err := abandon(ctx, s.db, s.coupons, o, "boleto: "+perr.Error()); err != nil {
			s.logger.ErrorContext(ctx, "order cancel failed", "order_nsu", o.NSU, "err", err)
		}
		return BoletoOrderResult{}, gatewayError(perr)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		status := resp.Status
		if status == "" || status == payments.TitlePending {
			status = payments.TitleIssued
		}
		if _, err := payments.CreateTitle(ctx, tx, payments.NewTitle{
			OrderID:         o.ID,
			Provider:        issuer.Name(),
			ProviderTitleID: resp.ProviderTitleID,
			Status:          status,
			AmountCents:     o.TotalCents,
			DueDate:         due,
			BankSlipURL:     resp.BankSlipURL,
			DigitableLine:   resp.DigitableLine,
		}); err != nil {
			return err
		}
		return tx.WithContext(ctx).Model(&orders.Order{}).
			Where("id = ?", o.ID).
			Updates(map[string]any{"provider_ref": resp.ProviderTitleID, "updated_at": s.now()}).Error
	})
	if err != nil {
		return BoletoOrderResult{}, err
	}

	s.logger.InfoContext(ctx, "boleto order created", "order_nsu", o.NSU, "mode", ModeRegistered, "provider_title_id", resp.ProviderTitleID)
	return BoletoOrderResult{
		OrderID:         o.ID,
		OrderNSU:        o.NSU,
		TotalCents:      o.TotalCents,
		DiscountCents:   o.DiscountCents,
		Mode:            ModeRegistered,
		DueDate:         due,
		ProviderTitleID: resp.ProviderTitleID,
		BankSlipURL:     resp.BankSlipURL,
		DigitableLine:   resp.DigitableLine,
	}, nil
}

func dueDate(now time.Time, days int) string {
	if days <= 0 {
		days = defaultDueDays
	}
	return now.AddDate(0, 0, days).Format("2006-01-02")
}
