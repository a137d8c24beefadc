package checkout

import (
	"context"
	"log/slog"

	"gorm.io/gorm"

	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/coupons"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/orders"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/pix"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/settings"
)

type PixOrderResult struct {
	OrderID       string `json:"order_id"`
	OrderNSU      string `json:"order_nsu"`
	TotalCents    int64  `json:"total_cents"`
	DiscountCents int64  `json:"discount_cents"`
	PixCode       string `json:"pix_code"`
	TxID          string `json:"txid"`
}

type PixService struct {
	db       *gorm.DB
	settings *settings.Store
	coupons  *coupons.Service
	txids    *pix.TxIDGenerator
	logger   *slog.Logger
}

func NewPixService(db *gorm.DB, st *settings.Store, cps *coupons.Service, txids *pix.TxIDGenerator, logger *slog.Logger) *PixService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PixService{db: db, settings: st, coupons: cps, txids: txids, logger: logger}
}

// CreateOrder writes a pending_pix order and returns its BR Code. The code is built before
// commit, so an unusable PIX configuration leaves no order behind.
func (s *PixService) CreateOrder(ctx context.Context, r OrderRequest) (PixOrderResult, error) {
	if err := validateCustomer(r, false); err != nil {
		return PixOrderResult{}, err
	}
	cfg, ok, err := s.settings.Pix(ctx)
	if err != nil {
		return PixOrderResult{}, err
	}
	if !ok {
		return PixOrderResult{}, ErrPixUnavailable
	}

	var out PixOrderResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txid := s.txids.Next()
		o, _, err := placeOrder(ctx, tx, s.coupons, r, orders.CreateInput{
			PaymentMethod: orders.MethodPix,
			Status:        orders.StatusPendingPix,
			PixTxID:       txid,
		})
		if err != nil {
			return err
		}

		desc := cfg.Description
		if desc == "" {
			desc = "Pedido " + o.NSU
		}
		code, err := pix.Payload{
			Key:          cfg.PixKey,
			KeyType:      cfg.KeyType,
			MerchantName: cfg.MerchantName,
			MerchantCity: cfg.MerchantCity,
			AmountCents:  o.TotalCents,
			TxID:         txid,
			Description:  desc,
		}.Build()
		if err != nil {
			return err
		}

		out = PixOrderResult{
			OrderID:       o.ID,
			OrderNSU:      o.NSU,
			TotalCents:    o.TotalCents,
			DiscountCents: o.DiscountCents,
			PixCode:       code,
			TxID:          txid,
		}
		return nil
	})
	if err != nil {
		return PixOrderResult{}, err
	}
	s.logger.InfoContext(ctx, "pix order created", "order_nsu", out.OrderNSU, "total_cents", out.TotalCents)
	return out, nil
}
