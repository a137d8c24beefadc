// Package checkout creates orders for the PIX, boleto and card flows and drives the
// client-side PIX payment session.
package checkout

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/coupons"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/orders"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/shared/apperr"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/shared/taxid"
)

// OrderRequest is the cart and buyer data every checkout flow starts from.
type OrderRequest struct {
	Items         []orders.ItemInput `json:"items"`
	CustomerName  string             `json:"customer_name"`
	CustomerEmail string             `json:"customer_email"`
	CustomerPhone string             `json:"customer_phone,omitempty"`
	CustomerTaxID string             `json:"customer_tax_id,omitempty"`
	CouponCode    string             `json:"coupon_code,omitempty"`
}

func (r OrderRequest) SubtotalCents() int64 {
	var total int64
	for _, it := range r.Items {
		total += it.PriceCents * int64(it.Quantity)
	}
	return total
}

var validate = validator.New()

func validateCustomer(r OrderRequest, requireTaxID bool) error {
	fields := map[string]string{}
	if len(strings.TrimSpace(r.CustomerName)) < 2 {
		fields["customer_name"] = "Informe seu nome."
	}
	if err := validate.Var(strings.TrimSpace(r.CustomerEmail), "required,email"); err != nil {
		fields["customer_email"] = "Informe um e-mail válido."
	}
	if requireTaxID {
		if !taxid.Valid(r.CustomerTaxID) {
			fields["customer_tax_id"] = "Informe um CPF ou CNPJ válido."
		}
	} else if r.CustomerTaxID != "" && !taxid.Valid(r.CustomerTaxID) {
		fields["customer_tax_id"] = "CPF ou CNPJ inválido."
	}
	if len(fields) > 0 {
		return apperr.InvalidErr("Verifique os dados informados.", fields)
	}
	return nil
}

// placeOrder redeems the coupon and writes the order inside tx.
func placeOrder(ctx context.Context, tx *gorm.DB, cps *coupons.Service, r OrderRequest, in orders.CreateInput) (orders.Order, []orders.OrderItem, error) {
	in.Items = r.Items
	in.CustomerName = r.CustomerName
	in.CustomerEmail = r.CustomerEmail
	in.CustomerPhone = r.CustomerPhone
	in.CustomerTaxID = taxid.Digits(r.CustomerTaxID)

	if code := coupons.Normalize(r.CouponCode); code != "" && cps != nil {
		q, err := cps.Redeem(ctx, tx, code, r.SubtotalCents())
		if err != nil {
			return orders.Order{}, nil, CouponError(err)
		}
		in.CouponCode = q.Code
		in.DiscountCents = q.DiscountCents
	}

	o, items, err := orders.Create(ctx, tx, in)
	if err != nil {
		return orders.Order{}, nil, orderError(err)
	}
	return o, items, nil
}

// abandon cancels an order whose payment could not be started and gives its coupon back.
func abandon(ctx context.Context, db *gorm.DB, cps *coupons.Service, o orders.Order, reason string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.WithContext(ctx).Model(&orders.Order{}).
			Where("id = ? AND status IN ?", o.ID, orders.AwaitingPayment).
			Updates(map[string]any{"status": orders.StatusCancelled, "updated_at": time.Now()})
		if res.Error != nil || res.RowsAffected == 0 {
			return res.Error
		}
		note := reason
		if len(note) > 255 {
			note = note[:255]
		}
		if err := orders.RecordEvent(ctx, tx, o.ID, "system", "cancel", o.Status, orders.StatusCancelled, note); err != nil {
			return err
		}
		if o.CouponCode != nil && cps != nil {
			return cps.Release(ctx, tx, *o.CouponCode)
		}
		return nil
	})
}
