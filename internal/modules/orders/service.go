package orders

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	EventPaymentSucceeded = "payment_succeeded"
	ledgerRefOrder        = "order"
)

type ItemInput struct {
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Quantity   int    `json:"quantity"`
}

type CreateInput struct {
	Items []ItemInput

	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	CustomerTaxID string

	PaymentMethod   string
	Status          string
	Installments    int
	DiscountCents   int64
	CouponCode      string
	PixTxID         string
	PaymentProvider string
}

// PaymentSignal is one observation that an order has been paid.
type PaymentSignal struct {
	OrderID     string
	Actor       string // webhook|reconciliation|admin
	Source      string // title|statement|manual|provider
	RefID       string
	AmountCents int64 // zero means the order total
	Note        string
}

// Create persists a new order with its items inside tx and returns it.
func Create(ctx context.Context, tx *gorm.DB, in CreateInput) (Order, []OrderItem, error) {
	if len(in.Items) == 0 {
		return Order{}, nil, ErrCartEmpty
	}

	now := time.Now()
	orderID := uuid.NewString()
	items := make([]OrderItem, 0, len(in.Items))
	var subtotal int64
	for _, it := range in.Items {
		name := strings.TrimSpace(it.Name)
		if name == "" || it.Quantity <= 0 || it.PriceCents < 0 {
			return Order{}, nil, ErrInvalidItem
		}
		line := it.PriceCents * int64(it.Quantity)
		subtotal += line
		items = append(items, OrderItem{
			ID:             uuid.NewString(),
			OrderID:        orderID,
			Name:           name,
			PriceCents:     it.PriceCents,
			Quantity:       it.Quantity,
			LineTotalCents: line,
			CreatedAt:      now,
		})
	}

	discount := in.DiscountCents
	if discount < 0 {
		discount = 0
	}
	if discount > subtotal {
		discount = subtotal
	}

	nsu, err := NextNSU(ctx, tx, now)
	if err != nil {
		return Order{}, nil, err
	}

	status := in.Status
	if status == "" {
		status = StatusPending
	}
	installments := in.Installments
	if installments < 1 {
		installments = 1
	}

	o := Order{
		ID:              orderID,
		NSU:             nsu,
		Status:          status,
		SubtotalCents:   subtotal,
		DiscountCents:   discount,
		TotalCents:      subtotal - discount,
		CouponCode:      optional(strings.ToUpper(in.CouponCode)),
		CustomerName:    strings.TrimSpace(in.CustomerName),
		CustomerEmail:   strings.ToLower(strings.TrimSpace(in.CustomerEmail)),
		CustomerPhone:   optional(in.CustomerPhone),
		CustomerTaxID:   optional(in.CustomerTaxID),
		PaymentMethod:   in.PaymentMethod,
		Installments:    installments,
		PixTxID:         optional(in.PixTxID),
		PaymentProvider: optional(in.PaymentProvider),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := tx.WithContext(ctx).Create(&o).Error; err != nil {
		return Order{}, nil, err
	}
	if err := tx.WithContext(ctx).Create(&items).Error; err != nil {
		return Order{}, nil, err
	}

	ev := OrderEvent{
		ID:         uuid.NewString(),
		OrderID:    o.ID,
		Actor:      "checkout",
		Action:     "create",
		FromStatus: "",
		ToStatus:   status,
		CreatedAt:  now,
	}
	if err := tx.WithContext(ctx).Create(&ev).Error; err != nil {
		return Order{}, nil, err
	}
	return o, items, nil
}

// MarkPaid moves an order awaiting payment to paid. A repeated signal returns changed=false
// and writes nothing. Must run inside tx.
func MarkPaid(ctx context.Context, tx *gorm.DB, sig PaymentSignal) (Order, bool, error) {
	var o Order
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&o, "id = ?", sig.OrderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Order{}, false, ErrNotFound
	}
	if err != nil {
		return Order{}, false, err
	}
	if !o.IsAwaitingPayment() {
		return o, false, nil
	}

	now := time.Now()
	amount := sig.AmountCents
	if amount <= 0 {
		amount = o.TotalCents
	}

	res := tx.WithContext(ctx).Model(&Order{}).
		Where("id = ? AND status IN ?", o.ID, AwaitingPayment). // optimistic guard
		Updates(map[string]any{
			"status":     StatusPaid,
			"paid_cents": amount,
			"paid_at":    now,
			"updated_at": now,
		})
	if res.Error != nil {
		return Order{}, false, res.Error
	}
	if res.RowsAffected == 0 {
		if err := tx.WithContext(ctx).First(&o, "id = ?", o.ID).Error; err != nil {
			return Order{}, false, err
		}
		return o, false, nil
	}

	if err := EnsureFinancialEntry(ctx, tx, FinancialEntry{
		ID:          uuid.NewString(),
		OrderID:     o.ID,
		Event:       EventPaymentSucceeded,
		AmountCents: amount,
		Source:      sig.Source,
		RefType:     ledgerRefOrder,
		RefID:       o.ID,
		CreatedAt:   now,
	}); err != nil {
		return Order{}, false, err
	}

	from := o.Status
	ev := OrderEvent{
		ID:         uuid.NewString(),
		OrderID:    o.ID,
		Actor:      sig.Actor,
		Action:     "mark_paid",
		FromStatus: from,
		ToStatus:   StatusPaid,
		Note:       optional(noteFor(sig)),
		CreatedAt:  now,
	}
	if err := tx.WithContext(ctx).Create(&ev).Error; err != nil {
		return Order{}, false, err
	}

	o.Status = StatusPaid
	o.PaidCents = amount
	o.PaidAt = &now
	o.UpdatedAt = now
	return o, true, nil
}

// RecordEvent appends one entry to the order's audit trail.
func RecordEvent(ctx context.Context, tx *gorm.DB, orderID, actor, action, from, to, note string) error {
	return tx.WithContext(ctx).Create(&OrderEvent{
		ID:         uuid.NewString(),
		OrderID:    orderID,
		Actor:      actor,
		Action:     action,
		FromStatus: from,
		ToStatus:   to,
		Note:       optional(note),
		CreatedAt:  time.Now(),
	}).Error
}

// EnsureFinancialEntry writes the ledger entry unless one already exists for the same reference.
func EnsureFinancialEntry(ctx context.Context, tx *gorm.DB, e FinancialEntry) error {
	var cnt int64
	if err := tx.WithContext(ctx).
		Model(&FinancialEntry{}).
		Where("ref_type = ? AND ref_id = ? AND event = ?", e.RefType, e.RefID, e.Event).
		Count(&cnt).Error; err != nil {
		return err
	}
	if cnt > 0 {
		return nil
	}
	return tx.WithContext(ctx).Create(&e).Error
}

func noteFor(sig PaymentSignal) string {
	if sig.Note != "" {
		return sig.Note
	}
	if sig.RefID == "" {
		return sig.Source
	}
	n := sig.Source + ":" + sig.RefID
	if len(n) > 255 {
		n = n[:255]
	}
	return n
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
