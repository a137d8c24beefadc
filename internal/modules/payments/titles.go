package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NewTitle struct {
	OrderID         string
	Provider        string
	ProviderTitleID string
	Status          string
	AmountCents     int64
	DueDate         string
	BankSlipURL     string
	DigitableLine   string
}

// CreateTitle inserts a payment title inside tx.
func CreateTitle(ctx context.Context, tx *gorm.DB, in NewTitle) (PaymentTitle, error) {
	now := time.Now()
	status := in.Status
	if status == "" {
		status = TitleIssued
	}
	t := PaymentTitle{
		ID:              uuid.NewString(),
		OrderID:         in.OrderID,
		Provider:        in.Provider,
		ProviderTitleID: optional(in.ProviderTitleID),
		Status:          status,
		AmountCents:     in.AmountCents,
		DueDate:         in.DueDate,
		BankSlipURL:     optional(in.BankSlipURL),
		DigitableLine:   optional(in.DigitableLine),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return t, tx.WithContext(ctx).Create(&t).Error
}

// SettleOrderTitles marks every open title of the order as paid. Paid and canceled titles
// are left alone, so paid_at is written once.
func SettleOrderTitles(ctx context.Context, tx *gorm.DB, orderID string, at time.Time) (int64, error) {
	res := tx.WithContext(ctx).Model(&PaymentTitle{}).
		Where("order_id = ? AND status NOT IN ?", orderID, []string{TitlePaid, TitleCanceled}).
		Updates(map[string]any{
			"status":     TitlePaid,
			"paid_at":    at,
			"updated_at": at,
		})
	return res.RowsAffected, res.Error
}

// applyTitleStatus moves one title to status. Paid is terminal.
func applyTitleStatus(ctx context.Context, tx *gorm.DB, t PaymentTitle, status string, at time.Time) (bool, error) {
	if t.Status == status || t.Status == TitlePaid {
		return false, nil
	}
	updates := map[string]any{"status": status, "updated_at": at}
	if status == TitlePaid && t.PaidAt == nil {
		updates["paid_at"] = at
	}
	res := tx.WithContext(ctx).Model(&PaymentTitle{}).
		Where("id = ? AND status = ?", t.ID, t.Status). // optimistic guard
		Updates(updates)
	return res.RowsAffected > 0, res.Error
}

func TitlesForOrder(ctx context.Context, db *gorm.DB, orderID string) ([]PaymentTitle, error) {
	var out []PaymentTitle
	err := db.WithContext(ctx).Order("created_at ASC").Find(&out, "order_id = ?", orderID).Error
	return out, err
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
