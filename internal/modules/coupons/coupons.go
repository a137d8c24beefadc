// Package coupons validates and redeems discount codes at checkout.
package coupons

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	KindPercent = "percent"
	KindFixed   = "fixed"
)

var (
	ErrNotFound     = errors.New("coupon not found")
	ErrInactive     = errors.New("coupon inactive")
	ErrExpired      = errors.New("coupon expired")
	ErrExhausted    = errors.New("coupon usage limit reached")
	ErrMinimumOrder = errors.New("order below coupon minimum")
)

type Coupon struct {
	ID            string     `gorm:"type:char(36);primaryKey"`
	Code          string     `gorm:"type:varchar(64);not null;uniqueIndex:ux_coupons_code"`
	Kind          string     `gorm:"type:varchar(16);not null"`
	Value         int64      `gorm:"not null"` // percent points or cents
	MinOrderCents int64      `gorm:"not null;default:0"`
	MaxUses       *int
	UsedCount     int        `gorm:"not null;default:0"`
	ExpiresAt     *time.Time `gorm:"precision:3"`
	Active        bool       `gorm:"not null"`
	CreatedAt     time.Time  `gorm:"precision:3;not null"`
	UpdatedAt     time.Time  `gorm:"precision:3;not null"`
}

func (Coupon) TableName() string { return "coupons" }

type Quote struct {
	Code          string `json:"code"`
	Kind          string `json:"discount_type"`
	Value         int64  `json:"discount_value"`
	DiscountCents int64  `json:"discount_cents"`
}

type Service struct {
	db  *gorm.DB
	now func() time.Time
}

func NewService(db *gorm.DB) *Service { return &Service{db: db, now: time.Now} }

// Validate prices the coupon against a subtotal without consuming it.
func (s *Service) Validate(ctx context.Context, code string, subtotalCents int64) (Quote, error) {
	c, err := find(ctx, s.db, code, false)
	if err != nil {
		return Quote{}, err
	}
	return quote(c, subtotalCents, s.now())
}

// Redeem prices the coupon and consumes one use. Must run inside the order transaction.
func (s *Service) Redeem(ctx context.Context, tx *gorm.DB, code string, subtotalCents int64) (Quote, error) {
	c, err := find(ctx, tx, code, true)
	if err != nil {
		return Quote{}, err
	}
	q, err := quote(c, subtotalCents, s.now())
	if err != nil {
		return Quote{}, err
	}

	upd := tx.WithContext(ctx).Model(&Coupon{}).Where("id = ?", c.ID)
	if c.MaxUses != nil {
		upd = upd.Where("used_count < ?", *c.MaxUses)
	}
	res := upd.Updates(map[string]any{
		"used_count": gorm.Expr("used_count + 1"),
		"updated_at": s.now(),
	})
	if res.Error != nil {
		return Quote{}, res.Error
	}
	if res.RowsAffected == 0 {
		return Quote{}, ErrExhausted
	}
	return q, nil
}

// Release gives back one use, for orders cancelled before payment was attempted.
func (s *Service) Release(ctx context.Context, tx *gorm.DB, code string) error {
	code = Normalize(code)
	if code == "" {
		return nil
	}
	return tx.WithContext(ctx).Model(&Coupon{}).
		Where("code = ? AND used_count > 0", code).
		Updates(map[string]any{
			"used_count": gorm.Expr("used_count - 1"),
			"updated_at": s.now(),
		}).Error
}

func find(ctx context.Context, db *gorm.DB, code string, lock bool) (Coupon, error) {
	code = Normalize(code)
	if code == "" {
		return Coupon{}, ErrNotFound
	}
	q := db.WithContext(ctx)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var c Coupon
	err := q.First(&c, "code = ?", code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Coupon{}, ErrNotFound
	}
	return c, err
}

func quote(c Coupon, subtotalCents int64, now time.Time) (Quote, error) {
	switch {
	case !c.Active:
		return Quote{}, ErrInactive
	case c.ExpiresAt != nil && now.After(*c.ExpiresAt):
		return Quote{}, ErrExpired
	case c.MaxUses != nil && c.UsedCount >= *c.MaxUses:
		return Quote{}, ErrExhausted
	case subtotalCents < c.MinOrderCents:
		return Quote{}, ErrMinimumOrder
	}

	var discount int64
	switch c.Kind {
	case KindPercent:
		discount = decimal.NewFromInt(subtotalCents).
			Mul(decimal.NewFromInt(c.Value)).
			Div(decimal.NewFromInt(100)).
			Round(0).
			IntPart()
	default:
		discount = c.Value
	}
	if discount > subtotalCents {
		discount = subtotalCents
	}
	if discount < 0 {
		discount = 0
	}
	return Quote{Code: c.Code, Kind: c.Kind, Value: c.Value, DiscountCents: discount}, nil
}

func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
