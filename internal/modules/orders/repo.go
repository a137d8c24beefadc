package orders

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
)

type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

func (r *Repo) GetByNSU(ctx context.Context, nsu string) (Order, error) {
	var o Order
	err := r.db.WithContext(ctx).First(&o, "order_nsu = ?", strings.TrimSpace(nsu)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Order{}, ErrNotFound
	}
	return o, err
}

func (r *Repo) GetWithItems(ctx context.Context, id string) (Order, []OrderItem, error) {
	var o Order
	if err := r.db.WithContext(ctx).First(&o, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Order{}, nil, ErrNotFound
		}
		return Order{}, nil, err
	}
	items, err := r.Items(ctx, id)
	if err != nil {
		return Order{}, nil, err
	}
	return o, items, nil
}

func (r *Repo) Items(ctx context.Context, orderID string) ([]OrderItem, error) {
	var items []OrderItem
	err := r.db.WithContext(ctx).Order("created_at ASC").Find(&items, "order_id = ?", orderID).Error
	return items, err
}

// ListAwaitingPayment returns pending orders created at or after since, oldest first.
func (r *Repo) ListAwaitingPayment(ctx context.Context, since time.Time) ([]Order, error) {
	var out []Order
	q := r.db.WithContext(ctx).Where("status IN ?", AwaitingPayment)
	if !since.IsZero() {
		q = q.Where("created_at >= ?", since)
	}
	err := q.Order("created_at ASC").Find(&out).Error
	return out, err
}

type AdminListParams struct {
	Q        string
	Status   string
	Page     int
	PageSize int
}

type AdminListResult struct {
	Items []Order
	Total int64
}

func (r *Repo) AdminList(ctx context.Context, in AdminListParams) (AdminListResult, error) {
	page := in.Page
	if page < 1 {
		page = 1
	}
	size := in.PageSize
	if size < 1 || size > 100 {
		size = 30
	}

	q := strings.TrimSpace(in.Q)
	status := strings.TrimSpace(in.Status)

	base := r.db.WithContext(ctx).Model(&Order{})
	if status != "" {
		base = base.Where("status = ?", status)
	}
	if q != "" {
		like := "%" + q + "%"
		base = base.Where("(order_nsu LIKE ? OR customer_email LIKE ? OR customer_name LIKE ?)", like, like, like)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return AdminListResult{}, err
	}

	var items []Order
	if err := base.
		Order("created_at DESC").
		Limit(size).
		Offset((page - 1) * size).
		Find(&items).Error; err != nil {
		return AdminListResult{}, err
	}
	return AdminListResult{Items: items, Total: total}, nil
}

func (r *Repo) Events(ctx context.Context, orderID string) ([]OrderEvent, error) {
	var ev []OrderEvent
	err := r.db.WithContext(ctx).Order("created_at ASC").Find(&ev, "order_id = ?", orderID).Error
	return ev, err
}

func (r *Repo) Ledger(ctx context.Context, orderID string) ([]FinancialEntry, error) {
	var out []FinancialEntry
	err := r.db.WithContext(ctx).Order("created_at ASC").Find(&out, "order_id = ?", orderID).Error
	return out, err
}
