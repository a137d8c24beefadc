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

type AdminService struct {
	db *gorm.DB
}

func NewAdminService(db *gorm.DB) *AdminService { return &AdminService{db: db} }

type TransitionInput struct {
	OrderNSU string
	Actor    string // admin subject from the bearer token
	Action   string // process|ship|deliver|cancel
	Note     string
}

// Transition applies a back-office fulfilment step. Payment is never set here; see MarkPaid.
func (s *AdminService) Transition(ctx context.Context, in TransitionInput) (Order, error) {
	if in.OrderNSU == "" || in.Actor == "" || in.Action == "" {
		return Order{}, ErrNotActionable
	}

	var out Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var o Order

		// row lock
		if err := tx.WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&o, "order_nsu = ?", in.OrderNSU).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		from := o.Status
		to, err := nextStatus(from, in.Action)
		if err != nil {
			return err
		}

		now := time.Now()
		res := tx.WithContext(ctx).
			Model(&Order{}).
			Where("id = ? AND status = ?", o.ID, from). // optimistic guard
			Updates(map[string]any{"status": to, "updated_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidTransition
		}

		ev := OrderEvent{
			ID:         uuid.NewString(),
			OrderID:    o.ID,
			Actor:      in.Actor,
			Action:     in.Action,
			FromStatus: from,
			ToStatus:   to,
			Note:       optional(in.Note),
			CreatedAt:  now,
		}
		if err := tx.WithContext(ctx).Create(&ev).Error; err != nil {
			return err
		}

		o.Status = to
		o.UpdatedAt = now
		out = o
		return nil
	})
	return out, err
}

func nextStatus(from, action string) (string, error) {
	switch strings.ToLower(action) {
	case "process":
		if from == StatusPaid {
			return StatusProcessing, nil
		}
	case "ship":
		if from == StatusPaid || from == StatusProcessing {
			return StatusShipped, nil
		}
	case "deliver":
		if from == StatusShipped {
			return StatusDelivered, nil
		}
	case "cancel":
		if from == StatusPending || from == StatusPendingPix {
			return StatusCancelled, nil
		}
	}
	return "", ErrInvalidTransition
}
