package checkout

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/orders"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/payments"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/shared/apperr"
)

type PaymentStatus struct {
	OrderNSU string `json:"order_nsu"`
	Status   string `json:"status"`
	Paid     bool   `json:"paid"`
}

func statusOf(o orders.Order) PaymentStatus {
	return PaymentStatus{OrderNSU: o.NSU, Status: o.Status, Paid: o.PaidAt != nil}
}

type StatusService struct {
	db       *gorm.DB
	orders   *orders.Repo
	notifier payments.PaidNotifier
	logger   *slog.Logger
}

func NewStatusService(db *gorm.DB, notifier payments.PaidNotifier, logger *slog.Logger) *StatusService {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusService{db: db, orders: orders.NewRepo(db), notifier: notifier, logger: logger}
}

var errOrderNotFound = apperr.NotFoundErr("Pedido não encontrado.")

// CheckPayment reports the current payment state of an order.
func (s *StatusService) CheckPayment(ctx context.Context, nsu string) (PaymentStatus, error) {
	o, err := s.orders.GetByNSU(ctx, nsu)
	if errors.Is(err, orders.ErrNotFound) {
		return PaymentStatus{}, errOrderNotFound
	}
	if err != nil {
		return PaymentStatus{}, err
	}
	return statusOf(o), nil
}

// ConfirmPayment marks the order paid on an operator's word. Repeating it changes nothing.
func (s *StatusService) ConfirmPayment(ctx context.Context, nsu, actor string) (PaymentStatus, error) {
	o, err := s.orders.GetByNSU(ctx, nsu)
	if errors.Is(err, orders.ErrNotFound) {
		return PaymentStatus{}, errOrderNotFound
	}
	if err != nil {
		return PaymentStatus{}, err
	}
	if o.Status == orders.StatusCancelled {
		return PaymentStatus{}, apperr.ConflictErr("Pedido cancelado não pode ser confirmado.")
	}

	var changed bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		o, changed, err = orders.MarkPaid(ctx, tx, orders.PaymentSignal{
			OrderID: o.ID,
			Actor:   actor,
			Source:  "manual",
			RefID:   paymentRef(o),
		})
		if err != nil || !changed {
			return err
		}
		_, err = payments.SettleOrderTitles(ctx, tx, o.ID, time.Now())
		return err
	})
	if err != nil {
		return PaymentStatus{}, err
	}
	if changed {
		s.logger.InfoContext(ctx, "order paid", "order_nsu", o.NSU, "actor", actor, "source", "manual")
		if s.notifier != nil {
			s.notifier.OrderPaid(ctx, o)
		}
	}
	return statusOf(o), nil
}

func paymentRef(o orders.Order) string {
	if o.PixTxID != nil {
		return *o.PixTxID
	}
	return o.NSU
}
