package reconciliation

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/orders"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/payments"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/statement"
)

// PaidNotifier is told about orders that became paid; it must not block.
type PaidNotifier interface {
	OrderPaid(ctx context.Context, o orders.Order)
}

// SyncRecorder stamps the bank connection that supplied the statement.
type SyncRecorder interface {
	MarkSynced(ctx context.Context, bankID string, at time.Time) error
}

type Input struct {
	Transactions []statement.Transaction
	AutoConfirm  bool
	BankID       string
	FileKey      string
	Actor        string
}

type Output struct {
	RunID                 string   `json:"run_id"`
	TransactionsProcessed int      `json:"transactions_processed"`
	TransactionsSkipped   int      `json:"transactions_skipped"`
	OrdersChecked         int      `json:"orders_checked"`
	Matched               int      `json:"matched"`
	Confirmed             int      `json:"confirmed"`
	Results               []Result `json:"results"`
}

type Service struct {
	db       *gorm.DB
	orders   *orders.Repo
	matcher  *Matcher
	notifier PaidNotifier
	banks    SyncRecorder
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(db *gorm.DB, matcher *Matcher, notifier PaidNotifier, banks SyncRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		db:       db,
		orders:   orders.NewRepo(db),
		matcher:  matcher,
		notifier: notifier,
		banks:    banks,
		logger:   logger,
		now:      time.Now,
	}
}

// Process matches the statement against orders awaiting payment and, when asked, confirms
// the high-confidence matches. Confirmations and the run log commit together or not at all.
func (s *Service) Process(ctx context.Context, in Input) (Output, error) {
	fresh, prints, skipped, err := s.unspent(ctx, in.Transactions)
	if err != nil {
		return Output{}, err
	}

	pending, err := s.orders.ListAwaitingPayment(ctx, s.earliestOrderDate(fresh))
	if err != nil {
		return Output{}, err
	}

	results := s.matcher.Match(pending, fresh)
	out := Output{
		RunID:                 uuid.NewString(),
		TransactionsProcessed: len(in.Transactions),
		TransactionsSkipped:   skipped,
		OrdersChecked:         len(pending),
		Results:               results,
	}
	for _, r := range results {
		if r.Status == StatusMatched {
			out.Matched++
		}
	}

	actor := in.Actor
	if actor == "" {
		actor = "reconciliation"
	}

	var paid []orders.Order
	now := s.now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.AutoConfirm {
			for i := range out.Results {
				r := &out.Results[i]
				if !r.autoConfirm {
					continue
				}
				line, fp := fresh[r.txIndex], prints[r.txIndex]
				o, changed, err := orders.MarkPaid(ctx, tx, orders.PaymentSignal{
					OrderID:     r.OrderID,
					Actor:       actor,
					Source:      "statement",
					RefID:       fp,
					AmountCents: line.Cents(),
				})
				if err != nil {
					return err
				}
				if !changed {
					continue
				}
				if _, err := payments.SettleOrderTitles(ctx, tx, o.ID, now); err != nil {
					return err
				}
				if err := tx.WithContext(ctx).Create(&ReconciledTransaction{
					Fingerprint: fp,
					OrderID:     o.ID,
					RunID:       out.RunID,
					TxDate:      line.Date,
					AmountCents: line.Cents(),
					CreatedAt:   now,
				}).Error; err != nil {
					return err
				}
				r.Confirmed = true
				out.Confirmed++
				paid = append(paid, o)
			}
		}

		summary, err := json.Marshal(out.Results)
		if err != nil {
			return err
		}
		run := Run{
			ID:                    out.RunID,
			BankID:                in.BankID,
			FileKey:               optional(in.FileKey),
			Actor:                 actor,
			AutoConfirm:           in.AutoConfirm,
			TransactionsProcessed: out.TransactionsProcessed,
			TransactionsSkipped:   out.TransactionsSkipped,
			OrdersChecked:         out.OrdersChecked,
			Matched:               out.Matched,
			Confirmed:             out.Confirmed,
			Summary:               datatypes.JSON(summary),
			CreatedAt:             now,
		}
		return tx.WithContext(ctx).Create(&run).Error
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "reconciliation failed", "bank_id", in.BankID, "err", err)
		return Output{}, err
	}

	s.logger.InfoContext(ctx, "reconciliation finished",
		"run_id", out.RunID,
		"bank_id", in.BankID,
		"transactions", out.TransactionsProcessed,
		"skipped", out.TransactionsSkipped,
		"orders_checked", out.OrdersChecked,
		"matched", out.Matched,
		"confirmed", out.Confirmed,
	)

	if in.BankID != "" && s.banks != nil {
		if err := s.banks.MarkSynced(ctx, in.BankID, now); err != nil {
			s.logger.WarnContext(ctx, "bank sync stamp failed", "bank_id", in.BankID, "err", err)
		}
	}
	if s.notifier != nil {
		for _, o := range paid {
			s.notifier.OrderPaid(ctx, o)
		}
	}
	return out, nil
}

// unspent drops invalid lines and lines that already confirmed an order. It returns the
// remaining lines with their fingerprints.
func (s *Service) unspent(ctx context.Context, txs []statement.Transaction) ([]statement.Transaction, []string, int, error) {
	valid := make([]statement.Transaction, 0, len(txs))
	for _, t := range txs {
		if t.Valid() {
			valid = append(valid, t)
		}
	}
	if len(valid) == 0 {
		return nil, nil, len(txs), nil
	}
	prints := statement.Fingerprints(valid)

	var spent []string
	if err := s.db.WithContext(ctx).
		Model(&ReconciledTransaction{}).
		Where("fingerprint IN ?", prints).
		Pluck("fingerprint", &spent).Error; err != nil {
		return nil, nil, 0, err
	}
	used := make(map[string]bool, len(spent))
	for _, fp := range spent {
		used[fp] = true
	}

	fresh := make([]statement.Transaction, 0, len(valid))
	freshPrints := make([]string, 0, len(valid))
	for i, t := range valid {
		if used[prints[i]] {
			continue
		}
		fresh = append(fresh, t)
		freshPrints = append(freshPrints, prints[i])
	}
	return fresh, freshPrints, len(txs) - len(fresh), nil
}

// earliestOrderDate bounds the order scan by the statement's oldest line.
func (s *Service) earliestOrderDate(txs []statement.Transaction) time.Time {
	var min time.Time
	for _, t := range txs {
		d, err := t.Time()
		if err != nil {
			continue
		}
		if min.IsZero() || d.Before(min) {
			min = d
		}
	}
	if min.IsZero() {
		return time.Time{}
	}
	return min.AddDate(0, 0, -(s.matcher.policy.DaysAfter + 1))
}

func (s *Service) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var out []Run
	err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&out).Error
	return out, err
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
