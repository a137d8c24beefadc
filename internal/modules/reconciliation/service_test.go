package reconciliation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/database/dbtest"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/logging"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/orders"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/payments"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/statement"
)

type countingNotifier struct {
	mu   sync.Mutex
	paid []string
}

func (n *countingNotifier) OrderPaid(_ context.Context, o orders.Order) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paid = append(n.paid, o.NSU)
}

func (n *countingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.paid)
}

type syncStamps struct {
	mu    sync.Mutex
	banks []string
}

func (s *syncStamps) MarkSynced(_ context.Context, bankID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.banks = append(s.banks, bankID)
	return nil
}

func setupService(t *testing.T) (*gorm.DB, *Service, *countingNotifier, *syncStamps) {
	t.Helper()
	models := append(orders.Models(), payments.Models()...)
	models = append(models, Models()...)
	db := dbtest.Open(t, models...)
	n := &countingNotifier{}
	banks := &syncStamps{}
	return db, NewService(db, NewMatcher(DefaultPolicy()), n, banks, logging.Discard()), n, banks
}

func pendingPixOrder(t *testing.T, db *gorm.DB) orders.Order {
	t.Helper()
	var o orders.Order
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		var err error
		o, _, err = orders.Create(context.Background(), tx, orders.CreateInput{
			Items:         []orders.ItemInput{{Name: "Páprica Defumada 100g", PriceCents: 2125, Quantity: 2}},
			CustomerName:  "Maria Silva",
			CustomerEmail: "maria@example.com",
			PaymentMethod: orders.MethodPix,
			Status:        orders.StatusPendingPix,
		})
		return err
	}))
	return o
}

func todayCredit(amount, desc string) statement.Transaction {
	return statement.Transaction{
		Date:        time.Now().Format("2006-01-02"),
		Amount:      decimal.RequireFromString(amount),
		Description: desc,
		Type:        statement.Credit,
	}
}

func statusOf(t *testing.T, db *gorm.DB, id string) string {
	t.Helper()
	var o orders.Order
	require.NoError(t, db.First(&o, "id = ?", id).Error)
	return o.Status
}

func TestProcess_AutoConfirmIsIdempotent(t *testing.T) {
	db, svc, n, banks := setupService(t)
	ctx := context.Background()
	o := pendingPixOrder(t, db)

	var title payments.PaymentTitle
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		var err error
		title, err = payments.CreateTitle(ctx, tx, payments.NewTitle{OrderID: o.ID, Provider: payments.ProviderManual, AmountCents: o.TotalCents, DueDate: "2026-10-20"})
		return err
	}))

	in := Input{
		Transactions: []statement.Transaction{
			todayCredit("42.50", "PIX RECEBIDO MARIA SILVA"),
			todayCredit("15.00", "TED RECEBIDA"),
		},
		AutoConfirm: true,
		BankID:      "itau",
	}

	out, err := svc.Process(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, 2, out.TransactionsProcessed)
	assert.Equal(t, 1, out.OrdersChecked)
	assert.Equal(t, 1, out.Matched)
	assert.Equal(t, 1, out.Confirmed)
	require.Len(t, out.Results, 1)
	assert.True(t, out.Results[0].Confirmed)

	assert.Equal(t, orders.StatusPaid, statusOf(t, db, o.ID))
	var pt payments.PaymentTitle
	require.NoError(t, db.First(&pt, "id = ?", title.ID).Error)
	assert.Equal(t, payments.TitlePaid, pt.Status)
	assert.Equal(t, 1, n.count())
	assert.Equal(t, []string{"itau"}, banks.banks)

	again, err := svc.Process(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Confirmed)
	assert.Equal(t, 1, again.TransactionsSkipped)
	assert.Equal(t, 0, again.OrdersChecked)
	assert.Equal(t, 1, n.count())

	runs, err := svc.ListRuns(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	ledger, err := orders.NewRepo(db).Ledger(ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, ledger, 1)
}

func TestProcess_WithoutAutoConfirmOnlyReports(t *testing.T) {
	db, svc, n, _ := setupService(t)
	o := pendingPixOrder(t, db)

	out, err := svc.Process(context.Background(), Input{Transactions: []statement.Transaction{todayCredit("42.50", "PIX RECEBIDO MARIA SILVA")}})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Matched)
	assert.Equal(t, 0, out.Confirmed)
	assert.Equal(t, orders.StatusPendingPix, statusOf(t, db, o.ID))
	assert.Equal(t, 0, n.count())
}

func TestProcess_MediumConfidenceIsNotConfirmed(t *testing.T) {
	db, svc, _, _ := setupService(t)
	o := pendingPixOrder(t, db)

	tx := todayCredit("42.50", "TED RECEBIDA")
	tx.Date = time.Now().AddDate(0, 0, 5).Format("2006-01-02")

	out, err := svc.Process(context.Background(), Input{Transactions: []statement.Transaction{tx}, AutoConfirm: true})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Matched)
	assert.Equal(t, 0, out.Confirmed)
	assert.Equal(t, orders.StatusPendingPix, statusOf(t, db, o.ID))
}

func TestProcess_FailureRollsBackEveryConfirmation(t *testing.T) {
	db, svc, n, _ := setupService(t)
	o := pendingPixOrder(t, db)
	require.NoError(t, db.Migrator().DropTable(&Run{}))

	_, err := svc.Process(context.Background(), Input{
		Transactions: []statement.Transaction{todayCredit("42.50", "PIX RECEBIDO MARIA SILVA")},
		AutoConfirm:  true,
	})
	require.Error(t, err)

	assert.Equal(t, orders.StatusPendingPix, statusOf(t, db, o.ID))
	var spent int64
	require.NoError(t, db.Model(&ReconciledTransaction{}).Count(&spent).Error)
	assert.Zero(t, spent)
	assert.Equal(t, 0, n.count())
}

func TestProcess_IgnoresInvalidLines(t *testing.T) {
	_, svc, _, _ := setupService(t)

	out, err := svc.Process(context.Background(), Input{Transactions: []statement.Transaction{
		{Date: "2026-02-30", Amount: decimal.RequireFromString("10.00"), Type: statement.Credit},
		{Date: "2026-10-15", Amount: decimal.Zero, Type: statement.Credit},
	}})
	require.NoError(t, err)
	assert.Equal(t, 2, out.TransactionsSkipped)
	assert.Empty(t, out.Results)
}

func TestProcess_TwinLinesConfirmTwinOrders(t *testing.T) {
	db, svc, n, _ := setupService(t)
	ctx := context.Background()
	first := pendingPixOrder(t, db)
	second := pendingPixOrder(t, db)

	in := Input{
		Transactions: []statement.Transaction{
			todayCredit("42.50", "PIX RECEBIDO"),
			todayCredit("42.50", "PIX RECEBIDO"),
		},
		AutoConfirm: true,
	}

	out, err := svc.Process(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Matched)
	assert.Equal(t, 2, out.Confirmed)
	assert.Equal(t, orders.StatusPaid, statusOf(t, db, first.ID))
	assert.Equal(t, orders.StatusPaid, statusOf(t, db, second.ID))
	assert.Equal(t, 2, n.count())

	var spent int64
	require.NoError(t, db.Model(&ReconciledTransaction{}).Count(&spent).Error)
	assert.Equal(t, int64(2), spent)

	again, err := svc.Process(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, 2, again.TransactionsSkipped)
	assert.Equal(t, 0, again.Confirmed)
}
