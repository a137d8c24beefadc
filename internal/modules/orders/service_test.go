package orders

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/database/dbtest"
)

func createOrder(t *testing.T, db *gorm.DB, status string, items ...ItemInput) Order {
	t.Helper()
	if len(items) == 0 {
		items = []ItemInput{{Name: "Páprica Defumada 100g", PriceCents: 2125, Quantity: 2}}
	}
	var o Order
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		o, _, err = Create(context.Background(), tx, CreateInput{
			Items:         items,
			CustomerName:  "Maria Silva",
			CustomerEmail: "Maria@Example.com",
			PaymentMethod: MethodPix,
			Status:        status,
		})
		return err
	})
	require.NoError(t, err)
	return o
}

func TestCreate_ComputesTotalsAndNSU(t *testing.T) {
	db := dbtest.Open(t, Models()...)

	o := createOrder(t, db, StatusPendingPix)
	assert.Equal(t, int64(4250), o.SubtotalCents)
	assert.Equal(t, int64(4250), o.TotalCents)
	assert.Equal(t, StatusPendingPix, o.Status)
	assert.Equal(t, "maria@example.com", o.CustomerEmail)

	today := time.Now().Format("20060102")
	assert.Equal(t, "TN"+today+"00001", o.NSU)

	second := createOrder(t, db, StatusPending)
	assert.Equal(t, "TN"+today+"00002", second.NSU)
}

func TestOrderTimestampsRoundTrip(t *testing.T) {
	db := dbtest.Open(t, Models()...)
	o := createOrder(t, db, StatusPendingPix)

	var got Order
	require.NoError(t, db.First(&got, "id = ?", o.ID).Error)
	assert.WithinDuration(t, o.CreatedAt, got.CreatedAt, time.Millisecond)
	assert.WithinDuration(t, o.UpdatedAt, got.UpdatedAt, time.Millisecond)
	assert.Nil(t, got.PaidAt)

	_, _, err := markPaid(db, PaymentSignal{OrderID: o.ID, Actor: "admin", Source: "manual"})
	require.NoError(t, err)

	require.NoError(t, db.First(&got, "id = ?", o.ID).Error)
	require.NotNil(t, got.PaidAt)
	assert.WithinDuration(t, time.Now(), *got.PaidAt, time.Minute)

	var items []OrderItem
	require.NoError(t, db.Find(&items, "order_id = ?", o.ID).Error)
	require.Len(t, items, 1)
	assert.False(t, items[0].CreatedAt.IsZero())
}

func TestCreate_RejectsEmptyCartAndBadItems(t *testing.T) {
	db := dbtest.Open(t, Models()...)
	ctx := context.Background()

	err := db.Transaction(func(tx *gorm.DB) error {
		_, _, err := Create(ctx, tx, CreateInput{CustomerName: "x"})
		return err
	})
	assert.ErrorIs(t, err, ErrCartEmpty)

	err = db.Transaction(func(tx *gorm.DB) error {
		_, _, err := Create(ctx, tx, CreateInput{Items: []ItemInput{{Name: "Cominho", PriceCents: 100, Quantity: 0}}})
		return err
	})
	assert.ErrorIs(t, err, ErrInvalidItem)
}

func TestCreate_DiscountIsCapped(t *testing.T) {
	db := dbtest.Open(t, Models()...)
	var o Order
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		o, _, err = Create(context.Background(), tx, CreateInput{
			Items:         []ItemInput{{Name: "Orégano", PriceCents: 900, Quantity: 1}},
			CustomerName:  "Ana",
			CustomerEmail: "ana@example.com",
			PaymentMethod: MethodBoleto,
			DiscountCents: 5000,
			CouponCode:    "tudo",
		})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(900), o.DiscountCents)
	assert.Equal(t, int64(0), o.TotalCents)
	require.NotNil(t, o.CouponCode)
	assert.Equal(t, "TUDO", *o.CouponCode)
}

// markPaid applies sig in its own transaction, the way callers do.
func markPaid(db *gorm.DB, sig PaymentSignal) (Order, bool, error) {
	var (
		out     Order
		changed bool
	)
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		out, changed, err = MarkPaid(context.Background(), tx, sig)
		return err
	})
	return out, changed, err
}

func TestMarkPaid_IsIdempotent(t *testing.T) {
	db := dbtest.Open(t, Models()...)
	ctx := context.Background()
	o := createOrder(t, db, StatusPendingPix)

	paid, changed, err := markPaid(db, PaymentSignal{OrderID: o.ID, Actor: "webhook", Source: "title", RefID: "pay_1"})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, StatusPaid, paid.Status)
	stored, err := NewRepo(db).GetByNSU(ctx, o.NSU)
	require.NoError(t, err)
	require.NotNil(t, stored.PaidAt)
	firstPaidAt := *stored.PaidAt

	again, changed, err := markPaid(db, PaymentSignal{OrderID: o.ID, Actor: "reconciliation", Source: "statement", RefID: "fp"})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, StatusPaid, again.Status)
	require.NotNil(t, again.PaidAt)
	assert.True(t, firstPaidAt.Equal(*again.PaidAt))

	repo := NewRepo(db)
	ledger, err := repo.Ledger(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, ledger, 1)
	assert.Equal(t, int64(4250), ledger[0].AmountCents)
	assert.Equal(t, "title", ledger[0].Source)

	events, err := repo.Events(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "mark_paid", events[1].Action)
}

func TestMarkPaid_UnknownOrder(t *testing.T) {
	db := dbtest.Open(t, Models()...)
	_, _, err := markPaid(db, PaymentSignal{OrderID: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarkPaid_CancelledOrderStaysCancelled(t *testing.T) {
	db := dbtest.Open(t, Models()...)
	o := createOrder(t, db, StatusPending)
	_, err := NewAdminService(db).Transition(context.Background(), TransitionInput{OrderNSU: o.NSU, Actor: "admin", Action: "cancel"})
	require.NoError(t, err)

	got, changed, err := markPaid(db, PaymentSignal{OrderID: o.ID, Actor: "webhook"})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, StatusCancelled, got.Status)
}

func TestMarkPaid_ConcurrentSignalsCreditOnce(t *testing.T) {
	db := dbtest.Open(t, Models()...)
	o := createOrder(t, db, StatusPendingPix)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		changes int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, changed, err := markPaid(db, PaymentSignal{OrderID: o.ID, Actor: "webhook"})
			assert.NoError(t, err)
			if changed {
				mu.Lock()
				changes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, changes)

	ledger, err := NewRepo(db).Ledger(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Len(t, ledger, 1)
}

func TestAdminTransition(t *testing.T) {
	db := dbtest.Open(t, Models()...)
	ctx := context.Background()
	admin := NewAdminService(db)
	o := createOrder(t, db, StatusPending)

	_, err := admin.Transition(ctx, TransitionInput{OrderNSU: o.NSU, Actor: "admin", Action: "ship"})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, _, err = markPaid(db, PaymentSignal{OrderID: o.ID, Actor: "admin", Source: "manual"})
	require.NoError(t, err)

	steps := []struct{ action, want string }{
		{"process", StatusProcessing},
		{"ship", StatusShipped},
		{"deliver", StatusDelivered},
	}
	for _, st := range steps {
		got, err := admin.Transition(ctx, TransitionInput{OrderNSU: o.NSU, Actor: "admin", Action: st.action, Note: "  ok  "})
		require.NoError(t, err, st.action)
		assert.Equal(t, st.want, got.Status)
	}

	_, err = admin.Transition(ctx, TransitionInput{OrderNSU: o.NSU, Actor: "admin", Action: "cancel"})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = admin.Transition(ctx, TransitionInput{OrderNSU: "TN000", Actor: "admin", Action: "cancel"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = admin.Transition(ctx, TransitionInput{OrderNSU: o.NSU})
	assert.ErrorIs(t, err, ErrNotActionable)
}

func TestAdminList_SearchesByNSUAndEmail(t *testing.T) {
	db := dbtest.Open(t, Models()...)
	o := createOrder(t, db, StatusPending)
	createOrder(t, db, StatusPendingPix)

	res, err := NewRepo(db).AdminList(context.Background(), AdminListParams{Q: o.NSU})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Total)

	res, err = NewRepo(db).AdminList(context.Background(), AdminListParams{Q: strings.ToLower("EXAMPLE.com")})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Total)
}
