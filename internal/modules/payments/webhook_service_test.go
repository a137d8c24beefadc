package payments

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/database/dbtest"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/logging"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/orders"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/settings"
)

type recordingNotifier struct {
	mu   sync.Mutex
	nsus []string
}

func (n *recordingNotifier) OrderPaid(_ context.Context, o orders.Order) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nsus = append(n.nsus, o.NSU)
}

func (n *recordingNotifier) calls() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.nsus...)
}

type webhookFixture struct {
	db       *gorm.DB
	store    *settings.Store
	notifier *recordingNotifier
	svc      *WebhookService
}

func newWebhookFixture(t *testing.T) webhookFixture {
	t.Helper()
	models := append(orders.Models(), Models()...)
	models = append(models, &settings.Record{})
	db := dbtest.Open(t, models...)
	store := settings.NewStore(db)
	n := &recordingNotifier{}
	return webhookFixture{
		db:       db,
		store:    store,
		notifier: n,
		svc:      NewWebhookService(db, store, n, logging.Discard()),
	}
}

func (f webhookFixture) boletoOrder(t *testing.T, providerTitleID string) (orders.Order, PaymentTitle) {
	t.Helper()
	ctx := context.Background()
	var (
		o     orders.Order
		title PaymentTitle
	)
	err := f.db.Transaction(func(tx *gorm.DB) error {
		var err error
		o, _, err = orders.Create(ctx, tx, orders.CreateInput{
			Items:         []orders.ItemInput{{Name: "Açafrão da Terra 80g", PriceCents: 1890, Quantity: 1}},
			CustomerName:  "João Pereira",
			CustomerEmail: "joao@example.com",
			CustomerTaxID: "52998224725",
			PaymentMethod: orders.MethodBoleto,
			Status:        orders.StatusPending,
		})
		if err != nil {
			return err
		}
		title, err = CreateTitle(ctx, tx, NewTitle{
			OrderID:         o.ID,
			Provider:        ProviderAsaas,
			ProviderTitleID: providerTitleID,
			AmountCents:     o.TotalCents,
			DueDate:         "2026-10-20",
		})
		return err
	})
	require.NoError(t, err)
	return o, title
}

func (f webhookFixture) reloadOrder(t *testing.T, id string) orders.Order {
	t.Helper()
	var o orders.Order
	require.NoError(t, f.db.First(&o, "id = ?", id).Error)
	return o
}

func (f webhookFixture) reloadTitle(t *testing.T, id string) PaymentTitle {
	t.Helper()
	var pt PaymentTitle
	require.NoError(t, f.db.First(&pt, "id = ?", id).Error)
	return pt
}

func TestWebhook_Authorize(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.Authorize(ctx, "anything"), ErrUnauthorized)

	require.NoError(t, f.store.Put(ctx, settings.KeyBoleto, settings.BoletoSettings{WebhookSecret: "manual-secret"}))
	assert.NoError(t, f.svc.Authorize(ctx, "manual-secret"))

	require.NoError(t, f.store.Put(ctx, settings.KeyBoletoRegistered, settings.BoletoRegisteredSettings{WebhookSecret: "asaas-secret"}))
	assert.NoError(t, f.svc.Authorize(ctx, "asaas-secret"))
	assert.ErrorIs(t, f.svc.Authorize(ctx, "manual-secret"), ErrUnauthorized)
	assert.ErrorIs(t, f.svc.Authorize(ctx, ""), ErrUnauthorized)
}

func TestWebhook_PaidByTitleIsIdempotent(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()
	o, title := f.boletoOrder(t, "pay_123")

	body := []byte(`{"provider_title_id":"pay_123","status":"RECEIVED"}`)
	res, err := f.svc.Handle(ctx, body)
	require.NoError(t, err)
	assert.True(t, res.Updated)
	assert.Nil(t, res.TitleError)

	pt := f.reloadTitle(t, title.ID)
	assert.Equal(t, TitlePaid, pt.Status)
	require.NotNil(t, pt.PaidAt)
	firstPaidAt := *pt.PaidAt

	got := f.reloadOrder(t, o.ID)
	assert.Equal(t, orders.StatusPaid, got.Status)
	assert.Equal(t, []string{o.NSU}, f.notifier.calls())

	res, err = f.svc.Handle(ctx, body)
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.False(t, res.Updated)

	// Same meaning, different bytes: a new event that changes nothing.
	res, err = f.svc.Handle(ctx, []byte(`{"provider_title_id":"pay_123","order_nsu":"`+o.NSU+`","status":"CONFIRMED"}`))
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.False(t, res.Updated)

	pt = f.reloadTitle(t, title.ID)
	assert.True(t, firstPaidAt.Equal(*pt.PaidAt))
	assert.Equal(t, []string{o.NSU}, f.notifier.calls())

	ledger, err := orders.NewRepo(f.db).Ledger(ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, ledger, 1)

	var events int64
	require.NoError(t, f.db.Model(&ProviderEvent{}).Count(&events).Error)
	assert.Equal(t, int64(2), events)
}

func TestWebhook_OrderReferenceSettlesLinkedTitles(t *testing.T) {
	f := newWebhookFixture(t)
	o, title := f.boletoOrder(t, "")

	res, err := f.svc.Handle(context.Background(), []byte(`{"order_nsu":"`+o.NSU+`","status":"paid"}`))
	require.NoError(t, err)
	assert.True(t, res.Updated)

	assert.Equal(t, orders.StatusPaid, f.reloadOrder(t, o.ID).Status)
	assert.Equal(t, TitlePaid, f.reloadTitle(t, title.ID).Status)
}

func TestWebhook_UnknownTitleReportsTitleError(t *testing.T) {
	f := newWebhookFixture(t)

	res, err := f.svc.Handle(context.Background(), []byte(`{"provider_title_id":"missing","status":"RECEIVED"}`))
	require.NoError(t, err)
	assert.False(t, res.Updated)
	require.NotNil(t, res.TitleError)
	assert.Contains(t, *res.TitleError, "missing")
	assert.Empty(t, f.notifier.calls())
}

func TestWebhook_AsaasOverdueThenPaidStaysPaid(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()
	o, title := f.boletoOrder(t, "pay_9")

	res, err := f.svc.Handle(ctx, []byte(`{"event":"PAYMENT_OVERDUE","payment":{"id":"pay_9","status":"OVERDUE"}}`))
	require.NoError(t, err)
	assert.True(t, res.Updated)
	assert.Equal(t, TitleExpired, f.reloadTitle(t, title.ID).Status)
	assert.Equal(t, orders.StatusPending, f.reloadOrder(t, o.ID).Status)

	res, err = f.svc.Handle(ctx, []byte(`{"event":"PAYMENT_RECEIVED","payment":{"id":"pay_9","externalReference":"`+o.NSU+`"}}`))
	require.NoError(t, err)
	assert.True(t, res.Updated)
	assert.Equal(t, TitlePaid, f.reloadTitle(t, title.ID).Status)
	assert.Equal(t, orders.StatusPaid, f.reloadOrder(t, o.ID).Status)

	res, err = f.svc.Handle(ctx, []byte(`{"event":"PAYMENT_DELETED","payment":{"id":"pay_9","status":"DELETED"}}`))
	require.NoError(t, err)
	assert.False(t, res.Updated)
	assert.Equal(t, TitlePaid, f.reloadTitle(t, title.ID).Status)
}

func TestWebhook_RejectsMalformedJSON(t *testing.T) {
	f := newWebhookFixture(t)
	_, err := f.svc.Handle(context.Background(), []byte(`{"status":`))
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestSettleOrderTitles_SkipsClosedTitles(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()
	o, open := f.boletoOrder(t, "a")

	var canceled PaymentTitle
	require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error {
		var err error
		canceled, err = CreateTitle(ctx, tx, NewTitle{OrderID: o.ID, Provider: ProviderManual, Status: TitleCanceled, AmountCents: 1, DueDate: "2026-10-20"})
		return err
	}))

	at := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	var n int64
	require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error {
		var err error
		n, err = SettleOrderTitles(ctx, tx, o.ID, at)
		return err
	}))
	assert.Equal(t, int64(1), n)
	assert.Equal(t, TitlePaid, f.reloadTitle(t, open.ID).Status)
	assert.Equal(t, TitleCanceled, f.reloadTitle(t, canceled.ID).Status)
}

func TestNormalizeStatus(t *testing.T) {
	tests := map[string]string{
		"RECEIVED":         TitlePaid,
		"confirmed":        TitlePaid,
		"RECEIVED_IN_CASH": TitlePaid,
		"paid":             TitlePaid,
		"OVERDUE":          TitleExpired,
		"DELETED":          TitleCanceled,
		"REFUNDED":         TitleCanceled,
		"canceled":         TitleCanceled,
		"PENDING":          TitlePending,
		"WHATEVER":         "",
		"":                 "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeStatus(in), in)
	}
}
