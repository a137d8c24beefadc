package checkout_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/logging"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/checkout"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/checkout/mocks"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/orders"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/shared/apperr"
)

const nsu = "20261015-0001"

var fastPoll = checkout.SessionConfig{PollInterval: 5 * time.Millisecond}

func pixRequest() checkout.OrderRequest {
	return checkout.OrderRequest{
		Items:         []orders.ItemInput{{Name: "Páprica defumada 100g", PriceCents: 2125, Quantity: 2}},
		CustomerName:  "Maria Souza",
		CustomerEmail: "maria@example.com",
	}
}

type sessionMocks struct {
	creator  *mocks.MockOrderCreator
	checker  *mocks.MockStatusChecker
	notifier *mocks.MockNotifier
	cart     *mocks.MockCart
}

func newSession(t *testing.T, cfg checkout.SessionConfig) (*checkout.PixSession, sessionMocks) {
	t.Helper()
	ctrl := gomock.NewController(t)
	m := sessionMocks{
		creator:  mocks.NewMockOrderCreator(ctrl),
		checker:  mocks.NewMockStatusChecker(ctrl),
		notifier: mocks.NewMockNotifier(ctrl),
		cart:     mocks.NewMockCart(ctrl),
	}
	s := checkout.NewPixSession(m.creator, m.checker, m.notifier, m.cart, cfg, logging.Discard())
	t.Cleanup(s.Close)
	return s, m
}

func TestPixSession_PaidAfterPolling(t *testing.T) {
	s, m := newSession(t, fastPoll)
	order := checkout.PixOrderResult{OrderNSU: nsu, TotalCents: 4250, PixCode: "000201..."}

	m.creator.EXPECT().CreatePixOrder(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, r checkout.OrderRequest) (checkout.PixOrderResult, error) {
			assert.Equal(t, int64(4250), r.SubtotalCents())
			return order, nil
		})
	gomock.InOrder(
		m.checker.EXPECT().CheckPayment(gomock.Any(), nsu).
			Return(checkout.PaymentStatus{OrderNSU: nsu, Status: orders.StatusPendingPix}, nil).Times(3),
		m.checker.EXPECT().CheckPayment(gomock.Any(), nsu).
			Return(checkout.PaymentStatus{OrderNSU: nsu, Status: orders.StatusPaid, Paid: true}, nil),
	)
	m.cart.EXPECT().Clear().Times(1)
	m.notifier.EXPECT().SendOrderEmails(gomock.Any(), nsu).Return(nil).Times(1)

	got, err := s.Checkout(context.Background(), pixRequest())
	require.NoError(t, err)
	assert.Equal(t, order, got)
	assert.Equal(t, checkout.StateOrderCreated, s.State())

	s.Wait()
	assert.Equal(t, checkout.StatePaid, s.State())

	// reopening a paid dialog must not poll again
	s.Start(context.Background(), order)
	s.Wait()
	assert.Equal(t, checkout.StatePaid, s.State())
}

func TestPixSession_PollErrorsAreRetried(t *testing.T) {
	s, m := newSession(t, fastPoll)

	gomock.InOrder(
		m.checker.EXPECT().CheckPayment(gomock.Any(), nsu).Return(checkout.PaymentStatus{}, errors.New("timeout")).Times(2),
		m.checker.EXPECT().CheckPayment(gomock.Any(), nsu).Return(checkout.PaymentStatus{Status: "paid"}, nil),
	)
	m.cart.EXPECT().Clear()
	m.notifier.EXPECT().SendOrderEmails(gomock.Any(), nsu).Return(errors.New("smtp down"))

	s.Start(context.Background(), checkout.PixOrderResult{OrderNSU: nsu})
	s.Wait()
	assert.Equal(t, checkout.StatePaid, s.State())
}

func TestPixSession_ValidationHappensBeforeCreate(t *testing.T) {
	s, _ := newSession(t, fastPoll)

	r := pixRequest()
	r.CustomerEmail = "not-an-email"
	_, err := s.Checkout(context.Background(), r)

	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.Invalid, ae.Kind)
	assert.Contains(t, ae.Fields, "customer_email")
	assert.Equal(t, checkout.StateIdle, s.State())
}

func TestPixSession_CreateFailureKeepsIdle(t *testing.T) {
	s, m := newSession(t, fastPoll)
	m.creator.EXPECT().CreatePixOrder(gomock.Any(), gomock.Any()).Return(checkout.PixOrderResult{}, errors.New("boom"))

	_, err := s.Checkout(context.Background(), pixRequest())
	require.Error(t, err)
	assert.Equal(t, checkout.StateIdle, s.State())
}

func TestPixSession_AbandonStopsPolling(t *testing.T) {
	s, m := newSession(t, fastPoll)
	m.checker.EXPECT().CheckPayment(gomock.Any(), nsu).
		Return(checkout.PaymentStatus{Status: orders.StatusPendingPix}, nil).AnyTimes()

	s.Start(context.Background(), checkout.PixOrderResult{OrderNSU: nsu})
	time.Sleep(20 * time.Millisecond)
	s.Abandon()
	s.Wait()

	assert.Equal(t, checkout.StateAbandoned, s.State())
}

func TestPixSession_Expires(t *testing.T) {
	s, m := newSession(t, checkout.SessionConfig{PollInterval: 5 * time.Millisecond, MaxPollDuration: 30 * time.Millisecond})
	m.checker.EXPECT().CheckPayment(gomock.Any(), nsu).
		Return(checkout.PaymentStatus{Status: orders.StatusPendingPix}, nil).AnyTimes()

	s.Start(context.Background(), checkout.PixOrderResult{OrderNSU: nsu})
	s.Wait()

	assert.Equal(t, checkout.StateExpired, s.State())
}

func TestPixSession_CloseKeepsState(t *testing.T) {
	s, m := newSession(t, checkout.SessionConfig{PollInterval: time.Hour})
	m.checker.EXPECT().CheckPayment(gomock.Any(), gomock.Any()).Times(0)

	s.Start(context.Background(), checkout.PixOrderResult{OrderNSU: nsu})
	s.Close()
	s.Close()

	assert.Equal(t, checkout.StateOrderCreated, s.State())
}

func TestMemoryCart(t *testing.T) {
	var c checkout.MemoryCart
	c.Add(orders.ItemInput{Name: "Cúrcuma", PriceCents: 990, Quantity: 1})
	c.Add(orders.ItemInput{Name: "Cúrcuma", PriceCents: 990, Quantity: 2})
	c.Add(orders.ItemInput{Name: "Cominho", PriceCents: 750, Quantity: 1})

	items := c.Items()
	require.Len(t, items, 2)
	assert.Equal(t, 3, items[0].Quantity)

	c.Clear()
	assert.Empty(t, c.Items())
}
