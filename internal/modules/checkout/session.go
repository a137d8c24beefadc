package checkout

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/orders"
)

type SessionState string

const (
	StateIdle         SessionState = "idle"
	StateOrderCreated SessionState = "order_created"
	StatePaid         SessionState = "paid"
	StateAbandoned    SessionState = "abandoned"
	StateExpired      SessionState = "expired"
)

const (
	DefaultPollInterval = 5 * time.Second
	notifyTimeout       = 15 * time.Second
)

var ErrSessionBusy = errors.New("checkout: session already has an order")

type SessionConfig struct {
	PollInterval    time.Duration
	MaxPollDuration time.Duration // 0 polls until paid, abandoned or closed
}

// PixSession follows one PIX checkout from order creation to payment. At most one poller
// runs per session.
type PixSession struct {
	creator  OrderCreator
	checker  StatusChecker
	notifier Notifier
	cart     Cart
	cfg      SessionConfig
	logger   *slog.Logger

	mu       sync.Mutex
	state    SessionState
	order    PixOrderResult
	gen      uint64
	cancel   context.CancelFunc
	notified bool
	wg       sync.WaitGroup
}

func NewPixSession(creator OrderCreator, checker StatusChecker, notifier Notifier, cart Cart, cfg SessionConfig, logger *slog.Logger) *PixSession {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PixSession{
		creator:  creator,
		checker:  checker,
		notifier: notifier,
		cart:     cart,
		cfg:      cfg,
		logger:   logger,
		state:    StateIdle,
	}
}

func (s *PixSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *PixSession) Order() PixOrderResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order
}

// Checkout validates the buyer locally, creates the order and starts polling. On failure
// the session stays idle.
func (s *PixSession) Checkout(ctx context.Context, r OrderRequest) (PixOrderResult, error) {
	if err := validateCustomer(r, false); err != nil {
		return PixOrderResult{}, err
	}
	if st := s.State(); st == StateOrderCreated || st == StatePaid {
		return PixOrderResult{}, ErrSessionBusy
	}
	res, err := s.creator.CreatePixOrder(ctx, r)
	if err != nil {
		return PixOrderResult{}, err
	}
	s.Start(ctx, res)
	return res, nil
}

// Start begins polling for order. A running poller is replaced; a paid session ignores it.
func (s *PixSession) Start(ctx context.Context, order PixOrderResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StatePaid {
		return
	}
	s.stopLocked()

	if s.order.OrderNSU != order.OrderNSU {
		s.notified = false
	}
	s.order = order
	s.state = StateOrderCreated
	s.gen++

	pctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.wg.Add(1)
	go s.poll(pctx, s.gen, order)
}

// Abandon leaves an unpaid order behind, as when the buyer returns to the cart.
func (s *PixSession) Abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	if s.state == StateOrderCreated {
		s.state = StateAbandoned
	}
}

// Close stops polling without changing the state. Safe to call more than once.
func (s *PixSession) Close() {
	s.mu.Lock()
	s.stopLocked()
	s.mu.Unlock()
	s.wg.Wait()
}

// Wait blocks until the current poller exits.
func (s *PixSession) Wait() { s.wg.Wait() }

func (s *PixSession) stopLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *PixSession) poll(ctx context.Context, gen uint64, order PixOrderResult) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if s.cfg.MaxPollDuration > 0 {
		t := time.NewTimer(s.cfg.MaxPollDuration)
		defer t.Stop()
		deadline = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			s.expire(gen, order)
			return
		case <-ticker.C:
			st, err := s.checker.CheckPayment(ctx, order.OrderNSU)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.WarnContext(ctx, "pix status check failed", "order_nsu", order.OrderNSU, "err", err)
				continue
			}
			if st.Paid || strings.EqualFold(st.Status, orders.StatusPaid) {
				s.paid(ctx, gen, order)
				return
			}
		}
	}
}

func (s *PixSession) paid(ctx context.Context, gen uint64, order PixOrderResult) {
	s.mu.Lock()
	if gen != s.gen || s.state != StateOrderCreated {
		s.mu.Unlock()
		return
	}
	s.state = StatePaid
	s.stopLocked()
	notify := !s.notified
	s.notified = true
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "pix payment confirmed", "order_nsu", order.OrderNSU)
	if s.cart != nil {
		s.cart.Clear()
	}
	if !notify || s.notifier == nil {
		return
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := s.notifier.SendOrderEmails(nctx, order.OrderNSU); err != nil {
		s.logger.WarnContext(ctx, "order emails failed", "order_nsu", order.OrderNSU, "err", err)
	}
}

func (s *PixSession) expire(gen uint64, order PixOrderResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || s.state != StateOrderCreated {
		return
	}
	s.state = StateExpired
	s.stopLocked()
	s.logger.Info("pix polling expired", "order_nsu", order.OrderNSU)
}

// MemoryCart is a process-local cart.
type MemoryCart struct {
	mu    sync.Mutex
	items []orders.ItemInput
}

func (c *MemoryCart) Add(it orders.ItemInput) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.items[i].Name == it.Name && c.items[i].PriceCents == it.PriceCents {
			c.items[i].Quantity += it.Quantity
			return
		}
	}
	c.items = append(c.items, it)
}

func (c *MemoryCart) Items() []orders.ItemInput {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]orders.ItemInput(nil), c.items...)
}

func (c *MemoryCart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
}
