package admin

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/http/handlers"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/http/middleware"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/orders"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/payments"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/shared/apperr"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/pkg/view"
)

const pageSize = 30

type OrdersHandler struct {
	DB *gorm.DB
}

func NewOrdersHandler(db *gorm.DB) *OrdersHandler {
	return &OrdersHandler{DB: db}
}

type orderDTO struct {
	ID            string     `json:"id"`
	NSU           string     `json:"order_nsu"`
	Status        string     `json:"status"`
	PaymentMethod string     `json:"payment_method"`
	TotalCents    int64      `json:"total_cents"`
	Total         string     `json:"total"`
	DiscountCents int64      `json:"discount_cents"`
	CouponCode    string     `json:"coupon_code,omitempty"`
	CustomerName  string     `json:"customer_name"`
	CustomerEmail string     `json:"customer_email"`
	Provider      string     `json:"payment_provider,omitempty"`
	ProviderRef   string     `json:"provider_ref,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func toDTO(o orders.Order) orderDTO {
	return orderDTO{
		ID:            o.ID,
		NSU:           o.NSU,
		Status:        o.Status,
		PaymentMethod: o.PaymentMethod,
		TotalCents:    o.TotalCents,
		Total:         view.MoneyFromCents(o.TotalCents),
		DiscountCents: o.DiscountCents,
		CouponCode:    ptrStr(o.CouponCode),
		CustomerName:  o.CustomerName,
		CustomerEmail: o.CustomerEmail,
		Provider:      ptrStr(o.PaymentProvider),
		ProviderRef:   ptrStr(o.ProviderRef),
		PaidAt:        o.PaidAt,
		CreatedAt:     o.CreatedAt,
	}
}

// GET /api/admin/orders?q=&status=&page=
func (h *OrdersHandler) List(c *gin.Context) {
	page := handlers.ParseInt(c.Query("page"), 1)
	res, err := orders.NewRepo(h.DB).AdminList(c.Request.Context(), orders.AdminListParams{
		Q:        strings.TrimSpace(c.Query("q")),
		Status:   strings.TrimSpace(c.Query("status")),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		middleware.Fail(c, apperr.Wrap(err))
		return
	}

	items := make([]orderDTO, 0, len(res.Items))
	for _, o := range res.Items {
		items = append(items, toDTO(o))
	}
	handlers.OK(c, gin.H{
		"items":       items,
		"page":        page,
		"total":       res.Total,
		"total_pages": pagesFromTotal(res.Total, pageSize),
	})
}

type eventDTO struct {
	Actor  string    `json:"actor"`
	Action string    `json:"action"`
	From   string    `json:"from"`
	To     string    `json:"to"`
	Note   string    `json:"note,omitempty"`
	At     time.Time `json:"at"`
}

type titleDTO struct {
	Provider        string     `json:"provider"`
	ProviderTitleID string     `json:"provider_title_id,omitempty"`
	Status          string     `json:"status"`
	AmountCents     int64      `json:"amount_cents"`
	DueDate         string     `json:"due_date"`
	BankSlipURL     string     `json:"bank_slip_url,omitempty"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
}

// GET /api/admin/orders/:nsu
func (h *OrdersHandler) Detail(c *gin.Context) {
	ctx := c.Request.Context()
	repo := orders.NewRepo(h.DB)

	o, err := repo.GetByNSU(ctx, c.Param("nsu"))
	if err != nil {
		middleware.Fail(c, orderErr(err))
		return
	}
	_, items, err := repo.GetWithItems(ctx, o.ID)
	if err != nil {
		middleware.Fail(c, apperr.Wrap(err))
		return
	}
	events, err := repo.Events(ctx, o.ID)
	if err != nil {
		middleware.Fail(c, apperr.Wrap(err))
		return
	}
	ledger, err := repo.Ledger(ctx, o.ID)
	if err != nil {
		middleware.Fail(c, apperr.Wrap(err))
		return
	}
	titles, err := payments.TitlesForOrder(ctx, h.DB, o.ID)
	if err != nil {
		middleware.Fail(c, apperr.Wrap(err))
		return
	}

	lines := make([]view.OrderLine, 0, len(items))
	for _, it := range items {
		lines = append(lines, view.OrderLine{
			Name:      it.Name,
			Qty:       it.Quantity,
			PriceEach: view.MoneyFromCents(it.PriceCents),
			LineTotal: view.MoneyFromCents(it.LineTotalCents),
		})
	}
	evs := make([]eventDTO, 0, len(events))
	for _, e := range events {
		evs = append(evs, eventDTO{Actor: e.Actor, Action: e.Action, From: e.FromStatus, To: e.ToStatus, Note: ptrStr(e.Note), At: e.CreatedAt})
	}
	ts := make([]titleDTO, 0, len(titles))
	for _, t := range titles {
		ts = append(ts, titleDTO{
			Provider:        t.Provider,
			ProviderTitleID: ptrStr(t.ProviderTitleID),
			Status:          t.Status,
			AmountCents:     t.AmountCents,
			DueDate:         t.DueDate,
			BankSlipURL:     ptrStr(t.BankSlipURL),
			PaidAt:          t.PaidAt,
		})
	}
	fin := make([]gin.H, 0, len(ledger))
	for _, f := range ledger {
		fin = append(fin, gin.H{"event": f.Event, "amount_cents": f.AmountCents, "source": f.Source, "ref_id": f.RefID, "at": f.CreatedAt})
	}

	handlers.OK(c, gin.H{
		"order":     toDTO(o),
		"items":     lines,
		"events":    evs,
		"titles":    ts,
		"financial": fin,
	})
}

type transitionBody struct {
	Action string `json:"action" binding:"required,oneof=process ship deliver cancel"`
	Note   string `json:"note" binding:"max=255"`
}

// POST /api/admin/orders/:nsu/transition
func (h *OrdersHandler) Transition(c *gin.Context) {
	var in transitionBody
	if !handlers.BindJSON(c, &in) {
		return
	}
	o, err := orders.NewAdminService(h.DB).Transition(c.Request.Context(), orders.TransitionInput{
		OrderNSU: c.Param("nsu"),
		Actor:    "admin:" + middleware.AdminSubject(c),
		Action:   in.Action,
		Note:     strings.TrimSpace(in.Note),
	})
	if err != nil {
		middleware.Fail(c, orderErr(err))
		return
	}
	handlers.OK(c, gin.H{"order": toDTO(o)})
}

func orderErr(err error) error {
	switch {
	case errors.Is(err, orders.ErrNotFound):
		return apperr.NotFoundErr("Pedido não encontrado.")
	case errors.Is(err, orders.ErrInvalidTransition):
		return apperr.ConflictErr("Transição de status inválida para este pedido.").WithCause(err)
	case errors.Is(err, orders.ErrNotActionable):
		return apperr.InvalidErr("Ação inválida.", nil)
	default:
		return apperr.Wrap(err)
	}
}

func pagesFromTotal(total int64, size int) int {
	if total <= 0 {
		return 1
	}
	return int((total + int64(size) - 1) / int64(size))
}

func ptrStr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
