package handlers

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/http/middleware"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/cardgateway"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/checkout"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/coupons"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/notify"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/orders"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/payments"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/shared/apperr"
)

// FunctionsHandler serves the customer-facing /functions/v1 procedures.
type FunctionsHandler struct {
	Logger   *slog.Logger
	Pix      *checkout.PixService
	Boleto   *checkout.BoletoService
	Status   *checkout.StatusService
	Coupons  *coupons.Service
	Gateways *cardgateway.Resolver
	Cards    *cardgateway.Dispatcher
	Orders   *orders.Repo
	Notify   *notify.Dispatcher
}

type itemBody struct {
	Name       string `json:"name" binding:"required,max=255"`
	PriceCents int64  `json:"price_cents" binding:"gte=0"`
	Quantity   int    `json:"quantity" binding:"gt=0,lte=999"`
}

type orderBody struct {
	Items         []itemBody `json:"items" binding:"required,min=1,dive"`
	CustomerName  string     `json:"customer_name" binding:"required,max=255"`
	CustomerEmail string     `json:"customer_email" binding:"required,email,max=255"`
	CustomerPhone string     `json:"customer_phone" binding:"max=32"`
	CustomerTaxID string     `json:"customer_tax_id" binding:"cpfcnpj"`
	CouponCode    string     `json:"coupon_code" binding:"max=64"`

	Mode      string `json:"mode" binding:"omitempty,oneof=manual registered"`
	ReturnURL string `json:"return_url" binding:"omitempty,url,max=512"`
}

func (b orderBody) request() checkout.OrderRequest {
	items := make([]orders.ItemInput, 0, len(b.Items))
	for _, it := range b.Items {
		items = append(items, orders.ItemInput{Name: it.Name, PriceCents: it.PriceCents, Quantity: it.Quantity})
	}
	return checkout.OrderRequest{
		Items:         items,
		CustomerName:  strings.TrimSpace(b.CustomerName),
		CustomerEmail: strings.TrimSpace(b.CustomerEmail),
		CustomerPhone: strings.TrimSpace(b.CustomerPhone),
		CustomerTaxID: strings.TrimSpace(b.CustomerTaxID),
		CouponCode:    b.CouponCode,
	}
}

type nsuBody struct {
	OrderNSU string `json:"order_nsu" binding:"required,max=32"`
}

// POST /functions/v1/create-pix-order
func (h *FunctionsHandler) CreatePixOrder(c *gin.Context) {
	var in orderBody
	if !BindJSON(c, &in) {
		return
	}
	res, err := h.Pix.CreateOrder(c.Request.Context(), in.request())
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	OK(c, res)
}

// POST /functions/v1/create-boleto-order
func (h *FunctionsHandler) CreateBoletoOrder(c *gin.Context) {
	var in orderBody
	if !BindJSON(c, &in) {
		return
	}
	h.boleto(c, in, in.Mode)
}

// POST /functions/v1/create-asaas-boleto
func (h *FunctionsHandler) CreateAsaasBoleto(c *gin.Context) {
	var in orderBody
	if !BindJSON(c, &in) {
		return
	}
	h.boleto(c, in, checkout.ModeRegistered)
}

func (h *FunctionsHandler) boleto(c *gin.Context, in orderBody, mode string) {
	res, err := h.Boleto.CreateOrder(c.Request.Context(), in.request(), mode)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	OK(c, res)
}

// POST /functions/v1/check-payment
func (h *FunctionsHandler) CheckPayment(c *gin.Context) {
	var in nsuBody
	if !BindJSON(c, &in) {
		return
	}
	res, err := h.Status.CheckPayment(c.Request.Context(), in.OrderNSU)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	OK(c, res)
}

// POST /functions/v1/verify-pix-payment (admin)
func (h *FunctionsHandler) VerifyPixPayment(c *gin.Context) {
	var in nsuBody
	if !BindJSON(c, &in) {
		return
	}
	res, err := h.Status.ConfirmPayment(c.Request.Context(), in.OrderNSU, "admin:"+middleware.AdminSubject(c))
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	OK(c, res)
}

// POST /functions/v1/send-order-emails
func (h *FunctionsHandler) SendOrderEmails(c *gin.Context) {
	var in nsuBody
	if !BindJSON(c, &in) {
		return
	}
	o, err := h.Orders.GetByNSU(c.Request.Context(), in.OrderNSU)
	if errors.Is(err, orders.ErrNotFound) {
		middleware.Fail(c, apperr.NotFoundErr("Pedido não encontrado."))
		return
	}
	if err != nil {
		middleware.Fail(c, apperr.Wrap(err))
		return
	}
	if o.PaidAt == nil {
		middleware.Fail(c, apperr.ConflictErr("Pedido ainda não foi pago."))
		return
	}
	OK(c, gin.H{"order_nsu": o.NSU, "notifications": h.Notify.Deliver(c.Request.Context(), o)})
}

type couponBody struct {
	Action        string `json:"action" binding:"required,oneof=validate"`
	Code          string `json:"code" binding:"required,max=64"`
	SubtotalCents int64  `json:"subtotal_cents" binding:"gte=0"`
}

// POST /functions/v1/manage-coupons
func (h *FunctionsHandler) ManageCoupons(c *gin.Context) {
	var in couponBody
	if !BindJSON(c, &in) {
		return
	}
	q, err := h.Coupons.Validate(c.Request.Context(), in.Code, in.SubtotalCents)
	if err != nil {
		middleware.Fail(c, checkout.CouponError(err))
		return
	}
	OK(c, gin.H{"valid": true, "coupon": q})
}

func (b orderBody) checkout() cardgateway.Checkout {
	r := b.request()
	return cardgateway.Checkout{
		Items:         r.Items,
		CustomerName:  r.CustomerName,
		CustomerEmail: r.CustomerEmail,
		CustomerPhone: r.CustomerPhone,
		CustomerTaxID: r.CustomerTaxID,
		CouponCode:    r.CouponCode,
		ReturnURL:     b.ReturnURL,
	}
}

// POST /functions/v1/start-card-checkout
func (h *FunctionsHandler) StartCardCheckout(c *gin.Context) {
	var in orderBody
	if !BindJSON(c, &in) {
		return
	}
	ctx := c.Request.Context()
	gw, err := h.Gateways.Resolve(ctx)
	if err != nil {
		middleware.Fail(c, apperr.Wrap(err))
		return
	}
	act, err := h.Cards.Dispatch(ctx, gw, in.checkout())
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	h.Logger.InfoContext(ctx, "card checkout dispatched", "gateway", gw.Name(), "kind", string(act.Kind), "order_nsu", act.OrderNSU)
	OK(c, act)
}

// POST /functions/v1/create-payment-link
func (h *FunctionsHandler) CreatePaymentLink(c *gin.Context) {
	h.redirect(c, payments.ProviderMercadoPago)
}

// POST /functions/v1/create-pagseguro-payment
func (h *FunctionsHandler) CreatePagSeguroPayment(c *gin.Context) {
	h.redirect(c, payments.ProviderPagSeguro)
}

func (h *FunctionsHandler) redirect(c *gin.Context, provider string) {
	var in orderBody
	if !BindJSON(c, &in) {
		return
	}
	ctx := c.Request.Context()
	gw, ok, err := h.Gateways.Redirect(ctx, provider)
	if err != nil {
		middleware.Fail(c, apperr.Wrap(err))
		return
	}
	if !ok {
		middleware.Fail(c, checkout.ErrCardUnavailable)
		return
	}
	act, err := h.Cards.Dispatch(ctx, gw, in.checkout())
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	OK(c, gin.H{"order_nsu": act.OrderNSU, "payment_url": act.URL})
}
