package checkout_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/database/dbtest"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/logging"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/cardgateway"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/checkout"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/coupons"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/orders"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/payments"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/pix"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/settings"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/shared/apperr"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	models := []any{&settings.Record{}, &coupons.Coupon{}}
	models = append(models, orders.Models()...)
	models = append(models, payments.Models()...)
	return dbtest.Open(t, models...)
}

func seedCoupon(t *testing.T, db *gorm.DB, code string, percent int64) {
	t.Helper()
	now := time.Now()
	require.NoError(t, db.Create(&coupons.Coupon{
		ID: code, Code: code, Kind: coupons.KindPercent, Value: percent,
		Active: true, CreatedAt: now, UpdatedAt: now,
	}).Error)
}

func couponUses(t *testing.T, db *gorm.DB, code string) int {
	t.Helper()
	var c coupons.Coupon
	require.NoError(t, db.First(&c, "code = ?", code).Error)
	return c.UsedCount
}

func boletoRequest() checkout.OrderRequest {
	r := pixRequest()
	r.CustomerTaxID = "529.982.247-25"
	return r
}

type paidRecorder struct {
	mu   sync.Mutex
	nsus []string
}

func (p *paidRecorder) OrderPaid(_ context.Context, o orders.Order) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nsus = append(p.nsus, o.NSU)
}

func TestPixService_CreateOrderAndConfirm(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	st := settings.NewStore(db)
	require.NoError(t, st.Put(ctx, settings.KeyPix, settings.PixSettings{
		Enabled: true, PixKey: "52998224725", KeyType: "cpf",
		MerchantName: "Spice Shelf", MerchantCity: "Sao Paulo",
	}))
	txids, err := pix.NewTxIDGenerator(1)
	require.NoError(t, err)

	svc := checkout.NewPixService(db, st, coupons.NewService(db), txids, logging.Discard())
	res, err := svc.CreateOrder(ctx, pixRequest())
	require.NoError(t, err)
	assert.Equal(t, int64(4250), res.TotalCents)
	assert.NotEmpty(t, res.OrderNSU)

	parsed, err := pix.Parse(res.PixCode)
	require.NoError(t, err)
	assert.Equal(t, int64(4250), parsed.AmountCents)
	assert.Equal(t, res.TxID, parsed.TxID)

	var o orders.Order
	require.NoError(t, db.First(&o, "id = ?", res.OrderID).Error)
	assert.Equal(t, orders.StatusPendingPix, o.Status)
	require.NotNil(t, o.PixTxID)
	assert.Equal(t, res.TxID, *o.PixTxID)

	rec := &paidRecorder{}
	status := checkout.NewStatusService(db, rec, logging.Discard())

	got, err := status.CheckPayment(ctx, res.OrderNSU)
	require.NoError(t, err)
	assert.Equal(t, checkout.PaymentStatus{OrderNSU: res.OrderNSU, Status: orders.StatusPendingPix}, got)

	got, err = status.ConfirmPayment(ctx, res.OrderNSU, "admin")
	require.NoError(t, err)
	assert.True(t, got.Paid)
	_, err = status.ConfirmPayment(ctx, res.OrderNSU, "admin")
	require.NoError(t, err)
	assert.Equal(t, []string{res.OrderNSU}, rec.nsus)

	got, err = status.CheckPayment(ctx, res.OrderNSU)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPaid, got.Status)
	assert.True(t, got.Paid)
}

func TestPixService_UnavailableWithoutSettings(t *testing.T) {
	db := openDB(t)
	txids, err := pix.NewTxIDGenerator(1)
	require.NoError(t, err)

	svc := checkout.NewPixService(db, settings.NewStore(db), coupons.NewService(db), txids, logging.Discard())
	_, err = svc.CreateOrder(context.Background(), pixRequest())
	assert.ErrorIs(t, err, checkout.ErrPixUnavailable)

	var n int64
	db.Model(&orders.Order{}).Count(&n)
	assert.Zero(t, n)
}

func TestStatusService_UnknownOrder(t *testing.T) {
	db := openDB(t)
	status := checkout.NewStatusService(db, nil, logging.Discard())

	_, err := status.CheckPayment(context.Background(), "nope")
	assert.Equal(t, apperr.NotFound, mustApp(t, err).Kind)
}

func mustApp(t *testing.T, err error) *apperr.AppError {
	t.Helper()
	ae, ok := apperr.As(err)
	require.True(t, ok, "expected an AppError, got %v", err)
	return ae
}

type fakeIssuer struct {
	resp payments.BoletoResponse
	err  error
	got  payments.BoletoRequest
}

func (f *fakeIssuer) Name() string { return payments.ProviderAsaas }

func (f *fakeIssuer) IssueBoleto(_ context.Context, req payments.BoletoRequest) (payments.BoletoResponse, error) {
	f.got = req
	return f.resp, f.err
}

func (f *fakeIssuer) Boleto(context.Context) (payments.BoletoIssuer, settings.BoletoRegisteredSettings, error) {
	return f, settings.BoletoRegisteredSettings{Enabled: true, DueDays: 5}, nil
}

func TestBoletoService_Manual(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	st := settings.NewStore(db)
	require.NoError(t, st.Put(ctx, settings.KeyBoleto, settings.BoletoSettings{
		Enabled: true, BankName: "Banco do Brasil", BankCode: "001",
		Agency: "1234-5", Account: "67890-1", Beneficiary: "Spice Shelf Ltda",
	}))

	svc := checkout.NewBoletoService(db, st, coupons.NewService(db), nil, logging.Discard())
	res, err := svc.CreateOrder(ctx, boletoRequest(), "")
	require.NoError(t, err)

	assert.Equal(t, checkout.ModeManual, res.Mode)
	assert.Equal(t, "001", res.BankCode)
	assert.Equal(t, "Spice Shelf Ltda", res.Beneficiary)
	assert.Equal(t, time.Now().AddDate(0, 0, 3).Format("2006-01-02"), res.DueDate)

	titles, err := payments.TitlesForOrder(ctx, db, res.OrderID)
	require.NoError(t, err)
	require.Len(t, titles, 1)
	assert.Equal(t, payments.ProviderManual, titles[0].Provider)
	assert.Equal(t, payments.TitleIssued, titles[0].Status)
	assert.Equal(t, int64(4250), titles[0].AmountCents)

	var o orders.Order
	require.NoError(t, db.First(&o, "id = ?", res.OrderID).Error)
	assert.Equal(t, orders.StatusPending, o.Status)
	assert.Equal(t, orders.MethodBoleto, o.PaymentMethod)
	require.NotNil(t, o.CustomerTaxID)
	assert.Equal(t, "52998224725", *o.CustomerTaxID)
}

func TestBoletoService_RequiresTaxID(t *testing.T) {
	db := openDB(t)
	svc := checkout.NewBoletoService(db, settings.NewStore(db), coupons.NewService(db), nil, logging.Discard())

	r := boletoRequest()
	r.CustomerTaxID = "123.456.789-00"
	_, err := svc.CreateOrder(context.Background(), r, checkout.ModeManual)

	ae := mustApp(t, err)
	assert.Equal(t, apperr.Invalid, ae.Kind)
	assert.Contains(t, ae.Fields, "customer_tax_id")
}

func TestBoletoService_ManualDisabled(t *testing.T) {
	db := openDB(t)
	svc := checkout.NewBoletoService(db, settings.NewStore(db), coupons.NewService(db), nil, logging.Discard())

	_, err := svc.CreateOrder(context.Background(), boletoRequest(), checkout.ModeManual)
	assert.ErrorIs(t, err, checkout.ErrBoletoUnavailable)
}

func TestBoletoService_Registered(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	issuer := &fakeIssuer{resp: payments.BoletoResponse{
		ProviderTitleID: "pay_123",
		BankSlipURL:     "https://sandbox.asaas.com/b/pdf/pay_123",
		DigitableLine:   "00190000090114971800000003141793100000004250",
		Status:          payments.TitlePending,
	}}

	svc := checkout.NewBoletoService(db, settings.NewStore(db), coupons.NewService(db), issuer, logging.Discard())
	res, err := svc.CreateOrder(ctx, boletoRequest(), checkout.ModeRegistered)
	require.NoError(t, err)

	assert.Equal(t, checkout.ModeRegistered, res.Mode)
	assert.Equal(t, "pay_123", res.ProviderTitleID)
	assert.Equal(t, int64(4250), issuer.got.AmountCents)
	assert.Equal(t, res.OrderNSU, issuer.got.OrderNSU)
	assert.Equal(t, time.Now().AddDate(0, 0, 5).Format("2006-01-02"), issuer.got.DueDate)

	titles, err := payments.TitlesForOrder(ctx, db, res.OrderID)
	require.NoError(t, err)
	require.Len(t, titles, 1)
	require.NotNil(t, titles[0].ProviderTitleID)
	assert.Equal(t, "pay_123", *titles[0].ProviderTitleID)
	assert.Equal(t, payments.TitleIssued, titles[0].Status)

	var o orders.Order
	require.NoError(t, db.First(&o, "id = ?", res.OrderID).Error)
	require.NotNil(t, o.ProviderRef)
	assert.Equal(t, "pay_123", *o.ProviderRef)
}

func TestBoletoService_RegisteredFailureCancelsOrder(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	seedCoupon(t, db, "PIMENTA10", 10)
	issuer := &fakeIssuer{err: &payments.GatewayError{Provider: "asaas", StatusCode: 400, Message: "O CPF informado é inválido."}}

	r := boletoRequest()
	r.CouponCode = "pimenta10"
	svc := checkout.NewBoletoService(db, settings.NewStore(db), coupons.NewService(db), issuer, logging.Discard())
	_, err := svc.CreateOrder(ctx, r, checkout.ModeRegistered)

	ae := mustApp(t, err)
	assert.Equal(t, apperr.Gateway, ae.Kind)
	assert.Equal(t, "O CPF informado é inválido.", ae.PublicMsg)
	assert.Equal(t, int64(3825), issuer.got.AmountCents)

	var o orders.Order
	require.NoError(t, db.First(&o).Error)
	assert.Equal(t, orders.StatusCancelled, o.Status)
	assert.Zero(t, couponUses(t, db, "PIMENTA10"))
}

type fakeCheckout struct {
	name string
	resp payments.CheckoutResponse
	err  error
	got  payments.CheckoutRequest
}

func (f *fakeCheckout) Name() string { return f.name }

func (f *fakeCheckout) CreateCheckout(_ context.Context, req payments.CheckoutRequest) (payments.CheckoutResponse, error) {
	f.got = req
	return f.resp, f.err
}

func (f *fakeCheckout) Checkout(_ context.Context, gateway string) (payments.CheckoutProvider, error) {
	if gateway != f.name {
		return nil, payments.ErrNotConfigured
	}
	return f, nil
}

func cardCheckout() cardgateway.Checkout {
	r := pixRequest()
	return cardgateway.Checkout{
		Items:         r.Items,
		CustomerName:  r.CustomerName,
		CustomerEmail: r.CustomerEmail,
	}
}

func TestCardService_StartRedirect(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	provider := &fakeCheckout{
		name: payments.ProviderMercadoPago,
		resp: payments.CheckoutResponse{ProviderRef: "pref-1", RedirectURL: "https://www.mercadopago.com.br/checkout/v1/redirect?pref_id=pref-1"},
	}

	svc := checkout.NewCardService(db, coupons.NewService(db), provider, "https://loja.example.com/", logging.Discard())
	res, err := svc.StartRedirect(ctx, cardgateway.RedirectGateway{Provider: payments.ProviderMercadoPago, MaxInstallments: 6}, cardCheckout())
	require.NoError(t, err)

	assert.Equal(t, provider.resp.RedirectURL, res.RedirectURL)
	assert.Equal(t, "https://loja.example.com/pedido/"+res.OrderNSU, provider.got.ReturnURL)
	assert.Equal(t, 6, provider.got.MaxInstallments)
	assert.Equal(t, int64(4250), provider.got.TotalCents)
	require.Len(t, provider.got.Items, 1)
	assert.Equal(t, 2, provider.got.Items[0].Quantity)

	var o orders.Order
	require.NoError(t, db.First(&o, "id = ?", res.OrderID).Error)
	assert.Equal(t, orders.StatusPending, o.Status)
	assert.Equal(t, orders.MethodCard, o.PaymentMethod)
	require.NotNil(t, o.ProviderRef)
	assert.Equal(t, "pref-1", *o.ProviderRef)
}

func TestCardService_DiscountCollapsesItems(t *testing.T) {
	db := openDB(t)
	seedCoupon(t, db, "PIMENTA10", 10)
	provider := &fakeCheckout{name: payments.ProviderPagSeguro, resp: payments.CheckoutResponse{ProviderRef: "CHEC_1", RedirectURL: "https://pagamento.pagbank.com/CHEC_1"}}

	c := cardCheckout()
	c.CouponCode = "PIMENTA10"
	svc := checkout.NewCardService(db, coupons.NewService(db), provider, "", logging.Discard())
	_, err := svc.StartRedirect(context.Background(), cardgateway.RedirectGateway{Provider: payments.ProviderPagSeguro}, c)
	require.NoError(t, err)

	require.Len(t, provider.got.Items, 1)
	assert.Equal(t, int64(3825), provider.got.Items[0].PriceCents)
	assert.Equal(t, int64(3825), provider.got.TotalCents)
	assert.Equal(t, 1, couponUses(t, db, "PIMENTA10"))
}

func TestCardService_ProviderFailure(t *testing.T) {
	db := openDB(t)
	provider := &fakeCheckout{name: payments.ProviderMercadoPago, err: errors.New("connection reset")}

	svc := checkout.NewCardService(db, coupons.NewService(db), provider, "", logging.Discard())
	_, err := svc.StartRedirect(context.Background(), cardgateway.RedirectGateway{Provider: payments.ProviderMercadoPago}, cardCheckout())

	ae := mustApp(t, err)
	assert.Equal(t, apperr.Gateway, ae.Kind)
	assert.NotEmpty(t, ae.PublicMsg)

	var o orders.Order
	require.NoError(t, db.First(&o).Error)
	assert.Equal(t, orders.StatusCancelled, o.Status)
}

func TestCardService_NotConfigured(t *testing.T) {
	db := openDB(t)
	provider := &fakeCheckout{name: payments.ProviderMercadoPago}

	svc := checkout.NewCardService(db, coupons.NewService(db), provider, "", logging.Discard())
	_, err := svc.StartRedirect(context.Background(), cardgateway.RedirectGateway{Provider: payments.ProviderPagSeguro}, cardCheckout())
	assert.ErrorIs(t, err, checkout.ErrCardUnavailable)
}
