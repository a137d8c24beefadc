package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/http/handlers"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/http/handlers/admin"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/http/middleware"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/http/validation"
)

// HealthService reports whether the backing store is reachable.
type HealthService interface {
	Probe(ctx context.Context) error
}

// RouterDependencies collects handler dependencies. Nil handlers leave their routes out.
type RouterDependencies struct {
	Health         HealthService
	Functions      *handlers.FunctionsHandler
	Webhooks       *handlers.WebhookHandler
	Orders         *admin.OrdersHandler
	Settings       *admin.SettingsHandler
	Banking        *admin.BankingHandler
	Statements     *admin.StatementsHandler
	AllowedOrigins []string
	AdminSecret    string
	WebhookLimiter *middleware.IPRateLimiter
}

// NewRouter wires the functions API, the boleto webhook and the admin API.
func NewRouter(logger *slog.Logger, deps RouterDependencies) *gin.Engine {
	if err := validation.Register(); err != nil {
		logger.Warn("custom validators not registered", "err", err)
	}

	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Recovery(logger),
		middleware.ErrorHandler(logger),
		middleware.CORS(deps.AllowedOrigins),
	)

	r.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if deps.Health != nil {
			if err := deps.Health.Probe(ctx); err != nil {
				logger.ErrorContext(ctx, "health probe failed", "err", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	requireAdmin := middleware.RequireAdmin(deps.AdminSecret)
	fn := r.Group("/functions/v1")

	if h := deps.Functions; h != nil {
		fn.POST("/create-pix-order", h.CreatePixOrder)
		fn.POST("/create-boleto-order", h.CreateBoletoOrder)
		fn.POST("/create-asaas-boleto", h.CreateAsaasBoleto)
		fn.POST("/check-payment", h.CheckPayment)
		fn.POST("/send-order-emails", h.SendOrderEmails)
		fn.POST("/manage-coupons", h.ManageCoupons)
		fn.POST("/start-card-checkout", h.StartCardCheckout)
		fn.POST("/create-payment-link", h.CreatePaymentLink)
		fn.POST("/create-pagseguro-payment", h.CreatePagSeguroPayment)
		fn.POST("/verify-pix-payment", requireAdmin, h.VerifyPixPayment)
	}

	if h := deps.Webhooks; h != nil {
		chain := []gin.HandlerFunc{}
		if deps.WebhookLimiter != nil {
			chain = append(chain, middleware.RateLimit(deps.WebhookLimiter))
		}
		chain = append(chain, h.BoletoStatus)
		fn.Any("/boleto-webhook", chain...)
	}

	if h := deps.Statements; h != nil {
		fn.POST("/process-bank-statement", requireAdmin, h.Process)
	}

	api := r.Group("/api/admin", requireAdmin)
	if h := deps.Orders; h != nil {
		api.GET("/orders", h.List)
		api.GET("/orders/:nsu", h.Detail)
		api.POST("/orders/:nsu/transition", h.Transition)
	}
	if h := deps.Settings; h != nil {
		api.GET("/settings/:key", h.Get)
		api.PUT("/settings/:key", h.Put)
	}
	if h := deps.Banking; h != nil {
		api.GET("/bank-connections", h.List)
		api.PUT("/bank-connections/:bank_id", h.Upsert)
	}
	if h := deps.Statements; h != nil {
		api.POST("/bank-statements", h.Upload)
		api.GET("/reconciliation-runs", h.Runs)
	}

	return r
}
