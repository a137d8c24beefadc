package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/http/middleware"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/payments"
)

const (
	HeaderWebhookSecret = "x-webhook-secret"
	maxWebhookBody      = 1 << 20
)

type WebhookHandler struct {
	Logger     *slog.Logger
	WebhookSvc *payments.WebhookService
}

func NewWebhookHandler(logger *slog.Logger, svc *payments.WebhookService) *WebhookHandler {
	return &WebhookHandler{Logger: logger, WebhookSvc: svc}
}

func (h *WebhookHandler) fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": msg, "request_id": middleware.GetRequestID(c)})
}

// ANY /functions/v1/boleto-webhook
// The secret is checked before the body is parsed; a 5xx makes the provider retry.
func (h *WebhookHandler) BoletoStatus(c *gin.Context) {
	switch c.Request.Method {
	case http.MethodOptions:
		c.Status(http.StatusOK)
		return
	case http.MethodPost:
	default:
		c.Header("Allow", "POST, OPTIONS")
		h.fail(c, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	ctx := c.Request.Context()
	if err := h.WebhookSvc.Authorize(ctx, c.GetHeader(HeaderWebhookSecret)); err != nil {
		if errors.Is(err, payments.ErrUnauthorized) {
			h.Logger.WarnContext(ctx, "webhook rejected", "reason", "secret", "client_ip", c.ClientIP())
			h.fail(c, http.StatusUnauthorized, "Unauthorized")
			return
		}
		h.Logger.ErrorContext(ctx, "webhook secret lookup failed", "err", err)
		h.fail(c, http.StatusInternalServerError, "Internal error")
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		h.fail(c, http.StatusBadRequest, "Invalid body")
		return
	}

	res, err := h.WebhookSvc.Handle(ctx, body)
	switch {
	case errors.Is(err, payments.ErrInvalidPayload):
		h.fail(c, http.StatusBadRequest, "Invalid JSON")
		return
	case err != nil:
		h.fail(c, http.StatusInternalServerError, "Internal error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "updated": res.Updated, "title_error": res.TitleError})
}
