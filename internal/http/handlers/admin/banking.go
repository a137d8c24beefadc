package admin

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/http/handlers"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/http/middleware"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/banking"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/shared/apperr"
)

type BankingHandler struct {
	Banks *banking.Service
}

func NewBankingHandler(svc *banking.Service) *BankingHandler {
	return &BankingHandler{Banks: svc}
}

// GET /api/admin/bank-connections
func (h *BankingHandler) List(c *gin.Context) {
	list, err := h.Banks.List(c.Request.Context())
	if err != nil {
		middleware.Fail(c, apperr.Wrap(err))
		return
	}
	handlers.OK(c, gin.H{"connections": list})
}

type connectionBody struct {
	Enabled bool   `json:"enabled"`
	Status  string `json:"status" binding:"omitempty,oneof=connected disconnected pending error"`
	PixKey  string `json:"pix_key" binding:"max=140"`
}

// PUT /api/admin/bank-connections/:bank_id
func (h *BankingHandler) Upsert(c *gin.Context) {
	var in connectionBody
	if !handlers.BindJSON(c, &in) {
		return
	}
	conn, err := h.Banks.Upsert(c.Request.Context(), banking.UpsertInput{
		BankID:  c.Param("bank_id"),
		Enabled: in.Enabled,
		Status:  in.Status,
		PixKey:  in.PixKey,
	})
	switch {
	case errors.Is(err, banking.ErrUnknownBank):
		middleware.Fail(c, apperr.InvalidErr("Banco inválido.", map[string]string{"bank_id": "Informe o banco."}))
		return
	case errors.Is(err, banking.ErrInvalidStatus):
		middleware.Fail(c, apperr.InvalidErr("Status inválido.", map[string]string{"status": "Status inválido."}))
		return
	case err != nil:
		middleware.Fail(c, apperr.Wrap(err))
		return
	}
	handlers.OK(c, gin.H{"connection": conn})
}
