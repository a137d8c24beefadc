package admin

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/http/handlers"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/http/middleware"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/cardgateway"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/settings"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/shared/apperr"
)

const maxSettingsBody = 64 << 10

type SettingsHandler struct {
	Store *settings.Store
}

func NewSettingsHandler(st *settings.Store) *SettingsHandler {
	return &SettingsHandler{Store: st}
}

// settingsShape returns a fresh value for a writable key. Bank connections are managed
// by their own endpoint.
func settingsShape(key string) (any, bool) {
	switch key {
	case settings.KeyPix, settings.KeyPixOverride:
		return &settings.PixSettings{}, true
	case settings.KeyBoleto:
		return &settings.BoletoSettings{}, true
	case settings.KeyBoletoRegistered:
		return &settings.BoletoRegisteredSettings{}, true
	case settings.KeyNotification:
		return &settings.NotificationSettings{}, true
	}
	for _, g := range cardgateway.Priority {
		if key == settings.GatewayKey(g) {
			return &settings.GatewaySettings{}, true
		}
	}
	return nil, false
}

var errUnknownKey = apperr.NotFoundErr("Configuração desconhecida.")

// GET /api/admin/settings/:key
func (h *SettingsHandler) Get(c *gin.Context) {
	key := c.Param("key")
	if _, ok := settingsShape(key); !ok {
		middleware.Fail(c, errUnknownKey)
		return
	}
	raw, ok, err := h.Store.Raw(c.Request.Context(), key)
	if err != nil {
		middleware.Fail(c, apperr.Wrap(err))
		return
	}
	if !ok {
		raw = json.RawMessage("null")
	}
	handlers.OK(c, gin.H{"key": key, "value": raw})
}

// PUT /api/admin/settings/:key
func (h *SettingsHandler) Put(c *gin.Context) {
	key := c.Param("key")
	dst, ok := settingsShape(key)
	if !ok {
		middleware.Fail(c, errUnknownKey)
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxSettingsBody))
	if err != nil {
		middleware.Fail(c, apperr.InvalidErr("Não foi possível ler a requisição.", nil))
		return
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		middleware.Fail(c, apperr.InvalidErr("Configuração inválida.", map[string]string{"value": err.Error()}))
		return
	}

	if err := h.Store.Put(c.Request.Context(), key, dst); err != nil {
		middleware.Fail(c, apperr.Wrap(err))
		return
	}
	handlers.OK(c, gin.H{"key": key, "value": dst})
}
