package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/config"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/database/dbtest"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/http/middleware"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/logging"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/pix"
)

func testConfig() config.Config {
	return config.Config{
		HTTP:          config.HTTPConfig{AllowedOriginsCSV: "*"},
		Mail:          config.MailConfig{Driver: "log", From: "pedidos@example.com", FromName: "Loja"},
		Auth:          config.AuthConfig{JWTSecret: "secret"},
		Pix:           config.PixConfig{SnowflakeNode: 3},
		Payments:      config.PaymentsConfig{ProviderTimeout: time.Second},
		Webhook:       config.WebhookConfig{RatePerSecond: 10, Burst: 10},
		PublicBaseURL: "https://loja.example.com",
	}
}

func call(t *testing.T, r *gin.Engine, method, path, body, token string) map[string]any {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestPixCheckoutEndToEnd(t *testing.T) {
	gin.SetMode(gin.TestMode)
	t.Setenv("STORAGE_DRIVER", "local")
	t.Setenv("STATEMENT_ARCHIVE_DIR", t.TempDir())

	db := dbtest.Open(t, Models()...)
	a, err := Build(context.Background(), testConfig(), logging.Discard(), db)
	require.NoError(t, err)
	require.NotNil(t, a.Archive)
	r := a.Router()

	token, err := middleware.IssueAdminToken("secret", "ana@loja", time.Hour)
	require.NoError(t, err)

	call(t, r, http.MethodPut, "/api/admin/settings/pix_settings",
		`{"enabled":true,"pix_key":"52998224725","key_type":"cpf","merchant_name":"Spice Shelf","merchant_city":"Sao Paulo"}`, token)

	created := call(t, r, http.MethodPost, "/functions/v1/create-pix-order",
		`{"items":[{"name":"Açafrão 50g","price_cents":1990,"quantity":2}],"customer_name":"Maria Silva","customer_email":"maria@example.com"}`, "")
	assert.Equal(t, true, created["success"])
	nsu := created["order_nsu"].(string)
	assert.EqualValues(t, 3980, created["total_cents"])

	p, err := pix.Parse(created["pix_code"].(string))
	require.NoError(t, err)
	assert.Equal(t, created["txid"], p.TxID)

	status := call(t, r, http.MethodPost, "/functions/v1/check-payment", `{"order_nsu":"`+nsu+`"}`, "")
	assert.Equal(t, false, status["paid"])

	confirmed := call(t, r, http.MethodPost, "/functions/v1/verify-pix-payment", `{"order_nsu":"`+nsu+`"}`, token)
	assert.Equal(t, true, confirmed["paid"])
	assert.Equal(t, "paid", confirmed["status"])

	a.Notify.Wait()
	sent := call(t, r, http.MethodPost, "/functions/v1/send-order-emails", `{"order_nsu":"`+nsu+`"}`, "")
	notes := sent["notifications"].(map[string]any)
	assert.Equal(t, "duplicate", notes["customer_email"])
	assert.Equal(t, "skipped", notes["whatsapp"])

	require.NoError(t, a.Close())
}
