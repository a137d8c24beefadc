package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/http/middleware"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/http/validation"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/shared/apperr"
)

// OK writes payload's fields next to "success": true.
func OK(c *gin.Context, payload any) {
	b, err := json.Marshal(payload)
	if err != nil {
		middleware.Fail(c, apperr.Wrap(err))
		return
	}
	body := []byte(`{"success":true}`)
	if len(b) > 2 && b[0] == '{' {
		body = append([]byte(`{"success":true,`), b[1:]...)
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// BindJSON binds the body into dst, failing the request with field errors.
func BindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		middleware.Fail(c, validation.BindError(err))
		return false
	}
	return true
}

func ParseInt(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
