package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/shared/apperr"
)

const (
	RoleAdmin      = "admin"
	ctxKeyAdminSub = "admin_sub"
)

// AdminClaims is the bearer token issued to back-office users.
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// IssueAdminToken signs an HS256 admin token; used by the CLI tools and tests.
func IssueAdminToken(secret, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := AdminClaims{
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// RequireAdmin accepts only HS256 bearer tokens whose role claim is admin.
// An empty secret rejects everything.
func RequireAdmin(secret string) gin.HandlerFunc {
	key := []byte(secret)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())

	return func(c *gin.Context) {
		raw, ok := bearer(c.GetHeader("Authorization"))
		if !ok || len(key) == 0 {
			Fail(c, apperr.UnauthorizedErr("Autenticação necessária."))
			return
		}

		var claims AdminClaims
		_, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) { return key, nil })
		if err != nil {
			msg := "Token inválido."
			if errors.Is(err, jwt.ErrTokenExpired) {
				msg = "Sessão expirada."
			}
			Fail(c, apperr.UnauthorizedErr(msg).WithCause(err))
			return
		}
		if claims.Role != RoleAdmin {
			Fail(c, apperr.ForbiddenErr("Acesso restrito a administradores."))
			return
		}

		c.Set(ctxKeyAdminSub, claims.Subject)
		c.Next()
	}
}

// AdminSubject is the authenticated admin, "" outside admin routes.
func AdminSubject(c *gin.Context) string {
	return c.GetString(ctxKeyAdminSub)
}

func bearer(h string) (string, bool) {
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(h[len(prefix):]), true
}
