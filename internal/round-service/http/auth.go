package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const RoleAdmin = "admin"

// AdminClaims são as claims esperadas no bearer token do painel
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type ctxKey int

const adminKey ctxKey = iota

// AdminFrom devolve o subject do operador autenticado (vazio fora das rotas admin)
func AdminFrom(ctx context.Context) string {
	s, _ := ctx.Value(adminKey).(string)
	return s
}

// RequireAdmin valida o bearer HMAC e exige role=admin.
// 401 para token ausente/inválido, 403 para token válido sem o papel.
func RequireAdmin(secret []byte, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const bearer = "Bearer "
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, bearer) {
				writeJSON(w, http.StatusUnauthorized, errorBody("authorization bearer token required", "unauthorized"))
				return
			}

			var claims AdminClaims
			_, err := jwt.ParseWithClaims(h[len(bearer):], &claims, func(*jwt.Token) (any, error) {
				return secret, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
			if err != nil {
				msg := "invalid token"
				if errors.Is(err, jwt.ErrTokenExpired) {
					msg = "token expired"
				}
				log.Warn("admin auth rejected", zap.String("path", r.URL.Path), zap.Error(err))
				writeJSON(w, http.StatusUnauthorized, errorBody(msg, "unauthorized"))
				return
			}
			if claims.Role != RoleAdmin {
				log.Warn("admin role required", zap.String("sub", claims.Subject), zap.String("role", claims.Role))
				writeJSON(w, http.StatusForbidden, errorBody("admin role required", "forbidden"))
				return
			}

			ctx := context.WithValue(r.Context(), adminKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SignAdminToken emite um token de operador (usado pelo cmd/admin-token e nos testes)
func SignAdminToken(secret []byte, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := AdminClaims{
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
