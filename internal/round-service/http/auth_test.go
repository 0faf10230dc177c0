package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

func TestRequireAdmin(t *testing.T) {
	var seen string
	h := RequireAdmin(secret, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = AdminFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	valid, _ := SignAdminToken(secret, "ops@test", time.Hour)
	expired, _ := SignAdminToken(secret, "ops@test", -time.Minute)
	wrongKey, _ := SignAdminToken([]byte("other"), "ops@test", time.Hour)
	player, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, AdminClaims{
		Role:             "player",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString(secret)
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, AdminClaims{Role: RoleAdmin}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer " + valid, http.StatusNoContent},
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong key", "Bearer " + wrongKey, http.StatusUnauthorized},
		{"alg none", "Bearer " + none, http.StatusUnauthorized},
		{"not admin", "Bearer " + player, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodPost, "/admin/rounds", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusNoContent && seen != "ops@test" {
				t.Errorf("admin subject = %q", seen)
			}
		})
	}
}
