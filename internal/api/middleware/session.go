package middleware

import (
	"net/http"
	"strings"

	"github.com/ETAnderson/merchantdesk/internal/api/auth"
	"github.com/ETAnderson/merchantdesk/internal/api/shopctx"
)

// ShopHeaderKey lets local tooling pick a shop without a session token.
const ShopHeaderKey = "X-Shop-Domain"

// SessionMiddleware authenticates App Bridge session tokens and puts the shop
// domain on the request context.
type SessionMiddleware struct {
	Dev    bool
	Secret []byte
	Next   http.Handler
}

func (m SessionMiddleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if m.Next == nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	authz := strings.TrimSpace(r.Header.Get("Authorization"))

	// In dev, a bare shop header is enough when no token is sent.
	if m.Dev && authz == "" {
		shop := strings.TrimSpace(r.Header.Get(ShopHeaderKey))
		if shop == "" {
			shop = strings.TrimSpace(r.URL.Query().Get("shop"))
		}
		if shop == "" {
			unauthorized(w, "missing shop")
			return
		}
		m.Next.ServeHTTP(w, r.WithContext(shopctx.WithShop(r.Context(), shop)))
		return
	}

	if !strings.HasPrefix(authz, "Bearer ") {
		unauthorized(w, "missing bearer token")
		return
	}

	tokenString := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	if tokenString == "" {
		unauthorized(w, "empty bearer token")
		return
	}

	claims, err := auth.ParseSessionToken(tokenString, m.Secret)
	if err != nil {
		unauthorized(w, "invalid token")
		return
	}

	ctx := shopctx.WithShop(r.Context(), claims.ShopDomain())
	m.Next.ServeHTTP(w, r.WithContext(ctx))
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","message":"` + msg + `"}`))
}
