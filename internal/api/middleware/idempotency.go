package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/ETAnderson/merchantdesk/internal/api/shopctx"
	"github.com/ETAnderson/merchantdesk/internal/state"
)

// HTTP header used for idempotent requests
const IdempotencyHeaderKey = "Idempotency-Key"

const idempotencyTTL = 24 * time.Hour

// IdempotencyMiddleware replays the first response for a repeated
// Idempotency-Key, scoped per shop and endpoint.
type IdempotencyMiddleware struct {
	Store state.Store
	Next  http.Handler
}

func (m IdempotencyMiddleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if m.Next == nil || m.Store == nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		m.Next.ServeHTTP(w, r)
		return
	}

	idemKey := strings.TrimSpace(r.Header.Get(IdempotencyHeaderKey))
	if idemKey == "" {
		m.Next.ServeHTTP(w, r)
		return
	}

	endpoint := r.Method + " " + strings.TrimSpace(r.URL.Path)
	shop := shopctx.Shop(r.Context())
	keyHash := sha256Hex(idemKey)

	rec, ok, err := m.Store.GetIdempotency(r.Context(), shop, endpoint, keyHash)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"idempotency_lookup_failed"}`))
		return
	}

	if ok {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Idempotent-Replay", "true")

		status := rec.StatusCode
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		_, _ = w.Write(rec.BodyJSON)
		return
	}

	if r.Body != nil {
		reqBody, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(reqBody))
	}

	rr := httptest.NewRecorder()
	m.Next.ServeHTTP(rr, r)

	for k, vals := range rr.Header() {
		for _, v := range vals {
			w.Header().Add(k, v)
		}
	}

	status := rr.Code
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(rr.Body.Bytes())

	// Server errors are retryable; don't pin them.
	if status >= http.StatusInternalServerError {
		return
	}

	now := time.Now().UTC()
	_ = m.Store.PutIdempotency(r.Context(), shop, endpoint, keyHash, state.IdempotencyRecord{
		StatusCode: status,
		BodyJSON:   rr.Body.Bytes(),
		CreatedAt:  now,
		ExpiresAt:  now.Add(idempotencyTTL),
	})
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
