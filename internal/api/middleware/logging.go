package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ETAnderson/merchantdesk/internal/tracing"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// RequestLogger writes one structured line per request.
type RequestLogger struct {
	Log  *zap.Logger
	Next http.Handler
}

func (m RequestLogger) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	m.Next.ServeHTTP(sr, r)

	if m.Log == nil {
		return
	}
	fields := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", sr.status),
		zap.Duration("duration", time.Since(start)),
	}
	if id := tracing.TraceID(r.Context()); id != "" {
		fields = append(fields, zap.String("trace_id", id))
	}
	if sr.status >= http.StatusInternalServerError {
		m.Log.Warn("request failed", fields...)
		return
	}
	m.Log.Info("request", fields...)
}
