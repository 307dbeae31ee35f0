package api

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/ETAnderson/merchantdesk/internal/analytics"
	"github.com/ETAnderson/merchantdesk/internal/api/handlers"
	"github.com/ETAnderson/merchantdesk/internal/api/middleware"
	"github.com/ETAnderson/merchantdesk/internal/queue"
	"github.com/ETAnderson/merchantdesk/internal/retention"
	"github.com/ETAnderson/merchantdesk/internal/state"
	"github.com/ETAnderson/merchantdesk/internal/webhooks"
)

type Deps struct {
	Store     state.Store
	Queue     queue.Driver
	Processor *webhooks.Processor
	Sales     *analytics.Service
	Archiver  *analytics.ExportArchiver
	Sweep     retention.Sweep

	CronSecret    string
	SessionSecret []byte
	Dev           bool
	Log           *zap.Logger
}

// NewRouter wires every HTTP route.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", handlers.HealthHandler)

	mux.Handle("POST /webhooks/{topic...}", handlers.WebhookHandler{
		Processor: d.Processor,
		Log:       d.Log,
	})

	mux.Handle("/queue/webhooks", middleware.IdempotencyMiddleware{
		Store: d.Store,
		Next:  handlers.QueueHandler{Queue: d.Queue, Store: d.Store},
	})

	mux.Handle("/cron/retention", handlers.CronHandler{
		Sweep:  d.Sweep,
		Secret: d.CronSecret,
		Log:    d.Log,
	})

	session := func(next http.Handler) http.Handler {
		return middleware.SessionMiddleware{Dev: d.Dev, Secret: d.SessionSecret, Next: next}
	}
	mux.Handle("GET /app/sales", session(handlers.SalesHandler{Sales: d.Sales}))
	mux.Handle("GET /app/sales/export.csv", session(handlers.ExportHandler{
		Sales:    d.Sales,
		Archiver: d.Archiver,
		Log:      d.Log,
	}))

	return otelhttp.NewHandler(middleware.RequestLogger{Log: d.Log, Next: mux}, "merchantdesk.http")
}
