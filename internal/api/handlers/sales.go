package handlers

import (
	"bytes"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ETAnderson/merchantdesk/internal/analytics"
	"github.com/ETAnderson/merchantdesk/internal/api/shopctx"
)

// SalesHandler serves the sales dashboard data for the session's shop.
type SalesHandler struct {
	Sales    *analytics.Service
	BasePath string
}

type salesView struct {
	Dataset   analytics.Dataset       `json:"dataset"`
	Drilldown analytics.DrilldownView `json:"drilldown"`
	Source    analytics.Source        `json:"source"`
	Cache     analytics.CacheStatus   `json:"cache,omitempty"`
	Warning   string                  `json:"warning,omitempty"`
	StoredAt  *time.Time              `json:"storedAt,omitempty"`
}

func loadView(r *http.Request, sales *analytics.Service, basePath string) (salesView, analytics.Query, error) {
	q := analytics.QueryFromValues(r.URL.Query())
	if err := validate.Struct(q); err != nil {
		return salesView{}, q, err
	}

	res := sales.Load(r.Context(), shopctx.Shop(r.Context()), q)
	if basePath == "" {
		basePath = analytics.DefaultBasePath
	}
	view := analytics.Drilldown(res.Dataset, analytics.SelectionFromQuery(q), analytics.Links{
		BasePath: basePath,
		Params:   r.URL.Query(),
	})
	return salesView{
		Dataset:   res.Dataset,
		Drilldown: view,
		Source:    res.Source,
		Cache:     res.Cache,
		Warning:   res.Warning,
		StoredAt:  res.StoredAt,
	}, q, nil
}

func (h SalesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if shopctx.Shop(r.Context()) == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing shop")
		return
	}
	v, _, err := loadView(r, h.Sales, h.BasePath)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid_query", validationMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// ExportHandler streams the current drilldown level as CSV and, when an
// archiver is set, keeps a copy in object storage.
type ExportHandler struct {
	Sales    *analytics.Service
	Archiver *analytics.ExportArchiver
	Log      *zap.Logger
	Now      func() time.Time
}

func (h ExportHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

func (h ExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	shop := shopctx.Shop(r.Context())
	if shop == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing shop")
		return
	}
	v, _, err := loadView(r, h.Sales, "")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid_query", validationMessage(err))
		return
	}

	var buf bytes.Buffer
	if err := analytics.WriteCSV(&buf, v.Drilldown); err != nil {
		writeError(w, http.StatusInternalServerError, "export_failed", err.Error())
		return
	}

	now := h.now()
	if h.Archiver != nil && h.Archiver.Bucket != "" {
		if key, err := h.Archiver.Archive(r.Context(), shop, v.Drilldown.Level, now, buf.Bytes()); err != nil {
			if h.Log != nil {
				h.Log.Warn("export archive failed", zap.String("shop", shop), zap.Error(err))
			}
		} else {
			w.Header().Set("X-Export-Key", key)
		}
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+analytics.ExportFilename(v.Drilldown, now.Format("20060102"))+`"`)
	if v.Warning != "" {
		w.Header().Set("X-Data-Warning", "mock")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// HealthHandler reports liveness.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}
