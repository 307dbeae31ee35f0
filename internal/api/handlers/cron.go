package handlers

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ETAnderson/merchantdesk/internal/retention"
)

// CronHandler triggers the retention sweep. With an empty Secret the
// endpoint is open.
type CronHandler struct {
	Sweep  retention.Sweep
	Secret string
	Log    *zap.Logger
}

type retentionRequest struct {
	RetainDays         *int       `json:"retainDays" validate:"omitempty,min=1,max=3650"`
	UpcomingWindowDays *int       `json:"upcomingWindowDays" validate:"omitempty,min=1,max=365"`
	FallbackTTLMinutes *int       `json:"fallbackTtlMinutes" validate:"omitempty,min=1,max=525600"`
	Now                *time.Time `json:"now"`
}

func (req retentionRequest) options() retention.Options {
	var o retention.Options
	if req.RetainDays != nil {
		o.RetainDays = *req.RetainDays
	}
	if req.UpcomingWindowDays != nil {
		o.UpcomingWindowDays = *req.UpcomingWindowDays
	}
	if req.FallbackTTLMinutes != nil {
		o.FallbackTTLMinutes = *req.FallbackTTLMinutes
	}
	if req.Now != nil {
		o.Now = *req.Now
	}
	return o
}

func (h CronHandler) authorized(r *http.Request) bool {
	if h.Secret == "" {
		return true
	}
	if h.matches(r.URL.Query().Get("token")) {
		return true
	}
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	return strings.HasPrefix(authz, "Bearer ") && h.matches(strings.TrimPrefix(authz, "Bearer "))
}

func (h CronHandler) matches(token string) bool {
	token = strings.TrimSpace(token)
	return token != "" && subtle.ConstantTimeCompare([]byte(token), []byte(h.Secret)) == 1
}

func (h CronHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST")
		return
	}
	if !h.authorized(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid cron secret")
		return
	}

	var req retentionRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", validationMessage(err))
		return
	}

	res, err := h.Sweep.Run(r.Context(), req.options())
	if err != nil {
		if h.Log != nil {
			h.Log.Error("retention sweep failed", zap.Error(err))
		}
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"ok":      false,
			"error":   "retention_failed",
			"message": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"result": res,
	})
}
