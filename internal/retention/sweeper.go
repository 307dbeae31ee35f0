package retention

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ETAnderson/merchantdesk/internal/state"
)

const (
	DefaultRetainDays         = 30
	DefaultUpcomingWindowDays = 14
	DefaultFallbackTTLMinutes = 360

	// maxLookups bounds the concurrent latest-per-group queries.
	maxLookups = 8
)

const day = 24 * time.Hour

// Options overrides the sweep defaults. Zero values fall back to the defaults;
// a zero Now means the current time.
type Options struct {
	RetainDays         int       `json:"retainDays,omitempty"`
	UpcomingWindowDays int       `json:"upcomingWindowDays,omitempty"`
	FallbackTTLMinutes int       `json:"fallbackTtlMinutes,omitempty"`
	Now                time.Time `json:"now,omitempty"`
}

func (o Options) withDefaults() Options {
	if o.RetainDays <= 0 {
		o.RetainDays = DefaultRetainDays
	}
	if o.UpcomingWindowDays <= 0 {
		o.UpcomingWindowDays = DefaultUpcomingWindowDays
	}
	if o.FallbackTTLMinutes <= 0 {
		o.FallbackTTLMinutes = DefaultFallbackTTLMinutes
	}
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	o.Now = o.Now.UTC()
	return o
}

type ConnectionEventsResult struct {
	Cutoff       time.Time `json:"cutoff"`
	Candidates   int       `json:"candidates"`
	KeptLatest   int       `json:"keptLatest"`
	DeletedCount int       `json:"deletedCount"`
}

type SecretReminder struct {
	ID                 string    `json:"id"`
	StoreID            string    `json:"storeId"`
	Provider           string    `json:"provider"`
	Label              string    `json:"label,omitempty"`
	RotationReminderAt time.Time `json:"rotationReminderAt"`
	DaysOverdue        int       `json:"daysOverdue,omitempty"`
	DaysUntilDue       int       `json:"daysUntilDue,omitempty"`
}

type SecretRotationResult struct {
	WindowEnd time.Time        `json:"windowEnd"`
	Overdue   []SecretReminder `json:"overdue"`
	Upcoming  []SecretReminder `json:"upcoming"`
}

// Total is the number of reminders that need attention.
func (r SecretRotationResult) Total() int { return len(r.Overdue) + len(r.Upcoming) }

type KPICacheResult struct {
	StaleCount    int `json:"staleCount"`
	DeletedCount  int `json:"deletedCount"`
	ExpiredCount  int `json:"expiredCount"`
	FallbackCount int `json:"fallbackCount"`
}

type Result struct {
	RanAt            time.Time              `json:"ranAt"`
	ConnectionEvents ConnectionEventsResult `json:"connectionEvents"`
	SecretRotation   SecretRotationResult   `json:"secretRotation"`
	KPICache         KPICacheResult         `json:"kpiCache"`
}

// Sweeper runs the three retention sub-sweeps against the store.
type Sweeper struct {
	Store    state.Store
	Notifier Notifier
	Log      *zap.Logger
}

func (s *Sweeper) logger() *zap.Logger {
	if s.Log != nil {
		return s.Log
	}
	return zap.NewNop()
}

func (s *Sweeper) Run(ctx context.Context, opts Options) (Result, error) {
	opts = opts.withDefaults()
	log := s.logger()

	ctx, span := otel.Tracer("merchantdesk/retention").Start(ctx, "retention.sweep")
	defer span.End()
	span.SetAttributes(
		attribute.Int("retention.retain_days", opts.RetainDays),
		attribute.Int("retention.upcoming_window_days", opts.UpcomingWindowDays),
		attribute.Int("retention.fallback_ttl_minutes", opts.FallbackTTLMinutes),
	)

	res := Result{RanAt: opts.Now}
	var err error

	if res.ConnectionEvents, err = s.pruneConnectionEvents(ctx, opts); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "connection events")
		return res, err
	}
	if res.SecretRotation, err = s.secretReminders(ctx, opts); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "secret reminders")
		return res, err
	}
	if res.KPICache, err = s.pruneKPICache(ctx, opts); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "kpi cache")
		return res, err
	}

	if s.Notifier != nil && res.SecretRotation.Total() > 0 {
		if err := s.Notifier.NotifyRotation(ctx, res.SecretRotation); err != nil {
			log.Warn("rotation reminder notification failed", zap.Error(err))
		}
	}

	log.Info("retention sweep finished",
		zap.Int("connection_events_deleted", res.ConnectionEvents.DeletedCount),
		zap.Int("secrets_overdue", len(res.SecretRotation.Overdue)),
		zap.Int("secrets_upcoming", len(res.SecretRotation.Upcoming)),
		zap.Int("kpi_cache_deleted", res.KPICache.DeletedCount),
	)
	return res, nil
}

type groupKey struct {
	storeID     string
	integration string
}

func (s *Sweeper) pruneConnectionEvents(ctx context.Context, opts Options) (ConnectionEventsResult, error) {
	cutoff := opts.Now.Add(-time.Duration(opts.RetainDays) * day)
	out := ConnectionEventsResult{Cutoff: cutoff}

	stale, err := s.Store.ListConnectionEventsBefore(ctx, cutoff)
	if err != nil {
		return out, fmt.Errorf("list connection events: %w", err)
	}
	out.Candidates = len(stale)
	if len(stale) == 0 {
		return out, nil
	}

	var groups []groupKey
	seen := map[groupKey]bool{}
	for _, ev := range stale {
		k := groupKey{ev.StoreID, ev.Integration}
		if !seen[k] {
			seen[k] = true
			groups = append(groups, k)
		}
	}

	latest := make([]string, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxLookups)
	for i, k := range groups {
		g.Go(func() error {
			ev, ok, err := s.Store.LatestConnectionEvent(gctx, k.storeID, k.integration)
			if err != nil {
				return fmt.Errorf("latest connection event %s/%s: %w", k.storeID, k.integration, err)
			}
			if ok {
				latest[i] = ev.ID
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}

	keep := make(map[string]bool, len(latest))
	for _, id := range latest {
		if id != "" {
			keep[id] = true
		}
	}

	var ids []string
	for _, ev := range stale {
		if keep[ev.ID] {
			out.KeptLatest++
			continue
		}
		ids = append(ids, ev.ID)
	}
	if len(ids) == 0 {
		return out, nil
	}

	n, err := s.Store.DeleteConnectionEvents(ctx, ids)
	if err != nil {
		return out, fmt.Errorf("delete connection events: %w", err)
	}
	out.DeletedCount = n
	return out, nil
}

func ceilDays(d time.Duration) int {
	return int(math.Ceil(float64(d) / float64(day)))
}

func (s *Sweeper) secretReminders(ctx context.Context, opts Options) (SecretRotationResult, error) {
	windowEnd := opts.Now.Add(time.Duration(opts.UpcomingWindowDays) * day)
	out := SecretRotationResult{
		WindowEnd: windowEnd,
		Overdue:   []SecretReminder{},
		Upcoming:  []SecretReminder{},
	}

	due, err := s.Store.ListSecretsDueBefore(ctx, windowEnd)
	if err != nil {
		return out, fmt.Errorf("list secrets: %w", err)
	}

	for _, sec := range due {
		if sec.RotationReminderAt == nil {
			continue
		}
		at := sec.RotationReminderAt.UTC()
		r := SecretReminder{
			ID:                 sec.ID,
			StoreID:            sec.StoreID,
			Provider:           sec.Provider,
			Label:              sec.Label,
			RotationReminderAt: at,
		}
		diff := at.Sub(opts.Now)
		if diff < 0 {
			r.DaysOverdue = ceilDays(-diff)
			out.Overdue = append(out.Overdue, r)
			continue
		}
		r.DaysUntilDue = ceilDays(diff)
		out.Upcoming = append(out.Upcoming, r)
	}
	return out, nil
}

func (s *Sweeper) pruneKPICache(ctx context.Context, opts Options) (KPICacheResult, error) {
	var out KPICacheResult

	expired, err := s.Store.ListExpiredCacheRows(ctx, opts.Now)
	if err != nil {
		return out, fmt.Errorf("list expired cache rows: %w", err)
	}
	fallbackBefore := opts.Now.Add(-time.Duration(opts.FallbackTTLMinutes) * time.Minute)
	fallback, err := s.Store.ListFallbackStaleCacheRows(ctx, fallbackBefore)
	if err != nil {
		return out, fmt.Errorf("list fallback cache rows: %w", err)
	}
	out.ExpiredCount = len(expired)
	out.FallbackCount = len(fallback)

	set := map[string]struct{}{}
	for _, row := range expired {
		set[row.ID] = struct{}{}
	}
	for _, row := range fallback {
		set[row.ID] = struct{}{}
	}
	out.StaleCount = len(set)
	if len(set) == 0 {
		return out, nil
	}

	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	n, err := s.Store.DeleteCacheRows(ctx, ids)
	if err != nil {
		return out, fmt.Errorf("delete cache rows: %w", err)
	}
	out.DeletedCount = n
	return out, nil
}
