package analytics

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Source says where a dataset came from.
type Source string

const (
	SourceLive  Source = "live"
	SourceCache Source = "cache"
	SourceMock  Source = "mock"
)

type LoadResult struct {
	Dataset  Dataset     `json:"dataset"`
	Source   Source      `json:"source"`
	Cache    CacheStatus `json:"cache,omitempty"`
	Warning  string      `json:"warning,omitempty"`
	StoredAt *time.Time  `json:"storedAt,omitempty"`
}

// Service is the dashboard's sales data loader. It never fails on a backing
// service outage; it degrades to the mock dataset with a warning instead.
type Service struct {
	Cache       *Cache
	UseMockData bool
	TTLMinutes  int
	Log         *zap.Logger
	Now         func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) Load(ctx context.Context, shop string, q Query) LoadResult {
	now := s.now()

	if s.UseMockData || s.Cache == nil {
		return LoadResult{Dataset: MockDataset(now), Source: SourceMock}
	}

	res, err := s.Cache.Fetch(ctx, FetchInput{
		Shop:       shop,
		Query:      q,
		Now:        now,
		TTLMinutes: s.TTLMinutes,
	})
	if err != nil {
		if s.Log != nil {
			s.Log.Warn("sales analytics unavailable, serving mock data",
				zap.String("shop", shop),
				zap.Error(err),
			)
		}
		return LoadResult{Dataset: MockDataset(now), Source: SourceMock, Warning: MockWarning}
	}

	src := SourceLive
	if res.Status == CacheHit {
		src = SourceCache
	}
	return LoadResult{Dataset: res.Dataset, Source: src, Cache: res.Status, StoredAt: res.StoredAt}
}
