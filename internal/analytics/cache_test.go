package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ETAnderson/merchantdesk/internal/state"
)

type countingFetcher struct {
	calls int
	ds    Dataset
	err   error
}

func (f *countingFetcher) FetchSalesAnalytics(ctx context.Context, req FetchRequest) (Dataset, error) {
	f.calls++
	return f.ds, f.err
}

type failingCacheStore struct {
	state.Store
}

func (failingCacheStore) GetCacheRow(ctx context.Context, key state.CacheRowKey) (state.CacheRow, bool, error) {
	return state.CacheRow{}, false, errors.New("db down")
}

func (failingCacheStore) UpsertCacheRow(ctx context.Context, row state.CacheRow) error {
	return errors.New("db down")
}

var fixedNow = time.Date(2024, 5, 7, 12, 0, 0, 0, time.UTC)

func cacheFixture(t *testing.T) (*state.MemoryStore, *countingFetcher, *Cache) {
	t.Helper()
	st := state.NewMemoryStore()
	_, err := st.UpsertStore(context.Background(), state.StoreRecord{Domain: "shop-a.myshopify.com"})
	require.NoError(t, err)

	f := &countingFetcher{ds: MockDataset(fixedNow)}
	return st, f, &Cache{Store: st, Fetcher: f, Log: zap.NewNop()}
}

func rangedQuery() Query {
	return Query{Period: "7d", RangeStart: "2024-05-01", RangeEnd: "2024-05-07"}
}

func TestCache_RoundTripSkipsSecondLiveFetch(t *testing.T) {
	_, f, c := cacheFixture(t)
	ctx := context.Background()
	in := FetchInput{Shop: "SHOP-A.myshopify.com", Query: rangedQuery(), Now: fixedNow}

	first, err := c.Fetch(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, CacheMiss, first.Status)

	in.Now = fixedNow.Add(time.Hour)
	second, err := c.Fetch(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, CacheHit, second.Status)

	assert.Equal(t, 1, f.calls)
	assert.Equal(t, first.Dataset, second.Dataset)
	require.NotNil(t, second.StoredAt)
	assert.True(t, second.StoredAt.Equal(fixedNow))
}

func TestCache_HitReturnsIndependentCopy(t *testing.T) {
	_, _, c := cacheFixture(t)
	ctx := context.Background()
	in := FetchInput{Shop: "shop-a.myshopify.com", Query: rangedQuery(), Now: fixedNow}

	_, err := c.Fetch(ctx, in)
	require.NoError(t, err)

	hit, _ := c.Fetch(ctx, in)
	hit.Dataset.Collections[0].Title = "mutated"

	again, _ := c.Fetch(ctx, in)
	assert.NotEqual(t, "mutated", again.Dataset.Collections[0].Title)
}

func TestCache_ExpiredRowRefetches(t *testing.T) {
	_, f, c := cacheFixture(t)
	ctx := context.Background()
	in := FetchInput{Shop: "shop-a.myshopify.com", Query: rangedQuery(), Now: fixedNow, TTLMinutes: 10}

	_, _ = c.Fetch(ctx, in)
	in.Now = fixedNow.Add(11 * time.Minute)
	res, err := c.Fetch(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, CacheMiss, res.Status)
	assert.Equal(t, 2, f.calls)
}

func TestCache_WritesTTL(t *testing.T) {
	st, _, c := cacheFixture(t)
	ctx := context.Background()

	res, err := c.Fetch(ctx, FetchInput{Shop: "shop-a.myshopify.com", Query: rangedQuery(), Now: fixedNow})
	require.NoError(t, err)

	store, _, _ := st.FindStoreByDomain(ctx, "shop-a.myshopify.com")
	start, _ := parseRangeDate("2024-05-01")
	end, _ := parseRangeDate("2024-05-07")
	row, ok, _ := st.GetCacheRow(ctx, state.CacheRowKey{StoreID: store.ID, MetricKey: res.MetricKey, RangeStart: start, RangeEnd: end})
	require.True(t, ok)
	require.NotNil(t, row.ExpiresAt)
	assert.True(t, row.ExpiresAt.Equal(fixedNow.Add(DefaultTTLMinutes*time.Minute)))
	assert.Contains(t, string(row.Payload), `"search":"period=7d`)
}

func TestCache_UnparseableRangeBypasses(t *testing.T) {
	_, f, c := cacheFixture(t)
	q := Query{Period: "7d", RangeStart: "last week", RangeEnd: "2024-05-07"}

	for i := 0; i < 2; i++ {
		res, err := c.Fetch(context.Background(), FetchInput{Shop: "shop-a.myshopify.com", Query: q, Now: fixedNow})
		require.NoError(t, err)
		assert.Equal(t, CacheBypass, res.Status)
	}
	assert.Equal(t, 2, f.calls)
}

func TestCache_UnknownStoreBypasses(t *testing.T) {
	_, f, c := cacheFixture(t)

	for i := 0; i < 2; i++ {
		res, err := c.Fetch(context.Background(), FetchInput{Shop: "other.myshopify.com", Query: rangedQuery(), Now: fixedNow})
		require.NoError(t, err)
		assert.Equal(t, CacheBypass, res.Status)
	}
	assert.Equal(t, 2, f.calls)
}

func TestCache_ExplicitStoreIDSkipsLookup(t *testing.T) {
	_, f, c := cacheFixture(t)
	in := FetchInput{StoreID: "store-override", Query: rangedQuery(), Now: fixedNow}

	_, _ = c.Fetch(context.Background(), in)
	res, _ := c.Fetch(context.Background(), in)
	assert.Equal(t, CacheHit, res.Status)
	assert.Equal(t, 1, f.calls)
}

func TestCache_StoreErrorsDegradeToLive(t *testing.T) {
	st, f, _ := cacheFixture(t)
	c := &Cache{Store: failingCacheStore{Store: st}, Fetcher: f, Log: zap.NewNop()}

	res, err := c.Fetch(context.Background(), FetchInput{Shop: "shop-a.myshopify.com", Query: rangedQuery(), Now: fixedNow})
	require.NoError(t, err)
	assert.Equal(t, CacheMiss, res.Status)
	assert.Equal(t, 1, f.calls)
	assert.NotEmpty(t, res.Dataset.Collections)
}

func TestCache_LiveErrorPropagates(t *testing.T) {
	_, f, c := cacheFixture(t)
	f.err = errors.New("upstream 503")

	_, err := c.Fetch(context.Background(), FetchInput{Shop: "shop-a.myshopify.com", Query: rangedQuery(), Now: fixedNow})
	assert.Error(t, err)
}
