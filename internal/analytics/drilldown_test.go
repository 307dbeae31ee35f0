package analytics

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	collSummer = "gid://shopify/Collection/1001"
	prodShirt  = "gid://shopify/Product/2001"
)

func TestDrilldown_NoBucketIsIdentity(t *testing.T) {
	ds := MockDataset(fixedNow)
	view := Drilldown(ds, Selection{}, Links{})

	assert.Equal(t, LevelCollections, view.Level)
	assert.Equal(t, Factors{Revenue: 1, Orders: 1}, view.Factors)
	require.Len(t, view.Rows, len(ds.Collections))
	for i, c := range ds.Collections {
		assert.Equal(t, c.GMV, view.Rows[i].GMV)
		assert.Equal(t, c.Orders, view.Rows[i].Orders)
		require.NotNil(t, view.Rows[i].ConversionRate)
		assert.Equal(t, c.ConversionRate, *view.Rows[i].ConversionRate)
	}
}

func TestDrilldown_VariantsLevelIdentity(t *testing.T) {
	ds := MockDataset(fixedNow)
	view := Drilldown(ds, Selection{CollectionID: collSummer, ProductID: prodShirt}, Links{})

	assert.Equal(t, LevelVariants, view.Level)
	src := ds.VariantsByProduct[prodShirt]
	require.Len(t, view.Rows, len(src))
	for i, v := range src {
		assert.Equal(t, v.GMV, view.Rows[i].GMV)
		assert.Equal(t, v.Orders, view.Rows[i].Orders)
		assert.Equal(t, v.SKU, view.Rows[i].SKU)
		assert.Nil(t, view.Rows[i].Href)
	}
}

func TestDrilldown_BucketScalesRows(t *testing.T) {
	ds := MockDataset(fixedNow)
	bucket := ds.Trend[len(ds.Trend)-1]
	view := Drilldown(ds, Selection{BucketDate: bucket.Date}, Links{})

	require.NotNil(t, view.Bucket)
	wantRevenue := bucket.Total.Amount / ds.Totals.CurrentTotal.Amount
	wantOrders := float64(bucket.Orders) / float64(ds.TotalOrders())
	assert.InDelta(t, wantRevenue, view.Factors.Revenue, 1e-9)
	assert.InDelta(t, wantOrders, view.Factors.Orders, 1e-9)

	first := ds.Collections[0]
	assert.InDelta(t, round2(first.GMV.Amount*wantRevenue), view.Rows[0].GMV.Amount, 1e-9)
	assert.Equal(t, ScaleCount(first.Orders, wantOrders), view.Rows[0].Orders)
	assert.Equal(t, FormatMoney(view.Rows[0].GMV.Amount, "USD"), view.Rows[0].GMV.Formatted)
}

func TestComputeFactors_Edges(t *testing.T) {
	ds := Dataset{Totals: Totals{CurrentTotal: NewMoney(0, "USD")}}
	f := ComputeFactors(ds, &TrendBucket{Total: NewMoney(10, "USD"), Orders: 2})
	assert.Equal(t, Factors{}, f)

	ds = Dataset{
		Totals: Totals{CurrentTotal: NewMoney(100, "USD")},
		Trend:  []TrendBucket{{Date: "2024-05-01", Total: NewMoney(25, "USD")}},
	}
	f = ComputeFactors(ds, &ds.Trend[0])
	assert.Equal(t, 0.25, f.Revenue)
	assert.Equal(t, 0.25, f.Orders, "orders factor falls back to revenue when there are no orders")
}

func TestScaleCount(t *testing.T) {
	assert.Equal(t, 7, ScaleCount(7, 1))
	assert.Equal(t, 4, ScaleCount(7, 0.5))
	assert.Equal(t, 0, ScaleCount(7, -1))
	assert.Equal(t, 0, ScaleCount(3, 0.1))
}

func TestScaleMoney_IdentityKeepsValue(t *testing.T) {
	m := Money{Amount: 10.005, Currency: "USD", Formatted: "custom"}
	assert.Equal(t, m, ScaleMoney(m, 1))
	assert.Equal(t, "$5.00", ScaleMoney(NewMoney(10, "USD"), 0.5).Formatted)
}

func hrefs(crumbs []Breadcrumb) []*string {
	out := make([]*string, len(crumbs))
	for i, c := range crumbs {
		out[i] = c.Href
	}
	return out
}

func TestBreadcrumbs_RootView(t *testing.T) {
	view := Drilldown(MockDataset(fixedNow), Selection{}, Links{})
	require.Len(t, view.Breadcrumbs, 1)
	assert.Equal(t, "Last 7 days", view.Breadcrumbs[0].Label)
	assert.Nil(t, view.Breadcrumbs[0].Href)
}

func TestBreadcrumbs_BucketAtCollections(t *testing.T) {
	ds := MockDataset(fixedNow)
	view := Drilldown(ds, Selection{BucketDate: ds.Trend[0].Date}, Links{})

	require.Len(t, view.Breadcrumbs, 2)
	require.NotNil(t, view.Breadcrumbs[0].Href)
	assert.Equal(t, "/app/sales", *view.Breadcrumbs[0].Href)
	assert.Nil(t, view.Breadcrumbs[1].Href)
	assert.Equal(t, "May 1, 2024", view.Breadcrumbs[1].Label)
}

func TestBreadcrumbs_ProductsLevel(t *testing.T) {
	ds := MockDataset(fixedNow)
	params := url.Values{"period": {"7d"}, "collectionId": {"stale"}}
	view := Drilldown(ds, Selection{CollectionID: collSummer}, Links{Params: params})

	require.Len(t, view.Breadcrumbs, 2)
	require.NotNil(t, view.Breadcrumbs[0].Href)
	assert.Equal(t, "/app/sales?period=7d", *view.Breadcrumbs[0].Href)
	assert.Equal(t, "Summer Essentials", view.Breadcrumbs[1].Label)
	assert.Nil(t, view.Breadcrumbs[1].Href)

	require.NotNil(t, view.Rows[0].Href)
	want := "/app/sales?" + url.Values{"period": {"7d"}, "collectionId": {collSummer}, "productId": {prodShirt}}.Encode()
	assert.Equal(t, want, *view.Rows[0].Href)
}

func TestBreadcrumbs_VariantsLevelWithBucket(t *testing.T) {
	ds := MockDataset(fixedNow)
	day := ds.Trend[2].Date
	view := Drilldown(ds, Selection{BucketDate: day, CollectionID: collSummer, ProductID: prodShirt}, Links{BasePath: "/app/sales"})

	require.Len(t, view.Breadcrumbs, 4)
	h := hrefs(view.Breadcrumbs)
	require.NotNil(t, h[0])
	require.NotNil(t, h[1])
	require.NotNil(t, h[2])
	assert.Nil(t, h[3])

	assert.Equal(t, "/app/sales?"+url.Values{"bucket": {day}}.Encode(), *h[1])
	assert.Equal(t, "/app/sales?"+url.Values{"bucket": {day}, "collectionId": {collSummer}}.Encode(), *h[2])
	assert.Equal(t, "Linen Shirt", view.Breadcrumbs[3].Label)
}

func TestDrilldown_UnknownSelectionFallsBack(t *testing.T) {
	ds := MockDataset(fixedNow)

	view := Drilldown(ds, Selection{CollectionID: "missing", ProductID: prodShirt}, Links{})
	assert.Equal(t, LevelCollections, view.Level)

	view = Drilldown(ds, Selection{CollectionID: collSummer, ProductID: "missing"}, Links{})
	assert.Equal(t, LevelProducts, view.Level)

	view = Drilldown(ds, Selection{BucketDate: "1999-01-01"}, Links{})
	assert.Nil(t, view.Bucket)
	assert.Equal(t, identityFactors, view.Factors)
}

func TestMockDataset_Invariants(t *testing.T) {
	ds := MockDataset(fixedNow)

	var trendTotal float64
	for _, b := range ds.Trend {
		trendTotal += b.Total.Amount
	}
	assert.InDelta(t, ds.Totals.CurrentTotal.Amount, trendTotal, 0.01)

	for _, c := range ds.Collections {
		products, ok := ds.ProductsByCollection[c.ID]
		require.True(t, ok, c.ID)
		for _, p := range products {
			_, ok := ds.VariantsByProduct[p.ID]
			assert.True(t, ok, p.ID)
		}
	}
	assert.Equal(t, "2024-05-07", ds.Range.End)
	assert.Equal(t, "2024-05-01", ds.Range.Start)
}
