package analytics

import (
	"math"
	"net/url"
	"time"
)

type Level string

const (
	LevelCollections Level = "collections"
	LevelProducts    Level = "products"
	LevelVariants    Level = "variants"
)

// DefaultBasePath is the dashboard route drilldown links point at.
const DefaultBasePath = "/app/sales"

type Selection struct {
	CollectionID string
	ProductID    string
	VariantID    string
	BucketDate   string
}

func SelectionFromQuery(q Query) Selection {
	return Selection{
		CollectionID: q.CollectionID,
		ProductID:    q.ProductID,
		VariantID:    q.VariantID,
		BucketDate:   q.BucketDate,
	}
}

// Links controls how breadcrumb and row hrefs are built. Params carries the
// filters that every link keeps (period, compare, range).
type Links struct {
	BasePath string
	Params   url.Values
}

type Factors struct {
	Revenue float64 `json:"revenue"`
	Orders  float64 `json:"orders"`
}

var identityFactors = Factors{Revenue: 1, Orders: 1}

type Breadcrumb struct {
	Label string  `json:"label"`
	Href  *string `json:"href,omitempty"`
}

type Row struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	SKU            string   `json:"sku,omitempty"`
	GMV            Money    `json:"gmv"`
	Orders         int      `json:"orders"`
	ConversionRate *float64 `json:"conversionRate,omitempty"`
	Inventory      *int     `json:"inventory,omitempty"`
	Href           *string  `json:"href,omitempty"`
}

type DrilldownView struct {
	Level       Level              `json:"level"`
	Factors     Factors            `json:"factors"`
	Bucket      *TrendBucket       `json:"bucket,omitempty"`
	Collection  *CollectionSummary `json:"collection,omitempty"`
	Product     *ProductSummary    `json:"product,omitempty"`
	Variant     *VariantSummary    `json:"variant,omitempty"`
	Rows        []Row              `json:"rows"`
	Breadcrumbs []Breadcrumb       `json:"breadcrumbs"`
	Currency    string             `json:"currency"`
}

// ComputeFactors scales full-period values down to a single trend bucket.
// Without a bucket both factors are 1.
func ComputeFactors(ds Dataset, bucket *TrendBucket) Factors {
	if bucket == nil {
		return identityFactors
	}

	var revenue float64
	if total := ds.Totals.CurrentTotal.Amount; total > 0 {
		revenue = bucket.Total.Amount / total
	}

	orders := revenue
	if totalOrders := ds.TotalOrders(); totalOrders > 0 {
		orders = float64(bucket.Orders) / float64(totalOrders)
	}
	return Factors{Revenue: revenue, Orders: orders}
}

func ScaleMoney(m Money, factor float64) Money {
	if factor == 1 {
		return m
	}
	return NewMoney(round2(m.Amount*factor), m.Currency)
}

// ScaleCount rounds to the nearest whole count and never goes below 0.
func ScaleCount(n int, factor float64) int {
	if factor == 1 {
		return n
	}
	v := int(math.Round(float64(n) * factor))
	if v < 0 {
		return 0
	}
	return v
}

// Drilldown reduces ds to the rows for the deepest valid selection.
func Drilldown(ds Dataset, sel Selection, links Links) DrilldownView {
	view := DrilldownView{Level: LevelCollections, Currency: ds.Currency()}

	if b, ok := ds.findBucket(sel.BucketDate); ok {
		view.Bucket = &b
	}
	view.Factors = ComputeFactors(ds, view.Bucket)

	if sel.CollectionID != "" {
		for i := range ds.Collections {
			if ds.Collections[i].ID == sel.CollectionID {
				c := ds.Collections[i]
				view.Collection = &c
				view.Level = LevelProducts
				break
			}
		}
	}
	if view.Collection != nil && sel.ProductID != "" {
		for _, p := range ds.ProductsByCollection[view.Collection.ID] {
			if p.ID == sel.ProductID {
				view.Product = &p
				view.Level = LevelVariants
				break
			}
		}
	}
	if view.Product != nil && sel.VariantID != "" {
		for _, v := range ds.VariantsByProduct[view.Product.ID] {
			if v.ID == sel.VariantID {
				view.Variant = &v
				break
			}
		}
	}

	lb := newLinkBuilder(links)
	view.Rows = buildRows(ds, view, lb)
	view.Breadcrumbs = buildBreadcrumbs(ds, view, lb)
	return view
}

func buildRows(ds Dataset, view DrilldownView, lb linkBuilder) []Row {
	f := view.Factors
	bucket := ""
	if view.Bucket != nil {
		bucket = view.Bucket.Date
	}

	rows := []Row{}
	switch view.Level {
	case LevelCollections:
		for _, c := range ds.Collections {
			conv := c.ConversionRate
			href := lb.href(bucket, c.ID, "")
			rows = append(rows, Row{
				ID: c.ID, Title: c.Title,
				GMV:            ScaleMoney(c.GMV, f.Revenue),
				Orders:         ScaleCount(c.Orders, f.Orders),
				ConversionRate: &conv,
				Href:           &href,
			})
		}
	case LevelProducts:
		for _, p := range ds.ProductsByCollection[view.Collection.ID] {
			inv := p.Inventory
			href := lb.href(bucket, view.Collection.ID, p.ID)
			rows = append(rows, Row{
				ID: p.ID, Title: p.Title,
				GMV:       ScaleMoney(p.GMV, f.Revenue),
				Orders:    ScaleCount(p.Orders, f.Orders),
				Inventory: &inv,
				Href:      &href,
			})
		}
	case LevelVariants:
		for _, v := range ds.VariantsByProduct[view.Product.ID] {
			inv := v.Inventory
			rows = append(rows, Row{
				ID: v.ID, Title: v.Title, SKU: v.SKU,
				GMV:       ScaleMoney(v.GMV, f.Revenue),
				Orders:    ScaleCount(v.Orders, f.Orders),
				Inventory: &inv,
			})
		}
	}
	return rows
}

// buildBreadcrumbs leaves Href nil exactly on the crumb for the current view.
func buildBreadcrumbs(ds Dataset, view DrilldownView, lb linkBuilder) []Breadcrumb {
	var crumbs []Breadcrumb

	rangeCrumb := Breadcrumb{Label: rangeLabel(ds.Range)}
	if view.Level != LevelCollections || view.Bucket != nil {
		h := lb.href("", "", "")
		rangeCrumb.Href = &h
	}
	crumbs = append(crumbs, rangeCrumb)

	bucket := ""
	if view.Bucket != nil {
		bucket = view.Bucket.Date
		c := Breadcrumb{Label: bucketLabel(bucket)}
		if view.Level != LevelCollections {
			h := lb.href(bucket, "", "")
			c.Href = &h
		}
		crumbs = append(crumbs, c)
	}

	if view.Collection != nil {
		c := Breadcrumb{Label: view.Collection.Title}
		if view.Level != LevelProducts {
			h := lb.href(bucket, view.Collection.ID, "")
			c.Href = &h
		}
		crumbs = append(crumbs, c)
	}

	if view.Product != nil && view.Level == LevelVariants {
		crumbs = append(crumbs, Breadcrumb{Label: view.Product.Title})
	}
	return crumbs
}

func rangeLabel(r DateRange) string {
	if r.Label != "" {
		return r.Label
	}
	if r.Start != "" && r.End != "" {
		return r.Start + " – " + r.End
	}
	return "All sales"
}

func bucketLabel(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return t.Format("Jan 2, 2006")
}

type linkBuilder struct {
	base   string
	params url.Values
}

func newLinkBuilder(l Links) linkBuilder {
	base := l.BasePath
	if base == "" {
		base = DefaultBasePath
	}
	params := url.Values{}
	for k, vs := range l.Params {
		switch k {
		case "bucket", "collectionId", "productId", "variantId":
			continue
		}
		params[k] = append([]string(nil), vs...)
	}
	return linkBuilder{base: base, params: params}
}

func (lb linkBuilder) href(bucket, collectionID, productID string) string {
	v := url.Values{}
	for k, vs := range lb.params {
		v[k] = vs
	}
	if bucket != "" {
		v.Set("bucket", bucket)
	}
	if collectionID != "" {
		v.Set("collectionId", collectionID)
	}
	if productID != "" {
		v.Set("productId", productID)
	}
	if enc := v.Encode(); enc != "" {
		return lb.base + "?" + enc
	}
	return lb.base
}
