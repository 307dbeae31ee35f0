package analytics

import "time"

// MockWarning is shown when the dashboard falls back to the fixture dataset.
const MockWarning = "Sales analytics service temporarily unavailable — showing mock data"

type mockVariant struct {
	id, title, sku string
	gmv            float64
	orders, stock  int
}

type mockProduct struct {
	id, title string
	variants  []mockVariant
}

type mockCollection struct {
	id, title  string
	conversion float64
	products   []mockProduct
}

var mockCatalog = []mockCollection{
	{
		id: "gid://shopify/Collection/1001", title: "Summer Essentials", conversion: 3.4,
		products: []mockProduct{
			{id: "gid://shopify/Product/2001", title: "Linen Shirt", variants: []mockVariant{
				{"gid://shopify/ProductVariant/3001", "Linen Shirt / S", "LS-S", 1240, 31, 18},
				{"gid://shopify/ProductVariant/3002", "Linen Shirt / M", "LS-M", 1860, 46, 9},
			}},
			{id: "gid://shopify/Product/2002", title: "Canvas Tote", variants: []mockVariant{
				{"gid://shopify/ProductVariant/3003", "Canvas Tote / Natural", "CT-NAT", 900, 36, 44},
			}},
		},
	},
	{
		id: "gid://shopify/Collection/1002", title: "Home & Kitchen", conversion: 2.1,
		products: []mockProduct{
			{id: "gid://shopify/Product/2003", title: "Stoneware Mug", variants: []mockVariant{
				{"gid://shopify/ProductVariant/3004", "Stoneware Mug / Sand", "SM-SND", 640, 40, 120},
				{"gid://shopify/ProductVariant/3005", "Stoneware Mug / Slate", "SM-SLT", 560, 35, 3},
			}},
		},
	},
}

// mockDailyShare spreads the catalog total over seven days.
var mockDailyShare = []float64{0.10, 0.12, 0.14, 0.16, 0.15, 0.18, 0.15}

// MockDataset returns a fixed seven-day fixture ending on now's date.
func MockDataset(now time.Time) Dataset {
	const cur = "USD"
	now = now.UTC()

	ds := Dataset{
		ProductsByCollection: map[string][]ProductSummary{},
		VariantsByProduct:    map[string][]VariantSummary{},
	}

	var total float64
	var orders int
	for _, c := range mockCatalog {
		var cGMV float64
		var cOrders int
		products := []ProductSummary{}
		for _, p := range c.products {
			var pGMV float64
			var pOrders, pStock int
			variants := []VariantSummary{}
			for _, v := range p.variants {
				variants = append(variants, VariantSummary{
					ID: v.id, Title: v.title, SKU: v.sku,
					GMV: NewMoney(v.gmv, cur), Orders: v.orders, Inventory: v.stock,
				})
				pGMV += v.gmv
				pOrders += v.orders
				pStock += v.stock
			}
			ds.VariantsByProduct[p.id] = variants
			products = append(products, ProductSummary{
				ID: p.id, Title: p.title, GMV: NewMoney(pGMV, cur), Orders: pOrders, Inventory: pStock,
			})
			cGMV += pGMV
			cOrders += pOrders
		}
		ds.ProductsByCollection[c.id] = products
		ds.Collections = append(ds.Collections, CollectionSummary{
			ID: c.id, Title: c.title, GMV: NewMoney(cGMV, cur), Orders: cOrders, ConversionRate: c.conversion,
		})
		total += cGMV
		orders += cOrders
	}

	start := now.AddDate(0, 0, -(len(mockDailyShare) - 1))
	assigned := 0
	for i, share := range mockDailyShare {
		day := start.AddDate(0, 0, i)
		o := int(float64(orders) * share)
		if i == len(mockDailyShare)-1 {
			o = orders - assigned
		}
		assigned += o
		ds.Trend = append(ds.Trend, TrendBucket{
			Date:   day.Format("2006-01-02"),
			Total:  NewMoney(round2(total*share), cur),
			Orders: o,
		})
	}

	previous := round2(total * 0.88)
	ds.Range = DateRange{
		Label: "Last 7 days",
		Start: start.Format("2006-01-02"),
		End:   now.Format("2006-01-02"),
	}
	ds.Totals = Totals{
		CurrentTotal:      NewMoney(total, cur),
		PreviousTotal:     NewMoney(previous, cur),
		DeltaPercentage:   round2((total - previous) / previous * 100),
		AverageOrderValue: NewMoney(round2(total/float64(orders)), cur),
		ConversionRate:    2.8,
	}
	ds.ChannelBreakdown = []ChannelShare{
		{Channel: "Online Store", Total: NewMoney(round2(total*0.64), cur), Percentage: 64},
		{Channel: "Shop App", Total: NewMoney(round2(total*0.21), cur), Percentage: 21},
		{Channel: "Point of Sale", Total: NewMoney(round2(total*0.15), cur), Percentage: 15},
	}
	ds.Forecast = &Forecast{
		Label:     "Next 7 days",
		Projected: NewMoney(round2(total*1.06), cur),
		Lower:     NewMoney(round2(total*0.94), cur),
		Upper:     NewMoney(round2(total*1.18), cur),
		Accuracy:  0.82,
	}
	return ds
}
