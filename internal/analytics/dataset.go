package analytics

// Dataset is the sales analytics payload served by the analytics service and
// stored in the KPI cache.
type Dataset struct {
	Range                DateRange                   `json:"range"`
	Totals               Totals                      `json:"totals"`
	Trend                []TrendBucket               `json:"trend"`
	ChannelBreakdown     []ChannelShare              `json:"channelBreakdown"`
	Forecast             *Forecast                   `json:"forecast"`
	Collections          []CollectionSummary         `json:"collections"`
	ProductsByCollection map[string][]ProductSummary `json:"productsByCollection"`
	VariantsByProduct    map[string][]VariantSummary `json:"variantsByProduct"`
}

type DateRange struct {
	Label string `json:"label"`
	Start string `json:"start"` // YYYY-MM-DD
	End   string `json:"end"`
}

type Totals struct {
	CurrentTotal      Money   `json:"currentTotal"`
	PreviousTotal     Money   `json:"previousTotal"`
	DeltaPercentage   float64 `json:"deltaPercentage"`
	AverageOrderValue Money   `json:"averageOrderValue"`
	ConversionRate    float64 `json:"conversionRate"`
}

type TrendBucket struct {
	Date   string `json:"date"`
	Total  Money  `json:"total"`
	Orders int    `json:"orders"`
}

type ChannelShare struct {
	Channel    string  `json:"channel"`
	Total      Money   `json:"total"`
	Percentage float64 `json:"percentage"`
}

type Forecast struct {
	Label     string  `json:"label"`
	Projected Money   `json:"projected"`
	Lower     Money   `json:"lower"`
	Upper     Money   `json:"upper"`
	Accuracy  float64 `json:"accuracy"`
}

type CollectionSummary struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	GMV            Money   `json:"gmv"`
	Orders         int     `json:"orders"`
	ConversionRate float64 `json:"conversionRate"`
}

type ProductSummary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	GMV       Money  `json:"gmv"`
	Orders    int    `json:"orders"`
	Inventory int    `json:"inventory"`
}

type VariantSummary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	SKU       string `json:"sku"`
	GMV       Money  `json:"gmv"`
	Orders    int    `json:"orders"`
	Inventory int    `json:"inventory"`
}

// Currency is the dataset's reporting currency.
func (d Dataset) Currency() string {
	return normalizeCurrency(d.Totals.CurrentTotal.Currency)
}

// TotalOrders sums orders across the trend series.
func (d Dataset) TotalOrders() int {
	n := 0
	for _, b := range d.Trend {
		n += b.Orders
	}
	return n
}

func (d Dataset) findBucket(date string) (TrendBucket, bool) {
	if date == "" {
		return TrendBucket{}, false
	}
	for _, b := range d.Trend {
		if b.Date == date {
			return b, true
		}
	}
	return TrendBucket{}, false
}
