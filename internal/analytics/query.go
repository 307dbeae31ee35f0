package analytics

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// MetricKeyPrefix namespaces sales analytics rows in the KPI cache.
const MetricKeyPrefix = "sales_analytics:"

// Query is the dashboard's sales analytics filter set.
type Query struct {
	Period       string `validate:"omitempty,oneof=today 7d 30d 90d 12m custom"`
	Compare      string `validate:"omitempty,oneof=previous_period previous_year none"`
	Granularity  string `validate:"omitempty,oneof=day week month"`
	BucketDate   string `validate:"omitempty,datetime=2006-01-02"`
	CollectionID string
	ProductID    string
	VariantID    string
	Days         int `validate:"gte=0,lte=366"`
	RangeStart   string
	RangeEnd     string
}

// QueryFromValues reads a Query from request parameters.
func QueryFromValues(v url.Values) Query {
	days, _ := strconv.Atoi(strings.TrimSpace(v.Get("days")))
	return Query{
		Period:       strings.TrimSpace(v.Get("period")),
		Compare:      strings.TrimSpace(v.Get("compare")),
		Granularity:  strings.TrimSpace(v.Get("granularity")),
		BucketDate:   strings.TrimSpace(v.Get("bucket")),
		CollectionID: strings.TrimSpace(v.Get("collectionId")),
		ProductID:    strings.TrimSpace(v.Get("productId")),
		VariantID:    strings.TrimSpace(v.Get("variantId")),
		Days:         days,
		RangeStart:   strings.TrimSpace(v.Get("rangeStart")),
		RangeEnd:     strings.TrimSpace(v.Get("rangeEnd")),
	}
}

// Values renders q back into request parameters, omitting empty fields.
func (q Query) Values() url.Values {
	v := url.Values{}
	set := func(k, s string) {
		if s != "" {
			v.Set(k, s)
		}
	}
	set("period", q.Period)
	set("compare", q.Compare)
	set("granularity", q.Granularity)
	set("bucket", q.BucketDate)
	set("collectionId", q.CollectionID)
	set("productId", q.ProductID)
	set("variantId", q.VariantID)
	if q.Days > 0 {
		v.Set("days", strconv.Itoa(q.Days))
	}
	set("rangeStart", q.RangeStart)
	set("rangeEnd", q.RangeEnd)
	return v
}

// normalizedFilters has a fixed field order so equal filters hash equally.
type normalizedFilters struct {
	Period       *string `json:"period"`
	Compare      *string `json:"compare"`
	Granularity  *string `json:"granularity"`
	BucketDate   *string `json:"bucketDate"`
	CollectionID *string `json:"collectionId"`
	ProductID    *string `json:"productId"`
	VariantID    *string `json:"variantId"`
	Days         *int    `json:"days"`
}

func optString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// MetricKey identifies a filter combination. The date range is not part of
// the key; it is its own column in the cache row.
func MetricKey(q Query) string {
	nf := normalizedFilters{
		Period:       optString(q.Period),
		Compare:      optString(q.Compare),
		Granularity:  optString(q.Granularity),
		BucketDate:   optString(q.BucketDate),
		CollectionID: optString(q.CollectionID),
		ProductID:    optString(q.ProductID),
		VariantID:    optString(q.VariantID),
	}
	if q.Days > 0 {
		d := q.Days
		nf.Days = &d
	}

	b, _ := json.Marshal(nf)
	sum := sha1.Sum(b)
	return MetricKeyPrefix + hex.EncodeToString(sum[:])
}

// parseRangeDate accepts YYYY-MM-DD or RFC 3339.
func parseRangeDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}
