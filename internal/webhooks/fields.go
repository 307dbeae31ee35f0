package webhooks

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// pickString returns the first non-empty value among keys. Numbers are
// rendered without a trailing ".0" so numeric ids survive.
func pickString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		case json.Number:
			return t.String()
		case bool:
			return strconv.FormatBool(t)
		}
	}
	return ""
}

func pickNumber(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case float64:
			if !math.IsNaN(t) && !math.IsInf(t, 0) {
				return t, true
			}
		case json.Number:
			if f, err := t.Float64(); err == nil {
				return f, true
			}
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
				return f, true
			}
		}
	}
	return 0, false
}

func pickSlice(m map[string]any, keys ...string) []any {
	for _, k := range keys {
		if s, ok := m[k].([]any); ok {
			return s
		}
	}
	return nil
}

func pickStrings(m map[string]any, keys ...string) []string {
	for _, k := range keys {
		switch t := m[k].(type) {
		case []any:
			out := make([]string, 0, len(t))
			for _, v := range t {
				if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
					out = append(out, strings.TrimSpace(s))
				}
			}
			return out
		case string:
			var out []string
			for _, s := range strings.Split(t, ",") {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
			return out
		}
	}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func orderID(p map[string]any) string {
	return pickString(p, "admin_graphql_api_id", "id", "order_id", "legacyResourceId")
}

// EstimateAverageDailySales prefers an explicit velocity field, then
// total_sales spread over days (30 when absent), else 0.
func EstimateAverageDailySales(p map[string]any) float64 {
	if v, ok := pickNumber(p, "average_daily_sales", "velocity", "sales_velocity"); ok {
		return v
	}

	total, ok := pickNumber(p, "total_sales")
	if !ok {
		return 0
	}
	days, ok := pickNumber(p, "days")
	if !ok || days <= 0 {
		days = 30
	}
	return round2(total / days)
}

func addFlag(flags []string, flag string) []string {
	for _, f := range flags {
		if f == flag {
			return flags
		}
	}
	return append(flags, flag)
}

func removeFlag(flags []string, flag string) []string {
	out := flags[:0]
	for _, f := range flags {
		if f != flag {
			out = append(out, f)
		}
	}
	return out
}
