package analytics

import (
	"math"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

type Money struct {
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	Formatted string  `json:"formatted"`
}

// NewMoney builds a Money value; Formatted is always derived from Amount.
func NewMoney(amount float64, cur string) Money {
	cur = normalizeCurrency(cur)
	return Money{Amount: amount, Currency: cur, Formatted: FormatMoney(amount, cur)}
}

var symbols = map[string]string{
	"USD": "$",
	"CAD": "CA$",
	"AUD": "A$",
	"NZD": "NZ$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"INR": "₹",
}

type moneyFormatter struct {
	printer *message.Printer
	format  string
	prefix  string
}

// formatters is keyed by "CUR:precision"; the key space is small and bounded.
var formatters sync.Map

func normalizeCurrency(cur string) string {
	cur = strings.ToUpper(strings.TrimSpace(cur))
	if cur == "" {
		return "USD"
	}
	return cur
}

// CurrencyPrecision is the number of minor digits for an ISO 4217 code.
func CurrencyPrecision(cur string) int {
	unit, err := currency.ParseISO(normalizeCurrency(cur))
	if err != nil {
		return 2
	}
	scale, _ := currency.Standard.Rounding(unit)
	return scale
}

func formatterFor(cur string, precision int) *moneyFormatter {
	key := cur + ":" + strconv.Itoa(precision)
	if f, ok := formatters.Load(key); ok {
		return f.(*moneyFormatter)
	}

	prefix, ok := symbols[cur]
	if !ok {
		prefix = cur + " "
	}
	f := &moneyFormatter{
		printer: message.NewPrinter(language.English),
		format:  "%." + strconv.Itoa(precision) + "f",
		prefix:  prefix,
	}
	actual, _ := formatters.LoadOrStore(key, f)
	return actual.(*moneyFormatter)
}

func FormatMoney(amount float64, cur string) string {
	cur = normalizeCurrency(cur)
	f := formatterFor(cur, CurrencyPrecision(cur))

	sign := ""
	if amount < 0 {
		sign = "-"
		amount = math.Abs(amount)
	}
	return sign + f.prefix + f.printer.Sprintf(f.format, amount)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
