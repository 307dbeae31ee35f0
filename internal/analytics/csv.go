package analytics

import (
	"encoding/csv"
	"io"
	"strconv"
)

var csvHeaders = map[Level][]string{
	LevelCollections: {"Collection ID", "Collection", "GMV", "Currency", "Orders", "Conversion Rate"},
	LevelProducts:    {"Product ID", "Product", "GMV", "Currency", "Orders", "Inventory"},
	LevelVariants:    {"Variant ID", "Variant", "SKU", "GMV", "Currency", "Orders", "Inventory"},
}

func formatAmount(m Money) string {
	return strconv.FormatFloat(m.Amount, 'f', CurrencyPrecision(m.Currency), 64)
}

func optInt(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}

// WriteCSV writes the rows of view with headers for its level.
func WriteCSV(w io.Writer, view DrilldownView) error {
	cw := csv.NewWriter(w)

	header, ok := csvHeaders[view.Level]
	if !ok {
		header = csvHeaders[LevelCollections]
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, r := range view.Rows {
		var rec []string
		switch view.Level {
		case LevelVariants:
			rec = []string{r.ID, r.Title, r.SKU, formatAmount(r.GMV), r.GMV.Currency, strconv.Itoa(r.Orders), optInt(r.Inventory)}
		case LevelProducts:
			rec = []string{r.ID, r.Title, formatAmount(r.GMV), r.GMV.Currency, strconv.Itoa(r.Orders), optInt(r.Inventory)}
		default:
			conv := ""
			if r.ConversionRate != nil {
				conv = strconv.FormatFloat(*r.ConversionRate, 'f', 2, 64)
			}
			rec = []string{r.ID, r.Title, formatAmount(r.GMV), r.GMV.Currency, strconv.Itoa(r.Orders), conv}
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ExportFilename names a CSV download for a view.
func ExportFilename(view DrilldownView, now string) string {
	return "sales-" + string(view.Level) + "-" + now + ".csv"
}
