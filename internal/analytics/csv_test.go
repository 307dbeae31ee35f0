package analytics

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCSV_CollectionsLevel(t *testing.T) {
	view := Drilldown(MockDataset(fixedNow), Selection{}, Links{})

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, view))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, csvHeaders[LevelCollections], records[0])
	assert.Equal(t, []string{"gid://shopify/Collection/1001", "Summer Essentials", "4000.00", "USD", "113", "3.40"}, records[1])
}

func TestWriteCSV_QuotesSpecialCharacters(t *testing.T) {
	inv := 4
	view := DrilldownView{
		Level: LevelVariants,
		Rows: []Row{{
			ID: "v1", Title: `Mug, "Large"`, SKU: "MUG-L",
			GMV: NewMoney(12.5, "USD"), Orders: 2, Inventory: &inv,
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, view))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Variant ID,Variant,SKU,GMV,Currency,Orders,Inventory", lines[0])
	assert.Equal(t, `v1,"Mug, ""Large""",MUG-L,12.50,USD,2,4`, lines[1])
}

func TestWriteCSV_ProductsLevelUsesScaledRows(t *testing.T) {
	ds := MockDataset(fixedNow)
	view := Drilldown(ds, Selection{BucketDate: ds.Trend[0].Date, CollectionID: collSummer}, Links{})

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, view))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, csvHeaders[LevelProducts], records[0])
	assert.Equal(t, "310.00", records[1][2], "Linen Shirt GMV scaled to a 10% day")
}

func TestWriteCSV_ZeroPrecisionCurrency(t *testing.T) {
	view := DrilldownView{
		Level: LevelProducts,
		Rows:  []Row{{ID: "p1", Title: "Tea", GMV: NewMoney(1500, "JPY"), Orders: 1}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, view))
	assert.Contains(t, buf.String(), "p1,Tea,1500,JPY,1,\n")
}

func TestExportFilename(t *testing.T) {
	assert.Equal(t, "sales-products-20240507.csv", ExportFilename(DrilldownView{Level: LevelProducts}, "20240507"))
}
