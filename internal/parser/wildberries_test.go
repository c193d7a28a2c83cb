package parser

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	"sellerpulse/internal/model"
)

// buildXLSX writes rows to an in-memory workbook with a single sheet.
func buildXLSX(t *testing.T, sheetName string, rows [][]any) File {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", sheetName))
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		ref, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow(sheetName, ref, &r))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return File{Name: "report.xlsx", Content: bytes.NewReader(buf.Bytes())}
}

var wbHeader = []any{
	"Артикул продавца", "Показы", "Переходы в карточку", "CTR", "Положили в корзину",
	"Конверсия в корзину, %", "Заказали, шт", "Заказали на сумму, руб", "Средняя цена, руб",
}

func TestParseWildberriesEndToEnd(t *testing.T) {
	t.Parallel()

	file := buildXLSX(t, "Товары", [][]any{
		{"Воронка продаж с 01.03.2024 по 07.03.2024"},
		wbHeader,
		{"ABC-123", 120, 12, "10%", 3, "25%", 1, "1 200,50 ₽", "1 200 ₽"},
	})

	res := ParseWildberries(file)
	require.Empty(t, res.Errors)
	require.Len(t, res.Rows, 1)

	row := res.Rows[0]
	assert.Equal(t, "ABC-123", row.Artikul)
	assert.Equal(t, 120, row.Impressions)
	assert.Equal(t, 12, row.Visits)
	assert.InDelta(t, 0.10, row.CTR, 1e-9)
	assert.Equal(t, 3, row.AddToCart)
	assert.InDelta(t, 0.25, row.CRToCart, 1e-9)
	assert.Equal(t, 1, row.Orders)
	requireFloat(t, 1200.50, row.Revenue)
	requireFloat(t, 1200, row.PriceAvg)
	assert.Nil(t, row.DRR)
	assert.Equal(t, 3, row.RowNo)

	require.NotNil(t, res.Period)
	assert.Equal(t, 7, res.Period.Days())

	d := res.Diagnostics
	assert.Equal(t, model.SourceWildberries, d.Source)
	assert.Equal(t, "Товары", d.SheetName)
	assert.Equal(t, []int{1}, d.HeaderRows)
	assert.Equal(t, 1, d.RowsScanned)
	assert.Equal(t, 1, d.RowsAccepted)
	assert.Equal(t, 0, d.RowsSkipped)
	assert.Equal(t, "Артикул продавца", d.ColumnMapping["artikul"])
	assert.Equal(t, "Заказали на сумму, руб", d.ColumnMapping["revenue"])
	assert.Empty(t, d.MissingRequired)
	assert.Contains(t, d.UnresolvedOptional, "stock_end")
	assert.False(t, d.AggregationApplied)
}

func TestParseWildberriesSkipReasons(t *testing.T) {
	t.Parallel()

	file := buildXLSX(t, "Товары", [][]any{
		wbHeader,
		{"ABC-1", 100, 10, "", 1, "", 0, "", ""},
		{"Итого", 100, 10},
		{"мусор", 5, 1},
		{"XYZ-2", "—", 1},
		{"XYZ-3", 50, 5},
	})

	res := ParseWildberries(file)
	require.Empty(t, res.Errors)

	d := res.Diagnostics
	assert.Equal(t, 5, d.RowsScanned)
	assert.Equal(t, 2, d.RowsAccepted)
	assert.Equal(t, 3, d.RowsSkipped)
	assert.Equal(t, map[string]int{
		model.SkipTotalsRow:       1,
		model.SkipInvalidArtikul:  1,
		model.SkipMissingRequired: 1,
	}, d.SkipReasons)
	assert.Equal(t, d.RowsScanned, d.RowsAccepted+d.RowsSkipped)

	require.Len(t, res.Rows, 2)
	assert.Equal(t, "XYZ-3", res.Rows[1].Artikul)
	assert.InDelta(t, 0.1, res.Rows[1].CTR, 1e-9, "ctr computed from visits/impressions")
	assert.Nil(t, res.Rows[0].Revenue)
}

func TestParseWildberriesMissingRequiredColumn(t *testing.T) {
	t.Parallel()

	file := buildXLSX(t, "Товары", [][]any{
		{"Артикул продавца", "Переходы в карточку"},
		{"ABC-1", 10},
	})

	res := ParseWildberries(file)
	require.NotEmpty(t, res.Errors)
	assert.Empty(t, res.Rows)
	assert.Equal(t, []string{"impressions"}, res.Diagnostics.MissingRequired)
	assert.Contains(t, res.Errors[0], "impressions")
	assert.Equal(t, 0, res.Diagnostics.RowsScanned)
}

func TestParseWildberriesHeaderNotFound(t *testing.T) {
	t.Parallel()

	file := buildXLSX(t, "Отчет", [][]any{
		{"Название", "Показы"},
		{"Товар", 10},
	})

	res := ParseWildberries(file)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "header row not found")
	assert.Empty(t, res.Rows)
	assert.Equal(t, "Отчет", res.Diagnostics.SheetName)
}

func TestParseWildberriesSheetNotFound(t *testing.T) {
	t.Parallel()

	// a well-formed report under a sheet name no keyword matches
	file := buildXLSX(t, "Data", [][]any{
		{"Воронка продаж с 01.03.2024 по 07.03.2024"},
		wbHeader,
		{"ABC-123", 120, 12, "10%", 3, "25%", 1, "1 200,50 ₽", "1 200 ₽"},
	})

	res := ParseWildberries(file)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "sheet not found")
	assert.Empty(t, res.Rows)
	assert.Empty(t, res.Diagnostics.SheetName)
	assert.Empty(t, res.Diagnostics.ColumnMapping)
}

func TestParseWildberriesClampsAndFallbacks(t *testing.T) {
	t.Parallel()

	file := buildXLSX(t, "Товары", [][]any{
		{"Артикул продавца", "Показы", "CTR", "Заказали, шт"},
		{"ABC-1", -5, "н/д", 2},
		{"ABC-2", 10, "", -1},
	})

	res := ParseWildberries(file)
	require.Empty(t, res.Errors)
	require.Len(t, res.Rows, 2)

	assert.Equal(t, 0, res.Rows[0].Impressions)
	assert.Equal(t, 0.0, res.Rows[0].CTR)
	assert.Equal(t, 0, res.Rows[1].Orders)

	joined := strings.Join(res.Warnings, "\n")
	assert.Contains(t, joined, "visits column not found")
	assert.Contains(t, joined, `"impressions" values out of range clamped to 0`)
	assert.Contains(t, joined, `"orders" values out of range clamped to 0`)
	assert.Contains(t, joined, `unparseable "ctr" values replaced by computed ratio`)
}

func TestParseWildberriesWarningsDeduplicated(t *testing.T) {
	t.Parallel()

	file := buildXLSX(t, "Товары", [][]any{
		{"Артикул продавца", "Показы"},
		{"ABC-1", -1},
		{"ABC-2", -2},
		{"ABC-3", -3},
	})

	res := ParseWildberries(file)
	require.Empty(t, res.Errors)

	count := 0
	for _, w := range res.Warnings {
		if strings.Contains(w, `"impressions"`) {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestParseWildberriesCSVWindows1251(t *testing.T) {
	t.Parallel()

	text := "Отчет с 01.03.2024 по 31.03.2024\n" +
		"Артикул продавца;Показы;Переходы в карточку;Заказали на сумму, руб\n" +
		"abc-7;1 000;50;12 345,60\n" +
		"Итого;1 000;50;12 345,60\n"
	encoded, err := charmap.Windows1251.NewEncoder().String(text)
	require.NoError(t, err)

	res := ParseWildberries(File{Name: "funnel.csv", Content: strings.NewReader(encoded)})
	require.Empty(t, res.Errors)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "ABC-7", res.Rows[0].Artikul)
	assert.Equal(t, 1000, res.Rows[0].Impressions)
	assert.InDelta(t, 0.05, res.Rows[0].CTR, 1e-9)
	requireFloat(t, 12345.60, res.Rows[0].Revenue)
	assert.Equal(t, "funnel", res.Diagnostics.SheetName)
	require.NotNil(t, res.Period)
	assert.Equal(t, 1, res.Diagnostics.SkipReasons[model.SkipTotalsRow])
}

func TestParseWildberriesCorruptFile(t *testing.T) {
	t.Parallel()

	res := ParseWildberries(File{Name: "broken.xlsx", Content: strings.NewReader("not a zip")})
	require.Len(t, res.Errors, 1)
	assert.True(t, strings.HasPrefix(res.Errors[0], "failed to read workbook"))
	assert.Empty(t, res.Rows)
	assert.NotNil(t, res.Rows)
}
