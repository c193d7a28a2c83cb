package parser

import (
	"strings"

	"sellerpulse/internal/model"
)

const wbHeaderScanRows = 20

var wbSheetKeywords = []string{"товары", "воронка", "отчет"}

// wbColumns candidate phrasings per field, most specific first.
var wbColumns = []fieldSpec{
	{Key: colArtikul, Required: true, Candidates: []Candidate{
		ContainsAll("артикул", "продав"),
		Exact("артикул"),
		Contains("vendor code"),
	}},
	{Key: colImpressions, Required: true, Candidates: []Candidate{
		Contains("показы"),
		Contains("просмотры"),
		Contains("impressions"),
	}},
	{Key: colVisits, Candidates: []Candidate{
		Contains("переходы в карточку"),
		Contains("переход"),
		Contains("посещени"),
		Contains("визит"),
	}},
	{Key: colCTR, Candidates: []Candidate{
		Exact("ctr"),
		Contains("ctr"),
		ContainsAll("конверсия", "переход"),
	}},
	{Key: colAddToCart, Candidates: []Candidate{
		Contains("положили в корзину"),
		Contains("в корзину").Exclude("конверси", "%"),
	}},
	{Key: colCRToCart, Candidates: []Candidate{
		ContainsAll("конверсия", "корзин"),
		Contains("cr в корзину"),
	}},
	{Key: colOrders, Candidates: []Candidate{
		ContainsAll("заказали", "шт"),
		Exact("заказы"),
		Contains("заказ").Exclude("сумм", "руб", "конверси", "₽"),
	}},
	{Key: colRevenue, Candidates: []Candidate{
		ContainsAll("заказали", "сумм"),
		ContainsAll("заказ", "руб").Exclude("средн", "цен"),
		Contains("выручка"),
	}},
	{Key: colPriceAvg, Candidates: []Candidate{
		Contains("средняя цена"),
		ContainsAll("цена", "средн"),
		Contains("цена"),
	}},
	{Key: colStockEnd, Candidates: []Candidate{
		ContainsAll("остат", "конец"),
		Contains("остатки"),
		Contains("остаток"),
	}},
	{Key: colRating, Candidates: []Candidate{
		Contains("рейтинг"),
	}},
	{Key: colReviewCount, Candidates: []Candidate{
		ContainsAll("количество", "отзыв"),
		Contains("отзыв").Exclude("рейтинг"),
	}},
	{Key: colDeliveryHours, Candidates: []Candidate{
		Contains("время доставки"),
		ContainsAll("доставк", "час"),
	}},
}

// ParseWildberries parses a single-header-row funnel report.
func ParseWildberries(file File) *model.ParseResult {
	return parseWith(model.SourceWildberries, file, parseFunnel)
}

func isSellerArtikulHeader(cell string) bool {
	return strings.Contains(cell, "артикул") && strings.Contains(cell, "продав")
}

func parseFunnel(wb *workbook, st *parseState) {
	st.period = detectPeriod(wb)

	sh := wb.findSheet(wbSheetKeywords)
	if sh == nil {
		st.issues.failf("sheet not found: expected a sheet name containing one of %s", strings.Join(wbSheetKeywords, ", "))
		return
	}
	st.diag.SheetName = sh.name

	hdr, ok := LocateHeaderRow(sh.rows, isSellerArtikulHeader, wbHeaderScanRows)
	if !ok {
		st.issues.failf("header row not found in sheet %q: expected a seller article column in the first %d rows", sh.name, wbHeaderScanRows+1)
		return
	}
	headers := sh.rows[hdr]
	st.diag.HeaderRows = []int{hdr}
	st.diag.HeaderSample = sampleHeaders(headers)

	cols := st.resolveColumns(headers, wbColumns, false)
	if st.issues.failed() {
		return
	}
	if _, ok := cols[colVisits]; !ok {
		st.issues.warnf("visits column not found: CTR computed with visits=0")
	}

	st.scanRows(sh.rows, hdr+1, cols)
}
