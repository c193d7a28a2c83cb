package parser

import (
	"strings"

	"sellerpulse/internal/model"
)

const (
	ozonHeaderScanRows = 60
	// units/spacer rows between the metric row and the first data row
	ozonDataOffset = 3
	dynamicsMarker = "динамика"

	aggregateDuplicates = true
)

var ozonSheetKeywords = []string{"товары", "аналитика", "отчет"}

var ozonGroupKeywords = []string{"продажи", "воронка", "факторы продаж", "реклама", "остатки", "отзывы", "цена"}

var (
	grpProducts = []Candidate{Contains("товар")}
	grpFunnel   = []Candidate{Contains("воронка")}
	grpSales    = []Candidate{Contains("продажи")}
	grpFactors  = []Candidate{Contains("факторы продаж")}
	grpAds      = []Candidate{Contains("реклама")}
	grpStock    = []Candidate{Contains("остатки")}
	grpReviews  = []Candidate{Contains("отзывы")}
	grpPrice    = []Candidate{Contains("цена"), Contains("факторы продаж")}
)

var ozonColumns = []fieldSpec{
	{Key: colArtikul, Required: true, Group: grpProducts, Candidates: []Candidate{
		ContainsAll("артикул", "продав"),
		Contains("артикул").Exclude("ozon", "sku"),
		Contains("артикул"),
	}},
	{Key: colImpressions, Required: true, Group: grpFunnel, Candidates: []Candidate{
		ContainsAll("показы", "всего"),
		Contains("показы"),
	}},
	{Key: colVisits, Group: grpFunnel, Candidates: []Candidate{
		ContainsAll("посещени", "карточк"),
		Contains("посещени"),
		Contains("переход"),
	}},
	{Key: colCTR, Group: grpFunnel, Candidates: []Candidate{
		ContainsAll("конверсия", "показ"),
		Contains("ctr"),
	}},
	{Key: colAddToCart, Group: grpFunnel, Candidates: []Candidate{
		Contains("в корзину").Exclude("конверси", "%"),
	}},
	{Key: colCRToCart, Group: grpFunnel, Candidates: []Candidate{
		ContainsAll("конверсия", "корзин"),
	}},
	{Key: colOrders, Group: grpSales, Candidates: []Candidate{
		ContainsAll("заказано", "товар"),
		ContainsAll("заказано", "шт"),
		Contains("заказ").Exclude("сумм", "руб", "₽", "конверси"),
	}},
	{Key: colRevenue, Group: grpSales, Candidates: []Candidate{
		ContainsAll("заказано", "сумм"),
		Contains("выручка"),
	}},
	{Key: colPriceAvg, Group: grpPrice, Candidates: []Candidate{
		Contains("средняя цена"),
		Contains("цена").Exclude("индекс"),
	}},
	{Key: colDRR, Group: grpAds, Candidates: []Candidate{
		Contains("дрр"),
		ContainsAll("доля", "реклам"),
		Contains("drr"),
	}},
	{Key: colStockEnd, Group: grpStock, Candidates: []Candidate{
		ContainsAll("конец", "период"),
		ContainsAll("остат", "конец"),
		Contains("остаток"),
	}},
	{Key: colRating, Group: grpReviews, Candidates: []Candidate{
		Contains("рейтинг"),
	}},
	{Key: colReviewCount, Group: grpReviews, Candidates: []Candidate{
		Contains("отзыв").Exclude("рейтинг"),
		Contains("количество"),
	}},
	{Key: colDeliveryHours, Group: grpFactors, Candidates: []Candidate{
		Contains("время доставки"),
		ContainsAll("доставк", "час"),
	}},
}

// ParseOzon parses an analytics report with a two-row composite header and
// merges repeated article codes.
func ParseOzon(file File) *model.ParseResult {
	return parseWith(model.SourceOzon, file, parseAnalytics)
}

// isOzonHeaderRow needs a products cell and a known group label in the same row.
func isOzonHeaderRow(cells []string) bool {
	var products, group bool
	for _, c := range cells {
		if strings.Contains(c, "товар") {
			products = true
		}
		for _, kw := range ozonGroupKeywords {
			if strings.Contains(c, kw) {
				group = true
				break
			}
		}
	}
	return products && group
}

func parseAnalytics(wb *workbook, st *parseState) {
	st.period = detectPeriod(wb)

	sh := wb.findSheet(ozonSheetKeywords)
	if sh == nil {
		st.issues.failf("sheet not found: expected a sheet name containing one of %s", strings.Join(ozonSheetKeywords, ", "))
		return
	}
	st.diag.SheetName = sh.name

	groupRow, ok := LocateHeaderRowFunc(sh.rows, isOzonHeaderRow, ozonHeaderScanRows)
	if !ok {
		st.issues.failf("header row not found in sheet %q: expected product and metric group labels in the first %d rows", sh.name, ozonHeaderScanRows+1)
		return
	}
	metricRow := groupRow + 1
	if metricRow >= len(sh.rows) {
		st.issues.failf("header row not found in sheet %q: metric row missing below row %d", sh.name, groupRow+1)
		return
	}
	headers := composeHeaders(sh.rows[groupRow], sh.rows[metricRow], dynamicsMarker)
	st.diag.HeaderRows = []int{groupRow, metricRow}
	st.diag.HeaderSample = sampleHeaders(headers)

	cols := st.resolveColumns(headers, ozonColumns, true)
	if st.issues.failed() {
		return
	}
	if _, ok := cols[colVisits]; !ok {
		st.issues.warnf("visits column not found: CTR computed with visits=0")
	}

	st.scanRows(sh.rows, metricRow+ozonDataOffset, cols)

	if aggregateDuplicates {
		st.diag.AggregationApplied = true
		merged := aggregateRows(st.rows, &st.issues)
		st.diag.DuplicatesMerged = len(st.rows) - len(merged)
		st.rows = merged
	}
	if st.issues.clamped > 0 {
		st.issues.warnf("%d values clamped to their valid range", st.issues.clamped)
	}
}
