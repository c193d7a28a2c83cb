package parser

import (
	"github.com/shopspring/decimal"

	"sellerpulse/internal/model"
)

type mergeRule int

const (
	ruleSum mergeRule = iota
	ruleMoneySum
	ruleVisitWeighted
	ruleRevenueWeighted
	ruleLatest
	ruleRecompute
)

// duplicateRules how each field of repeated article rows is combined.
// Weighted fields come first because they read the pre-merge counts.
var duplicateRules = []struct {
	field string
	rule  mergeRule
}{
	{colPriceAvg, ruleVisitWeighted},
	{colDRR, ruleRevenueWeighted},
	{colImpressions, ruleSum},
	{colVisits, ruleSum},
	{colAddToCart, ruleSum},
	{colOrders, ruleSum},
	{colRevenue, ruleMoneySum},
	{colStockEnd, ruleLatest},
	{colRating, ruleLatest},
	{colReviewCount, ruleLatest},
	{colDeliveryHours, ruleLatest},
	{colCTR, ruleRecompute},
	{colCRToCart, ruleRecompute},
}

// aggregate running merge state for one article.
type aggregate struct {
	row model.ParsedRow

	// weights behind row.PriceAvg
	priceVisits      int
	priceImpressions int
	// revenue weight behind row.DRR, nil when unknown
	drrRevenue *float64

	merged bool
}

func newAggregate(r model.ParsedRow) *aggregate {
	a := &aggregate{row: r, drrRevenue: r.Revenue}
	if r.PriceAvg != nil {
		a.priceVisits = r.Visits
		a.priceImpressions = r.Impressions
	}
	return a
}

// aggregateRows merges rows sharing an article code, keeping first-seen order.
func aggregateRows(rows []model.ParsedRow, log *issueLog) []model.ParsedRow {
	index := make(map[string]int, len(rows))
	groups := make([]*aggregate, 0, len(rows))
	for _, r := range rows {
		if i, ok := index[r.Artikul]; ok {
			groups[i].add(r)
			continue
		}
		index[r.Artikul] = len(groups)
		groups = append(groups, newAggregate(r))
	}

	out := make([]model.ParsedRow, len(groups))
	for i, g := range groups {
		if g.merged {
			g.row.CTR = computedRatio(colCTR, g.row.Visits, g.row.Impressions, log)
			g.row.CRToCart = computedRatio(colCRToCart, g.row.AddToCart, g.row.Visits, log)
		}
		out[i] = g.row
	}
	return out
}

func (a *aggregate) add(r model.ParsedRow) {
	a.merged = true
	dst := &a.row
	for _, fr := range duplicateRules {
		switch fr.rule {
		case ruleVisitWeighted:
			dst.PriceAvg, a.priceVisits, a.priceImpressions = mergePrice(
				dst.PriceAvg, a.priceVisits, a.priceImpressions,
				r.PriceAvg, r.Visits, r.Impressions)
		case ruleRevenueWeighted:
			dst.DRR, a.drrRevenue = mergeDRR(dst.DRR, a.drrRevenue, r.DRR, r.Revenue)
		case ruleSum:
			switch fr.field {
			case colImpressions:
				dst.Impressions += r.Impressions
			case colVisits:
				dst.Visits += r.Visits
			case colAddToCart:
				dst.AddToCart += r.AddToCart
			case colOrders:
				dst.Orders += r.Orders
			}
		case ruleMoneySum:
			dst.Revenue = sumMoney(dst.Revenue, r.Revenue)
		case ruleLatest:
			switch fr.field {
			case colStockEnd:
				dst.StockEnd = r.StockEnd
			case colRating:
				dst.Rating = r.Rating
			case colReviewCount:
				dst.ReviewCount = r.ReviewCount
			case colDeliveryHours:
				dst.DeliveryHours = r.DeliveryHours
			}
		case ruleRecompute:
			// derived from the summed counts once all rows are in
		}
	}
}

// sumMoney adds in decimal; nil only when both sides are unknown.
func sumMoney(a, b *float64) *float64 {
	switch {
	case a == nil && b == nil:
		return nil
	case a == nil:
		return RoundMoney(b)
	case b == nil:
		return RoundMoney(a)
	}
	sum := decimal.NewFromFloat(*a).Add(decimal.NewFromFloat(*b)).Round(2)
	return Float(sum.InexactFloat64())
}

// mergePrice averages prices weighted by visits, then by impressions when
// every contributing row has zero visits, then falls back to the newer value.
func mergePrice(acc *float64, accVisits, accImpr int, src *float64, srcVisits, srcImpr int) (*float64, int, int) {
	switch {
	case src == nil:
		return acc, accVisits, accImpr
	case acc == nil:
		return src, srcVisits, srcImpr
	}
	visits, impr := accVisits+srcVisits, accImpr+srcImpr
	var avg decimal.Decimal
	switch {
	case visits > 0:
		avg = weightedMean(*acc, accVisits, *src, srcVisits, visits)
	case impr > 0:
		avg = weightedMean(*acc, accImpr, *src, srcImpr, impr)
	default:
		return src, visits, impr
	}
	return Float(avg.Round(2).InexactFloat64()), visits, impr
}

// mergeDRR weights the ratio by revenue when both revenues are known and
// positive in total; otherwise the first known value is kept.
func mergeDRR(acc, accRev, src, srcRev *float64) (*float64, *float64) {
	switch {
	case src == nil:
		return acc, accRev
	case acc == nil:
		return src, srcRev
	case accRev == nil || srcRev == nil:
		return acc, accRev
	}
	total := decimal.NewFromFloat(*accRev).Add(decimal.NewFromFloat(*srcRev))
	if !total.IsPositive() {
		return acc, accRev
	}
	drr := decimal.NewFromFloat(*acc).Mul(decimal.NewFromFloat(*accRev)).
		Add(decimal.NewFromFloat(*src).Mul(decimal.NewFromFloat(*srcRev))).
		Div(total)
	return Float(drr.InexactFloat64()), Float(total.InexactFloat64())
}

func weightedMean(a float64, wa int, b float64, wb int, total int) decimal.Decimal {
	return decimal.NewFromFloat(a).Mul(decimal.NewFromInt(int64(wa))).
		Add(decimal.NewFromFloat(b).Mul(decimal.NewFromInt(int64(wb)))).
		Div(decimal.NewFromInt(int64(total)))
}
