package parser

import (
	"strings"

	"sellerpulse/internal/model"
)

// Column keys used in ParseDiagnostics.ColumnMapping.
const (
	colArtikul       = "artikul"
	colImpressions   = "impressions"
	colVisits        = "visits"
	colCTR           = "ctr"
	colAddToCart     = "add_to_cart"
	colCRToCart      = "cr_to_cart"
	colOrders        = "orders"
	colRevenue       = "revenue"
	colPriceAvg      = "price_avg"
	colDRR           = "drr"
	colStockEnd      = "stock_end"
	colRating        = "rating"
	colReviewCount   = "review_count"
	colDeliveryHours = "delivery_hours"
)

// fieldSpec how one target field is found among the headers.
// Group is only consulted for composite (two-row) headers.
type fieldSpec struct {
	Key        string
	Required   bool
	Group      []Candidate
	Candidates []Candidate
}

const compositeSep = " | "

// composeHeaders folds a group row and a metric row into composite labels.
// Blank group cells inherit the nearest non-blank group to their left.
func composeHeaders(groupRow, metricRow []string, discard string) []string {
	width := max(len(groupRow), len(metricRow))
	out := make([]string, width)
	group := ""
	for i := 0; i < width; i++ {
		if g := NormalizeHeaderText(cell(groupRow, i)); g != "" {
			group = g
		}
		metric := NormalizeHeaderText(cell(metricRow, i))
		if discard != "" && (strings.Contains(group, discard) || strings.Contains(metric, discard)) {
			continue
		}
		switch {
		case group != "" && metric != "":
			out[i] = group + compositeSep + metric
		case metric != "":
			out[i] = metric
		default:
			out[i] = group
		}
	}
	return out
}

func splitComposite(h string) (group, metric string) {
	if g, m, ok := strings.Cut(h, compositeSep); ok {
		return g, m
	}
	return "", h
}

func groupAndMetric(group, metric Candidate) Candidate {
	return Candidate{
		Key: group.Key + compositeSep + metric.Key,
		Match: func(h string) bool {
			g, m := splitComposite(h)
			return g != "" && group.Match(g) && metric.Match(m)
		},
	}
}

func metricOnly(metric Candidate) Candidate {
	return Candidate{
		Key: metric.Key,
		Match: func(h string) bool {
			_, m := splitComposite(h)
			return m != "" && metric.Match(m)
		},
	}
}

// resolveColumns maps every field to a header index, recording the outcome in
// diagnostics. A missing required column is a structural error.
func (s *parseState) resolveColumns(headers []string, specs []fieldSpec, composite bool) map[string]int {
	cols := make(map[string]int, len(specs))
	for _, spec := range specs {
		idx, ok := resolveField(headers, spec, composite)
		if !ok {
			if spec.Required {
				s.diag.MissingRequired = append(s.diag.MissingRequired, spec.Key)
			} else {
				s.diag.UnresolvedOptional = append(s.diag.UnresolvedOptional, spec.Key)
			}
			continue
		}
		cols[spec.Key] = idx
		s.diag.ColumnMapping[spec.Key] = strings.TrimSpace(headers[idx])
	}
	for _, key := range s.diag.MissingRequired {
		s.issues.failf("required column not found: %s", key)
	}
	return cols
}

func resolveField(headers []string, spec fieldSpec, composite bool) (int, bool) {
	if !composite {
		return ResolveColumn(headers, spec.Candidates)
	}
	if len(spec.Group) > 0 {
		var both []Candidate
		for _, m := range spec.Candidates {
			for _, g := range spec.Group {
				both = append(both, groupAndMetric(g, m))
			}
		}
		if idx, ok := ResolveColumn(headers, both); ok {
			return idx, true
		}
	}
	loose := make([]Candidate, len(spec.Candidates))
	for i, m := range spec.Candidates {
		loose[i] = metricOnly(m)
	}
	return ResolveColumn(headers, loose)
}

// rowValues reads typed fields out of one data row.
type rowValues struct {
	row  []string
	cols map[string]int
	log  *issueLog
}

func (v rowValues) raw(key string) (string, bool) {
	idx, ok := v.cols[key]
	if !ok {
		return "", false
	}
	return cell(v.row, idx), true
}

func (v rowValues) number(key string) *float64 {
	s, ok := v.raw(key)
	if !ok {
		return nil
	}
	return ParseLocaleNumber(s)
}

func (v rowValues) count(key string) *int {
	x := v.number(key)
	n, clamped := CoerceNonNegativeInt(x)
	switch {
	case clamped:
		v.log.clamp(key, "0")
	case n == nil && x != nil:
		v.log.warnf("%q values out of integer range ignored", key)
	}
	return n
}

func (v rowValues) countOrZero(key string) int {
	if n := v.count(key); n != nil {
		return *n
	}
	return 0
}

func (v rowValues) amount(key string) *float64 {
	x, clamped := ClampNonNegative(v.number(key))
	if clamped {
		v.log.clamp(key, "0")
	}
	return x
}

func (v rowValues) money(key string) *float64 {
	return RoundMoney(v.amount(key))
}

// fraction returns the cell as a fraction. present reports a non-empty cell.
func (v rowValues) fraction(key string) (f *float64, present bool) {
	s, ok := v.raw(key)
	if !ok || s == "" {
		return nil, false
	}
	return ParsePercentToFraction(s), true
}

// ratio prefers the reported percentage and falls back to num/den.
func (v rowValues) ratio(key string, num, den int) float64 {
	f, present := v.fraction(key)
	if f != nil {
		return *f
	}
	if present {
		v.log.warnf("unparseable %q values replaced by computed ratio", key)
	}
	return computedRatio(key, num, den, v.log)
}

func computedRatio(key string, num, den int, log *issueLog) float64 {
	r, clamped := ClampFraction(SafeDivide(floatOf(num), floatOf(den)))
	if clamped {
		log.clamp(key, "[0,1]")
	}
	return valueOr(r, 0)
}

func newRow(v rowValues, artikul string, impressions, rowNo int) model.ParsedRow {
	visits := v.countOrZero(colVisits)
	addToCart := v.countOrZero(colAddToCart)
	return model.ParsedRow{
		Artikul:       artikul,
		Impressions:   impressions,
		Visits:        visits,
		CTR:           v.ratio(colCTR, visits, impressions),
		AddToCart:     addToCart,
		CRToCart:      v.ratio(colCRToCart, addToCart, visits),
		Orders:        v.countOrZero(colOrders),
		Revenue:       v.money(colRevenue),
		PriceAvg:      v.money(colPriceAvg),
		StockEnd:      v.count(colStockEnd),
		DeliveryHours: v.amount(colDeliveryHours),
		Rating:        v.amount(colRating),
		ReviewCount:   v.count(colReviewCount),
		RowNo:         rowNo,
	}
}

// scanRows walks data rows from start, applying the shared skip rules.
func (s *parseState) scanRows(rows [][]string, start int, cols map[string]int) {
	for r := start; r < len(rows); r++ {
		row := rows[r]
		s.diag.RowsScanned++

		if IsTotalsRow(row) {
			s.skip(model.SkipTotalsRow)
			continue
		}
		v := rowValues{row: row, cols: cols, log: &s.issues}

		raw, _ := v.raw(colArtikul)
		if !IsIdentifierValid(raw) {
			s.skip(model.SkipInvalidArtikul)
			continue
		}
		shown := v.number(colImpressions)
		impressions, clamped := CoerceNonNegativeInt(shown)
		if impressions == nil {
			if shown != nil {
				s.issues.warnf("%q values out of integer range ignored", colImpressions)
			}
			s.skip(model.SkipMissingRequired)
			continue
		}
		if clamped {
			s.issues.clamp(colImpressions, "0")
		}

		parsed := newRow(v, NormalizeIdentifier(raw), *impressions, r+1)
		if drr, present := v.fraction(colDRR); drr != nil {
			parsed.DRR = drr
		} else if present {
			s.issues.warnf("unparseable %q values ignored", colDRR)
		}
		s.accept(parsed)
	}
}
