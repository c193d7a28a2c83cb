package model

import "time"

// Source identifies the marketplace export format a file was produced by.
type Source string

const (
	// SourceWildberries single header row funnel report (format A).
	SourceWildberries Source = "wb"
	// SourceOzon analytics report with a two-row composite header (format B).
	SourceOzon Source = "ozon"
)

// Valid reports whether s names a supported format.
func (s Source) Valid() bool {
	return s == SourceWildberries || s == SourceOzon
}

// Skip reasons tallied in ParseDiagnostics.SkipReasons.
const (
	SkipTotalsRow       = "totals_row"
	SkipInvalidArtikul  = "invalid_artikul"
	SkipMissingRequired = "missing_required"
)

// ParsedRow one product per period per source.
type ParsedRow struct {
	Artikul     string   `json:"artikul"`
	Impressions int      `json:"impressions"`
	Visits      int      `json:"visits"`
	CTR         float64  `json:"ctr"`
	AddToCart   int      `json:"addToCart"`
	CRToCart    float64  `json:"crToCart"`
	Orders      int      `json:"orders"`
	Revenue     *float64 `json:"revenue"`
	PriceAvg    *float64 `json:"priceAvg"`
	DRR         *float64 `json:"drr"` // ozon only
	StockEnd    *int     `json:"stockEnd"`

	DeliveryHours *float64 `json:"deliveryHours,omitempty"`
	Rating        *float64 `json:"rating,omitempty"`
	ReviewCount   *int     `json:"reviewCount,omitempty"`

	RowNo int `json:"rowNo"` // 1-based sheet row of the first contributing source row
}

// Period reporting date range of an import batch.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Days inclusive length of the period.
func (p Period) Days() int {
	return int(p.End.Sub(p.Start).Hours()/24) + 1
}

// ParseDiagnostics operator-facing audit of a single parse call.
type ParseDiagnostics struct {
	Source       Source   `json:"source"`
	SheetName    string   `json:"sheetName"`
	HeaderRows   []int    `json:"headerRows"`
	HeaderSample []string `json:"headerSample"`

	RowsScanned  int            `json:"rowsScanned"`
	RowsAccepted int            `json:"rowsAccepted"`
	RowsSkipped  int            `json:"rowsSkipped"`
	SkipReasons  map[string]int `json:"skipReasons"`

	ColumnMapping      map[string]string `json:"columnMapping"` // field -> source header text
	MissingRequired    []string          `json:"missingRequired"`
	UnresolvedOptional []string          `json:"unresolvedOptional"`

	DuplicatesMerged   int  `json:"duplicatesMerged"`
	AggregationApplied bool `json:"aggregationApplied"`
}

// ParseResult output of one parser call.
// Non-empty Errors means Rows is empty and the caller must not persist.
type ParseResult struct {
	Rows        []ParsedRow      `json:"rows"`
	Period      *Period          `json:"period"`
	Diagnostics ParseDiagnostics `json:"diagnostics"`
	Warnings    []string         `json:"warnings"`
	Errors      []string         `json:"errors"`
}

// OK reports whether the result may be persisted.
func (r *ParseResult) OK() bool {
	return len(r.Errors) == 0
}
