package model

import "time"

// ImportBatch a persisted, accepted parse of one uploaded file.
type ImportBatch struct {
	ID           string     `json:"id"`
	Source       Source     `json:"source"`
	Filename     string     `json:"filename"`
	FileHash     string     `json:"fileHash"`
	FileSize     int64      `json:"fileSize"`
	PeriodStart  *time.Time `json:"periodStart"`
	PeriodEnd    *time.Time `json:"periodEnd"`
	RowsAccepted int        `json:"rowsAccepted"`
	RowsSkipped  int        `json:"rowsSkipped"`
	RowCount     int        `json:"rowCount"`
	Warnings     []string   `json:"warnings"`
	CreatedAt    time.Time  `json:"createdAt"`

	Diagnostics *ParseDiagnostics `json:"diagnostics,omitempty"`
}

// Period returns the batch period, nil if the file carried none.
func (b *ImportBatch) Period() *Period {
	if b.PeriodStart == nil || b.PeriodEnd == nil {
		return nil
	}
	return &Period{Start: *b.PeriodStart, End: *b.PeriodEnd}
}
