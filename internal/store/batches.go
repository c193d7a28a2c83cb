package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"sellerpulse/internal/model"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02T15:04:05.000000Z"
)

// Stats totals shown on the status endpoint.
type Stats struct {
	Batches    int        `json:"batches"`
	Rows       int        `json:"rows"`
	LastImport *time.Time `json:"lastImport"`
}

const batchColumns = `id, source, filename, file_hash, file_size, period_start, period_end,
	rows_accepted, rows_skipped, row_count, warnings, diagnostics, created_at`

// CreateBatch stores a batch and its rows in one transaction.
func (s *Store) CreateBatch(ctx context.Context, b *model.ImportBatch, rows []model.ParsedRow) error {
	warnings, err := json.Marshal(nonNil(b.Warnings))
	if err != nil {
		return fmt.Errorf("failed to encode warnings: %w", err)
	}
	diagnostics := []byte("{}")
	if b.Diagnostics != nil {
		if diagnostics, err = json.Marshal(b.Diagnostics); err != nil {
			return fmt.Errorf("failed to encode diagnostics: %w", err)
		}
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	b.RowCount = len(rows)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO import_batches (`+batchColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, b.ID, string(b.Source), b.Filename, b.FileHash, b.FileSize,
		formatDate(b.PeriodStart), formatDate(b.PeriodEnd),
		b.RowsAccepted, b.RowsSkipped, b.RowCount,
		string(warnings), string(diagnostics), b.CreatedAt.UTC().Format(timestampLayout))
	if err != nil {
		return fmt.Errorf("failed to insert batch: %w", err)
	}

	if len(rows) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO product_metrics (
				batch_id, artikul, row_no,
				impressions, visits, ctr, add_to_cart, cr_to_cart, orders,
				revenue, price_avg, drr, stock_end,
				delivery_hours, rating, review_count
			) VALUES (
				?, ?, ?,
				?, ?, ?, ?, ?, ?,
				?, ?, ?, ?,
				?, ?, ?
			)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, r := range rows {
			_, err := stmt.ExecContext(ctx,
				b.ID, r.Artikul, r.RowNo,
				r.Impressions, r.Visits, r.CTR, r.AddToCart, r.CRToCart, r.Orders,
				nullMoney(r.Revenue), nullMoney(r.PriceAvg), nullFloat(r.DRR), nullInt(r.StockEnd),
				nullFloat(r.DeliveryHours), nullFloat(r.Rating), nullInt(r.ReviewCount),
			)
			if err != nil {
				return fmt.Errorf("failed to insert row %s: %w", r.Artikul, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetBatch returns the batch with id, ErrNotFound if absent.
func (s *Store) GetBatch(ctx context.Context, id string) (*model.ImportBatch, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+batchColumns+` FROM import_batches WHERE id = ?`, id)
	b, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get batch %s: %w", id, err)
	}
	return b, nil
}

// FindBatchByHash returns the latest batch of source with the given content hash.
func (s *Store) FindBatchByHash(ctx context.Context, source model.Source, hash string) (*model.ImportBatch, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+batchColumns+` FROM import_batches
		WHERE source = ? AND file_hash = ?
		ORDER BY created_at DESC LIMIT 1
	`, string(source), hash)
	b, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find batch by hash: %w", err)
	}
	return b, nil
}

// ListBatches returns batches newest first. limit <= 0 means no limit.
func (s *Store) ListBatches(ctx context.Context, limit int) ([]model.ImportBatch, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+batchColumns+` FROM import_batches
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	defer rows.Close()

	batches := []model.ImportBatch{}
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		batches = append(batches, *b)
	}
	return batches, rows.Err()
}

// BatchRows returns the stored rows of a batch in sheet order.
func (s *Store) BatchRows(ctx context.Context, id string) ([]model.ParsedRow, error) {
	if _, err := s.GetBatch(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT artikul, row_no, impressions, visits, ctr, add_to_cart, cr_to_cart, orders,
			revenue, price_avg, drr, stock_end, delivery_hours, rating, review_count
		FROM product_metrics
		WHERE batch_id = ?
		ORDER BY row_no, artikul
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query rows: %w", err)
	}
	defer rows.Close()

	out := []model.ParsedRow{}
	for rows.Next() {
		var (
			r                     model.ParsedRow
			revenue, price        decimal.NullDecimal
			drr, delivery, rating sql.NullFloat64
			stock, reviews        sql.NullInt64
		)
		if err := rows.Scan(
			&r.Artikul, &r.RowNo, &r.Impressions, &r.Visits, &r.CTR, &r.AddToCart, &r.CRToCart, &r.Orders,
			&revenue, &price, &drr, &stock, &delivery, &rating, &reviews,
		); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		r.Revenue = moneyPtr(revenue)
		r.PriceAvg = moneyPtr(price)
		r.DRR = floatPtr(drr)
		r.StockEnd = intPtr(stock)
		r.DeliveryHours = floatPtr(delivery)
		r.Rating = floatPtr(rating)
		r.ReviewCount = intPtr(reviews)
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteBatch removes a batch and its rows.
func (s *Store) DeleteBatch(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM import_batches WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete batch %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete batch %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats counts stored batches and rows.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	var (
		st   Stats
		last sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM import_batches),
			(SELECT COUNT(*) FROM product_metrics),
			(SELECT MAX(created_at) FROM import_batches)
	`).Scan(&st.Batches, &st.Rows, &last)
	if err != nil {
		return nil, fmt.Errorf("failed to read stats: %w", err)
	}
	if last.Valid {
		if t, err := time.Parse(timestampLayout, last.String); err == nil {
			st.LastImport = &t
		}
	}
	return &st, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBatch(sc scanner) (*model.ImportBatch, error) {
	var (
		b                     model.ImportBatch
		source                string
		start, end            sql.NullString
		warnings, diagnostics string
		createdAt             string
	)
	err := sc.Scan(&b.ID, &source, &b.Filename, &b.FileHash, &b.FileSize, &start, &end,
		&b.RowsAccepted, &b.RowsSkipped, &b.RowCount, &warnings, &diagnostics, &createdAt)
	if err != nil {
		return nil, err
	}
	b.Source = model.Source(source)
	b.PeriodStart = parseDate(start)
	b.PeriodEnd = parseDate(end)

	if err := json.Unmarshal([]byte(warnings), &b.Warnings); err != nil {
		return nil, fmt.Errorf("decode warnings: %w", err)
	}
	var diag model.ParseDiagnostics
	if err := json.Unmarshal([]byte(diagnostics), &diag); err != nil {
		return nil, fmt.Errorf("decode diagnostics: %w", err)
	}
	b.Diagnostics = &diag

	if b.CreatedAt, err = time.Parse(timestampLayout, createdAt); err != nil {
		return nil, fmt.Errorf("decode created_at: %w", err)
	}
	return &b, nil
}

func formatDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(dateLayout), Valid: true}
}

func parseDate(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(dateLayout, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullMoney(p *float64) decimal.NullDecimal {
	if p == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(*p).Round(2))
}

func moneyPtr(d decimal.NullDecimal) *float64 {
	if !d.Valid {
		return nil
	}
	f := d.Decimal.InexactFloat64()
	return &f
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	return &n.Float64
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
