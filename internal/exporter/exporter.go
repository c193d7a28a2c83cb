package exporter

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"sellerpulse/internal/model"
	"sellerpulse/internal/store"
)

const (
	rowsSheet        = "rows"
	diagnosticsSheet = "diagnostics"
)

// excel built-in number formats
const (
	numFmtInt     = 3  // #,##0
	numFmtMoney   = 4  // #,##0.00
	numFmtPercent = 10 // 0.00%
)

type column struct {
	title  string
	width  float64
	numFmt int
	value  func(r *model.ParsedRow) any
}

var rowColumns = []column{
	{"Артикул", 18, 0, func(r *model.ParsedRow) any { return r.Artikul }},
	{"Строка", 8, 0, func(r *model.ParsedRow) any { return r.RowNo }},
	{"Показы", 12, numFmtInt, func(r *model.ParsedRow) any { return r.Impressions }},
	{"Переходы", 12, numFmtInt, func(r *model.ParsedRow) any { return r.Visits }},
	{"CTR", 9, numFmtPercent, func(r *model.ParsedRow) any { return r.CTR }},
	{"В корзину", 11, numFmtInt, func(r *model.ParsedRow) any { return r.AddToCart }},
	{"CR в корзину", 12, numFmtPercent, func(r *model.ParsedRow) any { return r.CRToCart }},
	{"Заказы", 10, numFmtInt, func(r *model.ParsedRow) any { return r.Orders }},
	{"Выручка, ₽", 14, numFmtMoney, func(r *model.ParsedRow) any { return floatOrNil(r.Revenue) }},
	{"Средняя цена, ₽", 14, numFmtMoney, func(r *model.ParsedRow) any { return floatOrNil(r.PriceAvg) }},
	{"ДРР", 9, numFmtPercent, func(r *model.ParsedRow) any { return floatOrNil(r.DRR) }},
	{"Остаток", 10, numFmtInt, func(r *model.ParsedRow) any { return intOrNil(r.StockEnd) }},
	{"Доставка, ч", 11, 0, func(r *model.ParsedRow) any { return floatOrNil(r.DeliveryHours) }},
	{"Рейтинг", 9, 0, func(r *model.ParsedRow) any { return floatOrNil(r.Rating) }},
	{"Отзывы", 9, numFmtInt, func(r *model.ParsedRow) any { return intOrNil(r.ReviewCount) }},
}

// Exporter writes a stored import batch back to a workbook.
type Exporter struct {
	store        *store.Store
	templatePath string
}

// NewExporter creates an exporter. templatePath optionally names a workbook
// whose styles and extra sheets are kept; empty means a blank workbook.
func NewExporter(store *store.Store, templatePath string) *Exporter {
	return &Exporter{
		store:        store,
		templatePath: templatePath,
	}
}

// ProgressEvent export progress shown in the UI. Percent is within 0..100.
type ProgressEvent struct {
	Percent int
	Stage   string
}

// ExportOptions export options.
type ExportOptions struct {
	BatchID  string
	Progress func(ProgressEvent)
}

func (o ExportOptions) report(percent int, stage string) {
	if o.Progress != nil {
		o.Progress(ProgressEvent{Percent: min(max(percent, 0), 100), Stage: stage})
	}
}

// Export builds the workbook for one batch. The caller closes the file.
func (e *Exporter) Export(ctx context.Context, opts ExportOptions) (*excelize.File, error) {
	opts.report(0, "loading batch")
	batch, err := e.store.GetBatch(ctx, opts.BatchID)
	if err != nil {
		return nil, err
	}
	rows, err := e.store.BatchRows(ctx, opts.BatchID)
	if err != nil {
		return nil, err
	}
	opts.report(20, "rows loaded")

	f, err := e.openWorkbook()
	if err != nil {
		return nil, err
	}
	if err := writeRows(f, rows, opts.report); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := writeDiagnostics(f, batch); err != nil {
		_ = f.Close()
		return nil, err
	}
	if idx, err := f.GetSheetIndex(rowsSheet); err == nil {
		f.SetActiveSheet(idx)
	}
	opts.report(100, "done")
	return f, nil
}

// FileName download name for a batch.
func FileName(b *model.ImportBatch) string {
	name := strings.TrimSuffix(b.Filename, ".xlsx")
	name = strings.TrimSuffix(name, ".csv")
	if name == "" {
		name = string(b.Source)
	}
	return fmt.Sprintf("%s-normalized.xlsx", name)
}

func (e *Exporter) openWorkbook() (*excelize.File, error) {
	var f *excelize.File
	if p := strings.TrimSpace(e.templatePath); p != "" {
		tf, err := excelize.OpenFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to open export template: %w", err)
		}
		f = tf
	} else {
		f = excelize.NewFile()
	}

	for _, name := range []string{rowsSheet, diagnosticsSheet} {
		if idx, _ := f.GetSheetIndex(name); idx >= 0 {
			if err := f.DeleteSheet(name); err != nil {
				_ = f.Close()
				return nil, err
			}
		}
		if _, err := f.NewSheet(name); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}
	// blank workbooks come with a default sheet
	if e.templatePath == "" {
		if idx, _ := f.GetSheetIndex("Sheet1"); idx >= 0 {
			_ = f.DeleteSheet("Sheet1")
		}
	}
	return f, nil
}

func writeRows(f *excelize.File, rows []model.ParsedRow, report func(percent int, stage string)) error {
	header := make([]any, len(rowColumns))
	for i, c := range rowColumns {
		header[i] = c.title
	}
	if err := f.SetSheetRow(rowsSheet, "A1", &header); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(rowColumns))
	if err := f.SetCellStyle(rowsSheet, "A1", lastCol+"1", bold); err != nil {
		return err
	}

	for i := range rows {
		values := make([]any, len(rowColumns))
		for j, c := range rowColumns {
			values[j] = c.value(&rows[i])
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(rowsSheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
		if i%500 == 0 {
			report(20+70*i/len(rows), "writing rows")
		}
	}

	for j, c := range rowColumns {
		name, _ := excelize.ColumnNumberToName(j + 1)
		if err := f.SetColWidth(rowsSheet, name, name, c.width); err != nil {
			return err
		}
		if c.numFmt == 0 || len(rows) == 0 {
			continue
		}
		style, err := f.NewStyle(&excelize.Style{NumFmt: c.numFmt})
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(rowsSheet, fmt.Sprintf("%s2", name), fmt.Sprintf("%s%d", name, len(rows)+1), style); err != nil {
			return err
		}
	}

	return f.SetPanes(rowsSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func writeDiagnostics(f *excelize.File, b *model.ImportBatch) error {
	lines := [][]any{
		{"Источник", string(b.Source)},
		{"Файл", b.Filename},
		{"SHA-256", b.FileHash},
		{"Загружен", b.CreatedAt.Format("2006-01-02 15:04:05")},
	}
	if p := b.Period(); p != nil {
		lines = append(lines, []any{"Период", fmt.Sprintf("%s – %s", p.Start.Format("02.01.2006"), p.End.Format("02.01.2006"))})
	}
	lines = append(lines,
		[]any{"Строк принято", b.RowsAccepted},
		[]any{"Строк пропущено", b.RowsSkipped},
		[]any{"Строк сохранено", b.RowCount},
	)

	if d := b.Diagnostics; d != nil {
		lines = append(lines,
			[]any{"Лист", d.SheetName},
			[]any{"Объединено дубликатов", d.DuplicatesMerged},
		)
		for _, reason := range sortedKeys(d.SkipReasons) {
			lines = append(lines, []any{"Пропуск: " + reason, d.SkipReasons[reason]})
		}
		for _, field := range sortedKeys(d.ColumnMapping) {
			lines = append(lines, []any{"Колонка: " + field, d.ColumnMapping[field]})
		}
		if len(d.UnresolvedOptional) > 0 {
			lines = append(lines, []any{"Не найдены", strings.Join(d.UnresolvedOptional, ", ")})
		}
	}
	for _, w := range b.Warnings {
		lines = append(lines, []any{"Предупреждение", w})
	}

	for i, line := range lines {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(diagnosticsSheet, cell, &line); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(diagnosticsSheet, "A", "A", 28); err != nil {
		return err
	}
	return f.SetColWidth(diagnosticsSheet, "B", "B", 60)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func floatOrNil(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func intOrNil(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
