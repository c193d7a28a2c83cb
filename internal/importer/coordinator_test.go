package importer

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"sellerpulse/internal/model"
	"sellerpulse/internal/store"
)

func newTestCoordinator(t *testing.T) (*Coordinator, *store.Store) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "sellerpulse.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return NewCoordinator(st, nil), st
}

func funnelWorkbook(t *testing.T, rows ...[]any) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", "Товары"))

	all := append([][]any{
		{"Воронка продаж с 01.03.2024 по 31.03.2024"},
		{"Артикул продавца", "Показы", "Переходы в карточку", "Заказали, шт", "Заказали на сумму, руб"},
	}, rows...)
	for i, row := range all {
		ref, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow("Товары", ref, &r))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestImportFileStoresBatch(t *testing.T) {
	c, st := newTestCoordinator(t)
	ctx := context.Background()

	content := funnelWorkbook(t,
		[]any{"ABC-1", 100, 10, 1, "1 000,50"},
		[]any{"Итого", 100, 10, 1, "1 000,50"},
	)
	out, err := c.ImportFile(ctx, ImportOptions{Source: model.SourceWildberries, Filename: "wb.xlsx", Content: content})
	require.NoError(t, err)
	require.NotNil(t, out.Batch)
	assert.Equal(t, 1, out.Batch.RowCount)
	assert.Equal(t, 1, out.Batch.RowsSkipped)
	assert.Len(t, out.Batch.FileHash, 64)
	require.NotNil(t, out.Batch.Period())

	stored, err := st.GetBatch(ctx, out.Batch.ID)
	require.NoError(t, err)
	assert.Equal(t, "wb.xlsx", stored.Filename)
	assert.Equal(t, 31, stored.Period().Days())

	rows, err := st.BatchRows(ctx, out.Batch.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "ABC-1", rows[0].Artikul)
	assert.InDelta(t, 1000.5, *rows[0].Revenue, 1e-9)
}

func TestImportFileRejectsDuplicates(t *testing.T) {
	c, st := newTestCoordinator(t)
	ctx := context.Background()

	opts := ImportOptions{
		Source:   model.SourceWildberries,
		Filename: "wb.xlsx",
		Content:  funnelWorkbook(t, []any{"ABC-1", 100, 10, 1, ""}),
	}
	first, err := c.ImportFile(ctx, opts)
	require.NoError(t, err)

	dup, err := c.ImportFile(ctx, opts)
	require.ErrorIs(t, err, ErrDuplicateImport)
	assert.Equal(t, first.Batch.ID, dup.Batch.ID)

	opts.Force = true
	forced, err := c.ImportFile(ctx, opts)
	require.NoError(t, err)
	assert.NotEqual(t, first.Batch.ID, forced.Batch.ID)

	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Batches)
}

func TestImportFileRejectsStructuralErrors(t *testing.T) {
	c, st := newTestCoordinator(t)
	ctx := context.Background()

	out, err := c.ImportFile(ctx, ImportOptions{Source: model.SourceOzon, Filename: "wb.xlsx", Content: funnelWorkbook(t)})
	require.ErrorIs(t, err, ErrRejected)
	assert.Nil(t, out.Batch)
	require.NotNil(t, out.Result)
	assert.NotEmpty(t, out.Result.Errors)

	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Batches)
}

func TestImportStreamsEvents(t *testing.T) {
	c, _ := newTestCoordinator(t)

	content := funnelWorkbook(t, []any{"ABC-1", -5, 10, 1, ""})
	ch := c.Import(context.Background(), ImportOptions{Source: model.SourceWildberries, Filename: "wb.xlsx", Content: content})

	var types []string
	var last ProgressEvent
	for evt := range ch {
		types = append(types, evt.Type)
		last = evt
	}

	require.NotEmpty(t, types)
	assert.Equal(t, EventStart, types[0])
	assert.Contains(t, types, EventParsed)
	assert.Contains(t, types, EventWarning)
	assert.Equal(t, EventDone, last.Type)
	batch, ok := last.Data.(*model.ImportBatch)
	require.True(t, ok)
	assert.Equal(t, 1, batch.RowCount)
}

func TestImportUnsupportedSource(t *testing.T) {
	c, _ := newTestCoordinator(t)

	var last ProgressEvent
	for evt := range c.Import(context.Background(), ImportOptions{Source: "amazon", Filename: "x.xlsx"}) {
		last = evt
	}
	assert.Equal(t, EventError, last.Type)
	assert.Contains(t, last.Message, "unsupported source")
}

func TestImportAllKeepsInputOrder(t *testing.T) {
	c, _ := newTestCoordinator(t)

	files := []ImportOptions{
		{Source: model.SourceWildberries, Filename: "a.xlsx", Content: funnelWorkbook(t, []any{"A-1", 1, 0, 0, ""})},
		{Source: model.SourceWildberries, Filename: "broken.xlsx", Content: []byte("not a workbook")},
		{Source: model.SourceWildberries, Filename: "c.xlsx", Content: funnelWorkbook(t, []any{"C-1", 1, 0, 0, ""}, []any{"C-2", 2, 0, 0, ""})},
	}
	outcomes := c.ImportAll(context.Background(), files)

	require.Len(t, outcomes, 3)
	assert.Equal(t, "a.xlsx", outcomes[0].Filename)
	assert.NoError(t, outcomes[0].Err)
	assert.ErrorIs(t, outcomes[1].Err, ErrRejected)
	require.NoError(t, outcomes[2].Err)
	assert.Equal(t, 2, outcomes[2].Batch.RowCount)
}
