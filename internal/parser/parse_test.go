package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sellerpulse/internal/model"
)

type panicReader struct{}

func (panicReader) Read([]byte) (int, error) { panic("disk on fire") }

func TestParseDispatch(t *testing.T) {
	t.Parallel()

	file := buildXLSX(t, "Товары", [][]any{wbHeader, {"ABC-1", 1}})
	res := Parse(model.SourceWildberries, file)
	require.Empty(t, res.Errors)
	assert.Equal(t, model.SourceWildberries, res.Diagnostics.Source)

	res = Parse(model.Source("amazon"), file)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "unsupported source")
	assert.NotNil(t, res.Rows)
}

func TestParseRecoversPanics(t *testing.T) {
	t.Parallel()

	res := ParseOzon(File{Name: "x.xlsx", Content: panicReader{}})
	require.Len(t, res.Errors, 1)
	assert.True(t, strings.HasPrefix(res.Errors[0], "failed to read workbook"))
	assert.Contains(t, res.Errors[0], "disk on fire")
	assert.Empty(t, res.Rows)
}

func TestParseEmptyUpload(t *testing.T) {
	t.Parallel()

	res := ParseWildberries(File{Name: "x.xlsx", Content: strings.NewReader("")})
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "empty upload")
}

func TestParseResultNeverMixesRowsAndErrors(t *testing.T) {
	t.Parallel()

	files := []File{
		buildXLSX(t, "Товары", [][]any{wbHeader, {"ABC-1", 1}}),
		buildXLSX(t, "Товары", [][]any{{"Артикул продавца"}, {"ABC-1"}}),
		{Name: "bad.xlsx", Content: strings.NewReader("garbage")},
	}
	for _, f := range files {
		res := ParseWildberries(f)
		if len(res.Errors) > 0 {
			assert.Empty(t, res.Rows)
		}
		assert.Equal(t, res.Diagnostics.RowsScanned, res.Diagnostics.RowsAccepted+res.Diagnostics.RowsSkipped)
	}
}
