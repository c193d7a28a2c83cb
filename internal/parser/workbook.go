package parser

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// File an uploaded report. Name is used for format sniffing (.csv) and as
// the sheet name of CSV grids.
type File struct {
	Name    string
	Content io.Reader
}

type sheet struct {
	name string
	rows [][]string
}

type workbook struct {
	sheets []sheet
	// single CSV grid, used whatever its name
	singleGrid bool
}

// findSheet returns the first sheet whose normalized name contains any of
// keywords, nil if none does.
func (wb *workbook) findSheet(keywords []string) *sheet {
	if len(wb.sheets) == 0 {
		return nil
	}
	if wb.singleGrid {
		return &wb.sheets[0]
	}
	for i := range wb.sheets {
		name := NormalizeHeaderText(wb.sheets[i].name)
		for _, kw := range keywords {
			if strings.Contains(name, kw) {
				return &wb.sheets[i]
			}
		}
	}
	return nil
}

func loadWorkbook(f File) (*workbook, error) {
	if f.Content == nil {
		return nil, fmt.Errorf("empty upload")
	}
	data, err := io.ReadAll(f.Content)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty upload")
	}

	if strings.EqualFold(filepath.Ext(f.Name), ".csv") {
		rows, err := readCSV(data)
		if err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(filepath.Base(f.Name), filepath.Ext(f.Name))
		return &workbook{sheets: []sheet{{name: name, rows: rows}}, singleGrid: true}, nil
	}
	return readXLSX(data)
}

func readXLSX(data []byte) (*workbook, error) {
	xf, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer xf.Close()

	wb := &workbook{}
	for _, name := range xf.GetSheetList() {
		rows, err := xf.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", name, err)
		}
		wb.sheets = append(wb.sheets, sheet{name: name, rows: rows})
	}
	if len(wb.sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	return wb, nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func readCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		decoded, _, err := transform.Bytes(charmap.Windows1251.NewDecoder(), data)
		if err != nil {
			return nil, fmt.Errorf("decode cp1251: %w", err)
		}
		data = decoded
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sniffDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rows, nil
}

// sniffDelimiter picks ';' unless the first lines carry more commas.
// ru-RU exports use ';' because ',' is the decimal separator.
func sniffDelimiter(data []byte) rune {
	head := data
	if len(head) > 4096 {
		head = head[:4096]
	}
	if bytes.Count(head, []byte{','}) > bytes.Count(head, []byte{';'}) {
		return ','
	}
	return ';'
}
