package parser

import (
	"regexp"
	"strconv"
	"time"

	"sellerpulse/internal/model"
)

const periodScanCells = 10

var periodPatterns = []*regexp.Regexp{
	regexp.MustCompile(`с\s*(\d{1,2})\.(\d{1,2})\.(\d{4})\s*(?:г\.?)?\s*по\s*(\d{1,2})\.(\d{1,2})\.(\d{4})`),
	regexp.MustCompile(`(\d{1,2})\.(\d{1,2})\.(\d{4})\s*[-–—]\s*(\d{1,2})\.(\d{1,2})\.(\d{4})`),
}

// detectPeriod scans the top-left corner of every sheet for a
// "с DD.MM.YYYY по DD.MM.YYYY" (or dash separated) range.
// The first valid range wins; invalid dates or reversed ranges are ignored.
func detectPeriod(wb *workbook) *model.Period {
	for _, sh := range wb.sheets {
		for r := 0; r < min(periodScanCells, len(sh.rows)); r++ {
			row := sh.rows[r]
			for c := 0; c < min(periodScanCells, len(row)); c++ {
				if p := ParsePeriod(row[c]); p != nil {
					return p
				}
			}
		}
	}
	return nil
}

// ParsePeriod extracts a date range from free text, nil if none is present.
func ParsePeriod(text string) *model.Period {
	text = NormalizeHeaderText(text)
	if text == "" {
		return nil
	}
	for _, re := range periodPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			start, ok := makeDate(m[1], m[2], m[3])
			if !ok {
				continue
			}
			end, ok := makeDate(m[4], m[5], m[6])
			if !ok || end.Before(start) {
				continue
			}
			return &model.Period{Start: start, End: end}
		}
	}
	return nil
}

func makeDate(d, m, y string) (time.Time, bool) {
	day, _ := strconv.Atoi(d)
	month, _ := strconv.Atoi(m)
	year, _ := strconv.Atoi(y)
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month || t.Year() != year {
		return time.Time{}, false
	}
	return t, true
}
