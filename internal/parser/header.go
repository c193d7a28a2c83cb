package parser

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	headerSampleCells = 40
	headerSampleRunes = 64
)

// NormalizeHeaderText collapses all whitespace (NBSP included) to single
// spaces, trims and lowercases. nil becomes "".
func NormalizeHeaderText(cell any) string {
	if cell == nil {
		return ""
	}
	s, ok := cell.(string)
	if !ok {
		s = fmt.Sprint(cell)
	}
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// LocateHeaderRow returns the first row index in 0..maxRow (inclusive) holding
// a cell whose normalized text satisfies match.
func LocateHeaderRow(grid [][]string, match func(cell string) bool, maxRow int) (int, bool) {
	return LocateHeaderRowFunc(grid, func(cells []string) bool {
		for _, c := range cells {
			if match(c) {
				return true
			}
		}
		return false
	}, maxRow)
}

// LocateHeaderRowFunc is LocateHeaderRow with a predicate over the whole
// normalized row.
func LocateHeaderRowFunc(grid [][]string, match func(cells []string) bool, maxRow int) (int, bool) {
	limit := min(maxRow+1, len(grid))
	for i := 0; i < limit; i++ {
		if match(normalizeRow(grid[i])) {
			return i, true
		}
	}
	return -1, false
}

func normalizeRow(row []string) []string {
	out := make([]string, len(row))
	for i, c := range row {
		out[i] = NormalizeHeaderText(c)
	}
	return out
}

// Candidate one alternative in an ordered header match list.
// Key is the human readable form reported in diagnostics.
type Candidate struct {
	Key   string
	Match func(header string) bool
}

// Contains matches headers containing sub.
func Contains(sub string) Candidate {
	sub = NormalizeHeaderText(sub)
	return Candidate{Key: sub, Match: func(h string) bool { return strings.Contains(h, sub) }}
}

// Exact matches headers equal to s.
func Exact(s string) Candidate {
	s = NormalizeHeaderText(s)
	return Candidate{Key: "=" + s, Match: func(h string) bool { return h == s }}
}

// ContainsAll matches headers containing every part.
func ContainsAll(parts ...string) Candidate {
	parts = normalizeRow(parts)
	return Candidate{Key: strings.Join(parts, "+"), Match: func(h string) bool {
		for _, p := range parts {
			if !strings.Contains(h, p) {
				return false
			}
		}
		return true
	}}
}

// Pattern matches headers against a regular expression.
func Pattern(expr string) Candidate {
	re := regexp.MustCompile(expr)
	return Candidate{Key: "/" + expr + "/", Match: re.MatchString}
}

// Exclude narrows c to headers containing none of the given words.
func (c Candidate) Exclude(words ...string) Candidate {
	words = normalizeRow(words)
	match := c.Match
	return Candidate{Key: c.Key + "-" + strings.Join(words, "-"), Match: func(h string) bool {
		for _, w := range words {
			if strings.Contains(h, w) {
				return false
			}
		}
		return match(h)
	}}
}

// ResolveColumn returns the index of the first header matching a candidate,
// trying candidates in priority order. Headers are normalized before matching.
func ResolveColumn(headers []string, candidates []Candidate) (int, bool) {
	normalized := normalizeRow(headers)
	for _, c := range candidates {
		for i, h := range normalized {
			if h != "" && c.Match(h) {
				return i, true
			}
		}
	}
	return -1, false
}

var identifierRe = regexp.MustCompile(`^[A-Z0-9]+-[A-Z0-9]+`)

// NormalizeIdentifier canonical form of a seller article code.
func NormalizeIdentifier(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// IsIdentifierValid reports whether s looks like a seller article code.
func IsIdentifierValid(s string) bool {
	return identifierRe.MatchString(NormalizeIdentifier(s))
}

var totalsMarkers = []string{"итого", "итог", "всего", "total", "сумма по"}

// IsTotalsRow reports whether the first cell of row marks a totals/summary line.
func IsTotalsRow(row []string) bool {
	if len(row) == 0 {
		return false
	}
	first := NormalizeHeaderText(row[0])
	if first == "" {
		return false
	}
	for _, m := range totalsMarkers {
		if strings.HasPrefix(first, m) {
			return true
		}
	}
	return false
}

func sampleHeaders(headers []string) []string {
	out := make([]string, 0, min(len(headers), headerSampleCells))
	for _, h := range headers {
		if len(out) == headerSampleCells {
			break
		}
		h = strings.TrimSpace(h)
		if utf8.RuneCountInString(h) > headerSampleRunes {
			h = string([]rune(h)[:headerSampleRunes])
		}
		out = append(out, h)
	}
	return out
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
