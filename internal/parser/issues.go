package parser

import (
	"fmt"

	"sellerpulse/internal/model"
)

// issueLog collects deduplicated warnings and fatal errors in insertion order.
type issueLog struct {
	warnings []string
	errors   []string
	seen     map[string]struct{}
	clamped  int
}

func (l *issueLog) warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if l.seen == nil {
		l.seen = make(map[string]struct{})
	}
	if _, ok := l.seen[msg]; ok {
		return
	}
	l.seen[msg] = struct{}{}
	l.warnings = append(l.warnings, msg)
}

func (l *issueLog) failf(format string, args ...any) {
	l.errors = append(l.errors, fmt.Sprintf(format, args...))
}

func (l *issueLog) failed() bool { return len(l.errors) > 0 }

// clamp records that a value of field was forced to bound.
func (l *issueLog) clamp(field, bound string) {
	l.clamped++
	l.warnf("%q values out of range clamped to %s", field, bound)
}

// parseState accumulates everything one parse call reports.
type parseState struct {
	issues issueLog
	diag   model.ParseDiagnostics
	rows   []model.ParsedRow
	period *model.Period
}

func newParseState(source model.Source) *parseState {
	return &parseState{
		diag: model.ParseDiagnostics{
			Source:             source,
			HeaderRows:         []int{},
			HeaderSample:       []string{},
			SkipReasons:        map[string]int{},
			ColumnMapping:      map[string]string{},
			MissingRequired:    []string{},
			UnresolvedOptional: []string{},
		},
	}
}

func (s *parseState) skip(reason string) {
	s.diag.RowsSkipped++
	s.diag.SkipReasons[reason]++
}

func (s *parseState) accept(row model.ParsedRow) {
	s.diag.RowsAccepted++
	s.rows = append(s.rows, row)
}

func (s *parseState) result() *model.ParseResult {
	res := &model.ParseResult{
		Rows:        s.rows,
		Period:      s.period,
		Diagnostics: s.diag,
		Warnings:    s.issues.warnings,
		Errors:      s.issues.errors,
	}
	if res.Rows == nil || len(res.Errors) > 0 {
		res.Rows = []model.ParsedRow{}
	}
	if res.Warnings == nil {
		res.Warnings = []string{}
	}
	if res.Errors == nil {
		res.Errors = []string{}
	}
	return res
}

// abort turns an unrecoverable read failure into a single error.
func (s *parseState) abort(err error) *model.ParseResult {
	s.rows = nil
	s.issues.errors = []string{fmt.Sprintf("failed to read workbook: %v", err)}
	return s.result()
}
