package parser

import (
	"fmt"

	"sellerpulse/internal/model"
)

// Parse dispatches to the parser for source.
func Parse(source model.Source, file File) *model.ParseResult {
	switch source {
	case model.SourceWildberries:
		return ParseWildberries(file)
	case model.SourceOzon:
		return ParseOzon(file)
	}
	st := newParseState(source)
	st.issues.failf("unsupported source %q", source)
	return st.result()
}

// parseWith loads the workbook and runs parse. Read failures and panics end
// up as a single error entry; the caller never sees a Go error.
func parseWith(source model.Source, file File, parse func(*workbook, *parseState)) (res *model.ParseResult) {
	st := newParseState(source)
	defer func() {
		if r := recover(); r != nil {
			res = st.abort(fmt.Errorf("%v", r))
		}
	}()

	wb, err := loadWorkbook(file)
	if err != nil {
		return st.abort(err)
	}
	parse(wb, st)
	return st.result()
}
