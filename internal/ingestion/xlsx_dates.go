package ingestion

import (
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

type cellKind int

const (
	cellPlain cellKind = iota
	cellDate
	cellTime
	cellDateTime
)

// Built-in number formats that display serial numbers as dates or times.
var builtinDateFormats = map[int]cellKind{
	14: cellDate, 15: cellDate, 16: cellDate, 17: cellDate,
	18: cellTime, 19: cellTime, 20: cellTime, 21: cellTime,
	22: cellDateTime,
	45: cellTime, 46: cellTime, 47: cellTime,
}

// dateCells turns date and time formatted serial numbers back into the text
// layouts the coercion engine accepts.
type dateCells struct {
	file     *excelize.File
	date1904 bool
	kinds    map[int]cellKind
}

func newDateCells(f *excelize.File) *dateCells {
	d := &dateCells{file: f, kinds: make(map[int]cellKind)}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		d.date1904 = *props.Date1904
	}
	return d
}

// render returns the textual form of a date or time cell at (col, row), both
// 1-based. ok is false for cells that are not date formatted serials.
func (d *dateCells) render(sheet string, col, row int, raw string) (string, bool) {
	serial, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || serial < 0 {
		return "", false
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return "", false
	}
	styleID, err := d.file.GetCellStyle(sheet, cell)
	if err != nil || styleID == 0 {
		return "", false
	}

	kind := d.kindOf(styleID)
	if kind == cellPlain {
		return "", false
	}
	value, err := excelize.ExcelDateToTime(serial, d.date1904)
	if err != nil {
		return "", false
	}
	value = value.Round(time.Second)

	switch kind {
	case cellTime:
		return value.Format("15:04:05"), true
	case cellDateTime:
		if value.Hour() == 0 && value.Minute() == 0 && value.Second() == 0 {
			return value.Format("2006-01-02"), true
		}
		return value.Format("2006-01-02 15:04:05"), true
	default:
		return value.Format("2006-01-02"), true
	}
}

func (d *dateCells) kindOf(styleID int) cellKind {
	if kind, ok := d.kinds[styleID]; ok {
		return kind
	}
	kind := cellPlain
	if style, err := d.file.GetStyle(styleID); err == nil && style != nil {
		if builtin, ok := builtinDateFormats[style.NumFmt]; ok {
			kind = builtin
		} else if style.CustomNumFmt != nil {
			kind = classifyNumberFormat(*style.CustomNumFmt)
		}
	}
	d.kinds[styleID] = kind
	return kind
}

// classifyNumberFormat inspects a custom format code such as "dd/mm/yyyy" or
// "hh:mm" once literals, escapes and bracketed sections are removed.
func classifyNumberFormat(code string) cellKind {
	var tokens strings.Builder
	inQuote, inBracket, escaped := false, false, false
scan:
	for _, r := range strings.ToLower(code) {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case r == '"':
			inQuote = !inQuote
		case inQuote:
		case r == '[':
			inBracket = true
		case r == ']':
			inBracket = false
		case inBracket:
		case r == ';':
			// only the first (positive) section matters
			break scan
		default:
			tokens.WriteRune(r)
		}
	}
	text := tokens.String()
	if text == "general" {
		return cellPlain
	}
	hasDate := strings.ContainsAny(text, "yd")
	hasTime := strings.ContainsAny(text, "hs")
	switch {
	case hasDate && hasTime:
		return cellDateTime
	case hasDate:
		return cellDate
	case hasTime:
		return cellTime
	case strings.ContainsRune(text, 'm'):
		return cellDate
	default:
		return cellPlain
	}
}
