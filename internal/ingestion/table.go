package ingestion

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

type tableRow struct {
	// number is the 1-based spreadsheet row, the header being row 1 when the
	// sheet starts with it.
	number int
	cells  []string
}

type tableData struct {
	headers []string
	rows    []tableRow
}

// column returns the index of header name, or -1.
func (t tableData) column(name string) int {
	for i, header := range t.headers {
		if header == name {
			return i
		}
	}
	return -1
}

func parseTable(fileName string, payload []byte) (tableData, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".csv":
		return parseCSV(payload)
	case ".xlsx", ".xlsm":
		return parseExcel(payload)
	default:
		return tableData{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

func parseCSV(payload []byte) (tableData, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	// encoding/csv skips blank lines, so each record is numbered by the line
	// it starts on rather than by its position.
	var records []numberedRecord
	for {
		record, err := csvReader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return tableData{}, fmt.Errorf("%w: failed to read csv: %v", ErrUnreadableFile, err)
		}
		line, _ := csvReader.FieldPos(0)
		records = append(records, numberedRecord{line: line, cells: record})
	}
	return normalizeTable(records)
}

func parseExcel(payload []byte) (tableData, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return tableData{}, fmt.Errorf("%w: failed to open xlsx: %v", ErrUnreadableFile, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return tableData{}, fmt.Errorf("%w: workbook has no sheets", ErrUnreadableFile)
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return tableData{}, fmt.Errorf("%w: failed to read rows from xlsx: %v", ErrUnreadableFile, err)
	}

	dates := newDateCells(f)
	records := make([]numberedRecord, len(rows))
	for idx, row := range rows {
		for col, cell := range row {
			if converted, ok := dates.render(sheet, col+1, idx+1, cell); ok {
				row[col] = converted
			}
		}
		records[idx] = numberedRecord{line: idx + 1, cells: row}
	}
	return normalizeTable(records)
}

// numberedRecord is a raw record with the 1-based line or row it came from.
type numberedRecord struct {
	line  int
	cells []string
}

// normalizeTable takes the first non-empty record as the header row. Data
// rows keep their spreadsheet row numbers; fully empty rows are dropped.
func normalizeTable(records []numberedRecord) (tableData, error) {
	headerIndex := -1
	for idx, record := range records {
		if !isEmptyRecord(record.cells) {
			headerIndex = idx
			break
		}
	}
	if headerIndex < 0 {
		return tableData{}, ErrEmptyFile
	}

	table := tableData{headers: sanitizeHeaders(records[headerIndex].cells)}
	for _, record := range records[headerIndex+1:] {
		if isEmptyRecord(record.cells) {
			continue
		}
		table.rows = append(table.rows, tableRow{number: record.line, cells: padRow(record.cells, len(table.headers))})
	}
	return table, nil
}

func isEmptyRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// sanitizeHeaders lower-cases header labels and folds spaces and dashes into
// underscores so "Code Postal" matches the code_postal field.
func sanitizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	for idx, value := range raw {
		name := strings.ToLower(strings.TrimSpace(value))
		name = strings.TrimPrefix(name, "*")
		name = strings.TrimSpace(name)
		name = strings.ReplaceAll(name, " ", "_")
		name = strings.ReplaceAll(name, "-", "_")
		headers[idx] = name
	}
	return headers
}

func padRow(row []string, length int) []string {
	if len(row) >= length {
		return row[:length]
	}
	padded := make([]string, length)
	copy(padded, row)
	return padded
}
