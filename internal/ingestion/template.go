package ingestion

import (
	"context"
	"fmt"
	"strings"

	"github.com/fast-track-solutions1/msi-teamhub/internal/domain"

	"github.com/xuri/excelize/v2"
)

const (
	dataSheet         = "Data"
	instructionsSheet = "Instructions"
	listsSheet        = "Lists"

	// lastTemplateRow bounds the dropdown ranges: 999 data rows below the header.
	lastTemplateRow = 1000

	minColumnWidth      = 15
	instructionPreviews = 5
	textNumberFormat    = 49
	headerFillColor     = "4472C4"
)

type dropdown struct {
	field  domain.FieldSpec
	values []string
}

// Template builds an xlsx workbook whose header row lists the importable
// fields of entityKey, with dropdowns over foreign key and choice columns.
func (s *Service) Template(ctx context.Context, entityKey string) ([]byte, error) {
	schema, err := s.registry.Lookup(entityKey)
	if err != nil {
		return nil, err
	}

	fields := schema.Fields
	dropdowns := make([]dropdown, 0)
	for _, field := range fields {
		values, err := s.allowedValues(ctx, field)
		if err != nil {
			return nil, err
		}
		if field.IsReference() || field.Type == domain.FieldTypeChoice {
			dropdowns = append(dropdowns, dropdown{field: field, values: values})
		}
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", dataSheet); err != nil {
		return nil, fmt.Errorf("failed to name data sheet: %w", err)
	}
	if err := writeDataSheet(f, fields); err != nil {
		return nil, err
	}
	if err := writeDropdowns(f, fields, dropdowns); err != nil {
		return nil, err
	}
	if err := writeInstructions(f, schema, dropdowns); err != nil {
		return nil, err
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write template: %w", err)
	}
	return buf.Bytes(), nil
}

// allowedValues returns the values a field may take: current lookup values of
// the referenced table, or the declared choices.
func (s *Service) allowedValues(ctx context.Context, field domain.FieldSpec) ([]string, error) {
	switch {
	case field.Type == domain.FieldTypeForeignKey && field.Reference != nil:
		values, err := s.store.ListColumn(ctx, field.Reference.Table, field.Reference.LookupField)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s values for %s: %w", field.Reference.Entity, field.Name, err)
		}
		return values, nil
	case field.Type == domain.FieldTypeChoice:
		return append([]string(nil), field.Choices...), nil
	default:
		return nil, nil
	}
}

func writeDataSheet(f *excelize.File, fields []domain.FieldSpec) error {
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerFillColor}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	textStyle, err := f.NewStyle(&excelize.Style{NumFmt: textNumberFormat})
	if err != nil {
		return fmt.Errorf("failed to create text style: %w", err)
	}

	header := make([]interface{}, len(fields))
	for i, field := range fields {
		header[i] = field.Name
	}
	if err := f.SetSheetRow(dataSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header row: %w", err)
	}

	for i, field := range fields {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		width := float64(len(field.Name) + 5)
		if width < minColumnWidth {
			width = minColumnWidth
		}
		if err := f.SetColWidth(dataSheet, col, col, width); err != nil {
			return fmt.Errorf("failed to size column %s: %w", field.Name, err)
		}
		if err := f.SetColStyle(dataSheet, col, textStyle); err != nil {
			return fmt.Errorf("failed to style column %s: %w", field.Name, err)
		}
	}

	lastHeader, err := excelize.CoordinatesToCellName(len(fields), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(dataSheet, "A1", lastHeader, headerStyle); err != nil {
		return fmt.Errorf("failed to style header row: %w", err)
	}

	return f.SetPanes(dataSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// writeDropdowns stores each value list in a column of the hidden Lists
// sheet (field name in row 1) and points a list validation at it.
func writeDropdowns(f *excelize.File, fields []domain.FieldSpec, dropdowns []dropdown) error {
	if len(dropdowns) == 0 {
		return nil
	}
	if _, err := f.NewSheet(listsSheet); err != nil {
		return fmt.Errorf("failed to create lists sheet: %w", err)
	}

	position := make(map[string]int, len(fields))
	for i, field := range fields {
		position[field.Name] = i + 1
	}

	for i, dd := range dropdowns {
		listCol, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		column := make([]interface{}, 0, len(dd.values)+1)
		column = append(column, dd.field.Name)
		for _, value := range dd.values {
			column = append(column, value)
		}
		if err := f.SetSheetCol(listsSheet, listCol+"1", &column); err != nil {
			return fmt.Errorf("failed to write %s values: %w", dd.field.Name, err)
		}
		if len(dd.values) == 0 {
			continue
		}

		dataCol, err := excelize.ColumnNumberToName(position[dd.field.Name])
		if err != nil {
			return err
		}
		dv := excelize.NewDataValidation(true)
		dv.Sqref = fmt.Sprintf("%s2:%s%d", dataCol, dataCol, lastTemplateRow)
		dv.SetSqrefDropList(fmt.Sprintf("%s!$%s$2:$%s$%d", listsSheet, listCol, listCol, len(dd.values)+1))
		dv.SetError(excelize.DataValidationErrorStyleWarning, "Unknown value",
			fmt.Sprintf("%s should be one of the listed values", dd.field.Name))
		if err := f.AddDataValidation(dataSheet, dv); err != nil {
			return fmt.Errorf("failed to add dropdown for %s: %w", dd.field.Name, err)
		}
	}

	return f.SetSheetVisible(listsSheet, false)
}

func writeInstructions(f *excelize.File, schema domain.EntitySchema, dropdowns []dropdown) error {
	if _, err := f.NewSheet(instructionsSheet); err != nil {
		return fmt.Errorf("failed to create instructions sheet: %w", err)
	}

	lines := []string{
		fmt.Sprintf("Import template: %s", schema.DisplayName),
		"",
		"Fill one record per row on the Data sheet, starting at row 2. Do not rename the header row.",
		"",
		"Required fields: " + joinOrNone(schema.RequiredFields()),
	}
	if schema.HasUniqueField() {
		lines = append(lines, fmt.Sprintf("Unique key: %s (existing rows with the same value are updated)", schema.UniqueField))
	} else {
		lines = append(lines, "Unique key: none (every row creates a new record)")
	}
	lines = append(lines, "Dates: YYYY-MM-DD or DD/MM/YYYY. Times: HH:MM or HH:MM:SS. Booleans: oui/non, true/false, 1/0.")

	if len(dropdowns) > 0 {
		lines = append(lines, "", "Allowed values:")
		for _, dd := range dropdowns {
			lines = append(lines, fmt.Sprintf("  %s: %s", dd.field.Name, previewValues(dd.values)))
		}
	}

	for i, line := range lines {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(instructionsSheet, cell, line); err != nil {
			return fmt.Errorf("failed to write instructions: %w", err)
		}
	}
	return f.SetColWidth(instructionsSheet, "A", "A", 100)
}

func previewValues(values []string) string {
	if len(values) == 0 {
		return "(none yet)"
	}
	if len(values) <= instructionPreviews {
		return strings.Join(values, ", ")
	}
	return fmt.Sprintf("%s (+%d more)", strings.Join(values[:instructionPreviews], ", "), len(values)-instructionPreviews)
}

func joinOrNone(values []string) string {
	if len(values) == 0 {
		return "none"
	}
	return strings.Join(values, ", ")
}
