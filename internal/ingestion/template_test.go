package ingestion

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/fast-track-solutions1/msi-teamhub/internal/domain"
	"github.com/fast-track-solutions1/msi-teamhub/internal/registry"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// seedReferences gives every referenced table one row carrying its lookup value.
func seedReferences(t *testing.T, h harness, reg *registry.Registry) {
	t.Helper()
	seeded := map[string]bool{}
	for _, key := range reg.Keys() {
		schema, err := reg.Lookup(key)
		require.NoError(t, err)
		for _, ref := range schema.ForeignKeyFields() {
			marker := ref.Table + "." + ref.LookupField
			if seeded[marker] {
				continue
			}
			seeded[marker] = true
			h.insert(t, ref.Table, map[string]any{ref.LookupField: "REF-" + ref.Entity})
		}
	}
}

func sampleValue(field domain.FieldSpec) string {
	switch field.Type {
	case domain.FieldTypeInteger:
		return "3"
	case domain.FieldTypeBoolean:
		return "oui"
	case domain.FieldTypeTime:
		return "08:30"
	case domain.FieldTypeDate:
		return "15/03/2024"
	case domain.FieldTypeDecimal:
		return "12,5"
	case domain.FieldTypeChoice:
		return field.Choices[0]
	default:
		return "S-" + field.Name
	}
}

func listValues(t *testing.T, f *excelize.File) map[string][]string {
	t.Helper()
	values := map[string][]string{}
	if idx, err := f.GetSheetIndex(listsSheet); err != nil || idx < 0 {
		return values
	}
	cols, err := f.GetCols(listsSheet)
	require.NoError(t, err)
	for _, col := range cols {
		if len(col) > 0 {
			values[col[0]] = col[1:]
		}
	}
	return values
}

func TestTemplateRoundTripsForEveryEntity(t *testing.T) {
	reg := registry.Default()
	h := newMemoryHarness(t, reg, Options{})
	seedReferences(t, h, reg)
	ctx := context.Background()

	for _, model := range reg.List() {
		t.Run(model.Key, func(t *testing.T) {
			schema, err := reg.Lookup(model.Key)
			require.NoError(t, err)

			content, err := h.service.Template(ctx, model.Key)
			require.NoError(t, err)

			f, err := excelize.OpenReader(bytes.NewReader(content))
			require.NoError(t, err)
			defer f.Close()

			require.Equal(t, dataSheet, f.GetSheetList()[0])
			header, err := f.GetRows(dataSheet)
			require.NoError(t, err)
			require.Equal(t, schema.ImportableFields(), header[0])

			lists := listValues(t, f)
			row := make([]interface{}, len(schema.Fields))
			for i, field := range schema.Fields {
				if field.IsReference() {
					require.NotEmpty(t, lists[field.Name], field.Name)
					row[i] = lists[field.Name][0]
					continue
				}
				row[i] = sampleValue(field)
			}
			require.NoError(t, f.SetSheetRow(dataSheet, "A2", &row))
			filled, err := f.WriteToBuffer()
			require.NoError(t, err)

			result, err := h.service.ImportFile(ctx, Request{
				EntityKey: model.Key,
				FileName:  "template_" + model.Key + ".xlsx",
				Data:      bytes.NewReader(filled.Bytes()),
			})
			require.NoError(t, err)
			require.Empty(t, result.Errors)
			require.Equal(t, 1, result.SuccessCount)
			require.Equal(t, domain.ImportStatusSuccess, result.Status)
		})
	}
}

func TestTemplateLayout(t *testing.T) {
	h := newMemoryHarness(t, registry.Default(), Options{})
	for _, name := range []string{"Acme", "Beta", "Cirrus", "Delta", "Epsilon", "Foxtrot", "Gamma"} {
		h.insert(t, "societes", map[string]any{"nom": name})
	}

	content, err := h.service.Template(context.Background(), "grade")
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(content))
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t, []string{dataSheet, listsSheet, instructionsSheet}, f.GetSheetList())

	visible, err := f.GetSheetVisible(listsSheet)
	require.NoError(t, err)
	require.False(t, visible)

	validations, err := f.GetDataValidations(dataSheet)
	require.NoError(t, err)
	require.Len(t, validations, 1)
	require.Equal(t, "B2:B1000", validations[0].Sqref)
	require.Contains(t, validations[0].Formula1, "Lists!$A$2:$A$8")

	width, err := f.GetColWidth(dataSheet, "A")
	require.NoError(t, err)
	require.Equal(t, float64(minColumnWidth), width)

	panes, err := f.GetPanes(dataSheet)
	require.NoError(t, err)
	require.True(t, panes.Freeze)
	require.Equal(t, 1, panes.YSplit)

	instructions, err := f.GetRows(instructionsSheet)
	require.NoError(t, err)
	var text []string
	for _, line := range instructions {
		text = append(text, strings.Join(line, " "))
	}
	joined := strings.Join(text, "\n")
	require.Contains(t, joined, "Required fields: nom, societe")
	require.Contains(t, joined, "Unique key: nom")
	require.Contains(t, joined, "societe: Acme, Beta, Cirrus, Delta, Epsilon (+2 more)")
}

func TestTemplateUnknownEntity(t *testing.T) {
	h := newMemoryHarness(t, registry.Default(), Options{})
	_, err := h.service.Template(context.Background(), "licorne")
	require.ErrorIs(t, err, registry.ErrUnknownEntityType)
}

func TestPreviewValues(t *testing.T) {
	require.Equal(t, "(none yet)", previewValues(nil))
	require.Equal(t, "a, b", previewValues([]string{"a", "b"}))
	require.Equal(t, "a, b, c, d, e (+1 more)", previewValues([]string{"a", "b", "c", "d", "e", "f"}))
}

func TestStructure(t *testing.T) {
	h := newMemoryHarness(t, registry.Default(), Options{})
	h.insert(t, "societes", map[string]any{"nom": "Acme"})
	h.importCSV(t, "grade", "nom,societe,ordre,actif\nSenior,Acme,1,oui\n")

	structure, err := h.service.Structure(context.Background(), "grade", true)
	require.NoError(t, err)

	require.Equal(t, "grade", structure.Model)
	require.Equal(t, []string{"nom", "societe"}, structure.RequiredFields)
	require.Equal(t, "nom", structure.UniqueField)
	require.Equal(t, int64(1), structure.RowCount)
	require.Len(t, structure.Fields, 4)

	nom := structure.Fields[0]
	require.True(t, nom.Unique)
	require.True(t, nom.Required)

	societe := structure.Fields[1]
	require.Equal(t, domain.FieldTypeForeignKey, societe.Type)
	require.Equal(t, "societes", societe.Reference.Table)
	require.Equal(t, []string{"Acme"}, societe.AllowedValues)

	require.Len(t, structure.Rows, 1)
	require.Equal(t, "Senior", structure.Rows[0]["nom"])

	withoutRows, err := h.service.Structure(context.Background(), "grade", false)
	require.NoError(t, err)
	require.Nil(t, withoutRows.Rows)

	_, err = h.service.Structure(context.Background(), "licorne", false)
	require.ErrorIs(t, err, registry.ErrUnknownEntityType)
}
