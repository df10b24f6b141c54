package ingestion

import (
	"context"
	"fmt"

	"github.com/fast-track-solutions1/msi-teamhub/internal/domain"
	"github.com/fast-track-solutions1/msi-teamhub/internal/repository"
)

// maxStructureRows bounds the current rows returned alongside a structure.
const maxStructureRows = 100

// FieldStructure describes one importable field to clients.
type FieldStructure struct {
	Name          string            `json:"name"`
	Type          domain.FieldType  `json:"type"`
	Required      bool              `json:"required"`
	Unique        bool              `json:"unique"`
	Reference     *domain.Reference `json:"foreign_key,omitempty"`
	AllowedValues []string          `json:"allowed_values,omitempty"`
	Description   string            `json:"description,omitempty"`
}

// Structure is the introspection view of a registry entry.
type Structure struct {
	Model          string           `json:"model"`
	Name           string           `json:"name"`
	Fields         []FieldStructure `json:"fields"`
	RequiredFields []string         `json:"required_fields"`
	UniqueField    string           `json:"unique_field,omitempty"`
	ExcludedFields []string         `json:"exclude_fields"`
	RowCount       int64            `json:"row_count"`
	Rows           []repository.Row `json:"rows,omitempty"`
}

// Structure describes entityKey's importable fields with the values currently
// accepted for each relation. includeRows adds up to 100 current rows.
func (s *Service) Structure(ctx context.Context, entityKey string, includeRows bool) (Structure, error) {
	schema, err := s.registry.Lookup(entityKey)
	if err != nil {
		return Structure{}, err
	}

	out := Structure{
		Model:          schema.Key,
		Name:           schema.DisplayName,
		Fields:         make([]FieldStructure, 0, len(schema.Fields)),
		RequiredFields: schema.RequiredFields(),
		UniqueField:    schema.UniqueField,
		ExcludedFields: append([]string{}, schema.ExcludedFields...),
	}
	if out.RequiredFields == nil {
		out.RequiredFields = []string{}
	}

	columns := make([]string, 0, len(schema.Fields))
	for _, field := range schema.Fields {
		values, err := s.allowedValues(ctx, field)
		if err != nil {
			return Structure{}, err
		}
		out.Fields = append(out.Fields, FieldStructure{
			Name:          field.Name,
			Type:          field.Type,
			Required:      field.Required,
			Unique:        field.Name == schema.UniqueField,
			Reference:     field.Reference,
			AllowedValues: values,
			Description:   field.Description,
		})
		if field.Type != domain.FieldTypeManyToMany {
			columns = append(columns, field.StorageColumn())
		}
	}

	out.RowCount, err = s.store.Count(ctx, schema.Table)
	if err != nil {
		return Structure{}, fmt.Errorf("failed to count %s rows: %w", schema.Key, err)
	}

	if includeRows {
		out.Rows, err = s.store.List(ctx, schema.Table, columns, maxStructureRows)
		if err != nil {
			return Structure{}, fmt.Errorf("failed to list %s rows: %w", schema.Key, err)
		}
	}

	return out, nil
}
