package validator

import (
	"fmt"
	"strings"

	"github.com/fast-track-solutions1/msi-teamhub/internal/domain"
)

var referenceCapableTypes = map[domain.FieldType]struct{}{
	domain.FieldTypeForeignKey: {},
	domain.FieldTypeManyToMany: {},
}

// ValidateSchema ensures a registry entry is internally consistent: the key and
// destination table are set, field names are unique, the unique field is
// importable, and reference and choice metadata only appear on fields whose
// type uses them.
func ValidateSchema(schema domain.EntitySchema) error {
	if strings.TrimSpace(schema.Key) == "" {
		return fmt.Errorf("schema key is required")
	}
	if strings.TrimSpace(schema.Table) == "" {
		return fmt.Errorf("schema %s: table is required", schema.Key)
	}
	if len(schema.Fields) == 0 {
		return fmt.Errorf("schema %s: at least one importable field is required", schema.Key)
	}

	if err := ValidateFields(schema.Fields); err != nil {
		return fmt.Errorf("schema %s: %w", schema.Key, err)
	}

	if schema.HasUniqueField() {
		if _, ok := schema.Field(schema.UniqueField); !ok {
			return fmt.Errorf("schema %s: unique field %s is not importable", schema.Key, schema.UniqueField)
		}
	}

	return nil
}

// ValidateFields checks each field definition on its own and for name clashes.
func ValidateFields(fields []domain.FieldSpec) error {
	seen := make(map[string]struct{}, len(fields))
	columns := make(map[string]string, len(fields))

	for _, field := range fields {
		name := strings.TrimSpace(field.Name)
		if name == "" {
			return fmt.Errorf("field name is required")
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("field %s is declared more than once", name)
		}
		seen[name] = struct{}{}

		if !field.Type.Valid() {
			return fmt.Errorf("field %s has unknown type %q", name, field.Type)
		}

		_, refCapable := referenceCapableTypes[field.Type]
		if field.Reference != nil && !refCapable {
			return fmt.Errorf("field %s cannot declare a reference because type %s does not support references", name, field.Type)
		}
		if field.Type == domain.FieldTypeForeignKey {
			if field.Reference == nil {
				return fmt.Errorf("field %s must declare its referenced entity", name)
			}
			if strings.TrimSpace(field.Reference.Table) == "" || strings.TrimSpace(field.Reference.LookupField) == "" {
				return fmt.Errorf("field %s reference needs a table and lookup field", name)
			}
		}

		if len(field.Choices) > 0 && field.Type != domain.FieldTypeChoice {
			return fmt.Errorf("field %s cannot declare choices because type %s is not a choice", name, field.Type)
		}

		column := field.StorageColumn()
		if other, clash := columns[column]; clash {
			return fmt.Errorf("fields %s and %s write the same column %s", other, name, column)
		}
		columns[column] = name
	}

	return nil
}
