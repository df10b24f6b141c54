package domain

import (
	"strings"
)

// FieldType is the semantic type tag of an importable field.
type FieldType string

const (
	FieldTypeString     FieldType = "string"
	FieldTypeInteger    FieldType = "integer"
	FieldTypeBoolean    FieldType = "boolean"
	FieldTypeTime       FieldType = "time"
	FieldTypeDate       FieldType = "date"
	FieldTypeChoice     FieldType = "choice"
	FieldTypeDecimal    FieldType = "decimal"
	FieldTypeForeignKey FieldType = "foreign_key"
	// FieldTypeManyToMany is declarable but never importable; coercion always
	// rejects it.
	FieldTypeManyToMany FieldType = "many_to_many"
)

// Valid reports whether the type tag is one the coercion engine knows.
func (t FieldType) Valid() bool {
	switch t {
	case FieldTypeString, FieldTypeInteger, FieldTypeBoolean, FieldTypeTime,
		FieldTypeDate, FieldTypeChoice, FieldTypeDecimal, FieldTypeForeignKey,
		FieldTypeManyToMany:
		return true
	}
	return false
}

// Reference describes the related entity a foreign-key field points to and the
// natural-key column used to find it.
type Reference struct {
	Entity      string `json:"entity"`
	Table       string `json:"table"`
	LookupField string `json:"lookup_field"`
}

// FieldSpec is one importable column of an entity schema.
type FieldSpec struct {
	Name        string     `json:"name"`
	Column      string     `json:"column"`
	Type        FieldType  `json:"type"`
	Required    bool       `json:"required"`
	Reference   *Reference `json:"reference,omitempty"`
	Choices     []string   `json:"choices,omitempty"`
	Description string     `json:"description,omitempty"`
}

// IsReference reports whether the field resolves to another entity.
func (f FieldSpec) IsReference() bool {
	return f.Type == FieldTypeForeignKey || f.Type == FieldTypeManyToMany
}

// StorageColumn returns the column written for this field. Foreign keys default
// to "<name>_id".
func (f FieldSpec) StorageColumn() string {
	if strings.TrimSpace(f.Column) != "" {
		return f.Column
	}
	if f.Type == FieldTypeForeignKey {
		return f.Name + "_id"
	}
	return f.Name
}

// EntitySchema is a registry entry: everything the import engine needs to know
// about one importable entity type.
type EntitySchema struct {
	Key            string      `json:"key"`
	DisplayName    string      `json:"name"`
	Table          string      `json:"table"`
	Fields         []FieldSpec `json:"fields"`
	UniqueField    string      `json:"unique_field,omitempty"`
	ExcludedFields []string    `json:"exclude_fields,omitempty"`
}

// EntitySummary is the public listing form of a registry entry.
type EntitySummary struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Field returns the field definition with the given name.
func (s EntitySchema) Field(name string) (FieldSpec, bool) {
	for _, field := range s.Fields {
		if field.Name == name {
			return field, true
		}
	}
	return FieldSpec{}, false
}

// ImportableFields returns field names in declaration order.
func (s EntitySchema) ImportableFields() []string {
	names := make([]string, 0, len(s.Fields))
	for _, field := range s.Fields {
		names = append(names, field.Name)
	}
	return names
}

// RequiredFields returns the subset of importable fields that must be non-empty.
func (s EntitySchema) RequiredFields() []string {
	var names []string
	for _, field := range s.Fields {
		if field.Required {
			names = append(names, field.Name)
		}
	}
	return names
}

// FieldTypes maps field names to their type tag.
func (s EntitySchema) FieldTypes() map[string]FieldType {
	types := make(map[string]FieldType, len(s.Fields))
	for _, field := range s.Fields {
		types[field.Name] = field.Type
	}
	return types
}

// ForeignKeyFields maps foreign-key field names to their reference.
func (s EntitySchema) ForeignKeyFields() map[string]Reference {
	refs := make(map[string]Reference)
	for _, field := range s.Fields {
		if field.Reference != nil {
			refs[field.Name] = *field.Reference
		}
	}
	return refs
}

// ChoiceValues maps choice fields to their allowed values.
func (s EntitySchema) ChoiceValues() map[string][]string {
	choices := make(map[string][]string)
	for _, field := range s.Fields {
		if len(field.Choices) > 0 {
			choices[field.Name] = append([]string(nil), field.Choices...)
		}
	}
	return choices
}

// HasUniqueField reports whether imports upsert on a natural key.
func (s EntitySchema) HasUniqueField() bool {
	return strings.TrimSpace(s.UniqueField) != ""
}

// Summary returns the listing form of the schema.
func (s EntitySchema) Summary() EntitySummary {
	return EntitySummary{Key: s.Key, Name: s.DisplayName}
}
