// Package registry holds the immutable table of importable entity types.
package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fast-track-solutions1/msi-teamhub/internal/domain"
	"github.com/fast-track-solutions1/msi-teamhub/internal/schema/validator"
)

// ErrUnknownEntityType is returned when a key has no registry entry.
var ErrUnknownEntityType = errors.New("unknown entity type")

// Registry maps entity keys to their import schema. It is built once and never
// mutated afterwards, so it is safe for concurrent readers.
type Registry struct {
	order   []string
	entries map[string]domain.EntitySchema
}

// New validates every entry and builds a registry preserving declaration order.
func New(entries ...domain.EntitySchema) (*Registry, error) {
	r := &Registry{
		order:   make([]string, 0, len(entries)),
		entries: make(map[string]domain.EntitySchema, len(entries)),
	}

	for _, entry := range entries {
		if err := validator.ValidateSchema(entry); err != nil {
			return nil, fmt.Errorf("invalid registry entry: %w", err)
		}
		if _, exists := r.entries[entry.Key]; exists {
			return nil, fmt.Errorf("duplicate registry key %s", entry.Key)
		}
		r.order = append(r.order, entry.Key)
		r.entries[entry.Key] = cloneSchema(entry)
	}

	for _, key := range r.order {
		for _, field := range r.entries[key].Fields {
			if field.Reference == nil || field.Reference.Entity == "" {
				continue
			}
			if _, ok := r.entries[field.Reference.Entity]; !ok {
				return nil, fmt.Errorf("registry entry %s: field %s references unregistered entity %s", key, field.Name, field.Reference.Entity)
			}
		}
	}

	return r, nil
}

// MustNew is New for static tables; it panics on an invalid entry.
func MustNew(entries ...domain.EntitySchema) *Registry {
	r, err := New(entries...)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the schema for key.
func (r *Registry) Lookup(key string) (domain.EntitySchema, error) {
	key = strings.TrimSpace(key)
	entry, ok := r.entries[key]
	if !ok {
		return domain.EntitySchema{}, fmt.Errorf("%w: %s", ErrUnknownEntityType, key)
	}
	return cloneSchema(entry), nil
}

// List returns key and display name for every entry in declaration order.
func (r *Registry) List() []domain.EntitySummary {
	summaries := make([]domain.EntitySummary, 0, len(r.order))
	for _, key := range r.order {
		summaries = append(summaries, r.entries[key].Summary())
	}
	return summaries
}

// Keys returns registered keys in declaration order.
func (r *Registry) Keys() []string {
	return append([]string(nil), r.order...)
}

func cloneSchema(schema domain.EntitySchema) domain.EntitySchema {
	clone := schema
	clone.Fields = make([]domain.FieldSpec, len(schema.Fields))
	for i, field := range schema.Fields {
		if field.Reference != nil {
			ref := *field.Reference
			field.Reference = &ref
		}
		field.Choices = append([]string(nil), field.Choices...)
		clone.Fields[i] = field
	}
	clone.ExcludedFields = append([]string(nil), schema.ExcludedFields...)
	return clone
}
