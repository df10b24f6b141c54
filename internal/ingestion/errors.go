package ingestion

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fast-track-solutions1/msi-teamhub/internal/domain"
	"github.com/fast-track-solutions1/msi-teamhub/internal/registry"
)

var (
	// ErrUnsupportedFormat is returned when an uploaded file is not supported.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrMissingFile is returned when an upload carries no file.
	ErrMissingFile = errors.New("file is required")
	// ErrEmptyFile is returned when a file has a header but no data rows.
	ErrEmptyFile = errors.New("file contains no data rows")
	// ErrUnreadableFile is returned when the spreadsheet cannot be parsed.
	ErrUnreadableFile = errors.New("unreadable file")
	// ErrMissingColumns is the sentinel behind MissingColumnsError.
	ErrMissingColumns = errors.New("missing required columns")
)

// MissingColumnsError lists importable fields absent from the header row.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingColumns, strings.Join(e.Columns, ", "))
}

func (e *MissingColumnsError) Unwrap() error {
	return ErrMissingColumns
}

// ConversionError reports a cell that does not parse as its declared type.
type ConversionError struct {
	Field    string
	Value    string
	Expected string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("%s: cannot convert %q, expected %s", e.Field, e.Value, e.Expected)
}

// UnresolvedReferenceError reports a foreign key value matching no related row.
type UnresolvedReferenceError struct {
	Field       string
	Entity      string
	LookupField string
	Value       string
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("%s: no %s with %s = %q", e.Field, e.Entity, e.LookupField, e.Value)
}

// UnsupportedFieldError is returned for field types the importer cannot write.
type UnsupportedFieldError struct {
	Field string
	Type  domain.FieldType
}

func (e *UnsupportedFieldError) Error() string {
	return fmt.Sprintf("%s: %s fields cannot be imported", e.Field, e.Type)
}

// PersistenceError wraps a store failure that happened while writing a row.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func requiredFieldMessage(field string) string {
	return "required field missing: " + field
}

// IsClientError reports whether err stems from a malformed request rather than
// a server fault.
func IsClientError(err error) bool {
	return errors.Is(err, registry.ErrUnknownEntityType) ||
		errors.Is(err, ErrUnsupportedFormat) ||
		errors.Is(err, ErrMissingFile) ||
		errors.Is(err, ErrEmptyFile) ||
		errors.Is(err, ErrUnreadableFile) ||
		errors.Is(err, ErrMissingColumns)
}
