package repository

import (
	"context"
	"errors"

	"github.com/fast-track-solutions1/msi-teamhub/internal/domain"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a lookup by id matches nothing.
var ErrNotFound = errors.New("not found")

// Row is one stored record keyed by column name. Values read back for display
// are rendered as text, or nil for NULL.
type Row map[string]any

// RecordStore is the generic create/update/lookup surface the import engine
// writes HR records through. Tables and columns come from the schema registry,
// never from user input.
type RecordStore interface {
	// FindID returns the id of the first row whose column equals value.
	FindID(ctx context.Context, table, column string, value any) (int64, bool, error)
	Exists(ctx context.Context, table string, id int64) (bool, error)
	Insert(ctx context.Context, table string, values map[string]any) (int64, error)
	Update(ctx context.Context, table string, id int64, values map[string]any) error
	// ListColumn returns the distinct non-null values of column, sorted.
	ListColumn(ctx context.Context, table, column string) ([]string, error)
	List(ctx context.Context, table string, columns []string, limit int) ([]Row, error)
	Count(ctx context.Context, table string) (int64, error)
	// WithinTx runs fn inside a transaction. Calling WithinTx on the store
	// handed to fn opens a nested savepoint that rolls back on its own.
	WithinTx(ctx context.Context, fn func(RecordStore) error) error
}

// ImportRunRepository persists the audit log of import runs.
type ImportRunRepository interface {
	Record(ctx context.Context, run domain.ImportRun) (domain.ImportRun, error)
	ListRecent(ctx context.Context, limit int) ([]domain.ImportRun, error)
	Get(ctx context.Context, id uuid.UUID) (domain.ImportRun, error)
}
