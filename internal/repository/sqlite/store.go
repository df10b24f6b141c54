// Package sqlite implements the record store and import audit log on an
// embedded SQLite database, for local runs without Postgres.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fast-track-solutions1/msi-teamhub/internal/domain"
	"github.com/fast-track-solutions1/msi-teamhub/internal/repository"

	"github.com/shopspring/decimal"
)

//go:embed schema.sql
var schemaSQL string

// Open opens (or creates) the database at path and applies the schema. Use
// ":memory:" for a throwaway database.
func Open(path string) (*sql.DB, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases shared and serialises
	// writers the way SQLite expects.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return db, nil
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// RecordStore implements repository.RecordStore on SQLite.
type RecordStore struct {
	db    *sql.DB
	q     queryer
	tx    *sql.Tx
	depth int
}

// NewRecordStore wraps an opened database.
func NewRecordStore(db *sql.DB) *RecordStore {
	return &RecordStore{db: db, q: db}
}

var _ repository.RecordStore = (*RecordStore)(nil)

func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (s *RecordStore) FindID(ctx context.Context, table, column string, value any) (int64, bool, error) {
	query := fmt.Sprintf(`SELECT id FROM %s WHERE CAST(%s AS TEXT) = ? ORDER BY id LIMIT 1`, quote(table), quote(column))

	var id int64
	err := s.q.QueryRowContext(ctx, query, textValue(value)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("look up %s.%s: %w", table, column, err)
	}
	return id, true, nil
}

func (s *RecordStore) Exists(ctx context.Context, table string, id int64) (bool, error) {
	var exists int
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = ?)`, quote(table))
	if err := s.q.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check %s id %d: %w", table, id, err)
	}
	return exists == 1, nil
}

func (s *RecordStore) Insert(ctx context.Context, table string, values map[string]any) (int64, error) {
	columns := sortedKeys(values)

	var query string
	args := make([]any, 0, len(columns))
	if len(columns) == 0 {
		query = fmt.Sprintf(`INSERT INTO %s DEFAULT VALUES`, quote(table))
	} else {
		quoted := make([]string, 0, len(columns))
		for _, column := range columns {
			quoted = append(quoted, quote(column))
			args = append(args, storageValue(values[column]))
		}
		query = fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
			quote(table), strings.Join(quoted, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", "))
	}

	res, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert into %s: %w", table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert into %s: %w", table, err)
	}
	return id, nil
}

func (s *RecordStore) Update(ctx context.Context, table string, id int64, values map[string]any) error {
	if len(values) == 0 {
		return nil
	}

	columns := sortedKeys(values)
	assignments := make([]string, 0, len(columns))
	args := make([]any, 0, len(columns)+1)
	for _, column := range columns {
		assignments = append(assignments, quote(column)+" = ?")
		args = append(args, storageValue(values[column]))
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = ?`, quote(table), strings.Join(assignments, ", "))
	res, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s id %d: %w", table, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update %s id %d: %w", table, id, repository.ErrNotFound)
	}
	return nil
}

func (s *RecordStore) ListColumn(ctx context.Context, table, column string) ([]string, error) {
	query := fmt.Sprintf(`SELECT DISTINCT CAST(%s AS TEXT) FROM %s WHERE %s IS NOT NULL ORDER BY 1`,
		quote(column), quote(table), quote(column))

	rows, err := s.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list %s.%s: %w", table, column, err)
	}
	defer rows.Close()

	values := []string{}
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("scan %s.%s: %w", table, column, err)
		}
		values = append(values, value)
	}
	return values, rows.Err()
}

func (s *RecordStore) List(ctx context.Context, table string, columns []string, limit int) ([]repository.Row, error) {
	if limit <= 0 {
		limit = 100
	}

	selected := append([]string{"id"}, columns...)
	exprs := make([]string, 0, len(selected))
	for _, column := range selected {
		exprs = append(exprs, fmt.Sprintf("CAST(%s AS TEXT)", quote(column)))
	}

	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY id LIMIT ?`, strings.Join(exprs, ", "), quote(table))
	rows, err := s.q.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	result := []repository.Row{}
	for rows.Next() {
		cells := make([]sql.NullString, len(selected))
		dest := make([]any, len(selected))
		for i := range cells {
			dest[i] = &cells[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", table, err)
		}
		row := make(repository.Row, len(selected))
		for i, column := range selected {
			if cells[i].Valid {
				row[column] = cells[i].String
			} else {
				row[column] = nil
			}
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func (s *RecordStore) Count(ctx context.Context, table string) (int64, error) {
	var count int64
	if err := s.q.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, quote(table))).Scan(&count); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return count, nil
}

// WithinTx opens a transaction on the root store and a SAVEPOINT when called
// on a store that is already inside one.
func (s *RecordStore) WithinTx(ctx context.Context, fn func(repository.RecordStore) error) error {
	if s.tx != nil {
		return s.savepoint(ctx, fn)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if fnErr := fn(&RecordStore{db: s.db, q: tx, tx: tx, depth: 1}); fnErr != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %w, rollback error: %v", fnErr, rbErr)
		}
		return fnErr
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *RecordStore) savepoint(ctx context.Context, fn func(repository.RecordStore) error) error {
	name := fmt.Sprintf("sp_%d", s.depth)
	if _, err := s.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("savepoint: %w", err)
	}

	fnErr := fn(&RecordStore{db: s.db, q: s.tx, tx: s.tx, depth: s.depth + 1})
	if fnErr != nil {
		if _, err := s.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); err != nil {
			return fmt.Errorf("rollback to savepoint: %w (after %v)", err, fnErr)
		}
	}
	if _, err := s.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil && fnErr == nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return fnErr
}

func sortedKeys(values map[string]any) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func textValue(value any) string {
	if value == nil {
		return ""
	}
	if s, ok := storageValue(value).(string); ok {
		return s
	}
	return fmt.Sprint(storageValue(value))
}

// storageValue maps coerced import values onto SQLite's storage classes.
func storageValue(value any) any {
	switch v := value.(type) {
	case domain.TimeOfDay:
		return v.String()
	case time.Time:
		return v.Format("2006-01-02")
	case decimal.Decimal:
		return v.String()
	default:
		return v
	}
}
