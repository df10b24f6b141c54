package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fast-track-solutions1/msi-teamhub/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// pgExecutor is satisfied by both *pgxpool.Pool and pgx.Tx. Begin on a pgx.Tx
// opens a savepoint.
type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type recordStore struct {
	db pgExecutor
}

// NewRecordStore wires a RecordStore backed by pgxpool.
func NewRecordStore(pool *pgxpool.Pool) RecordStore {
	if pool == nil {
		return &recordStore{}
	}
	return &recordStore{db: pool}
}

type argBuilder struct {
	args []any
}

func (b *argBuilder) add(value any) string {
	b.args = append(b.args, value)
	return fmt.Sprintf("$%d", len(b.args))
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func (s *recordStore) FindID(ctx context.Context, table, column string, value any) (int64, bool, error) {
	if s.db == nil {
		return 0, false, fmt.Errorf("record store not initialized")
	}

	b := &argBuilder{}
	query := fmt.Sprintf(`SELECT id FROM %s WHERE %s::text = %s ORDER BY id LIMIT 1`,
		ident(table), ident(column), b.add(lookupText(value)))

	var id int64
	err := s.db.QueryRow(ctx, query, b.args...).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to look up %s.%s: %w", table, column, err)
	}
	return id, true, nil
}

func (s *recordStore) Exists(ctx context.Context, table string, id int64) (bool, error) {
	if s.db == nil {
		return false, fmt.Errorf("record store not initialized")
	}

	var exists bool
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, ident(table))
	if err := s.db.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check %s id %d: %w", table, id, err)
	}
	return exists, nil
}

func (s *recordStore) Insert(ctx context.Context, table string, values map[string]any) (int64, error) {
	if s.db == nil {
		return 0, fmt.Errorf("record store not initialized")
	}

	columns := sortedColumns(values)
	b := &argBuilder{}
	quoted := make([]string, 0, len(columns))
	placeholders := make([]string, 0, len(columns))
	for _, column := range columns {
		arg, err := pgValue(values[column])
		if err != nil {
			return 0, fmt.Errorf("column %s: %w", column, err)
		}
		quoted = append(quoted, ident(column))
		placeholders = append(placeholders, b.add(arg))
	}

	var query string
	if len(columns) == 0 {
		query = fmt.Sprintf(`INSERT INTO %s DEFAULT VALUES RETURNING id`, ident(table))
	} else {
		query = fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) RETURNING id`,
			ident(table), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
	}

	var id int64
	if err := s.db.QueryRow(ctx, query, b.args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	return id, nil
}

func (s *recordStore) Update(ctx context.Context, table string, id int64, values map[string]any) error {
	if s.db == nil {
		return fmt.Errorf("record store not initialized")
	}
	if len(values) == 0 {
		return nil
	}

	b := &argBuilder{}
	assignments := make([]string, 0, len(values))
	for _, column := range sortedColumns(values) {
		arg, err := pgValue(values[column])
		if err != nil {
			return fmt.Errorf("column %s: %w", column, err)
		}
		assignments = append(assignments, fmt.Sprintf("%s = %s", ident(column), b.add(arg)))
	}

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = %s`,
		ident(table), strings.Join(assignments, ", "), b.add(id))

	tag, err := s.db.Exec(ctx, query, b.args...)
	if err != nil {
		return fmt.Errorf("failed to update %s id %d: %w", table, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update %s id %d: %w", table, id, ErrNotFound)
	}
	return nil
}

func (s *recordStore) ListColumn(ctx context.Context, table, column string) ([]string, error) {
	if s.db == nil {
		return nil, fmt.Errorf("record store not initialized")
	}

	query := fmt.Sprintf(`SELECT DISTINCT %s::text FROM %s WHERE %s IS NOT NULL ORDER BY 1`,
		ident(column), ident(table), ident(column))

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s.%s: %w", table, column, err)
	}
	defer rows.Close()

	values := []string{}
	for rows.Next() {
		var value string
		if scanErr := rows.Scan(&value); scanErr != nil {
			return nil, fmt.Errorf("failed to scan %s.%s: %w", table, column, scanErr)
		}
		values = append(values, value)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate %s.%s: %w", table, column, rowsErr)
	}
	return values, nil
}

func (s *recordStore) List(ctx context.Context, table string, columns []string, limit int) ([]Row, error) {
	if s.db == nil {
		return nil, fmt.Errorf("record store not initialized")
	}
	if limit <= 0 {
		limit = 100
	}

	selected := append([]string{"id"}, columns...)
	exprs := make([]string, 0, len(selected))
	for _, column := range selected {
		exprs = append(exprs, fmt.Sprintf("%s::text", ident(column)))
	}

	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY id LIMIT $1`, strings.Join(exprs, ", "), ident(table))
	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", table, err)
	}
	defer rows.Close()

	result := []Row{}
	for rows.Next() {
		cells := make([]pgtype.Text, len(selected))
		dest := make([]any, len(selected))
		for i := range cells {
			dest[i] = &cells[i]
		}
		if scanErr := rows.Scan(dest...); scanErr != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, scanErr)
		}

		row := make(Row, len(selected))
		for i, column := range selected {
			if cells[i].Valid {
				row[column] = cells[i].String
			} else {
				row[column] = nil
			}
		}
		result = append(result, row)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate %s rows: %w", table, rowsErr)
	}
	return result, nil
}

func (s *recordStore) Count(ctx context.Context, table string) (int64, error) {
	if s.db == nil {
		return 0, fmt.Errorf("record store not initialized")
	}

	var count int64
	if err := s.db.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, ident(table))).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return count, nil
}

func (s *recordStore) WithinTx(ctx context.Context, fn func(RecordStore) error) error {
	if s.db == nil {
		return fmt.Errorf("record store not initialized")
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if fnErr := fn(&recordStore{db: tx}); fnErr != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("transaction error: %w, rollback error: %v", fnErr, rbErr)
		}
		return fnErr
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func sortedColumns(values map[string]any) []string {
	columns := make([]string, 0, len(values))
	for column := range values {
		columns = append(columns, column)
	}
	sort.Strings(columns)
	return columns
}

func lookupText(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// pgValue converts coerced import values into parameters pgx can encode for
// the matching column types.
func pgValue(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case domain.TimeOfDay:
		return pgtype.Time{Microseconds: v.Microseconds(), Valid: true}, nil
	case time.Time:
		return pgtype.Date{Time: v, Valid: true}, nil
	case decimal.Decimal:
		var numeric pgtype.Numeric
		if err := numeric.Scan(v.String()); err != nil {
			return nil, fmt.Errorf("invalid decimal %s: %w", v.String(), err)
		}
		return numeric, nil
	default:
		return v, nil
	}
}
