package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fast-track-solutions1/msi-teamhub/internal/domain"
	"github.com/fast-track-solutions1/msi-teamhub/internal/repository"

	"github.com/google/uuid"
)

// ImportRunRepository stores the audit log in the import_runs table.
type ImportRunRepository struct {
	db *sql.DB
}

// NewImportRunRepository wraps an opened database.
func NewImportRunRepository(db *sql.DB) *ImportRunRepository {
	return &ImportRunRepository{db: db}
}

var _ repository.ImportRunRepository = (*ImportRunRepository)(nil)

// Fixed-width so text ordering matches time ordering.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

const importRunColumns = `id, entity_key, file_name, imported_by, imported_at, updated_at, status, total_rows,
	success_count, error_count, inserted_count, updated_count, skipped_count, error_details, warnings`

func (r *ImportRunRepository) Record(ctx context.Context, run domain.ImportRun) (domain.ImportRun, error) {
	repository.PrepareRun(&run)

	details, err := json.Marshal(run.ErrorDetails)
	if err != nil {
		return domain.ImportRun{}, fmt.Errorf("marshal error details: %w", err)
	}
	warnings, err := json.Marshal(run.Warnings)
	if err != nil {
		return domain.ImportRun{}, fmt.Errorf("marshal warnings: %w", err)
	}

	var importedBy sql.NullString
	if run.ImportedBy != "" {
		importedBy = sql.NullString{String: run.ImportedBy, Valid: true}
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO import_runs (`+importRunColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID.String(),
		run.EntityKey,
		run.FileName,
		importedBy,
		run.ImportedAt.UTC().Format(timestampLayout),
		run.UpdatedAt.UTC().Format(timestampLayout),
		string(run.Status),
		run.TotalRows,
		run.SuccessCount,
		run.ErrorCount,
		run.InsertedCount,
		run.UpdatedCount,
		run.SkippedCount,
		string(details),
		string(warnings),
	)
	if err != nil {
		return domain.ImportRun{}, fmt.Errorf("record import run: %w", err)
	}
	return run, nil
}

func (r *ImportRunRepository) ListRecent(ctx context.Context, limit int) ([]domain.ImportRun, error) {
	limit = repository.ClampHistoryLimit(limit)

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+importRunColumns+` FROM import_runs ORDER BY imported_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list import runs: %w", err)
	}
	defer rows.Close()

	runs := []domain.ImportRun{}
	for rows.Next() {
		run, err := scanImportRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (r *ImportRunRepository) Get(ctx context.Context, id uuid.UUID) (domain.ImportRun, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+importRunColumns+` FROM import_runs WHERE id = ?`, id.String())
	run, err := scanImportRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ImportRun{}, fmt.Errorf("import run %s: %w", id, repository.ErrNotFound)
	}
	return run, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanImportRun(row scanner) (domain.ImportRun, error) {
	var (
		run        domain.ImportRun
		id         string
		importedBy sql.NullString
		importedAt string
		updatedAt  string
		status     string
		details    string
		warnings   string
	)
	err := row.Scan(
		&id,
		&run.EntityKey,
		&run.FileName,
		&importedBy,
		&importedAt,
		&updatedAt,
		&status,
		&run.TotalRows,
		&run.SuccessCount,
		&run.ErrorCount,
		&run.InsertedCount,
		&run.UpdatedCount,
		&run.SkippedCount,
		&details,
		&warnings,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ImportRun{}, err
	}
	if err != nil {
		return domain.ImportRun{}, fmt.Errorf("scan import run: %w", err)
	}

	if run.ID, err = uuid.Parse(id); err != nil {
		return domain.ImportRun{}, fmt.Errorf("parse import run id: %w", err)
	}
	run.Status = domain.ImportStatus(status)
	run.ImportedBy = importedBy.String
	if run.ImportedAt, err = time.Parse(timestampLayout, importedAt); err != nil {
		return domain.ImportRun{}, fmt.Errorf("parse imported_at: %w", err)
	}
	if run.UpdatedAt, err = time.Parse(timestampLayout, updatedAt); err != nil {
		return domain.ImportRun{}, fmt.Errorf("parse updated_at: %w", err)
	}
	if err := json.Unmarshal([]byte(details), &run.ErrorDetails); err != nil {
		return domain.ImportRun{}, fmt.Errorf("decode error details: %w", err)
	}
	if err := json.Unmarshal([]byte(warnings), &run.Warnings); err != nil {
		return domain.ImportRun{}, fmt.Errorf("decode warnings: %w", err)
	}
	return run, nil
}
