package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fast-track-solutions1/msi-teamhub/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type importRunRepository struct {
	pool *pgxpool.Pool
}

// NewImportRunRepository wires a repository backed by pgxpool.
func NewImportRunRepository(pool *pgxpool.Pool) ImportRunRepository {
	return &importRunRepository{pool: pool}
}

const importRunColumns = `id, entity_key, file_name, imported_by, imported_at, updated_at, status, total_rows,
	success_count, error_count, inserted_count, updated_count, skipped_count, error_details, warnings`

func (r *importRunRepository) Record(ctx context.Context, run domain.ImportRun) (domain.ImportRun, error) {
	if r.pool == nil {
		return domain.ImportRun{}, fmt.Errorf("import run repository not initialized")
	}

	PrepareRun(&run)

	var importedBy any
	if run.ImportedBy != "" {
		importedBy = run.ImportedBy
	}

	_, err := r.pool.Exec(
		ctx,
		`INSERT INTO import_runs (`+importRunColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		run.ID,
		run.EntityKey,
		run.FileName,
		importedBy,
		run.ImportedAt,
		run.UpdatedAt,
		string(run.Status),
		run.TotalRows,
		run.SuccessCount,
		run.ErrorCount,
		run.InsertedCount,
		run.UpdatedCount,
		run.SkippedCount,
		run.ErrorDetails,
		run.Warnings,
	)
	if err != nil {
		return domain.ImportRun{}, fmt.Errorf("failed to record import run: %w", err)
	}

	return run, nil
}

func (r *importRunRepository) ListRecent(ctx context.Context, limit int) ([]domain.ImportRun, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("import run repository not initialized")
	}

	limit = ClampHistoryLimit(limit)

	rows, err := r.pool.Query(
		ctx,
		`SELECT `+importRunColumns+`
		 FROM import_runs
		 ORDER BY imported_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list import runs: %w", err)
	}
	defer rows.Close()

	runs := []domain.ImportRun{}
	for rows.Next() {
		run, scanErr := scanImportRun(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		runs = append(runs, run)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate import runs: %w", rowsErr)
	}

	return runs, nil
}

func (r *importRunRepository) Get(ctx context.Context, id uuid.UUID) (domain.ImportRun, error) {
	if r.pool == nil {
		return domain.ImportRun{}, fmt.Errorf("import run repository not initialized")
	}

	row := r.pool.QueryRow(ctx, `SELECT `+importRunColumns+` FROM import_runs WHERE id = $1`, id)
	run, err := scanImportRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ImportRun{}, fmt.Errorf("import run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return domain.ImportRun{}, err
	}
	return run, nil
}

func scanImportRun(row pgx.Row) (domain.ImportRun, error) {
	var (
		run        domain.ImportRun
		importedBy pgtype.Text
		importedAt pgtype.Timestamptz
		updatedAt  pgtype.Timestamptz
		status     string
	)
	err := row.Scan(
		&run.ID,
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
		&run.ErrorDetails,
		&run.Warnings,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ImportRun{}, err
	}
	if err != nil {
		return domain.ImportRun{}, fmt.Errorf("failed to scan import run: %w", err)
	}

	run.Status = domain.ImportStatus(status)
	if importedBy.Valid {
		run.ImportedBy = importedBy.String
	}
	if importedAt.Valid {
		run.ImportedAt = importedAt.Time
	}
	if updatedAt.Valid {
		run.UpdatedAt = updatedAt.Time
	}
	if run.ErrorDetails == nil {
		run.ErrorDetails = []domain.RowError{}
	}
	if run.Warnings == nil {
		run.Warnings = []string{}
	}
	return run, nil
}

// MaxHistoryLimit caps how many runs a history listing returns.
const MaxHistoryLimit = 50

// ClampHistoryLimit maps non-positive or oversized limits onto the cap.
func ClampHistoryLimit(limit int) int {
	if limit <= 0 || limit > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return limit
}

// PrepareRun fills the identity, timestamp and empty collections of a run
// before it is stored.
func PrepareRun(run *domain.ImportRun) {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.ImportedAt.IsZero() {
		run.ImportedAt = time.Now().UTC()
	}
	if run.UpdatedAt.IsZero() {
		run.UpdatedAt = run.ImportedAt
	}
	if run.ErrorDetails == nil {
		run.ErrorDetails = []domain.RowError{}
	}
	if run.Warnings == nil {
		run.Warnings = []string{}
	}
}
