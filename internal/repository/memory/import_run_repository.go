package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/fast-track-solutions1/msi-teamhub/internal/domain"
	"github.com/fast-track-solutions1/msi-teamhub/internal/repository"

	"github.com/google/uuid"
)

// ImportRunRepository keeps the audit log in memory.
type ImportRunRepository struct {
	mu   sync.RWMutex
	runs []domain.ImportRun
}

// NewImportRunRepository returns an empty audit log.
func NewImportRunRepository() *ImportRunRepository {
	return &ImportRunRepository{}
}

var _ repository.ImportRunRepository = (*ImportRunRepository)(nil)

func (r *ImportRunRepository) Record(_ context.Context, run domain.ImportRun) (domain.ImportRun, error) {
	repository.PrepareRun(&run)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
	return run, nil
}

func (r *ImportRunRepository) ListRecent(_ context.Context, limit int) ([]domain.ImportRun, error) {
	limit = repository.ClampHistoryLimit(limit)

	r.mu.RLock()
	sorted := append([]domain.ImportRun(nil), r.runs...)
	r.mu.RUnlock()

	// Stable on insertion order so runs sharing a timestamp still list newest first.
	for i, j := 0, len(sorted)-1; i < j; i, j = i+1, j-1 {
		sorted[i], sorted[j] = sorted[j], sorted[i]
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ImportedAt.After(sorted[j].ImportedAt)
	})

	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted, nil
}

func (r *ImportRunRepository) Get(_ context.Context, id uuid.UUID) (domain.ImportRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, run := range r.runs {
		if run.ID == id {
			return run, nil
		}
	}
	return domain.ImportRun{}, fmt.Errorf("import run %s: %w", id, repository.ErrNotFound)
}
