package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fast-track-solutions1/msi-teamhub/internal/domain"
	"github.com/fast-track-solutions1/msi-teamhub/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func openTestDB(t *testing.T) *RecordStore {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "teamhub.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRecordStore(db)
}

func TestRecordStoreUpsertPrimitives(t *testing.T) {
	ctx := context.Background()
	store := openTestDB(t)

	societeID, err := store.Insert(ctx, "societes", map[string]any{"nom": "Acme", "actif": true})
	require.NoError(t, err)

	gradeID, err := store.Insert(ctx, "grades", map[string]any{
		"nom":        "Senior",
		"societe_id": societeID,
		"ordre":      int64(1),
	})
	require.NoError(t, err)

	found, ok, err := store.FindID(ctx, "grades", "nom", "Senior")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, gradeID, found)

	byNumber, ok, err := store.FindID(ctx, "grades", "ordre", "1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, gradeID, byNumber)

	require.NoError(t, store.Update(ctx, "grades", gradeID, map[string]any{"ordre": int64(2)}))
	rows, err := store.List(ctx, "grades", []string{"nom", "ordre"}, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "2", rows[0]["ordre"])

	exists, err := store.Exists(ctx, "grades", gradeID)
	require.NoError(t, err)
	require.True(t, exists)

	err = store.Update(ctx, "grades", gradeID+100, map[string]any{"ordre": int64(3)})
	require.True(t, errors.Is(err, repository.ErrNotFound))
}

func TestRecordStoreForeignKeyViolationFails(t *testing.T) {
	ctx := context.Background()
	store := openTestDB(t)

	_, err := store.Insert(ctx, "grades", map[string]any{"nom": "Orphan", "societe_id": int64(42)})
	require.Error(t, err)
}

func TestRecordStoreTypedValues(t *testing.T) {
	ctx := context.Background()
	store := openTestDB(t)

	societeID, err := store.Insert(ctx, "societes", map[string]any{"nom": "Acme"})
	require.NoError(t, err)

	_, err = store.Insert(ctx, "creneaux_travail", map[string]any{
		"nom":         "Matin",
		"societe_id":  societeID,
		"heure_debut": domain.TimeOfDay{Hour: 8, Minute: 30},
		"heure_fin":   domain.TimeOfDay{Hour: 12},
	})
	require.NoError(t, err)

	_, err = store.Insert(ctx, "salaries", map[string]any{
		"nom":            "Durand",
		"prenom":         "Alice",
		"matricule":      "M001",
		"genre":          "f",
		"societe_id":     societeID,
		"date_naissance": time.Date(1990, 3, 15, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	rows, err := store.List(ctx, "creneaux_travail", []string{"heure_debut", "heure_pause_debut"}, 0)
	require.NoError(t, err)
	require.Equal(t, "08:30:00", rows[0]["heure_debut"])
	require.Nil(t, rows[0]["heure_pause_debut"])

	dates, err := store.ListColumn(ctx, "salaries", "date_naissance")
	require.NoError(t, err)
	require.Equal(t, []string{"1990-03-15"}, dates)

	require.Equal(t, "12.5", storageValue(decimal.RequireFromString("12.50")))
}

func TestRecordStoreSavepointRollsBackOnlyFailingRow(t *testing.T) {
	ctx := context.Background()
	store := openTestDB(t)

	err := store.WithinTx(ctx, func(tx repository.RecordStore) error {
		require.NoError(t, tx.WithinTx(ctx, func(row repository.RecordStore) error {
			_, err := row.Insert(ctx, "types_acces", map[string]any{"nom": "Badge"})
			return err
		}))

		rowErr := tx.WithinTx(ctx, func(row repository.RecordStore) error {
			if _, err := row.Insert(ctx, "types_acces", map[string]any{"nom": "Clef"}); err != nil {
				return err
			}
			_, err := row.Insert(ctx, "types_acces", map[string]any{"nom": "Badge"})
			return err
		})
		require.Error(t, rowErr, "duplicate nom must fail")
		return nil
	})
	require.NoError(t, err)

	values, err := store.ListColumn(ctx, "types_acces", "nom")
	require.NoError(t, err)
	require.Equal(t, []string{"Badge"}, values)
}

func TestRecordStoreTransactionRollback(t *testing.T) {
	ctx := context.Background()
	store := openTestDB(t)

	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(tx repository.RecordStore) error {
		if _, err := tx.Insert(ctx, "outils_travail", map[string]any{"nom": "Scie"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	count, err := store.Count(ctx, "outils_travail")
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestImportRunRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	db, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := NewImportRunRepository(db)

	base := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)
	first, err := repo.Record(ctx, domain.ImportRun{
		EntityKey:    "grade",
		FileName:     "grades.xlsx",
		ImportedBy:   "rh@example.com",
		ImportedAt:   base,
		Status:       domain.ImportStatusPartial,
		TotalRows:    2,
		SuccessCount: 1,
		ErrorCount:   1,
		ErrorDetails: []domain.RowError{{Row: 3, Error: "required field missing: nom", Messages: []string{"required field missing: nom"}}},
	})
	require.NoError(t, err)

	second, err := repo.Record(ctx, domain.ImportRun{
		EntityKey:  "societe",
		FileName:   "societes.csv",
		ImportedAt: base.Add(500 * time.Millisecond),
		Status:     domain.ImportStatusSuccess,
	})
	require.NoError(t, err)

	recent, err := repo.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, second.ID, recent[0].ID)
	require.Equal(t, first.ID, recent[1].ID)

	got, err := repo.Get(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, "rh@example.com", got.ImportedBy)
	require.Equal(t, domain.ImportStatusPartial, got.Status)
	require.True(t, got.ImportedAt.Equal(base))
	require.Len(t, got.ErrorDetails, 1)
	require.Equal(t, 3, got.ErrorDetails[0].Row)
	require.Equal(t, []string{}, got.Warnings)

	_, err = repo.Get(ctx, uuid.New())
	require.ErrorIs(t, err, repository.ErrNotFound)
}
