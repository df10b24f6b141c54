package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fast-track-solutions1/msi-teamhub/internal/domain"
	"github.com/fast-track-solutions1/msi-teamhub/internal/repository"

	"github.com/google/uuid"
)

func TestRecordStoreInsertFindUpdate(t *testing.T) {
	ctx := context.Background()
	store := NewRecordStore()

	id, err := store.Insert(ctx, "societes", map[string]any{"nom": "ACME", "actif": true})
	require.NoError(t, err)
	require.Equal(t, int64(1), id)

	found, ok, err := store.FindID(ctx, "societes", "nom", "ACME")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, id, found)

	_, ok, err = store.FindID(ctx, "societes", "nom", "acme")
	require.NoError(t, err)
	require.False(t, ok, "lookups are exact")

	require.NoError(t, store.Update(ctx, "societes", id, map[string]any{"actif": false}))
	row, ok := store.Row("societes", id)
	require.True(t, ok)
	require.Equal(t, false, row["actif"])
	require.Equal(t, "ACME", row["nom"])

	err = store.Update(ctx, "societes", 99, map[string]any{"actif": false})
	require.True(t, errors.Is(err, repository.ErrNotFound))
}

func TestRecordStoreListColumnAndList(t *testing.T) {
	ctx := context.Background()
	store := NewRecordStore()

	for _, name := range []string{"Beta", "Alpha", "Beta"} {
		_, err := store.Insert(ctx, "grades", map[string]any{"nom": name, "ordre": int64(1)})
		require.NoError(t, err)
	}
	_, err := store.Insert(ctx, "grades", map[string]any{"nom": nil})
	require.NoError(t, err)

	values, err := store.ListColumn(ctx, "grades", "nom")
	require.NoError(t, err)
	require.Equal(t, []string{"Alpha", "Beta"}, values)

	rows, err := store.List(ctx, "grades", []string{"nom", "ordre"}, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "1", rows[0]["id"])
	require.Equal(t, "Beta", rows[0]["nom"])
	require.Equal(t, "1", rows[0]["ordre"])

	count, err := store.Count(ctx, "grades")
	require.NoError(t, err)
	require.Equal(t, int64(4), count)
}

func TestRecordStoreTransactionRollback(t *testing.T) {
	ctx := context.Background()
	store := NewRecordStore()

	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(tx repository.RecordStore) error {
		if _, err := tx.Insert(ctx, "grades", map[string]any{"nom": "A"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	count, err := store.Count(ctx, "grades")
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestRecordStoreNestedSavepointIsolatesFailure(t *testing.T) {
	ctx := context.Background()
	store := NewRecordStore()

	err := store.WithinTx(ctx, func(tx repository.RecordStore) error {
		require.NoError(t, tx.WithinTx(ctx, func(inner repository.RecordStore) error {
			_, err := inner.Insert(ctx, "grades", map[string]any{"nom": "kept"})
			return err
		}))

		nestedErr := tx.WithinTx(ctx, func(inner repository.RecordStore) error {
			if _, err := inner.Insert(ctx, "grades", map[string]any{"nom": "dropped"}); err != nil {
				return err
			}
			return errors.New("row failed")
		})
		require.Error(t, nestedErr)
		return nil
	})
	require.NoError(t, err)

	values, err := store.ListColumn(ctx, "grades", "nom")
	require.NoError(t, err)
	require.Equal(t, []string{"kept"}, values)
}

func TestRecordStoreRendersTypedValues(t *testing.T) {
	ctx := context.Background()
	store := NewRecordStore()

	_, err := store.Insert(ctx, "creneaux_travail", map[string]any{
		"heure_debut": domain.TimeOfDay{Hour: 9},
		"date":        time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	rows, err := store.List(ctx, "creneaux_travail", []string{"heure_debut", "date"}, 0)
	require.NoError(t, err)
	require.Equal(t, "09:00:00", rows[0]["heure_debut"])
	require.Equal(t, "2024-01-15", rows[0]["date"])
}

func TestImportRunRepositoryHistory(t *testing.T) {
	ctx := context.Background()
	repo := NewImportRunRepository()

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var last domain.ImportRun
	for i := 0; i < 55; i++ {
		run, err := repo.Record(ctx, domain.ImportRun{
			EntityKey:  "grade",
			FileName:   "grades.xlsx",
			ImportedAt: base.Add(time.Duration(i) * time.Minute),
			Status:     domain.ImportStatusSuccess,
		})
		require.NoError(t, err)
		require.NotEqual(t, uuid.Nil, run.ID)
		last = run
	}

	recent, err := repo.ListRecent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recent, repository.MaxHistoryLimit)
	require.Equal(t, last.ID, recent[0].ID)
	require.True(t, recent[0].ImportedAt.After(recent[1].ImportedAt))

	limited, err := repo.ListRecent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, limited, 3)

	got, err := repo.Get(ctx, last.ID)
	require.NoError(t, err)
	require.Equal(t, "grade", got.EntityKey)
	require.NotNil(t, got.ErrorDetails)

	_, err = repo.Get(ctx, uuid.New())
	require.ErrorIs(t, err, repository.ErrNotFound)
}
