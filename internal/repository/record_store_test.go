package repository

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/fast-track-solutions1/msi-teamhub/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

func TestPgValueTimeOfDay(t *testing.T) {
	got, err := pgValue(domain.TimeOfDay{Hour: 8, Minute: 30, Second: 15})
	if err != nil {
		t.Fatalf("pgValue returned error: %v", err)
	}
	value, ok := got.(pgtype.Time)
	if !ok {
		t.Fatalf("expected pgtype.Time, got %T", got)
	}
	want := int64(8*3600+30*60+15) * 1_000_000
	if !value.Valid || value.Microseconds != want {
		t.Fatalf("expected %d microseconds, got %+v", want, value)
	}
}

func TestPgValueDate(t *testing.T) {
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	got, err := pgValue(day)
	if err != nil {
		t.Fatalf("pgValue returned error: %v", err)
	}
	value, ok := got.(pgtype.Date)
	if !ok {
		t.Fatalf("expected pgtype.Date, got %T", got)
	}
	if !value.Valid || !value.Time.Equal(day) {
		t.Fatalf("expected %s, got %+v", day, value)
	}
}

func TestPgValueDecimal(t *testing.T) {
	got, err := pgValue(decimal.RequireFromString("12.50"))
	if err != nil {
		t.Fatalf("pgValue returned error: %v", err)
	}
	value, ok := got.(pgtype.Numeric)
	if !ok {
		t.Fatalf("expected pgtype.Numeric, got %T", got)
	}
	f, err := value.Float64Value()
	if err != nil {
		t.Fatalf("Float64Value returned error: %v", err)
	}
	if !f.Valid || f.Float64 != 12.5 {
		t.Fatalf("expected 12.5, got %+v", f)
	}
}

func TestPgValuePassThrough(t *testing.T) {
	got, err := pgValue(nil)
	if err != nil || got != nil {
		t.Fatalf("expected nil, got %v (%v)", got, err)
	}
	for _, value := range []any{"Acme", int64(3), true} {
		got, err := pgValue(value)
		if err != nil {
			t.Fatalf("pgValue(%v) returned error: %v", value, err)
		}
		if got != value {
			t.Fatalf("expected %v unchanged, got %v", value, got)
		}
	}
}

func TestLookupText(t *testing.T) {
	tests := []struct {
		value any
		want  string
	}{
		{value: "M001", want: "M001"},
		{value: nil, want: ""},
		{value: int64(42), want: "42"},
		{value: true, want: "true"},
	}
	for _, tt := range tests {
		if got := lookupText(tt.value); got != tt.want {
			t.Fatalf("lookupText(%v) = %q, want %q", tt.value, got, tt.want)
		}
	}
}

func TestSortedColumns(t *testing.T) {
	got := sortedColumns(map[string]any{"nom": "A", "actif": true, "societe_id": int64(1)})
	want := []string{"actif", "nom", "societe_id"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if got := sortedColumns(nil); len(got) != 0 {
		t.Fatalf("expected no columns, got %v", got)
	}
}

func TestClampHistoryLimit(t *testing.T) {
	tests := []struct {
		limit int
		want  int
	}{
		{limit: 0, want: MaxHistoryLimit},
		{limit: -3, want: MaxHistoryLimit},
		{limit: 51, want: MaxHistoryLimit},
		{limit: 50, want: 50},
		{limit: 10, want: 10},
	}
	for _, tt := range tests {
		if got := ClampHistoryLimit(tt.limit); got != tt.want {
			t.Fatalf("ClampHistoryLimit(%d) = %d, want %d", tt.limit, got, tt.want)
		}
	}
}

func TestPrepareRunFillsDefaults(t *testing.T) {
	run := domain.ImportRun{EntityKey: "grade"}
	PrepareRun(&run)

	if run.ID == uuid.Nil {
		t.Fatal("expected an id to be assigned")
	}
	if run.ImportedAt.IsZero() || run.ImportedAt.Location() != time.UTC {
		t.Fatalf("expected a UTC import time, got %v", run.ImportedAt)
	}
	if !run.UpdatedAt.Equal(run.ImportedAt) {
		t.Fatalf("expected updated_at %v, got %v", run.ImportedAt, run.UpdatedAt)
	}
	if run.ErrorDetails == nil || run.Warnings == nil {
		t.Fatal("expected empty, non-nil error details and warnings")
	}
}

func TestPrepareRunKeepsExistingValues(t *testing.T) {
	id := uuid.New()
	at := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	run := domain.ImportRun{ID: id, ImportedAt: at, Warnings: []string{"row 2: empty row skipped"}}
	PrepareRun(&run)

	if run.ID != id {
		t.Fatalf("expected id %s, got %s", id, run.ID)
	}
	if !run.ImportedAt.Equal(at) || !run.UpdatedAt.Equal(at) {
		t.Fatalf("expected timestamps %v, got %v / %v", at, run.ImportedAt, run.UpdatedAt)
	}
	if len(run.Warnings) != 1 {
		t.Fatalf("expected warnings to be kept, got %v", run.Warnings)
	}
}

func TestRecordStoreRequiresPool(t *testing.T) {
	ctx := context.Background()
	store := NewRecordStore(nil)

	checks := map[string]error{}
	_, _, checks["FindID"] = store.FindID(ctx, "societes", "nom", "Acme")
	_, checks["Exists"] = store.Exists(ctx, "societes", 1)
	_, checks["Insert"] = store.Insert(ctx, "societes", map[string]any{"nom": "Acme"})
	checks["Update"] = store.Update(ctx, "societes", 1, map[string]any{"nom": "Acme"})
	_, checks["ListColumn"] = store.ListColumn(ctx, "societes", "nom")
	_, checks["List"] = store.List(ctx, "societes", []string{"nom"}, 10)
	_, checks["Count"] = store.Count(ctx, "societes")
	checks["WithinTx"] = store.WithinTx(ctx, func(RecordStore) error { return nil })

	for name, err := range checks {
		if err == nil || !strings.Contains(err.Error(), "not initialized") {
			t.Fatalf("%s: expected not initialized error, got %v", name, err)
		}
	}
}

func TestImportRunRepositoryRequiresPool(t *testing.T) {
	ctx := context.Background()
	repo := NewImportRunRepository(nil)

	if _, err := repo.Record(ctx, domain.ImportRun{}); err == nil || !strings.Contains(err.Error(), "not initialized") {
		t.Fatalf("Record: expected not initialized error, got %v", err)
	}
	if _, err := repo.ListRecent(ctx, 10); err == nil || !strings.Contains(err.Error(), "not initialized") {
		t.Fatalf("ListRecent: expected not initialized error, got %v", err)
	}
	if _, err := repo.Get(ctx, uuid.New()); err == nil || !strings.Contains(err.Error(), "not initialized") {
		t.Fatalf("Get: expected not initialized error, got %v", err)
	}
}
