// Package memory provides in-process stores used by tests and the
// `store.driver: memory` configuration.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fast-track-solutions1/msi-teamhub/internal/domain"
	"github.com/fast-track-solutions1/msi-teamhub/internal/repository"
)

type table struct {
	nextID int64
	rows   map[int64]map[string]any
}

// RecordStore keeps tables as maps of rows. Transactions are serialised and
// rolled back by restoring a snapshot taken when they begin.
type RecordStore struct {
	txMu   sync.Mutex
	mu     sync.RWMutex
	tables map[string]*table
}

// NewRecordStore returns an empty store.
func NewRecordStore() *RecordStore {
	return &RecordStore{tables: make(map[string]*table)}
}

var _ repository.RecordStore = (*RecordStore)(nil)

func (s *RecordStore) FindID(_ context.Context, tableName, column string, value any) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[tableName]
	if !ok {
		return 0, false, nil
	}
	want := render(value)
	for _, id := range t.sortedIDs() {
		if cell, present := t.rows[id][column]; present && cell != nil && render(cell) == want {
			return id, true, nil
		}
	}
	return 0, false, nil
}

func (s *RecordStore) Exists(_ context.Context, tableName string, id int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[tableName]
	if !ok {
		return false, nil
	}
	_, found := t.rows[id]
	return found, nil
}

func (s *RecordStore) Insert(_ context.Context, tableName string, values map[string]any) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.tableLocked(tableName)
	t.nextID++
	row := make(map[string]any, len(values)+1)
	for column, value := range values {
		row[column] = value
	}
	row["id"] = t.nextID
	t.rows[t.nextID] = row
	return t.nextID, nil
}

func (s *RecordStore) Update(_ context.Context, tableName string, id int64, values map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[tableName]
	if !ok {
		return fmt.Errorf("update %s id %d: %w", tableName, id, repository.ErrNotFound)
	}
	row, found := t.rows[id]
	if !found {
		return fmt.Errorf("update %s id %d: %w", tableName, id, repository.ErrNotFound)
	}
	for column, value := range values {
		row[column] = value
	}
	return nil
}

func (s *RecordStore) ListColumn(_ context.Context, tableName, column string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values := []string{}
	t, ok := s.tables[tableName]
	if !ok {
		return values, nil
	}
	seen := make(map[string]struct{})
	for _, row := range t.rows {
		cell, present := row[column]
		if !present || cell == nil {
			continue
		}
		text := render(cell)
		if _, dup := seen[text]; dup {
			continue
		}
		seen[text] = struct{}{}
		values = append(values, text)
	}
	sort.Strings(values)
	return values, nil
}

func (s *RecordStore) List(_ context.Context, tableName string, columns []string, limit int) ([]repository.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	result := []repository.Row{}
	t, ok := s.tables[tableName]
	if !ok {
		return result, nil
	}
	for _, id := range t.sortedIDs() {
		if len(result) == limit {
			break
		}
		stored := t.rows[id]
		row := repository.Row{"id": render(id)}
		for _, column := range columns {
			if cell, present := stored[column]; present && cell != nil {
				row[column] = render(cell)
			} else {
				row[column] = nil
			}
		}
		result = append(result, row)
	}
	return result, nil
}

func (s *RecordStore) Count(_ context.Context, tableName string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if t, ok := s.tables[tableName]; ok {
		return int64(len(t.rows)), nil
	}
	return 0, nil
}

// Row returns a copy of a stored row, for assertions.
func (s *RecordStore) Row(tableName string, id int64) (map[string]any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[tableName]
	if !ok {
		return nil, false
	}
	row, found := t.rows[id]
	if !found {
		return nil, false
	}
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out, true
}

func (s *RecordStore) WithinTx(ctx context.Context, fn func(repository.RecordStore) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return s.savepoint(ctx, fn)
}

func (s *RecordStore) savepoint(_ context.Context, fn func(repository.RecordStore) error) (err error) {
	snapshot := s.snapshot()
	defer func() {
		if p := recover(); p != nil {
			s.restore(snapshot)
			panic(p)
		}
		if err != nil {
			s.restore(snapshot)
		}
	}()
	return fn(nestedStore{s})
}

// nestedStore is the view handed to a transaction body; WithinTx on it opens
// a savepoint instead of waiting on the outer transaction lock.
type nestedStore struct {
	*RecordStore
}

func (n nestedStore) WithinTx(ctx context.Context, fn func(repository.RecordStore) error) error {
	return n.savepoint(ctx, fn)
}

func (s *RecordStore) tableLocked(name string) *table {
	t, ok := s.tables[name]
	if !ok {
		t = &table{rows: make(map[int64]map[string]any)}
		s.tables[name] = t
	}
	return t
}

func (s *RecordStore) snapshot() map[string]*table {
	s.mu.RLock()
	defer s.mu.RUnlock()

	copyTables := make(map[string]*table, len(s.tables))
	for name, t := range s.tables {
		clone := &table{nextID: t.nextID, rows: make(map[int64]map[string]any, len(t.rows))}
		for id, row := range t.rows {
			rowCopy := make(map[string]any, len(row))
			for k, v := range row {
				rowCopy[k] = v
			}
			clone.rows[id] = rowCopy
		}
		copyTables[name] = clone
	}
	return copyTables
}

func (s *RecordStore) restore(tables map[string]*table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables = tables
}

func (t *table) sortedIDs() []int64 {
	ids := make([]int64, 0, len(t.rows))
	for id := range t.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func render(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case time.Time:
		return v.Format("2006-01-02")
	case domain.TimeOfDay:
		return v.String()
	case bool:
		if v {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(v)
	}
}
