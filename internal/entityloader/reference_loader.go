package entityloader

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fast-track-solutions1/msi-teamhub/internal/domain"
	"github.com/fast-track-solutions1/msi-teamhub/internal/repository"

	"github.com/graph-gophers/dataloader"
)

// ReferenceLoader resolves natural keys of related entities to row ids,
// memoising hits for the lifetime of one import. Misses are evicted so a row
// inserted later in the same import can still be found.
type ReferenceLoader struct {
	Loader *dataloader.Loader
}

type referenceKey struct {
	table  string
	lookup string
	value  string
}

func (k referenceKey) String() string {
	return k.table + "\x00" + k.lookup + "\x00" + k.value
}

func (k referenceKey) Raw() interface{} {
	return k
}

// NewReferenceLoader builds a loader reading through store.
func NewReferenceLoader(store repository.RecordStore) *ReferenceLoader {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		results := make([]*dataloader.Result, len(keys))
		for i, k := range keys {
			key, ok := k.Raw().(referenceKey)
			if !ok {
				results[i] = &dataloader.Result{Error: fmt.Errorf("invalid reference key %q", k.String())}
				continue
			}

			id, found, err := resolve(ctx, store, key)
			switch {
			case err != nil:
				results[i] = &dataloader.Result{Error: err}
			case !found:
				results[i] = &dataloader.Result{Data: nil}
			default:
				results[i] = &dataloader.Result{Data: id}
			}
		}
		return results
	}

	loader := dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(time.Millisecond))

	return &ReferenceLoader{Loader: loader}
}

// Resolve returns the id of the related row whose lookup field equals value,
// falling back to value as a numeric id. found is false when neither matches.
func (l *ReferenceLoader) Resolve(ctx context.Context, ref domain.Reference, value string) (int64, bool, error) {
	key := referenceKey{table: ref.Table, lookup: ref.LookupField, value: strings.TrimSpace(value)}

	data, err := l.Loader.Load(ctx, key)()
	if err != nil {
		l.Loader.Clear(ctx, key)
		return 0, false, err
	}
	id, ok := data.(int64)
	if !ok {
		l.Loader.Clear(ctx, key)
		return 0, false, nil
	}
	return id, true, nil
}

func resolve(ctx context.Context, store repository.RecordStore, key referenceKey) (int64, bool, error) {
	id, found, err := store.FindID(ctx, key.table, key.lookup, key.value)
	if err != nil {
		return 0, false, fmt.Errorf("failed to resolve %s.%s: %w", key.table, key.lookup, err)
	}
	if found {
		return id, true, nil
	}

	numeric, ok := parseNumericID(key.value)
	if !ok {
		return 0, false, nil
	}
	exists, err := store.Exists(ctx, key.table, numeric)
	if err != nil {
		return 0, false, fmt.Errorf("failed to resolve %s id %d: %w", key.table, numeric, err)
	}
	return numeric, exists, nil
}

// parseNumericID accepts integral spellings such as "7" and "7.0".
func parseNumericID(value string) (int64, bool) {
	if id, err := strconv.ParseInt(value, 10, 64); err == nil {
		return id, id > 0
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil && f == float64(int64(f)) && f > 0 {
		return int64(f), true
	}
	return 0, false
}
