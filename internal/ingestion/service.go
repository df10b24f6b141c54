package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fast-track-solutions1/msi-teamhub/internal/domain"
	"github.com/fast-track-solutions1/msi-teamhub/internal/entityloader"
	"github.com/fast-track-solutions1/msi-teamhub/internal/registry"
	"github.com/fast-track-solutions1/msi-teamhub/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultMaxErrorDetails bounds the row errors stored on an import run.
const DefaultMaxErrorDetails = 200

// Observer receives import outcomes, typically to export them as metrics.
type Observer interface {
	ObserveImport(entity string, status domain.ImportStatus, rows int, elapsed time.Duration)
	ObserveRowFailure(entity string)
}

type nopObserver struct{}

func (nopObserver) ObserveImport(string, domain.ImportStatus, int, time.Duration) {}
func (nopObserver) ObserveRowFailure(string)                                     {}

// Options tunes how imports are written.
type Options struct {
	// BatchTransaction wraps the whole file in one transaction, each row in
	// its own savepoint. Otherwise each row commits on its own.
	BatchTransaction bool
	// MaxErrorDetails caps the row errors persisted on the run record.
	MaxErrorDetails int
	// HistoryLimit is the number of runs History returns when no limit is
	// requested.
	HistoryLimit int
	Observer     Observer
}

// Service imports spreadsheets into the entity tables declared by a registry.
type Service struct {
	registry *registry.Registry
	store    repository.RecordStore
	runs     repository.ImportRunRepository
	logger   logrus.FieldLogger
	opts     Options
}

// NewService creates a new ingestion service.
func NewService(
	reg *registry.Registry,
	store repository.RecordStore,
	runs repository.ImportRunRepository,
	logger logrus.FieldLogger,
	opts Options,
) *Service {
	if opts.MaxErrorDetails <= 0 {
		opts.MaxErrorDetails = DefaultMaxErrorDetails
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		logger = discard
	}
	return &Service{
		registry: reg,
		store:    store,
		runs:     runs,
		logger:   logger,
		opts:     opts,
	}
}

// Request describes the ingestion input.
type Request struct {
	EntityKey  string
	FileName   string
	ImportedBy string
	Data       io.Reader
}

type rowAction int

const (
	rowSkipped rowAction = iota
	rowInserted
	rowUpdated
	rowFailed
)

type rowOutcome struct {
	action   rowAction
	messages []string
	warnings []string
}

// Models lists the importable entity types in registry order.
func (s *Service) Models() []domain.EntitySummary {
	return s.registry.List()
}

// ImportFile parses the uploaded spreadsheet and upserts each row into the
// entity table. Structural problems abort before any row is written and
// leave no run record; otherwise exactly one run is recorded.
func (s *Service) ImportFile(ctx context.Context, req Request) (domain.ImportResult, error) {
	started := time.Now()

	schema, err := s.registry.Lookup(req.EntityKey)
	if err != nil {
		return domain.ImportResult{}, err
	}
	if req.Data == nil {
		return domain.ImportResult{}, ErrMissingFile
	}

	payload, err := io.ReadAll(req.Data)
	if err != nil {
		return domain.ImportResult{}, fmt.Errorf("%w: failed to read upload: %v", ErrUnreadableFile, err)
	}
	if len(payload) == 0 {
		return domain.ImportResult{}, ErrEmptyFile
	}

	table, err := parseTable(req.FileName, payload)
	if err != nil {
		return domain.ImportResult{}, err
	}
	if missing := missingColumns(schema, table); len(missing) > 0 {
		return domain.ImportResult{}, &MissingColumnsError{Columns: missing}
	}
	if len(table.rows) == 0 {
		return domain.ImportResult{}, ErrEmptyFile
	}

	log := s.logger.WithFields(logrus.Fields{
		"entity": schema.Key,
		"file":   req.FileName,
	})
	log.WithField("rows", len(table.rows)).Info("import started")

	result := domain.ImportResult{
		EntityKey: schema.Key,
		Errors:    []domain.RowError{},
		Warnings:  ignoredColumnWarnings(schema, table),
	}

	tally := func(row tableRow, outcome rowOutcome) {
		result.Warnings = append(result.Warnings, outcome.warnings...)
		switch outcome.action {
		case rowInserted:
			result.Inserted++
		case rowUpdated:
			result.Updated++
		case rowSkipped:
			result.Skipped++
		case rowFailed:
			result.Errors = append(result.Errors, domain.RowError{
				Row:      row.number,
				Error:    strings.Join(outcome.messages, "; "),
				Messages: outcome.messages,
			})
			s.opts.Observer.ObserveRowFailure(schema.Key)
			log.WithFields(logrus.Fields{"row": row.number, "errors": outcome.messages}).Debug("row rejected")
		}
	}

	if s.opts.BatchTransaction {
		err = s.store.WithinTx(ctx, func(tx repository.RecordStore) error {
			loader := entityloader.NewReferenceLoader(tx)
			for _, row := range table.rows {
				tally(row, s.importRow(ctx, tx, loader, schema, table, row))
			}
			return nil
		})
		if err != nil {
			log.WithError(err).Error("import transaction failed")
			return domain.ImportResult{}, &PersistenceError{Op: "import transaction", Err: err}
		}
	} else {
		loader := entityloader.NewReferenceLoader(s.store)
		for _, row := range table.rows {
			tally(row, s.importRow(ctx, s.store, loader, schema, table, row))
		}
	}

	result.SuccessCount = result.Inserted + result.Updated
	result.ErrorCount = len(result.Errors)
	result.TotalRows = result.SuccessCount + result.ErrorCount
	result.Status = domain.ClassifyStatus(result.SuccessCount, result.ErrorCount)

	details := result.Errors
	if len(details) > s.opts.MaxErrorDetails {
		details = details[:s.opts.MaxErrorDetails]
	}
	run, err := s.runs.Record(ctx, domain.ImportRun{
		EntityKey:     schema.Key,
		FileName:      req.FileName,
		ImportedBy:    req.ImportedBy,
		Status:        result.Status,
		TotalRows:     result.TotalRows,
		SuccessCount:  result.SuccessCount,
		ErrorCount:    result.ErrorCount,
		InsertedCount: result.Inserted,
		UpdatedCount:  result.Updated,
		SkippedCount:  result.Skipped,
		ErrorDetails:  details,
		Warnings:      result.Warnings,
	})
	if err != nil {
		log.WithError(err).Error("failed to record import run")
		result.Warnings = append(result.Warnings, "import history could not be recorded")
	} else {
		result.RunID = run.ID
	}

	elapsed := time.Since(started)
	s.opts.Observer.ObserveImport(schema.Key, result.Status, result.TotalRows, elapsed)
	log.WithFields(logrus.Fields{
		"inserted": result.Inserted,
		"updated":  result.Updated,
		"skipped":  result.Skipped,
		"errors":   result.ErrorCount,
		"status":   result.Status,
		"duration": elapsed,
	}).Info("import finished")

	return result, nil
}

// importRow coerces one row and writes it. Every failure becomes part of the
// outcome; nothing is returned as an error.
func (s *Service) importRow(
	ctx context.Context,
	store repository.RecordStore,
	loader *entityloader.ReferenceLoader,
	schema domain.EntitySchema,
	table tableData,
	row tableRow,
) rowOutcome {
	cell := func(name string) string {
		if idx := table.column(name); idx >= 0 {
			return row.cells[idx]
		}
		return ""
	}

	blank := true
	for _, field := range schema.Fields {
		if !IsBlank(cell(field.Name)) {
			blank = false
			break
		}
	}
	if blank {
		return rowOutcome{
			action:   rowSkipped,
			warnings: []string{fmt.Sprintf("row %d: empty row skipped", row.number)},
		}
	}

	var outcome rowOutcome
	values := make(map[string]any, len(schema.Fields))
	for _, field := range schema.Fields {
		raw := cell(field.Name)
		if IsBlank(raw) {
			if field.Required {
				outcome.messages = append(outcome.messages, requiredFieldMessage(field.Name))
			}
			continue
		}

		if field.Type == domain.FieldTypeForeignKey {
			id, err := resolveReference(ctx, loader, field, raw)
			if err != nil {
				outcome.messages = append(outcome.messages, err.Error())
				continue
			}
			values[field.StorageColumn()] = id
			continue
		}

		value, err := Coerce(field, raw)
		if err != nil {
			outcome.messages = append(outcome.messages, err.Error())
			continue
		}
		if field.Type == domain.FieldTypeChoice && len(field.Choices) > 0 && !contains(field.Choices, value.(string)) {
			outcome.warnings = append(outcome.warnings,
				fmt.Sprintf("row %d: %s value %q is not one of %s", row.number, field.Name, value, strings.Join(field.Choices, ", ")))
		}
		values[field.StorageColumn()] = value
	}

	if len(outcome.messages) > 0 {
		outcome.action = rowFailed
		return outcome
	}

	var action rowAction
	err := store.WithinTx(ctx, func(tx repository.RecordStore) error {
		id, found, err := s.existingRow(ctx, tx, schema, values, cell("id"))
		if err != nil {
			return err
		}
		if found {
			if err := tx.Update(ctx, schema.Table, id, values); err != nil {
				return &PersistenceError{Op: "update " + schema.Key, Err: err}
			}
			action = rowUpdated
			return nil
		}
		if _, err := tx.Insert(ctx, schema.Table, values); err != nil {
			return &PersistenceError{Op: "insert " + schema.Key, Err: err}
		}
		action = rowInserted
		return nil
	})
	if err != nil {
		outcome.action = rowFailed
		outcome.messages = append(outcome.messages, err.Error())
		return outcome
	}

	outcome.action = action
	return outcome
}

func resolveReference(ctx context.Context, loader *entityloader.ReferenceLoader, field domain.FieldSpec, raw string) (int64, error) {
	ref := *field.Reference
	value := strings.TrimSpace(raw)

	id, found, err := loader.Resolve(ctx, ref, value)
	if err != nil {
		return 0, &PersistenceError{Op: "resolve " + field.Name, Err: err}
	}
	if !found {
		return 0, &UnresolvedReferenceError{
			Field:       field.Name,
			Entity:      ref.Entity,
			LookupField: ref.LookupField,
			Value:       value,
		}
	}
	return id, nil
}

// existingRow finds the row an import updates: by unique field when the
// entity declares one and the row carries it, otherwise by a numeric id
// column when present.
func (s *Service) existingRow(
	ctx context.Context,
	store repository.RecordStore,
	schema domain.EntitySchema,
	values map[string]any,
	rawID string,
) (int64, bool, error) {
	if schema.HasUniqueField() {
		field, _ := schema.Field(schema.UniqueField)
		if value, ok := values[field.StorageColumn()]; ok && value != nil {
			id, found, err := store.FindID(ctx, schema.Table, field.StorageColumn(), value)
			if err != nil {
				return 0, false, &PersistenceError{Op: "look up " + schema.UniqueField, Err: err}
			}
			return id, found, nil
		}
	}

	if IsBlank(rawID) {
		return 0, false, nil
	}
	id, err := coerceInteger("id", strings.TrimSpace(rawID))
	if err != nil || id <= 0 {
		return 0, false, nil
	}
	exists, err := store.Exists(ctx, schema.Table, id)
	if err != nil {
		return 0, false, &PersistenceError{Op: "look up id", Err: err}
	}
	return id, exists, nil
}

func missingColumns(schema domain.EntitySchema, table tableData) []string {
	var missing []string
	for _, name := range schema.ImportableFields() {
		if table.column(name) < 0 {
			missing = append(missing, name)
		}
	}
	return missing
}

func ignoredColumnWarnings(schema domain.EntitySchema, table tableData) []string {
	warnings := []string{}
	for _, header := range table.headers {
		if header == "" || header == "id" {
			continue
		}
		if _, ok := schema.Field(header); !ok {
			warnings = append(warnings, fmt.Sprintf("column %q is not importable for %s and was ignored", header, schema.Key))
		}
	}
	return warnings
}

func contains(values []string, value string) bool {
	for _, candidate := range values {
		if candidate == value {
			return true
		}
	}
	return false
}

// History returns the most recent import runs, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]domain.ImportRun, error) {
	if limit <= 0 {
		limit = s.opts.HistoryLimit
	}
	runs, err := s.runs.ListRecent(ctx, repository.ClampHistoryLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list import history: %w", err)
	}
	return runs, nil
}

// Run returns one import run with its error details.
func (s *Service) Run(ctx context.Context, id uuid.UUID) (domain.ImportRun, error) {
	run, err := s.runs.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ImportRun{}, err
		}
		return domain.ImportRun{}, fmt.Errorf("failed to load import run: %w", err)
	}
	return run, nil
}
