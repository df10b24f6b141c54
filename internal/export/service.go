package export

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fast-track-solutions1/msi-teamhub/internal/domain"
	"github.com/fast-track-solutions1/msi-teamhub/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var reportHeader = []string{"row", "message", "entity", "file_name"}

// Service renders import run audit records as downloadable reports.
type Service struct {
	runs   repository.ImportRunRepository
	logger logrus.FieldLogger
}

// Report summarises a written error report.
type Report struct {
	Run          domain.ImportRun
	FileName     string
	RowsExported int
	BytesWritten int64
}

func NewService(runs repository.ImportRunRepository, logger logrus.FieldLogger) *Service {
	if logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		logger = discard
	}
	return &Service{runs: runs, logger: logger}
}

// WriteErrorReport streams the stored row errors of run id to w as CSV, one
// line per message. A run without errors yields the header alone.
func (s *Service) WriteErrorReport(ctx context.Context, id uuid.UUID, w io.Writer) (Report, error) {
	run, err := s.runs.Get(ctx, id)
	if err != nil {
		return Report{}, err
	}

	buffered := bufio.NewWriter(w)
	counter := &countingWriter{writer: buffered}
	csvWriter := csv.NewWriter(counter)

	if err := csvWriter.Write(reportHeader); err != nil {
		return Report{}, fmt.Errorf("write header: %w", err)
	}

	rowsExported := 0
	record := make([]string, len(reportHeader))
	for _, rowErr := range run.ErrorDetails {
		if ctx.Err() != nil {
			return Report{}, ctx.Err()
		}
		messages := rowErr.Messages
		if len(messages) == 0 {
			messages = []string{rowErr.Error}
		}
		for _, message := range messages {
			record[0] = strconv.Itoa(rowErr.Row)
			record[1] = message
			record[2] = run.EntityKey
			record[3] = run.FileName
			if err := csvWriter.Write(record); err != nil {
				return Report{}, fmt.Errorf("write error row: %w", err)
			}
			rowsExported++
		}
	}

	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return Report{}, fmt.Errorf("flush rows: %w", err)
	}
	if err := buffered.Flush(); err != nil {
		return Report{}, fmt.Errorf("flush buffered rows: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"run":    run.ID,
		"entity": run.EntityKey,
		"rows":   rowsExported,
		"bytes":  counter.count,
	}).Debug("error report written")

	return Report{
		Run:          run,
		FileName:     ReportFileName(run),
		RowsExported: rowsExported,
		BytesWritten: counter.count,
	}, nil
}

// ReportFileName names the report after the entity and the upload time,
// e.g. errors_salarie_20240315-083000.csv.
func ReportFileName(run domain.ImportRun) string {
	name := "errors_" + sanitizeFileComponent(run.EntityKey)
	if !run.ImportedAt.IsZero() {
		name += "_" + run.ImportedAt.UTC().Format("20060102-150405")
	}
	return name + ".csv"
}

func sanitizeFileComponent(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	builder := strings.Builder{}
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-' || r == '_':
			builder.WriteRune(r)
		default:
			builder.WriteRune('-')
		}
	}
	result := strings.Trim(builder.String(), "-")
	if result == "" {
		return "import"
	}
	return result
}

type countingWriter struct {
	writer *bufio.Writer
	count  int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.writer.Write(p)
	c.count += int64(n)
	return n, err
}
