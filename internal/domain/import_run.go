package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// ImportStatus is the outcome classification of an import run.
type ImportStatus string

const (
	ImportStatusInProgress ImportStatus = "in_progress"
	ImportStatusSuccess    ImportStatus = "success"
	ImportStatusPartial    ImportStatus = "partial"
	ImportStatusFailed     ImportStatus = "failed"
)

// RowError captures the failure of a single spreadsheet row. Row is the
// 1-based spreadsheet row number, counting the header as row 1.
type RowError struct {
	Row      int      `json:"row"`
	Error    string   `json:"error"`
	Messages []string `json:"messages"`
}

// ImportRun is the persisted audit record of one import attempt.
type ImportRun struct {
	ID            uuid.UUID    `json:"id"`
	EntityKey     string       `json:"model"`
	FileName      string       `json:"file_name"`
	ImportedBy    string       `json:"imported_by,omitempty"`
	ImportedAt    time.Time    `json:"imported_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
	Status        ImportStatus `json:"status"`
	TotalRows     int          `json:"total_rows"`
	SuccessCount  int          `json:"success_count"`
	ErrorCount    int          `json:"error_count"`
	InsertedCount int          `json:"inserted"`
	UpdatedCount  int          `json:"updated"`
	SkippedCount  int          `json:"skipped"`
	ErrorDetails  []RowError   `json:"errors"`
	Warnings      []string     `json:"warnings"`
}

// SuccessRate returns the share of successful rows as a percentage rounded to
// two decimals, or 0 when the run had no rows.
func (r ImportRun) SuccessRate() float64 {
	return SuccessRate(r.SuccessCount, r.TotalRows)
}

// SuccessRate computes round(success/total*100, 2), 0 when total is 0.
func SuccessRate(success, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(success)/float64(total)*10000) / 100
}

// ClassifyStatus maps row counts to a terminal status.
func ClassifyStatus(successCount, errorCount int) ImportStatus {
	switch {
	case errorCount == 0:
		return ImportStatusSuccess
	case successCount > 0:
		return ImportStatusPartial
	default:
		return ImportStatusFailed
	}
}

// ImportResult is what a caller gets back from an import.
type ImportResult struct {
	RunID        uuid.UUID    `json:"log_id"`
	EntityKey    string       `json:"model"`
	Inserted     int          `json:"inserted"`
	Updated      int          `json:"updated"`
	Skipped      int          `json:"skipped"`
	TotalRows    int          `json:"total_rows"`
	SuccessCount int          `json:"success_count"`
	ErrorCount   int          `json:"error_count"`
	Status       ImportStatus `json:"status"`
	Errors       []RowError   `json:"errors"`
	Warnings     []string     `json:"warnings"`
}

// SuccessRate mirrors ImportRun.SuccessRate for the in-flight result.
func (r ImportResult) SuccessRate() float64 {
	return SuccessRate(r.SuccessCount, r.TotalRows)
}
