package dto

import (
	"time"

	"github.com/vsinha/vmi/pkg/domain/entities"
)

// Cycle triggers
const (
	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"
	TriggerRetry     = "retry"
)

// File outcomes
const (
	FileProcessed = "processed"
	FileSkipped   = "skipped"
	FileFailed    = "failed"
)

// CycleResult contains the complete output of one ingestion cycle
type CycleResult struct {
	ID             string        `json:"id"`
	Trigger        string        `json:"trigger"`
	Attempt        int           `json:"attempt"`
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration"`
	ForecastSource string        `json:"forecast_source,omitempty"`
	ForecastLoaded bool          `json:"forecast_loaded"`
	RetryScheduled bool          `json:"retry_scheduled"`
	Files          []FileResult  `json:"files"`
	Alerts         []Alert       `json:"alerts,omitempty"`
	Errors         []string      `json:"errors,omitempty"`
}

// FileResult describes what happened to one intake file
type FileResult struct {
	Name           string                      `json:"name"`
	Status         string                      `json:"status"`
	OrdersRecorded []string                    `json:"orders_recorded,omitempty"`
	OrdersSkipped  []string                    `json:"orders_skipped,omitempty"`
	Diagnostics    []string                    `json:"diagnostics,omitempty"`
	Decisions      []entities.CoverageDecision `json:"decisions,omitempty"`
	Documents      []entities.Document         `json:"documents,omitempty"`
	Acknowledged   bool                        `json:"acknowledged"`
	Error          string                      `json:"error,omitempty"`
}

// Alert is a condition raised for a person to act on
type Alert struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Documents returns every document written during the cycle
func (r *CycleResult) Documents() []entities.Document {
	var docs []entities.Document
	for _, f := range r.Files {
		docs = append(docs, f.Documents...)
	}
	return docs
}

// FilesWithStatus counts files that ended with status
func (r *CycleResult) FilesWithStatus(status string) int {
	n := 0
	for _, f := range r.Files {
		if f.Status == status {
			n++
		}
	}
	return n
}

// Status summarizes the cycle for metrics: "ok", "partial" or "failed"
func (r *CycleResult) Status() string {
	failed := r.FilesWithStatus(FileFailed)
	switch {
	case failed == 0 && len(r.Errors) == 0:
		return "ok"
	case failed > 0 && failed == len(r.Files):
		return "failed"
	default:
		return "partial"
	}
}
