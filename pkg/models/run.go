package models

import (
	"time"
)

// PeriodType is the SEC form a run is built from.
type PeriodType string

const (
	PeriodAnnual    PeriodType = "10-K"
	PeriodQuarterly PeriodType = "10-Q"
)

// Valid reports whether p is one of the supported forms.
func (p PeriodType) Valid() bool {
	return p == PeriodAnnual || p == PeriodQuarterly
}

// RunStatus tracks a pipeline run through its lifecycle.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Terminal reports whether no further transitions are expected.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunFailed
}

// RunRequest is the body of POST /api/run
type RunRequest struct {
	Ticker     string     `json:"ticker" validate:"required,min=1,max=10"`
	PeriodType PeriodType `json:"period_type" validate:"omitempty,oneof=10-K 10-Q"`
	NumPeriods int        `json:"num_periods" validate:"omitempty,min=1,max=20"`
}

// RunConfig is the frozen configuration a run was executed with.
type RunConfig struct {
	Ticker         string     `json:"ticker"`
	PeriodType     PeriodType `json:"period_type"`
	NumPeriods     int        `json:"num_periods"`
	MappingVersion string     `json:"mapping_version"`
}

// StepLog records one pipeline step.
type StepLog struct {
	StepName      string     `json:"step_name"`
	Status        string     `json:"status"` // "completed" | "failed"
	StartedAt     *time.Time `json:"started_at,omitempty"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	DurationMS    *int64     `json:"duration_ms,omitempty"`
	InputSummary  string     `json:"input_summary,omitempty"`
	OutputSummary string     `json:"output_summary,omitempty"`
	Warnings      []string   `json:"warnings"`
	Errors        []string   `json:"errors"`
}

// Run is the full view of a pipeline run, including its step logs.
type Run struct {
	RunID        string     `json:"run_id"`
	Status       RunStatus  `json:"status"`
	Ticker       string     `json:"ticker"`
	PeriodType   PeriodType `json:"period_type"`
	NumPeriods   int        `json:"num_periods"`
	Config       *RunConfig `json:"config,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	Steps        []StepLog  `json:"steps"`
	Warnings     []string   `json:"warnings"`
	ArtifactPath string     `json:"artifact_path,omitempty"`
	CompanyName  string     `json:"company_name,omitempty"`
	CIK          string     `json:"cik,omitempty"`
}

// HistoryItem is the summary row returned by GET /api/history
type HistoryItem struct {
	RunID       string     `json:"run_id"`
	Ticker      string     `json:"ticker"`
	PeriodType  PeriodType `json:"period_type"`
	NumPeriods  int        `json:"num_periods"`
	Status      RunStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	CompanyName string     `json:"company_name,omitempty"`
}

// Summary projects a run onto its history row.
func (r *Run) Summary() HistoryItem {
	return HistoryItem{
		RunID:       r.RunID,
		Ticker:      r.Ticker,
		PeriodType:  r.PeriodType,
		NumPeriods:  r.NumPeriods,
		Status:      r.Status,
		CreatedAt:   r.CreatedAt,
		FinishedAt:  r.FinishedAt,
		CompanyName: r.CompanyName,
	}
}
