// Package store persists pipeline runs and their step logs.
package store

import (
	"context"
	"errors"

	"pitchsheet/pkg/models"
)

// DefaultHistoryLimit caps GET /api/history.
const DefaultHistoryLimit = 100

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

// RunUpdate carries the fields a status transition may set. Zero values leave
// the stored field unchanged. Moving to a terminal status stamps finished_at.
type RunUpdate struct {
	Status       models.RunStatus
	CIK          string
	CompanyName  string
	ArtifactPath string
	Warnings     []string
}

// RunRepository is the persistence contract used by the pipeline and the API.
type RunRepository interface {
	CreateRun(ctx context.Context, run *models.Run) error
	UpdateRunStatus(ctx context.Context, runID string, update RunUpdate) error
	InsertStepLog(ctx context.Context, runID string, step models.StepLog) error
	GetRun(ctx context.Context, runID string) (*models.Run, error)
	ListHistory(ctx context.Context, limit int) ([]models.HistoryItem, error)
}

func historyLimit(limit int) int {
	if limit <= 0 || limit > DefaultHistoryLimit {
		return DefaultHistoryLimit
	}
	return limit
}
