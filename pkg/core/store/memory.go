package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"pitchsheet/pkg/models"
)

// MemoryRunRepo keeps runs in process memory. Used by the CLI and when no
// database is configured.
type MemoryRunRepo struct {
	mu   sync.RWMutex
	runs map[string]*models.Run
}

// NewMemoryRunRepo creates an empty repository.
func NewMemoryRunRepo() *MemoryRunRepo {
	return &MemoryRunRepo{runs: make(map[string]*models.Run)}
}

func (m *MemoryRunRepo) CreateRun(_ context.Context, run *models.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.runs[run.RunID]; exists {
		return fmt.Errorf("run %s already exists", run.RunID)
	}
	m.runs[run.RunID] = cloneRun(run)
	return nil
}

func (m *MemoryRunRepo) UpdateRunStatus(_ context.Context, runID string, update RunUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[runID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if update.Status != "" {
		run.Status = update.Status
	}
	if update.CIK != "" {
		run.CIK = update.CIK
	}
	if update.CompanyName != "" {
		run.CompanyName = update.CompanyName
	}
	if update.ArtifactPath != "" {
		run.ArtifactPath = update.ArtifactPath
	}
	if update.Warnings != nil {
		run.Warnings = append([]string{}, update.Warnings...)
	}
	if update.Status.Terminal() {
		now := time.Now().UTC()
		run.FinishedAt = &now
	}
	return nil
}

func (m *MemoryRunRepo) InsertStepLog(_ context.Context, runID string, step models.StepLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[runID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	step.Warnings = append([]string{}, step.Warnings...)
	step.Errors = append([]string{}, step.Errors...)
	run.Steps = append(run.Steps, step)
	return nil
}

func (m *MemoryRunRepo) GetRun(_ context.Context, runID string) (*models.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, ok := m.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return cloneRun(run), nil
}

func (m *MemoryRunRepo) ListHistory(_ context.Context, limit int) ([]models.HistoryItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := make([]models.HistoryItem, 0, len(m.runs))
	for _, run := range m.runs {
		items = append(items, run.Summary())
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].RunID > items[j].RunID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	if n := historyLimit(limit); len(items) > n {
		items = items[:n]
	}
	return items, nil
}

// cloneRun copies a run so callers never alias stored slices.
func cloneRun(run *models.Run) *models.Run {
	c := *run
	if run.Config != nil {
		cfg := *run.Config
		c.Config = &cfg
	}
	c.Warnings = append([]string{}, run.Warnings...)
	c.Steps = make([]models.StepLog, len(run.Steps))
	for i, s := range run.Steps {
		s.Warnings = append([]string{}, s.Warnings...)
		s.Errors = append([]string{}, s.Errors...)
		c.Steps[i] = s
	}
	return &c
}
