// Package pipeline runs the ticker-to-workbook workflow and records a step log
// for every stage.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"pitchsheet/pkg/core/calc"
	"pitchsheet/pkg/core/edgar"
	"pitchsheet/pkg/core/export"
	"pitchsheet/pkg/core/mapping"
	"pitchsheet/pkg/core/store"
	"pitchsheet/pkg/models"
)

// Step names, in execution order.
const (
	StepResolveCompany    = "resolve_company"
	StepFetchSubmissions  = "fetch_submissions"
	StepFetchCompanyFacts = "fetch_companyfacts"
	StepMapToTemplates    = "map_to_templates"
	StepNormalizePeriods  = "normalize_periods"
	StepComputeMetrics    = "compute_metrics"
	StepGenerateCharts    = "generate_charts"
	StepExportXLSX        = "export_xlsx"
)

const (
	stepCompleted = "completed"
	stepFailed    = "failed"
)

// FactSource retrieves SEC documents for a company. *edgar.Client implements it.
type FactSource interface {
	ResolveCIK(ctx context.Context, ticker string) (edgar.CompanyInfo, error)
	FetchSubmissions(ctx context.Context, cik string) (*edgar.Submissions, error)
	FetchCompanyFacts(ctx context.Context, cik string) (*edgar.CompanyFacts, error)
	SubmissionsURL(cik string) string
	CompanyFactsURL(cik string) string
}

// Orchestrator manages the end-to-end data flow:
// resolve -> fetch (submissions, companyfacts) -> map -> normalize -> metrics -> charts -> xlsx
type Orchestrator struct {
	source       FactSource
	repo         store.RunRepository
	artifactsDir string
	logger       *slog.Logger
	metrics      *Metrics
	now          func() time.Time
	planner      chartPlanner
}

type chartPlanner func(models.PeriodType, []string, *mapping.NormalizedStatements, calc.Metrics) []export.ChartSpec

// NewOrchestrator creates an orchestrator writing workbooks under artifactsDir/<run id>/.
func NewOrchestrator(source FactSource, repo store.RunRepository, artifactsDir string) *Orchestrator {
	return &Orchestrator{
		source:       source,
		repo:         repo,
		artifactsDir: artifactsDir,
		logger:       slog.Default().With(slog.String("component", "pipeline")),
		now:          func() time.Time { return time.Now().UTC() },
		planner:      export.PlanCharts,
	}
}

// SetLogger replaces the default logger.
func (o *Orchestrator) SetLogger(logger *slog.Logger) {
	o.logger = logger.With(slog.String("component", "pipeline"))
}

// SetMetrics enables Prometheus instrumentation.
func (o *Orchestrator) SetMetrics(m *Metrics) {
	o.metrics = m
}

// SetClock overrides the time source (tests).
func (o *Orchestrator) SetClock(now func() time.Time) {
	o.now = now
}

// stepResult is one finished step, ready to be logged.
type stepResult struct {
	name     string
	started  time.Time
	finished time.Time
	input    string
	output   string
	warnings []string
	err      error
}

// Run executes the pipeline for a run created beforehand. On failure the run
// is marked failed with the accumulated warnings plus "Pipeline failed: <err>",
// and the error is returned.
func (o *Orchestrator) Run(ctx context.Context, runID, ticker string, periodType models.PeriodType, numPeriods int) (err error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	logger := o.logger.With(slog.String("run_id", runID), slog.String("ticker", ticker))

	var (
		warnings []string
		dataURLs []string
	)

	if err := o.repo.UpdateRunStatus(ctx, runID, store.RunUpdate{Status: models.RunRunning}); err != nil {
		return fmt.Errorf("failed to mark run running: %w", err)
	}
	logger.Info("pipeline started", slog.String("period_type", string(periodType)), slog.Int("num_periods", numPeriods))

	defer func() {
		if err == nil {
			return
		}
		final := append(append([]string{}, warnings...), fmt.Sprintf("Pipeline failed: %v", err))
		update := store.RunUpdate{Status: models.RunFailed, Warnings: final}
		if uerr := o.repo.UpdateRunStatus(context.WithoutCancel(ctx), runID, update); uerr != nil {
			logger.Error("failed to mark run failed", slog.String("error", uerr.Error()))
		}
		o.metrics.runFinished(models.RunFailed)
		logger.Error("pipeline failed", slog.String("error", err.Error()))
	}()

	// 1. Resolve company
	step := o.begin(StepResolveCompany, "ticker="+ticker)
	info, err := o.source.ResolveCIK(ctx, ticker)
	if err != nil {
		o.finish(ctx, runID, step, err)
		return err
	}
	step.output = fmt.Sprintf("cik=%s, name=%s", info.CIK, info.Title)
	o.finish(ctx, runID, step, nil)
	cik := info.CIK

	if err := o.repo.UpdateRunStatus(ctx, runID, store.RunUpdate{
		Status: models.RunRunning, CIK: cik, CompanyName: info.Title,
	}); err != nil {
		return fmt.Errorf("failed to record company: %w", err)
	}

	// 2 + 3. Fetch submissions and company facts concurrently. Both share the
	// client's rate limiter; step logs are written in fixed order afterwards.
	var (
		subs      *edgar.Submissions
		facts     *edgar.CompanyFacts
		subsStep  = o.begin(StepFetchSubmissions, "cik="+cik)
		factsStep = o.begin(StepFetchCompanyFacts, "cik="+cik)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		subs, subsStep.err = o.source.FetchSubmissions(gctx, cik)
		subsStep.finished = o.now()
		return subsStep.err
	})
	g.Go(func() error {
		facts, factsStep.err = o.source.FetchCompanyFacts(gctx, cik)
		factsStep.finished = o.now()
		return factsStep.err
	})
	fetchErr := g.Wait()

	if subsStep.err == nil {
		subsStep.output = fmt.Sprintf("%d recent filings found", subs.RecentCount())
		dataURLs = append(dataURLs, o.source.SubmissionsURL(cik))
	}
	o.finish(ctx, runID, subsStep, subsStep.err)
	if factsStep.err == nil {
		factsStep.output = fmt.Sprintf("%d US-GAAP tags available", len(facts.Tags(edgar.TaxonomyUSGAAP)))
		dataURLs = append(dataURLs, o.source.CompanyFactsURL(cik))
	}
	o.finish(ctx, runID, factsStep, factsStep.err)
	if fetchErr != nil {
		return fetchErr
	}

	// 4. Map to templates
	step = o.begin(StepMapToTemplates, fmt.Sprintf("period_type=%s, num_periods=%d", periodType, numPeriods))
	mapped, mapWarnings := mapping.MapFactsToStatements(facts, periodType, numPeriods)
	warnings = append(warnings, mapWarnings...)
	filled, total := mapped.Populated()
	step.output = fmt.Sprintf("%d/%d line items populated", filled, total)
	step.warnings = mapWarnings
	o.finish(ctx, runID, step, nil)

	// 5. Normalize periods
	step = o.begin(StepNormalizePeriods, fmt.Sprintf("num_periods=%d", numPeriods))
	periodDates, normalized := mapping.NormalizePeriods(mapped, numPeriods)
	step.output = fmt.Sprintf("%d aligned periods: %s", len(periodDates), periodRange(periodDates))
	o.finish(ctx, runID, step, nil)

	// 6. Compute metrics
	step = o.begin(StepComputeMetrics, fmt.Sprintf("%d periods", len(periodDates)))
	metrics, metricWarnings := calc.ComputeMetrics(periodDates, normalized)
	warnings = append(warnings, metricWarnings...)
	step.output = fmt.Sprintf("%d metrics computed", len(metrics))
	step.warnings = metricWarnings
	o.finish(ctx, runID, step, nil)

	// 7. Generate charts (non-fatal)
	step = o.begin(StepGenerateCharts, fmt.Sprintf("%d periods", len(periodDates)))
	charts, chartErr := planCharts(o.planner, periodType, periodDates, normalized, metrics)
	if chartErr != nil {
		charts = nil
		warnings = append(warnings, fmt.Sprintf("Chart generation failed: %v", chartErr))
	} else {
		step.output = fmt.Sprintf("%d charts generated", len(charts))
	}
	o.finish(ctx, runID, step, chartErr)

	// 8. Export workbook
	step = o.begin(StepExportXLSX, "ticker="+ticker)
	path, err := export.ExportWorkbook(export.WorkbookInput{
		Ticker:      ticker,
		PeriodDates: periodDates,
		Normalized:  normalized,
		Metrics:     metrics,
		Charts:      charts,
		Config: models.RunConfig{
			Ticker:         ticker,
			PeriodType:     periodType,
			NumPeriods:     numPeriods,
			MappingVersion: mapping.MappingVersion,
		},
		Warnings:    warnings,
		DataURLs:    dataURLs,
		OutputDir:   filepath.Join(o.artifactsDir, runID),
		GeneratedAt: o.now(),
	})
	if err != nil {
		o.finish(ctx, runID, step, err)
		return err
	}
	step.output = "workbook saved to " + filepath.Base(path)
	o.finish(ctx, runID, step, nil)

	if err := o.repo.UpdateRunStatus(ctx, runID, store.RunUpdate{
		Status:       models.RunCompleted,
		ArtifactPath: path,
		Warnings:     append([]string{}, warnings...),
	}); err != nil {
		return fmt.Errorf("failed to mark run completed: %w", err)
	}
	o.metrics.runFinished(models.RunCompleted)
	logger.Info("pipeline completed", slog.String("artifact", path), slog.Int("warnings", len(warnings)))
	return nil
}

func (o *Orchestrator) begin(name, input string) *stepResult {
	return &stepResult{name: name, started: o.now(), input: input}
}

// finish writes the step log. Logging failures are reported but never fail the run.
func (o *Orchestrator) finish(ctx context.Context, runID string, s *stepResult, stepErr error) {
	if s.finished.IsZero() {
		s.finished = o.now()
	}
	duration := s.finished.Sub(s.started)
	durationMS := duration.Milliseconds()

	status := stepCompleted
	errs := []string{}
	if stepErr != nil {
		status = stepFailed
		errs = append(errs, stepErr.Error())
	}

	log := models.StepLog{
		StepName:      s.name,
		Status:        status,
		StartedAt:     &s.started,
		FinishedAt:    &s.finished,
		DurationMS:    &durationMS,
		InputSummary:  s.input,
		OutputSummary: s.output,
		Warnings:      append([]string{}, s.warnings...),
		Errors:        errs,
	}
	if err := o.repo.InsertStepLog(context.WithoutCancel(ctx), runID, log); err != nil {
		o.logger.Warn("failed to insert step log",
			slog.String("run_id", runID), slog.String("step", s.name), slog.String("error", err.Error()))
	}
	o.metrics.observeStep(s.name, status, duration)
	o.logger.Debug("step finished",
		slog.String("run_id", runID), slog.String("step", s.name),
		slog.String("status", status), slog.Int64("duration_ms", durationMS))
}

// planCharts converts a panic while planning into an error so chart problems
// never abort the run.
func planCharts(plan chartPlanner, periodType models.PeriodType, periodDates []string, normalized *mapping.NormalizedStatements, metrics calc.Metrics) (charts []export.ChartSpec, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("chart planning panicked: %v", r)
		}
	}()
	return plan(periodType, periodDates, normalized, metrics), nil
}

func periodRange(dates []string) string {
	if len(dates) == 0 {
		return "N/A to N/A"
	}
	return dates[0] + " to " + dates[len(dates)-1]
}
