// Command pipeline runs one ticker through the full pipeline and writes the
// workbook locally.
//
//	pipeline -ticker AAPL -period 10-K -n 5
//	pipeline -ticker AAPL -facts CIK0000320193.json   (offline, no submissions)
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"pitchsheet/pkg/core/config"
	"pitchsheet/pkg/core/edgar"
	"pitchsheet/pkg/core/pipeline"
	"pitchsheet/pkg/core/store"
	"pitchsheet/pkg/models"
)

// fileSource serves a companyfacts document read from disk. It never touches
// the network, so submissions come back empty.
type fileSource struct {
	path  string
	facts *edgar.CompanyFacts
}

func newFileSource(path string) (*fileSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read facts file: %w", err)
	}
	var facts edgar.CompanyFacts
	if err := json.Unmarshal(data, &facts); err != nil {
		return nil, fmt.Errorf("failed to parse facts file %s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return &fileSource{path: abs, facts: &facts}, nil
}

func (s *fileSource) ResolveCIK(_ context.Context, ticker string) (edgar.CompanyInfo, error) {
	return edgar.CompanyInfo{
		CIK:    fmt.Sprintf("%010d", s.facts.CIK),
		Title:  s.facts.EntityName,
		Ticker: strings.ToUpper(ticker),
	}, nil
}

func (s *fileSource) FetchSubmissions(context.Context, string) (*edgar.Submissions, error) {
	return &edgar.Submissions{}, nil
}

func (s *fileSource) FetchCompanyFacts(context.Context, string) (*edgar.CompanyFacts, error) {
	return s.facts, nil
}

func (s *fileSource) SubmissionsURL(string) string { return "(offline)" }

func (s *fileSource) CompanyFactsURL(string) string { return "file://" + s.path }

func main() {
	ticker := flag.String("ticker", "", "ticker symbol, e.g. AAPL")
	period := flag.String("period", "", "10-K or 10-Q (default from config)")
	n := flag.Int("n", 0, "number of periods (default from config)")
	factsPath := flag.String("facts", "", "read companyfacts JSON from this file instead of SEC")
	out := flag.String("out", "", "artifacts directory (default from config)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("[FATAL] %v\n", err)
		os.Exit(1)
	}

	if *ticker == "" {
		fmt.Println("usage: pipeline -ticker AAPL [-period 10-K] [-n 5] [-facts file.json] [-out dir]")
		os.Exit(2)
	}
	periodType := cfg.Defaults.PeriodType
	if *period != "" {
		periodType = models.PeriodType(strings.ToUpper(*period))
	}
	if !periodType.Valid() {
		fmt.Printf("[FATAL] period must be 10-K or 10-Q, got %q\n", *period)
		os.Exit(2)
	}
	numPeriods := cfg.Defaults.NumPeriods
	if *n != 0 {
		numPeriods = *n
	}
	if numPeriods < 1 || numPeriods > cfg.Defaults.MaxPeriods {
		fmt.Printf("[FATAL] -n must be between 1 and %d\n", cfg.Defaults.MaxPeriods)
		os.Exit(2)
	}
	artifactsDir := cfg.Paths.ArtifactsDir
	if *out != "" {
		artifactsDir = *out
	}

	var source pipeline.FactSource
	if *factsPath != "" {
		fs, err := newFileSource(*factsPath)
		if err != nil {
			fmt.Printf("[FATAL] %v\n", err)
			os.Exit(1)
		}
		source = fs
		fmt.Printf("[SOURCE] %s (offline)\n", fs.path)
	} else {
		source = edgar.NewClient(edgar.ClientConfig{
			UserAgent:   cfg.SEC.UserAgent,
			BaseURL:     cfg.SEC.BaseURL,
			TickersURL:  cfg.SEC.TickersURL,
			CacheDir:    cfg.Paths.CacheDir,
			MinInterval: cfg.SEC.MinInterval,
			Timeout:     cfg.SEC.Timeout,
			Logger:      cfg.Logging.NewLogger(os.Stderr),
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	repo := store.NewMemoryRunRepo()
	runID := uuid.NewString()
	if err := repo.CreateRun(ctx, &models.Run{
		RunID:      runID,
		Status:     models.RunPending,
		Ticker:     strings.ToUpper(*ticker),
		PeriodType: periodType,
		NumPeriods: numPeriods,
		CreatedAt:  time.Now().UTC(),
	}); err != nil {
		fmt.Printf("[FATAL] %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("PitchSheet pipeline: %s %s, %d periods (run %s)\n", strings.ToUpper(*ticker), periodType, numPeriods, runID)

	orchestrator := pipeline.NewOrchestrator(source, repo, artifactsDir)
	orchestrator.SetLogger(cfg.Logging.NewLogger(os.Stderr))
	runErr := orchestrator.Run(ctx, runID, *ticker, periodType, numPeriods)

	run, err := repo.GetRun(context.Background(), runID)
	if err != nil {
		fmt.Printf("[FATAL] %v\n", err)
		os.Exit(1)
	}
	printRun(run)

	if runErr != nil {
		os.Exit(1)
	}
}

func printRun(run *models.Run) {
	fmt.Println()
	for _, s := range run.Steps {
		ms := int64(0)
		if s.DurationMS != nil {
			ms = *s.DurationMS
		}
		fmt.Printf("[STEP] %-20s %-9s %6dms  %s\n", s.StepName, s.Status, ms, s.OutputSummary)
		for _, e := range s.Errors {
			fmt.Printf("       error: %s\n", e)
		}
	}

	if len(run.Warnings) > 0 {
		fmt.Printf("\n%d warnings:\n", len(run.Warnings))
		for _, w := range run.Warnings {
			fmt.Printf("[WARNING] %s\n", w)
		}
	}

	fmt.Println()
	switch run.Status {
	case models.RunCompleted:
		fmt.Printf("[DONE] %s (%s)\n", run.ArtifactPath, run.CompanyName)
	default:
		fmt.Printf("[FAILED] run %s ended with status %s\n", run.RunID, run.Status)
	}
}
