// Package run exposes pipeline runs over HTTP.
package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pitchsheet/pkg/core/config"
	"pitchsheet/pkg/core/mapping"
	"pitchsheet/pkg/core/store"
	"pitchsheet/pkg/models"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Runner executes a created run. *pipeline.Orchestrator implements it.
type Runner interface {
	Run(ctx context.Context, runID, ticker string, periodType models.PeriodType, numPeriods int) error
}

// Options configures a Handler.
type Options struct {
	Defaults       config.RunDefaults
	AllowedOrigins []string
	Logger         *slog.Logger
	// Gatherer, when set, is served on /metrics.
	Gatherer prometheus.Gatherer
}

// Handler serves the run API.
type Handler struct {
	repo     store.RunRepository
	runner   Runner
	opts     Options
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time

	inflight sync.WaitGroup
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// NewHandler creates a run handler.
func NewHandler(repo store.RunRepository, runner Runner, opts Options) *Handler {
	if opts.Defaults.PeriodType == "" {
		opts.Defaults = config.Default().Defaults
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Handler{
		repo:     repo,
		runner:   runner,
		opts:     opts,
		validate: v,
		logger:   logger.With(slog.String("handler", "run")),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Routes builds the router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(structuredLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors(h.opts.AllowedOrigins))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Post("/run", h.StartRun)
		r.Get("/run/{runID}", h.GetRun)
		r.Get("/run/{runID}/download", h.Download)
		r.Get("/history", h.History)
	})

	if h.opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.opts.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// Wait blocks until every background run started by this handler returns.
func (h *Handler) Wait() {
	h.inflight.Wait()
}

// Health handles GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

// StartRun handles POST /api/run. The pipeline runs in the background; the
// response is the freshly created pending run.
func (h *Handler) StartRun(w http.ResponseWriter, r *http.Request) {
	var req models.RunRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.fail(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	req.Ticker = strings.ToUpper(strings.TrimSpace(req.Ticker))

	if err := h.validate.Struct(req); err != nil {
		h.fail(w, r, http.StatusBadRequest, validationDetail(err))
		return
	}
	if req.PeriodType == "" {
		req.PeriodType = h.opts.Defaults.PeriodType
	}
	if req.NumPeriods == 0 {
		req.NumPeriods = h.opts.Defaults.NumPeriods
	}
	if limit := h.opts.Defaults.MaxPeriods; limit > 0 && req.NumPeriods > limit {
		h.fail(w, r, http.StatusBadRequest, fmt.Sprintf("num_periods must be at most %d", limit))
		return
	}

	run := &models.Run{
		RunID:      uuid.NewString(),
		Status:     models.RunPending,
		Ticker:     req.Ticker,
		PeriodType: req.PeriodType,
		NumPeriods: req.NumPeriods,
		Config: &models.RunConfig{
			Ticker:         req.Ticker,
			PeriodType:     req.PeriodType,
			NumPeriods:     req.NumPeriods,
			MappingVersion: mapping.MappingVersion,
		},
		CreatedAt: h.now(),
		Steps:     []models.StepLog{},
		Warnings:  []string{},
	}
	if err := h.repo.CreateRun(r.Context(), run); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to create run", slog.String("error", err.Error()))
		h.fail(w, r, http.StatusInternalServerError, "failed to create run")
		return
	}

	// The run outlives the request.
	ctx := context.WithoutCancel(r.Context())
	h.inflight.Add(1)
	go func() {
		defer h.inflight.Done()
		if err := h.runner.Run(ctx, run.RunID, req.Ticker, req.PeriodType, req.NumPeriods); err != nil {
			h.logger.Warn("run failed",
				slog.String("run_id", run.RunID), slog.String("ticker", req.Ticker), slog.String("error", err.Error()))
		}
	}()

	render.JSON(w, r, run)
}

// GetRun handles GET /api/run/{runID}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	render.JSON(w, r, run)
}

// Download handles GET /api/run/{runID}/download
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	if run.Status != models.RunCompleted {
		h.fail(w, r, http.StatusBadRequest, fmt.Sprintf("Run is not completed (status: %s)", run.Status))
		return
	}
	if run.ArtifactPath == "" {
		h.fail(w, r, http.StatusNotFound, "No workbook artifact found")
		return
	}

	f, err := os.Open(run.ArtifactPath)
	if err != nil {
		h.fail(w, r, http.StatusNotFound, "Workbook file not found on disk")
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		h.fail(w, r, http.StatusNotFound, "Workbook file not found on disk")
		return
	}

	name := filepath.Base(run.ArtifactPath)
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// History handles GET /api/history. An optional ?limit= caps the result.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	limit := store.DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.fail(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	items, err := h.repo.ListHistory(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list history", slog.String("error", err.Error()))
		h.fail(w, r, http.StatusInternalServerError, "failed to list history")
		return
	}
	if items == nil {
		items = []models.HistoryItem{}
	}
	render.JSON(w, r, items)
}

func (h *Handler) loadRun(w http.ResponseWriter, r *http.Request) (*models.Run, bool) {
	run, err := h.repo.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if errors.Is(err, store.ErrRunNotFound) {
		h.fail(w, r, http.StatusNotFound, "Run not found")
		return nil, false
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to load run", slog.String("error", err.Error()))
		h.fail(w, r, http.StatusInternalServerError, "failed to load run")
		return nil, false
	}
	return run, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, status int, detail string) {
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Detail: detail})
}

// validationDetail flattens validator errors into one message.
func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
