package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/thepathwise/intake/internal/jobs"
	"github.com/thepathwise/intake/pkg/models"
	"github.com/thepathwise/intake/pkg/repository"
)

const maxRunsLimit = 200

// AdminHandler triggers batch jobs on demand and lists their history.
type AdminHandler struct {
	runner    *jobs.Runner
	runs      repository.JobRunRepo
	sheetSync jobs.Func
	backfill  func(dryRun bool) jobs.Func
}

// NewAdminHandler wires the admin routes. A nil sheetSync answers 503 on the
// sync route, for deployments without spreadsheet credentials.
func NewAdminHandler(runner *jobs.Runner, runs repository.JobRunRepo, sheetSync jobs.Func, backfill func(dryRun bool) jobs.Func) *AdminHandler {
	return &AdminHandler{runner: runner, runs: runs, sheetSync: sheetSync, backfill: backfill}
}

func (h *AdminHandler) Sync(w http.ResponseWriter, r *http.Request) {
	if h.sheetSync == nil {
		writeError(w, "sheet sync is not configured", http.StatusServiceUnavailable)
		return
	}
	h.run(w, r, jobs.SheetSync, h.sheetSync)
}

func (h *AdminHandler) Backfill(w http.ResponseWriter, r *http.Request) {
	dryRun := false
	if v := r.URL.Query().Get("dry_run"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, "invalid dry_run", http.StatusBadRequest)
			return
		}
		dryRun = b
	}
	h.run(w, r, jobs.Backfill, h.backfill(dryRun))
}

func (h *AdminHandler) run(w http.ResponseWriter, r *http.Request, name string, fn jobs.Func) {
	run, err := h.runner.Run(r.Context(), name, fn)
	if errors.Is(err, jobs.ErrAlreadyRunning) {
		writeError(w, name+" is already running", http.StatusConflict)
		return
	}
	if err != nil {
		logger.Error("admin job failed", slog.String("job", name), slog.Any("err", err))
		writeJSON(w, envelope{Success: false, Data: run, Message: err.Error()}, http.StatusInternalServerError)
		return
	}
	writeJSON(w, envelope{Success: true, Data: run}, http.StatusOK)
}

// Runs handles GET /v1/admin/runs?name=&limit=.
func (h *AdminHandler) Runs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 50
	if l := q.Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= maxRunsLimit {
			limit = v
		}
	}

	runs, err := h.runs.ListRuns(r.Context(), q.Get("name"), limit)
	if err != nil {
		logger.Error("list job runs", slog.Any("err", err))
		writeError(w, "failed to list job runs", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []models.JobRun{}
	}
	writeJSON(w, envelope{Success: true, Data: runs}, http.StatusOK)
}
