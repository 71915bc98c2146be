package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Hemang2904/jewelbench-flux-gen/internal/domain"
	"github.com/Hemang2904/jewelbench-flux-gen/internal/export"
	"github.com/Hemang2904/jewelbench-flux-gen/internal/pipeline"
	"github.com/Hemang2904/jewelbench-flux-gen/internal/prompt"
)

const (
	defaultQuantity = 5
	maxQuantity     = 50
	runDeadline     = 30 * time.Minute
)

type subjectRequest struct {
	Piece    string `json:"piece"`
	Material string `json:"material"`
	Style    string `json:"style"`
	Extra    string `json:"extra"`
}

type createBatchRequest struct {
	Mode     string         `json:"mode"`
	Template string         `json:"template"`
	Subject  subjectRequest `json:"subject"`
	Quantity int            `json:"quantity"`

	ReferenceB64  string `json:"reference_b64"`
	ReferenceMIME string `json:"reference_mime"`
	Target        string `json:"target"`
	Instruction   string `json:"describe_instruction"`

	Strength      float64 `json:"strength"`
	GuidanceScale float64 `json:"guidance_scale"`
	AspectRatio   string  `json:"aspect_ratio"`
	OutputFormat  string  `json:"output_format"`
	NameByPrompt  bool    `json:"name_by_prompt"`
}

type batchStatusResponse struct {
	RunID      string `json:"run_id"`
	Status     string `json:"status"`
	Mode       string `json:"mode"`
	Done       int    `json:"completed"`
	Total      int    `json:"total"`
	Unique     int    `json:"unique"`
	Duplicates int    `json:"duplicates"`
	Failed     int    `json:"failed"`
	Error      string `json:"error,omitempty"`
}

// CreateBatch validates the parameters, registers a fresh run and
// executes it asynchronously. The response carries the run id for
// polling.
func (a *App) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var req createBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	mode, ok := domain.NormalizeMode(req.Mode)
	if !ok {
		a.error(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("unsupported mode %q", req.Mode))
		return
	}

	template := strings.TrimSpace(req.Template)
	if template == "" {
		template = prompt.BuildTemplate(prompt.Subject{
			Piece:    req.Subject.Piece,
			Material: req.Subject.Material,
			Style:    req.Subject.Style,
			Extra:    req.Subject.Extra,
		})
	}

	quantity := req.Quantity
	if quantity <= 0 {
		quantity = defaultQuantity
	}
	if quantity > maxQuantity {
		quantity = maxQuantity
	}

	var reference []byte
	if req.ReferenceB64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.ReferenceB64)
		if err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "reference_b64 is not valid base64")
			return
		}
		reference = decoded
	}
	if (mode == domain.ModeDescribe || mode == domain.ModeComponent) && len(reference) == 0 {
		a.error(w, http.StatusBadRequest, "missing_reference", "a reference image is required for this mode")
		return
	}
	if mode == domain.ModeComponent && strings.TrimSpace(req.Target) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "target component is required for component mode")
		return
	}

	params := pipeline.Params{
		Mode:                mode,
		Template:            template,
		Quantity:            quantity,
		Reference:           reference,
		ReferenceMIME:       req.ReferenceMIME,
		Target:              req.Target,
		DescribeInstruction: req.Instruction,
		Strength:            req.Strength,
		GuidanceScale:       req.GuidanceScale,
		AspectRatio:         req.AspectRatio,
		OutputFormat:        req.OutputFormat,
	}

	runID := uuid.NewString()
	a.Runs.Create(runID, mode, template, quantity, req.NameByPrompt)
	go a.execute(runID, params)

	a.json(w, http.StatusAccepted, map[string]string{
		"run_id": runID,
		"status": string(domain.RunStatusRunning),
	})
}

// execute drives the run to completion outside the request lifecycle.
func (a *App) execute(runID string, params pipeline.Params) {
	ctx, cancel := context.WithTimeout(context.Background(), runDeadline)
	defer cancel()

	summary, err := a.Runner.Run(ctx, params, func(done, total int) {
		a.Runs.Progress(runID, done, total)
	})
	if err != nil {
		a.Logger.Error().Err(err).Str("run_id", runID).Msg("batch run failed")
		a.Runs.Finish(runID, 0, 0, 0, nil, err)
		a.record(runID)
		return
	}
	a.Runs.Finish(runID, summary.Unique, summary.Duplicates, summary.Failures, summary.Results, nil)
	a.record(runID)
}

// record writes the run to history under its own context: the run's
// context may already be expired when the run failed by deadline, and
// that must not lose the history row.
func (a *App) record(runID string) {
	view, ok := a.Runs.Get(runID)
	if !ok || a.History == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.History.Record(ctx, view.Record); err != nil {
		a.Logger.Warn().Err(err).Str("run_id", runID).Msg("failed to record run history")
	}
}

// BatchStatus reports progress and totals for one run.
func (a *App) BatchStatus(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "run_id")
	view, ok := a.Runs.Get(runID)
	if !ok {
		a.error(w, http.StatusNotFound, "not_found", "run not found")
		return
	}
	a.json(w, http.StatusOK, batchStatusResponse{
		RunID:      view.Record.ID,
		Status:     string(view.Record.Status),
		Mode:       string(view.Record.Mode),
		Done:       view.Done,
		Total:      view.Total,
		Unique:     view.Record.Unique,
		Duplicates: view.Record.Duplicates,
		Failed:     view.Record.Failed,
		Error:      view.Record.Error,
	})
}

// BatchArchive streams the ZIP of a finished run.
func (a *App) BatchArchive(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "run_id")
	view, ok := a.Runs.Get(runID)
	if !ok {
		a.error(w, http.StatusNotFound, "not_found", "run not found")
		return
	}
	switch view.Record.Status {
	case domain.RunStatusRunning:
		a.error(w, http.StatusConflict, "run_not_finished", "run is still in progress")
		return
	case domain.RunStatusFailed:
		a.error(w, http.StatusConflict, "run_failed", view.Record.Error)
		return
	}
	if len(view.Results) == 0 {
		a.error(w, http.StatusConflict, "empty_batch", "no unique images to download")
		return
	}

	archive, err := export.BuildArchive(view.Results, export.Options{
		NameByPrompt: view.NameByPrompt,
		Extension:    "jpg",
	})
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to build archive")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=batch-%s.zip", runID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

// ListBatches returns recent run records from the history store.
func (a *App) ListBatches(w http.ResponseWriter, r *http.Request) {
	records, err := a.History.List(r.Context(), 50)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to list runs")
		return
	}
	items := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		items = append(items, map[string]any{
			"run_id":      rec.ID,
			"mode":        string(rec.Mode),
			"status":      string(rec.Status),
			"requested":   rec.Requested,
			"unique":      rec.Unique,
			"duplicates":  rec.Duplicates,
			"failed":      rec.Failed,
			"started_at":  rec.StartedAt,
			"finished_at": rec.FinishedAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}
