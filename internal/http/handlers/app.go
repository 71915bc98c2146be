package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/Hemang2904/jewelbench-flux-gen/internal/batch"
	"github.com/Hemang2904/jewelbench-flux-gen/internal/history"
	"github.com/Hemang2904/jewelbench-flux-gen/internal/infra"
	"github.com/Hemang2904/jewelbench-flux-gen/internal/pipeline"
)

// BatchRunner executes one batch run. Satisfied by *pipeline.Runner and
// stubbed in tests.
type BatchRunner interface {
	Run(ctx context.Context, p pipeline.Params, onProgress batch.ProgressFunc) (*pipeline.Summary, error)
}

// App bundles the dependencies shared by all handlers.
type App struct {
	Config  *infra.Config
	Logger  zerolog.Logger
	Runner  BatchRunner
	Runs    *RunRegistry
	History history.Store
}

func NewApp(cfg *infra.Config, logger zerolog.Logger, runner BatchRunner, store history.Store) *App {
	return &App{
		Config:  cfg,
		Logger:  logger,
		Runner:  runner,
		Runs:    NewRunRegistry(),
		History: store,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]string{"error": code, "message": message})
}
