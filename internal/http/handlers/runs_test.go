package handlers

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Hemang2904/jewelbench-flux-gen/internal/batch"
	"github.com/Hemang2904/jewelbench-flux-gen/internal/domain"
)

func finishRun(r *RunRegistry, id string) {
	r.Create(id, domain.ModeText, "ring", 1, false)
	r.Finish(id, 1, 0, 0, []batch.Result{{Bytes: []byte(id), Hash: id}}, nil)
}

func TestRunRegistryEvictsOldestFinished(t *testing.T) {
	r := NewRunRegistry()
	r.capacity = 2

	finishRun(r, "run-1")
	finishRun(r, "run-2")
	finishRun(r, "run-3")

	if _, ok := r.Get("run-1"); ok {
		t.Fatalf("oldest finished run should have been evicted")
	}
	for _, id := range []string{"run-2", "run-3"} {
		view, ok := r.Get(id)
		if !ok {
			t.Fatalf("run %s evicted too early", id)
		}
		if len(view.Results) != 1 {
			t.Fatalf("run %s lost its results: %d", id, len(view.Results))
		}
	}
	if len(r.finished) != 2 {
		t.Fatalf("finished ledger not trimmed: %d", len(r.finished))
	}
}

func TestRunRegistryNeverEvictsInFlightRuns(t *testing.T) {
	r := NewRunRegistry()
	r.capacity = 1

	r.Create("in-flight", domain.ModeText, "ring", 5, false)
	finishRun(r, "done-1")
	finishRun(r, "done-2")
	finishRun(r, "done-3")

	view, ok := r.Get("in-flight")
	if !ok {
		t.Fatalf("in-flight run must survive finished-run eviction")
	}
	if view.Record.Status != domain.RunStatusRunning {
		t.Fatalf("unexpected status: %s", view.Record.Status)
	}
	if _, ok := r.Get("done-3"); !ok {
		t.Fatalf("newest finished run should be retained")
	}
}

func TestRunRegistryDefaultCapacity(t *testing.T) {
	r := NewRunRegistry()
	for i := 0; i < defaultFinishedRuns+5; i++ {
		finishRun(r, fmt.Sprintf("run-%d", i))
	}
	if got := len(r.runs); got != defaultFinishedRuns {
		t.Fatalf("registry holds %d finished runs, want %d", got, defaultFinishedRuns)
	}
}

type captureStore struct {
	ctxErr   error
	deadline bool
	records  []domain.RunRecord
}

func (s *captureStore) Record(ctx context.Context, rec domain.RunRecord) error {
	s.ctxErr = ctx.Err()
	_, s.deadline = ctx.Deadline()
	s.records = append(s.records, rec)
	return nil
}

func (s *captureStore) Get(ctx context.Context, id string) (domain.RunRecord, error) {
	return domain.RunRecord{}, domain.ErrNotFound
}

func (s *captureStore) List(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	return nil, nil
}

func TestRecordWritesHistoryUnderLiveContext(t *testing.T) {
	store := &captureStore{}
	app := &App{Logger: zerolog.Nop(), Runs: NewRunRegistry(), History: store}

	app.Runs.Create("run-x", domain.ModeText, "ring", 2, false)
	app.Runs.Finish("run-x", 0, 0, 2, nil, context.DeadlineExceeded)
	app.record("run-x")

	if len(store.records) != 1 {
		t.Fatalf("history write missing: %d records", len(store.records))
	}
	if store.ctxErr != nil {
		t.Fatalf("history write got a dead context: %v", store.ctxErr)
	}
	if !store.deadline {
		t.Fatalf("history write should run under its own deadline")
	}
	if store.records[0].Status != domain.RunStatusFailed {
		t.Fatalf("unexpected recorded status: %s", store.records[0].Status)
	}
}
