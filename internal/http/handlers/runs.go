package handlers

import (
	"sync"
	"time"

	"github.com/Hemang2904/jewelbench-flux-gen/internal/batch"
	"github.com/Hemang2904/jewelbench-flux-gen/internal/domain"
)

// RunView is a point-in-time snapshot of one run's state.
type RunView struct {
	Record       domain.RunRecord
	Done         int
	Total        int
	NameByPrompt bool
	Results      []batch.Result
}

type runState struct {
	mu           sync.Mutex
	record       domain.RunRecord
	done         int
	total        int
	nameByPrompt bool
	results      []batch.Result
}

// Finished runs hold their image bytes until evicted, so the retention
// window stays small.
const defaultFinishedRuns = 16

// RunRegistry tracks in-flight and recently finished runs in memory.
// Each run owns a fresh entry; nothing carries over between runs.
// In-flight runs are never evicted; finished runs are kept newest-first
// up to capacity, since each one can pin a full batch of image bytes.
type RunRegistry struct {
	mu       sync.Mutex
	runs     map[string]*runState
	finished []string
	capacity int
}

func NewRunRegistry() *RunRegistry {
	return &RunRegistry{
		runs:     make(map[string]*runState),
		capacity: defaultFinishedRuns,
	}
}

func (r *RunRegistry) Create(id string, mode domain.Mode, template string, total int, nameByPrompt bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[id] = &runState{
		record: domain.RunRecord{
			ID:        id,
			Mode:      mode,
			Template:  template,
			Requested: total,
			Status:    domain.RunStatusRunning,
			StartedAt: time.Now().UTC(),
		},
		total:        total,
		nameByPrompt: nameByPrompt,
	}
}

func (r *RunRegistry) lookup(id string) (*runState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.runs[id]
	return st, ok
}

// Progress updates the completed counter; it never decreases.
func (r *RunRegistry) Progress(id string, done, total int) {
	st, ok := r.lookup(id)
	if !ok {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if done > st.done {
		st.done = done
	}
	st.total = total
}

// Finish marks the run as resolved and stores its results for the
// archive endpoint. The oldest finished run is evicted once capacity is
// reached; durable metadata lives in the history store, not here.
func (r *RunRegistry) Finish(id string, unique, duplicates, failed int, results []batch.Result, runErr error) {
	st, ok := r.lookup(id)
	if !ok {
		return
	}
	st.mu.Lock()
	st.record.FinishedAt = time.Now().UTC()
	if runErr != nil {
		st.record.Status = domain.RunStatusFailed
		st.record.Error = runErr.Error()
	} else {
		st.record.Status = domain.RunStatusSucceeded
		st.record.Unique = unique
		st.record.Duplicates = duplicates
		st.record.Failed = failed
		st.results = results
		st.done = st.total
	}
	st.mu.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, id)
	for len(r.finished) > r.capacity {
		delete(r.runs, r.finished[0])
		r.finished = r.finished[1:]
	}
}

// Get returns a snapshot of the run, or false when the id is unknown.
func (r *RunRegistry) Get(id string) (RunView, bool) {
	st, ok := r.lookup(id)
	if !ok {
		return RunView{}, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	view := RunView{
		Record:       st.record,
		Done:         st.done,
		Total:        st.total,
		NameByPrompt: st.nameByPrompt,
	}
	view.Results = append(view.Results, st.results...)
	return view, true
}
