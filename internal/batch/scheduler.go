package batch

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency caps in-flight generation calls per wave. The
// remote queue throttles aggressively on fresh accounts, so waves stay
// small rather than work-stealing from a pool.
const DefaultConcurrency = 5

// Job runs one generation request to completion and returns the image
// bytes or an error. Jobs must be safe to run concurrently with each
// other.
type Job func(ctx context.Context) ([]byte, error)

// Outcome pairs a job's result with the index of its originating
// request, so results are never matched back by completion order.
type Outcome struct {
	Index int
	Data  []byte
	Err   error
}

// ProgressFunc receives the monotonically increasing completed count
// after each wave resolves.
type ProgressFunc func(done, total int)

// RunWaves executes jobs in consecutive waves of at most limit jobs.
// All jobs of a wave run concurrently; the next wave does not start
// until every job of the current wave has resolved. Every job yields
// exactly one outcome, success or failure; a failing job never aborts
// its siblings.
func RunWaves(ctx context.Context, jobs []Job, limit int, onProgress ProgressFunc) []Outcome {
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	total := len(jobs)
	outcomes := make([]Outcome, total)

	for start := 0; start < total; start += limit {
		end := min(start+limit, total)
		var eg errgroup.Group
		for i := start; i < end; i++ {
			eg.Go(func() error {
				data, err := jobs[i](ctx)
				outcomes[i] = Outcome{Index: i, Data: data, Err: err}
				return nil
			})
		}
		// Jobs report failures through their outcome, never here.
		_ = eg.Wait()
		if onProgress != nil {
			onProgress(end, total)
		}
	}
	return outcomes
}
