package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Hemang2904/jewelbench-flux-gen/internal/batch"
	"github.com/Hemang2904/jewelbench-flux-gen/internal/domain"
	"github.com/Hemang2904/jewelbench-flux-gen/internal/imagegen"
	"github.com/Hemang2904/jewelbench-flux-gen/internal/prompt"
)

const (
	defaultQuantity   = 5
	maxQuantity       = 50
	defaultJobTimeout = 5 * time.Minute
)

// Options wires a Runner. Flux is required; Vision and Segment are only
// needed for their respective modes.
type Options struct {
	Flux    *imagegen.FluxClient
	Vision  *imagegen.VisionClient
	Segment *imagegen.SegmentClient

	Concurrency int
	// Attempts per job including the first try. Retry is an opt-in
	// knob; the default of 1 means no retry.
	Attempts     int
	RetryBackoff time.Duration
	// JobTimeout bounds one submit-await-fetch cycle so a stalled
	// remote job cannot hang an entire wave.
	JobTimeout time.Duration

	Logger zerolog.Logger
}

// Runner executes one batch run end to end: resolve prompts, fan out
// generation jobs in waves, dedupe the outcomes.
type Runner struct {
	flux     *imagegen.FluxClient
	vision   *imagegen.VisionClient
	segment  *imagegen.SegmentClient
	resolver *prompt.Resolver

	concurrency int
	attempts    int
	backoff     time.Duration
	jobTimeout  time.Duration
	logger      zerolog.Logger
}

func NewRunner(opts Options) *Runner {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = batch.DefaultConcurrency
	}
	attempts := opts.Attempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := opts.RetryBackoff
	if backoff <= 0 {
		backoff = time.Second
	}
	jobTimeout := opts.JobTimeout
	if jobTimeout <= 0 {
		jobTimeout = defaultJobTimeout
	}
	return &Runner{
		flux:        opts.Flux,
		vision:      opts.Vision,
		segment:     opts.Segment,
		resolver:    prompt.NewResolver(),
		concurrency: concurrency,
		attempts:    attempts,
		backoff:     backoff,
		jobTimeout:  jobTimeout,
		logger:      opts.Logger,
	}
}

// Params describe one user-triggered batch run.
type Params struct {
	Mode     domain.Mode
	Template string
	Quantity int

	Reference     []byte
	ReferenceMIME string
	// Target names the component to segment in component mode.
	Target string
	// DescribeInstruction overrides the vision prompt in describe mode.
	DescribeInstruction string

	Strength      float64
	GuidanceScale float64
	AspectRatio   string
	OutputFormat  string
}

// Summary is the outcome of one finished run.
type Summary struct {
	Requested  int
	Unique     int
	Duplicates int
	Failures   int
	Results    []batch.Result
}

// Run executes the batch. Run-level preconditions fail fast before any
// generation call; individual job failures are folded into the summary
// and never abort the run.
func (r *Runner) Run(ctx context.Context, p Params, onProgress batch.ProgressFunc) (*Summary, error) {
	if err := r.validate(p); err != nil {
		return nil, err
	}
	quantity := p.Quantity
	if quantity <= 0 {
		quantity = defaultQuantity
	}
	if quantity > maxQuantity {
		quantity = maxQuantity
	}

	template := p.Template
	var masks []string
	switch p.Mode {
	case domain.ModeDescribe:
		description, err := r.vision.Describe(ctx, p.Reference, p.ReferenceMIME, p.DescribeInstruction)
		if err != nil {
			return nil, fmt.Errorf("describe reference: %w", err)
		}
		template = prompt.InjectDescription(template, description)
	case domain.ModeComponent:
		found, err := r.segment.Segment(ctx, p.Reference, p.ReferenceMIME, p.Target)
		if err != nil {
			return nil, fmt.Errorf("segment %q: %w", p.Target, err)
		}
		masks = found
	}

	requests := make([]imagegen.GenerationRequest, 0, quantity)
	for i := 0; i < quantity; i++ {
		resolved, err := r.resolver.Resolve(template)
		if err != nil {
			return nil, err
		}
		req := imagegen.GenerationRequest{
			Prompt:        resolved,
			Strength:      p.Strength,
			GuidanceScale: p.GuidanceScale,
			AspectRatio:   p.AspectRatio,
			OutputFormat:  p.OutputFormat,
		}
		if p.Mode == domain.ModeComponent {
			req.ReferenceImage = p.Reference
			req.ReferenceMIME = p.ReferenceMIME
			req.MaskURL = masks[i%len(masks)]
		}
		requests = append(requests, req)
	}

	jobs := make([]batch.Job, len(requests))
	for i, req := range requests {
		jobs[i] = r.job(req)
	}

	collector := batch.NewCollector(r.logger)
	outcomes := batch.RunWaves(ctx, jobs, r.concurrency, onProgress)
	for _, outcome := range outcomes {
		collector.Ingest(requests[outcome.Index].Prompt, outcome.Data, outcome.Err)
	}

	summary := &Summary{
		Requested:  len(requests),
		Unique:     collector.Unique(),
		Duplicates: collector.Duplicates(),
		Failures:   collector.Failures(),
		Results:    collector.Results(),
	}
	r.logger.Info().
		Int("requested", summary.Requested).
		Int("unique", summary.Unique).
		Int("duplicates", summary.Duplicates).
		Int("failures", summary.Failures).
		Msg("pipeline: run finished")
	return summary, nil
}

func (r *Runner) validate(p Params) error {
	if r.flux == nil {
		return errors.New("pipeline: flux client is required")
	}
	if strings.TrimSpace(p.Template) == "" && p.Mode != domain.ModeDescribe {
		return errors.New("pipeline: prompt template is required")
	}
	switch p.Mode {
	case domain.ModeText:
	case domain.ModeDescribe:
		if r.vision == nil {
			return errors.New("pipeline: vision client not configured")
		}
		if len(p.Reference) == 0 {
			return fmt.Errorf("pipeline: %w", domain.ErrMissingReference)
		}
	case domain.ModeComponent:
		if r.segment == nil {
			return errors.New("pipeline: segment client not configured")
		}
		if len(p.Reference) == 0 {
			return fmt.Errorf("pipeline: %w", domain.ErrMissingReference)
		}
		if strings.TrimSpace(p.Target) == "" {
			return errors.New("pipeline: target component is required")
		}
	default:
		return fmt.Errorf("%w: %q", domain.ErrUnsupportedMode, p.Mode)
	}
	return nil
}

// job wraps one request into a Job with per-attempt timeout and the
// optional bounded retry.
func (r *Runner) job(req imagegen.GenerationRequest) batch.Job {
	return func(ctx context.Context) ([]byte, error) {
		var lastErr error
		for attempt := 1; attempt <= r.attempts; attempt++ {
			data, err := r.attempt(ctx, req)
			if err == nil {
				return data, nil
			}
			lastErr = err
			if attempt == r.attempts {
				break
			}
			r.logger.Warn().Err(err).Int("attempt", attempt).Msg("pipeline: job attempt failed, retrying")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.backoff):
			}
		}
		return nil, lastErr
	}
}

func (r *Runner) attempt(ctx context.Context, req imagegen.GenerationRequest) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.jobTimeout)
	defer cancel()
	handle, err := r.flux.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	return handle.Await(ctx)
}
