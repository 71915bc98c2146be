package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Hemang2904/jewelbench-flux-gen/internal/domain"
	"github.com/Hemang2904/jewelbench-flux-gen/internal/imagegen"
)

// fakeQueue emulates the generation queue: submit, immediate
// completion, result payload, image fetch.
type fakeQueue struct {
	mu      sync.Mutex
	submits int
	prompts map[string]string

	// failSubmitN rejects the n-th submission (1-based) when set. A
	// retried job submits again under a new n, so setting this to 1
	// fails only the first attempt.
	failSubmitN int
	// imageFor picks the served bytes for a prompt; defaults to a
	// per-request unique payload.
	imageFor func(prompt string, submit int) []byte

	ts *httptest.Server
}

func newFakeQueue(t *testing.T) *fakeQueue {
	t.Helper()
	q := &fakeQueue{prompts: make(map[string]string)}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /fal-ai/flux-pro/v1.1-ultra", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Prompt  string `json:"prompt"`
			MaskURL string `json:"mask_url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode submit: %v", err)
		}
		q.mu.Lock()
		q.submits++
		n := q.submits
		id := fmt.Sprintf("req-%d", n)
		q.prompts[id] = payload.Prompt
		fail := n == q.failSubmitN
		q.mu.Unlock()

		if fail {
			w.WriteHeader(http.StatusBadGateway)
			_ = json.NewEncoder(w).Encode(map[string]string{"detail": "upstream exploded"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"request_id":   id,
			"status_url":   q.ts.URL + "/requests/" + id + "/status",
			"response_url": q.ts.URL + "/requests/" + id,
		})
	})
	mux.HandleFunc("GET /requests/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "COMPLETED"})
	})
	mux.HandleFunc("GET /requests/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"images": []map[string]string{{"url": q.ts.URL + "/files/" + id, "content_type": "image/jpeg"}},
		})
	})
	mux.HandleFunc("GET /files/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		q.mu.Lock()
		prompt := q.prompts[id]
		q.mu.Unlock()
		var n int
		_, _ = fmt.Sscanf(id, "req-%d", &n)
		if q.imageFor != nil {
			_, _ = w.Write(q.imageFor(prompt, n))
			return
		}
		_, _ = w.Write([]byte("image-" + id))
	})

	q.ts = httptest.NewServer(mux)
	t.Cleanup(q.ts.Close)
	return q
}

func (q *fakeQueue) fluxClient() *imagegen.FluxClient {
	return imagegen.NewFluxClient(imagegen.FluxOptions{
		Endpoint:     imagegen.EndpointConfig{BaseURL: q.ts.URL},
		APIKey:       "test-key",
		PollInterval: time.Millisecond,
	})
}

func TestRunTextModeAllUnique(t *testing.T) {
	q := newFakeQueue(t)
	runner := NewRunner(Options{Flux: q.fluxClient(), Concurrency: 4, Logger: zerolog.Nop()})

	var progress [][2]int
	summary, err := runner.Run(context.Background(), Params{
		Mode:     domain.ModeText,
		Template: "[gold|silver] ring",
		Quantity: 10,
	}, func(done, total int) { progress = append(progress, [2]int{done, total}) })
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if summary.Requested != 10 || summary.Unique != 10 || summary.Failures != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(progress) != 3 || progress[2] != [2]int{10, 10} {
		t.Fatalf("expected 3 waves ending at 10/10, got %v", progress)
	}
	for _, res := range summary.Results {
		if res.Prompt != "gold ring" && res.Prompt != "silver ring" {
			t.Fatalf("unexpected resolved prompt: %q", res.Prompt)
		}
	}
}

func TestRunDedupesIdenticalRenders(t *testing.T) {
	q := newFakeQueue(t)
	q.imageFor = func(prompt string, n int) []byte { return []byte("always-the-same") }
	runner := NewRunner(Options{Flux: q.fluxClient(), Logger: zerolog.Nop()})

	summary, err := runner.Run(context.Background(), Params{
		Mode:     domain.ModeText,
		Template: "plain ring",
		Quantity: 5,
	}, nil)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if summary.Unique != 1 {
		t.Fatalf("expected 1 unique result, got %d", summary.Unique)
	}
	if summary.Duplicates != 4 {
		t.Fatalf("expected 4 duplicates, got %d", summary.Duplicates)
	}
}

func TestRunSingleFailureDoesNotAbort(t *testing.T) {
	q := newFakeQueue(t)
	q.failSubmitN = 3
	runner := NewRunner(Options{Flux: q.fluxClient(), Concurrency: 5, Logger: zerolog.Nop()})

	var lastDone int
	summary, err := runner.Run(context.Background(), Params{
		Mode:     domain.ModeText,
		Template: "plain ring",
		Quantity: 5,
	}, func(done, total int) { lastDone = done })
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if lastDone != 5 {
		t.Fatalf("progress did not reach 5/5: %d", lastDone)
	}
	if summary.Unique != 4 || summary.Failures != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestRunRetryKnob(t *testing.T) {
	q := newFakeQueue(t)
	q.failSubmitN = 1
	runner := NewRunner(Options{
		Flux:         q.fluxClient(),
		Attempts:     2,
		RetryBackoff: time.Millisecond,
		Logger:       zerolog.Nop(),
	})

	summary, err := runner.Run(context.Background(), Params{
		Mode:     domain.ModeText,
		Template: "plain ring",
		Quantity: 1,
	}, nil)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if summary.Unique != 1 || summary.Failures != 0 {
		t.Fatalf("retry did not recover the job: %+v", summary)
	}
}

func TestRunDescribeModeInjectsDescription(t *testing.T) {
	q := newFakeQueue(t)
	vision := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"output": "an emerald halo ring"})
	}))
	defer vision.Close()

	runner := NewRunner(Options{
		Flux:   q.fluxClient(),
		Vision: imagegen.NewVisionClient(imagegen.VisionOptions{Endpoint: imagegen.EndpointConfig{BaseURL: vision.URL, Model: "m"}, APIKey: "k"}),
		Logger: zerolog.Nop(),
	})
	summary, err := runner.Run(context.Background(), Params{
		Mode:          domain.ModeDescribe,
		Template:      "inspired by {description}, studio shot",
		Quantity:      2,
		Reference:     []byte{0xFF, 0xD8},
		ReferenceMIME: "image/jpeg",
	}, nil)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if summary.Unique != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	for _, res := range summary.Results {
		if !strings.Contains(res.Prompt, "an emerald halo ring") {
			t.Fatalf("description not injected: %q", res.Prompt)
		}
	}
}

func TestRunDescribeModeRequiresReference(t *testing.T) {
	q := newFakeQueue(t)
	runner := NewRunner(Options{
		Flux:   q.fluxClient(),
		Vision: imagegen.NewVisionClient(imagegen.VisionOptions{APIKey: "k"}),
		Logger: zerolog.Nop(),
	})
	_, err := runner.Run(context.Background(), Params{Mode: domain.ModeDescribe, Template: "x"}, nil)
	if !errors.Is(err, domain.ErrMissingReference) {
		t.Fatalf("expected ErrMissingReference, got %v", err)
	}
	if q.submits != 0 {
		t.Fatalf("precondition failure must happen before any network call, got %d submits", q.submits)
	}
}

func TestRunComponentModeCyclesMasks(t *testing.T) {
	q := newFakeQueue(t)
	segment := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"masks": []map[string]string{
				{"url": "https://cdn.example.com/m1.png"},
				{"url": "https://cdn.example.com/m2.png"},
			},
		})
	}))
	defer segment.Close()

	var maskURLs []string
	var mu sync.Mutex
	q.imageFor = func(prompt string, n int) []byte { return []byte(fmt.Sprintf("img-%d", n)) }

	// Wrap the queue to capture the mask per submission.
	capture := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			var payload struct {
				MaskURL string `json:"mask_url"`
			}
			body, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(body, &payload)
			mu.Lock()
			maskURLs = append(maskURLs, payload.MaskURL)
			mu.Unlock()
			r.Body = io.NopCloser(bytes.NewReader(body))
		}
		q.ts.Config.Handler.ServeHTTP(w, r)
	}))
	defer capture.Close()

	runner := NewRunner(Options{
		Flux: imagegen.NewFluxClient(imagegen.FluxOptions{
			Endpoint:     imagegen.EndpointConfig{BaseURL: capture.URL},
			APIKey:       "k",
			PollInterval: time.Millisecond,
		}),
		Segment: imagegen.NewSegmentClient(imagegen.SegmentOptions{Endpoint: imagegen.EndpointConfig{BaseURL: segment.URL, Model: "m"}, APIKey: "k"}),
		Logger:  zerolog.Nop(),
	})
	summary, err := runner.Run(context.Background(), Params{
		Mode:          domain.ModeComponent,
		Template:      "recolor the stone",
		Quantity:      4,
		Reference:     []byte{1, 2, 3},
		ReferenceMIME: "image/png",
		Target:        "the gemstone",
		Strength:      0.7,
	}, nil)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if summary.Requested != 4 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	mu.Lock()
	defer mu.Unlock()
	counts := map[string]int{}
	for _, u := range maskURLs {
		counts[u]++
	}
	if counts["https://cdn.example.com/m1.png"] != 2 || counts["https://cdn.example.com/m2.png"] != 2 {
		t.Fatalf("masks not cycled evenly: %v", counts)
	}
}

func TestRunComponentModeNoDetectionIsFatal(t *testing.T) {
	q := newFakeQueue(t)
	segment := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"masks": []any{}})
	}))
	defer segment.Close()

	runner := NewRunner(Options{
		Flux:    q.fluxClient(),
		Segment: imagegen.NewSegmentClient(imagegen.SegmentOptions{Endpoint: imagegen.EndpointConfig{BaseURL: segment.URL, Model: "m"}, APIKey: "k"}),
		Logger:  zerolog.Nop(),
	})
	_, err := runner.Run(context.Background(), Params{
		Mode:      domain.ModeComponent,
		Template:  "x",
		Reference: []byte{1},
		Target:    "the clasp",
	}, nil)
	if !errors.Is(err, domain.ErrNoDetection) {
		t.Fatalf("expected ErrNoDetection, got %v", err)
	}
	if q.submits != 0 {
		t.Fatalf("generation must not start without a mask, got %d submits", q.submits)
	}
}

func TestRunMalformedTemplateFailsFast(t *testing.T) {
	q := newFakeQueue(t)
	runner := NewRunner(Options{Flux: q.fluxClient(), Logger: zerolog.Nop()})
	_, err := runner.Run(context.Background(), Params{Mode: domain.ModeText, Template: "[gold ring"}, nil)
	if !errors.Is(err, domain.ErrMalformedTemplate) {
		t.Fatalf("expected ErrMalformedTemplate, got %v", err)
	}
	if q.submits != 0 {
		t.Fatalf("no jobs should be submitted for a malformed template, got %d", q.submits)
	}
}
