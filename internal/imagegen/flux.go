package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Hemang2904/jewelbench-flux-gen/internal/domain"
)

const (
	statusCompleted = "COMPLETED"
	statusFailed    = "FAILED"

	maxImageBytes = 32 << 20
)

// FluxOptions configures a FluxClient. The API key is threaded in
// explicitly; the client never reads ambient process state.
type FluxOptions struct {
	Endpoint     EndpointConfig
	APIKey       string
	HTTPClient   *http.Client
	Timeout      time.Duration
	PollInterval time.Duration
}

// FluxClient speaks the queue protocol of a Flux-style generation
// service: submit a job, poll its status, read the result payload, then
// fetch the image bytes from the returned URL.
type FluxClient struct {
	httpClient *http.Client
	baseURL    string
	model      string
	token      string
	pollEvery  time.Duration
	maxBytes   int64
}

func NewFluxClient(opts FluxOptions) *FluxClient {
	base := strings.TrimRight(opts.Endpoint.BaseURL, "/")
	if base == "" {
		base = "https://queue.fal.run"
	}
	model := strings.Trim(opts.Endpoint.Model, "/")
	if model == "" {
		model = "fal-ai/flux-pro/v1.1-ultra"
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	pollEvery := opts.PollInterval
	if pollEvery <= 0 {
		pollEvery = 500 * time.Millisecond
	}
	return &FluxClient{
		httpClient: client,
		baseURL:    base,
		model:      model,
		token:      strings.TrimSpace(opts.APIKey),
		pollEvery:  pollEvery,
		maxBytes:   maxImageBytes,
	}
}

// Handle references one in-flight generation job on the remote queue.
// It carries the originating request so outcomes never have to be paired
// back by completion order.
type Handle struct {
	client      *FluxClient
	Request     GenerationRequest
	RequestID   string
	statusURL   string
	responseURL string
}

type fluxSubmitPayload struct {
	Prompt          string  `json:"prompt"`
	ImageURL        string  `json:"image_url,omitempty"`
	MaskURL         string  `json:"mask_url,omitempty"`
	Strength        float64 `json:"strength,omitempty"`
	GuidanceScale   float64 `json:"guidance_scale,omitempty"`
	AspectRatio     string  `json:"aspect_ratio,omitempty"`
	OutputFormat    string  `json:"output_format,omitempty"`
	SafetyTolerance string  `json:"safety_tolerance,omitempty"`
}

type fluxSubmitResp struct {
	RequestID   string `json:"request_id"`
	StatusURL   string `json:"status_url"`
	ResponseURL string `json:"response_url"`
	Detail      string `json:"detail"`
}

type fluxStatusResp struct {
	Status string `json:"status"`
	Detail string `json:"detail"`
}

type fluxResultResp struct {
	Images []struct {
		URL         string `json:"url"`
		ContentType string `json:"content_type"`
	} `json:"images"`
	Detail string `json:"detail"`
}

// Submit enqueues one generation job and returns a handle for awaiting
// its result. It does not block on generation itself.
func (c *FluxClient) Submit(ctx context.Context, req GenerationRequest) (*Handle, error) {
	if c == nil {
		return nil, errors.New("flux client not configured")
	}
	if c.token == "" {
		return nil, fmt.Errorf("flux: %w", domain.ErrMissingCredential)
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, errors.New("flux: prompt required")
	}

	payload := fluxSubmitPayload{
		Prompt:          req.Prompt,
		ImageURL:        req.referenceURI(),
		MaskURL:         req.maskURI(),
		Strength:        req.Strength,
		GuidanceScale:   req.GuidanceScale,
		AspectRatio:     req.AspectRatio,
		OutputFormat:    req.OutputFormat,
		SafetyTolerance: "2",
	}
	if payload.OutputFormat == "" {
		payload.OutputFormat = "jpeg"
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	endpoint := c.baseURL + "/" + c.model
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Key "+c.token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("flux: submit: %w", err)
	}
	defer resp.Body.Close()

	var out fluxSubmitResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, fmt.Errorf("flux: submit http %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("flux: decode submit response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		if out.Detail != "" {
			return nil, fmt.Errorf("flux: submit rejected: %s", out.Detail)
		}
		return nil, fmt.Errorf("flux: submit http %d", resp.StatusCode)
	}
	if out.RequestID == "" || out.StatusURL == "" || out.ResponseURL == "" {
		return nil, errors.New("flux: submit response missing queue references")
	}

	return &Handle{
		client:      c,
		Request:     req,
		RequestID:   out.RequestID,
		statusURL:   out.StatusURL,
		responseURL: out.ResponseURL,
	}, nil
}

// Await polls the queue until the job resolves, then fetches and returns
// the image bytes. The result payload carries a URL, not the bytes; a
// follow-up fetch pulls the binary.
func (h *Handle) Await(ctx context.Context) ([]byte, error) {
	if h == nil || h.client == nil {
		return nil, errors.New("flux: nil handle")
	}
	if err := h.poll(ctx); err != nil {
		return nil, err
	}
	url, err := h.result(ctx)
	if err != nil {
		return nil, err
	}
	return h.client.fetchImage(ctx, url)
}

func (h *Handle) poll(ctx context.Context) error {
	ticker := time.NewTicker(h.client.pollEvery)
	defer ticker.Stop()
	for {
		var status fluxStatusResp
		if err := h.client.getJSON(ctx, h.statusURL, &status); err != nil {
			return fmt.Errorf("flux: status %s: %w", h.RequestID, err)
		}
		switch status.Status {
		case statusCompleted:
			return nil
		case statusFailed:
			if status.Detail != "" {
				return fmt.Errorf("flux: job %s failed: %s", h.RequestID, status.Detail)
			}
			return fmt.Errorf("flux: job %s failed", h.RequestID)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (h *Handle) result(ctx context.Context) (string, error) {
	var result fluxResultResp
	if err := h.client.getJSON(ctx, h.responseURL, &result); err != nil {
		return "", fmt.Errorf("flux: result %s: %w", h.RequestID, err)
	}
	if len(result.Images) == 0 {
		if result.Detail != "" {
			return "", fmt.Errorf("flux: job %s: %s", h.RequestID, result.Detail)
		}
		return "", fmt.Errorf("flux: job %s returned no images", h.RequestID)
	}
	url := strings.TrimSpace(result.Images[0].URL)
	if url == "" {
		return "", fmt.Errorf("flux: job %s missing image url", h.RequestID)
	}
	return url, nil
}

func (c *FluxClient) getJSON(ctx context.Context, url string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Key "+c.token)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("http %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

func (c *FluxClient) fetchImage(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("flux: fetch image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("flux: fetch image http %d", resp.StatusCode)
	}
	// Read one byte past the cap: a truncated image must fail the job,
	// never get hashed and archived as if complete.
	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("flux: read image: %w", err)
	}
	if int64(len(data)) > c.maxBytes {
		return nil, fmt.Errorf("flux: image exceeds %d bytes", c.maxBytes)
	}
	if len(data) == 0 {
		return nil, errors.New("flux: empty image payload")
	}
	return data, nil
}
