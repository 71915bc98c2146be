package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Hemang2904/jewelbench-flux-gen/internal/domain"
)

// SegmentOptions configures a SegmentClient.
type SegmentOptions struct {
	Endpoint   EndpointConfig
	APIKey     string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// SegmentClient asks a hosted segmentation model for masks matching a
// free-text target ("the gemstone", "the band"). Component-mode runs
// use one mask per masked edit job.
type SegmentClient struct {
	httpClient *http.Client
	baseURL    string
	model      string
	token      string
}

func NewSegmentClient(opts SegmentOptions) *SegmentClient {
	base := strings.TrimRight(opts.Endpoint.BaseURL, "/")
	if base == "" {
		base = "https://fal.run"
	}
	model := strings.Trim(opts.Endpoint.Model, "/")
	if model == "" {
		model = "fal-ai/sam2"
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &SegmentClient{
		httpClient: client,
		baseURL:    base,
		model:      model,
		token:      strings.TrimSpace(opts.APIKey),
	}
}

type segmentPayload struct {
	ImageURL   string `json:"image_url"`
	TextPrompt string `json:"text_prompt"`
}

type segmentResp struct {
	Masks []struct {
		URL string `json:"url"`
	} `json:"masks"`
	Detail string `json:"detail"`
}

// Segment returns mask URLs for the requested target. Zero detections
// are a hard stop: the caller gets ErrNoDetection, never a silent
// fallback to unmasked generation.
func (c *SegmentClient) Segment(ctx context.Context, image []byte, mime, target string) ([]string, error) {
	if c == nil {
		return nil, errors.New("segment client not configured")
	}
	if c.token == "" {
		return nil, fmt.Errorf("segment: %w", domain.ErrMissingCredential)
	}
	if len(image) == 0 {
		return nil, fmt.Errorf("segment: %w", domain.ErrMissingReference)
	}
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, errors.New("segment: target description required")
	}

	body, err := json.Marshal(segmentPayload{ImageURL: DataURI(image, mime), TextPrompt: target})
	if err != nil {
		return nil, err
	}
	endpoint := c.baseURL + "/" + c.model
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Key "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("segment: %w", err)
	}
	defer resp.Body.Close()

	var out segmentResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, fmt.Errorf("segment: http %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("segment: decode response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		if out.Detail != "" {
			return nil, fmt.Errorf("segment error: %s", out.Detail)
		}
		return nil, fmt.Errorf("segment: http %d", resp.StatusCode)
	}

	masks := make([]string, 0, len(out.Masks))
	for _, m := range out.Masks {
		if url := strings.TrimSpace(m.URL); url != "" {
			masks = append(masks, url)
		}
	}
	if len(masks) == 0 {
		return nil, fmt.Errorf("segment: %w for %q", domain.ErrNoDetection, target)
	}
	return masks, nil
}
