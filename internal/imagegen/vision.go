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

// VisionOptions configures a VisionClient.
type VisionOptions struct {
	Endpoint   EndpointConfig
	APIKey     string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// VisionClient asks a hosted vision model to describe an image. The
// description is free text and feeds the describe-mode prompt template.
type VisionClient struct {
	httpClient *http.Client
	baseURL    string
	model      string
	token      string
}

func NewVisionClient(opts VisionOptions) *VisionClient {
	base := strings.TrimRight(opts.Endpoint.BaseURL, "/")
	if base == "" {
		base = "https://fal.run"
	}
	model := strings.Trim(opts.Endpoint.Model, "/")
	if model == "" {
		model = "fal-ai/llava-next"
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &VisionClient{
		httpClient: client,
		baseURL:    base,
		model:      model,
		token:      strings.TrimSpace(opts.APIKey),
	}
}

type visionPayload struct {
	ImageURL string `json:"image_url"`
	Prompt   string `json:"prompt"`
}

type visionResp struct {
	Output string `json:"output"`
	Detail string `json:"detail"`
}

// Describe submits the image with a free-text instruction and returns
// the model's description.
func (c *VisionClient) Describe(ctx context.Context, image []byte, mime, instruction string) (string, error) {
	if c == nil {
		return "", errors.New("vision client not configured")
	}
	if c.token == "" {
		return "", fmt.Errorf("vision: %w", domain.ErrMissingCredential)
	}
	if len(image) == 0 {
		return "", fmt.Errorf("vision: %w", domain.ErrMissingReference)
	}
	if strings.TrimSpace(instruction) == "" {
		instruction = "Describe this jewelry piece in detail: materials, gemstones, style and setting."
	}

	body, err := json.Marshal(visionPayload{ImageURL: DataURI(image, mime), Prompt: instruction})
	if err != nil {
		return "", err
	}
	endpoint := c.baseURL + "/" + c.model
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Key "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("vision: %w", err)
	}
	defer resp.Body.Close()

	var out visionResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return "", fmt.Errorf("vision: http %d", resp.StatusCode)
		}
		return "", fmt.Errorf("vision: decode response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		if out.Detail != "" {
			return "", fmt.Errorf("vision error: %s", out.Detail)
		}
		return "", fmt.Errorf("vision: http %d", resp.StatusCode)
	}
	description := strings.TrimSpace(out.Output)
	if description == "" {
		return "", errors.New("vision: empty description")
	}
	return description, nil
}
