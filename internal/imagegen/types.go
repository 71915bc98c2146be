package imagegen

import (
	"encoding/base64"
	"strings"
)

// EndpointConfig identifies a hosted model endpoint. Provider variants
// are data, not separate code paths: point Model at another queue
// endpoint and the client keeps working.
type EndpointConfig struct {
	BaseURL string
	Model   string
}

// GenerationRequest carries everything one generation job needs. It is
// immutable once submitted.
type GenerationRequest struct {
	Prompt string

	// Reference conditioning. Inline bytes win over a hosted URL.
	ReferenceImage []byte
	ReferenceMIME  string
	ReferenceURL   string

	// Mask conditioning for component-targeted edits.
	Mask     []byte
	MaskMIME string
	MaskURL  string

	Strength      float64
	GuidanceScale float64
	AspectRatio   string
	OutputFormat  string
}

// DataURI encodes raw bytes as an inline data URI accepted by the
// generation service in place of a hosted URL.
func DataURI(data []byte, mime string) string {
	if len(data) == 0 {
		return ""
	}
	if strings.TrimSpace(mime) == "" {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func (r GenerationRequest) referenceURI() string {
	if len(r.ReferenceImage) > 0 {
		return DataURI(r.ReferenceImage, r.ReferenceMIME)
	}
	return strings.TrimSpace(r.ReferenceURL)
}

func (r GenerationRequest) maskURI() string {
	if len(r.Mask) > 0 {
		return DataURI(r.Mask, r.MaskMIME)
	}
	return strings.TrimSpace(r.MaskURL)
}
