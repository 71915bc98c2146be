package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrMissingCredential = errors.New("api credential is required")
	ErrMissingReference  = errors.New("reference image is required")
	ErrMalformedTemplate = errors.New("malformed prompt template")
	ErrNoDetection       = errors.New("no component detected")
	ErrUnsupportedMode   = errors.New("unsupported workflow mode")
)
