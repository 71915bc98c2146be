package domain

import (
	"strings"
	"time"
)

// Mode selects which workflow a batch run executes.
type Mode string

const (
	// ModeText resolves the prompt template and generates from text only.
	ModeText Mode = "text"
	// ModeDescribe derives a description from a reference image first and
	// injects it into the prompt template.
	ModeDescribe Mode = "describe"
	// ModeComponent segments a target component out of the reference image
	// and runs masked image-to-image generation per detected mask.
	ModeComponent Mode = "component"
)

// RunStatus tracks the lifecycle of a batch run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusSucceeded RunStatus = "SUCCEEDED"
	RunStatusFailed    RunStatus = "FAILED"
)

// RunRecord is the durable summary of one completed batch run. Only
// metadata is kept; image bytes and dedupe state never outlive the run.
type RunRecord struct {
	ID         string
	Mode       Mode
	Template   string
	Requested  int
	Unique     int
	Duplicates int
	Failed     int
	Status     RunStatus
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// NormalizeMode sanitizes free-form user input into a supported mode.
func NormalizeMode(mode string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", string(ModeText):
		return ModeText, true
	case string(ModeDescribe):
		return ModeDescribe, true
	case string(ModeComponent):
		return ModeComponent, true
	default:
		return "", false
	}
}
