// Package core provides the automation model types: opaque element
// handles, the portable attribute value union, command and replay
// results, and the structured error taxonomy.
package core

// Attachment represents a debug artifact captured during execution
type Attachment struct {
	Name        string `json:"name"`        // Descriptive name: hierarchy, event_log
	ContentType string `json:"contentType"` // MIME type: application/json, application/x-ndjson
	Path        string `json:"path"`        // File path relative to output directory
	Body        []byte `json:"-"`           // In-memory content (not serialized to JSON)
}

// Common attachment names
const (
	AttachmentHierarchy = "hierarchy"
	AttachmentEventLog  = "event_log"
)

// Common content types
const (
	ContentTypeJSON  = "application/json"
	ContentTypeJSONL = "application/x-ndjson"
)

// NewHierarchyAttachment creates a control-tree dump attachment
func NewHierarchyAttachment(path string, data []byte) Attachment {
	return Attachment{
		Name:        AttachmentHierarchy,
		ContentType: ContentTypeJSON,
		Path:        path,
		Body:        data,
	}
}

// NewEventLogAttachment creates a recorded event log attachment
func NewEventLogAttachment(path string, data []byte) Attachment {
	return Attachment{
		Name:        AttachmentEventLog,
		ContentType: ContentTypeJSONL,
		Path:        path,
		Body:        data,
	}
}

// ArtifactConfig controls when and what artifacts are captured
type ArtifactConfig struct {
	// When to capture
	CaptureOnFailure bool `yaml:"captureOnFailure" json:"captureOnFailure"` // Default: true
	CaptureOnSuccess bool `yaml:"captureOnSuccess" json:"captureOnSuccess"` // Default: false

	// What to capture
	Hierarchy bool `yaml:"hierarchy" json:"hierarchy"` // Default: true
	EventLog  bool `yaml:"eventLog" json:"eventLog"`   // Default: false (verbose)
}

// DefaultArtifactConfig returns sensible defaults for artifact capture
func DefaultArtifactConfig() ArtifactConfig {
	return ArtifactConfig{
		CaptureOnFailure: true,
		CaptureOnSuccess: false,
		Hierarchy:        true,
		EventLog:         false,
	}
}

// ShouldCapture returns true if artifacts should be captured for the given status
func (c ArtifactConfig) ShouldCapture(status StepStatus) bool {
	switch status {
	case StatusFailed, StatusErrored:
		return c.CaptureOnFailure
	case StatusPassed:
		return c.CaptureOnSuccess
	default:
		return false
	}
}
