package core

// StepStatus represents the execution status of a replayed protocol step
type StepStatus int

const (
	StatusPending StepStatus = iota // Not yet started
	StatusRunning                   // Currently executing
	StatusPassed                    // Completed successfully
	StatusFailed                    // Expected behavior did not occur
	StatusErrored                   // Unexpected error (stale handle, timeout, crash)
	StatusSkipped                   // Condition not met or previous step failed
	StatusWarned                    // Optional step failed (non-blocking)
)

// String returns the string representation of StepStatus
func (s StepStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusErrored:
		return "errored"
	case StatusSkipped:
		return "skipped"
	case StatusWarned:
		return "warned"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if the status is a final state
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusErrored, StatusSkipped, StatusWarned:
		return true
	default:
		return false
	}
}

// IsSuccess returns true if the status indicates success (passed or warned)
func (s StepStatus) IsSuccess() bool {
	return s == StatusPassed || s == StatusWarned
}

// ErrorCategory classifies the type of error for better debugging and reporting
type ErrorCategory int

const (
	ErrCategoryNone       ErrorCategory = iota // No error
	ErrCategoryAttribute                       // Attribute read/write refused by the element
	ErrCategoryElement                         // Stale handle, missing control, failed action
	ErrCategoryStrategy                        // All fallback strategies failed
	ErrCategoryTimeout                         // A strategy attempt or wait exceeded its bound
	ErrCategoryPermission                      // Accessibility authorization missing
	ErrCategoryInput                           // Synthetic input delivery failed
	ErrCategoryConfig                          // Invalid configuration, missing required field
	ErrCategoryProtocol                        // Protocol file parse or validation failure
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryAttribute:
		return "attribute"
	case ErrCategoryElement:
		return "element"
	case ErrCategoryStrategy:
		return "strategy"
	case ErrCategoryTimeout:
		return "timeout"
	case ErrCategoryPermission:
		return "permission"
	case ErrCategoryInput:
		return "input"
	case ErrCategoryConfig:
		return "config"
	case ErrCategoryProtocol:
		return "protocol"
	default:
		return "unknown"
	}
}
