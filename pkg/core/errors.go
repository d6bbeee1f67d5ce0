package core

import (
	"fmt"
)

// AutomationError represents a structured error with category and details
type AutomationError struct {
	Category ErrorCategory
	Code     string                 // Machine-readable code: element_stale, timeout, etc.
	Message  string                 // Human-readable message
	Details  map[string]interface{} // Additional context
	Cause    error                  // Underlying error
}

// Error implements the error interface
func (e *AutomationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AutomationError) Unwrap() error {
	return e.Cause
}

// Is matches by category and code, so errors.Is recognizes WithCause /
// WithMessage copies of the predefined errors.
func (e *AutomationError) Is(target error) bool {
	t, ok := target.(*AutomationError)
	if !ok {
		return false
	}
	return e.Category == t.Category && e.Code == t.Code
}

// WithCause returns a copy of the error with the given cause
func (e *AutomationError) WithCause(cause error) *AutomationError {
	return &AutomationError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  e.Details,
		Cause:    cause,
	}
}

// WithMessage returns a copy of the error with a custom message
func (e *AutomationError) WithMessage(msg string) *AutomationError {
	return &AutomationError{
		Category: e.Category,
		Code:     e.Code,
		Message:  msg,
		Details:  e.Details,
		Cause:    e.Cause,
	}
}

// WithDetails returns a copy of the error with additional details
func (e *AutomationError) WithDetails(details map[string]interface{}) *AutomationError {
	merged := make(map[string]interface{})
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AutomationError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  merged,
		Cause:    e.Cause,
	}
}

// Predefined errors
var (
	// Attribute errors. Absorbed locally by the tree walker: an
	// unavailable attribute is omitted from the snapshot, never escalated.
	ErrAttributeUnavailable = &AutomationError{
		Category: ErrCategoryAttribute,
		Code:     "attribute_unavailable",
		Message:  "attribute is not available on this element",
	}
	ErrAttributeNotSettable = &AutomationError{
		Category: ErrCategoryAttribute,
		Code:     "attribute_not_settable",
		Message:  "attribute does not support writes",
	}

	// Element errors
	ErrElementStale = &AutomationError{
		Category: ErrCategoryElement,
		Code:     "element_stale",
		Message:  "element handle no longer resolves",
	}
	ErrControlNotFound = &AutomationError{
		Category: ErrCategoryElement,
		Code:     "control_not_found",
		Message:  "no descendant control matched the query",
	}
	ErrActionFailed = &AutomationError{
		Category: ErrCategoryElement,
		Code:     "action_failed",
		Message:  "element action could not be performed",
	}

	// Strategy errors
	ErrStrategyExhausted = &AutomationError{
		Category: ErrCategoryStrategy,
		Code:     "strategy_exhausted",
		Message:  "all strategies failed",
	}
	ErrValueMismatch = &AutomationError{
		Category: ErrCategoryStrategy,
		Code:     "value_mismatch",
		Message:  "read-back value does not match the written value",
	}
	ErrValueOutOfRange = &AutomationError{
		Category: ErrCategoryStrategy,
		Code:     "value_out_of_range",
		Message:  "value is outside the control's accepted range",
	}

	// Timeout errors
	ErrTimeout = &AutomationError{
		Category: ErrCategoryTimeout,
		Code:     "timeout",
		Message:  "operation timed out",
	}

	// Permission errors. Fatal at startup; never retried.
	ErrPermissionDenied = &AutomationError{
		Category: ErrCategoryPermission,
		Code:     "permission_denied",
		Message:  "process lacks accessibility authorization",
	}

	// Input errors
	ErrInputFailed = &AutomationError{
		Category: ErrCategoryInput,
		Code:     "input_failed",
		Message:  "synthetic input could not be delivered",
	}

	// Config errors
	ErrInvalidConfig = &AutomationError{
		Category: ErrCategoryConfig,
		Code:     "invalid_config",
		Message:  "invalid configuration",
	}

	// Protocol errors
	ErrInvalidProtocol = &AutomationError{
		Category: ErrCategoryProtocol,
		Code:     "invalid_protocol",
		Message:  "protocol file is invalid",
	}
	ErrUnknownStep = &AutomationError{
		Category: ErrCategoryProtocol,
		Code:     "unknown_step",
		Message:  "unknown step type",
	}
)

// NewAutomationError creates a new AutomationError with the given parameters
func NewAutomationError(category ErrorCategory, code, message string) *AutomationError {
	return &AutomationError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}
