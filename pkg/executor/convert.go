package executor

import (
	"context"
	"errors"
	"time"

	"github.com/tonyatml/logic-automator-sub001/pkg/core"
	"github.com/tonyatml/logic-automator-sub001/pkg/protocol"
)

// newStepResult builds a StepResult from a command outcome. A nil result
// counts as success (steps like wait produce no command output).
func newStepResult(idx int, step protocol.Step, res *core.CommandResult, start time.Time) core.StepResult {
	sr := core.StepResult{
		Step:      step,
		Index:     idx,
		Command:   string(step.Type()),
		StartTime: start,
		Duration:  time.Since(start),
	}

	if res == nil {
		sr.Status = core.StatusPassed
		return sr
	}

	sr.Message = res.Message
	sr.Element = res.Element
	sr.Value = res.Value
	sr.Attempts = res.Attempts

	if res.Success {
		sr.Status = core.StatusPassed
		return sr
	}

	sr.Status = statusForError(res.Error)
	sr.Category = errorCategory(res.Error)
	if res.Error != nil {
		sr.Error = res.Error.Error()
	} else {
		sr.Error = res.Message
	}

	// Optional step failures degrade to warnings
	if step.IsOptional() {
		sr.Status = core.StatusWarned
	}

	return sr
}

// statusForError separates expected assertion failures from unexpected
// breakage. Stale elements, timeouts, permission and input faults mean
// the run itself broke; everything else is the protocol not holding.
func statusForError(err error) core.StepStatus {
	if err == nil {
		return core.StatusFailed
	}

	var ae *core.AutomationError
	if errors.As(err, &ae) {
		switch ae.Category {
		case core.ErrCategoryElement, core.ErrCategoryTimeout,
			core.ErrCategoryPermission, core.ErrCategoryInput:
			return core.StatusErrored
		default:
			return core.StatusFailed
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return core.StatusErrored
	}

	return core.StatusFailed
}

// errorCategory extracts the category from an error for reporting.
func errorCategory(err error) core.ErrorCategory {
	if err == nil {
		return core.ErrCategoryNone
	}

	var ae *core.AutomationError
	if errors.As(err, &ae) {
		return ae.Category
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return core.ErrCategoryTimeout
	}

	return core.ErrCategoryNone
}
