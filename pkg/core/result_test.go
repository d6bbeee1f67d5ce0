package core

import (
	"testing"
	"time"
)

func TestRunResult_ComputeSummary(t *testing.T) {
	run := &RunResult{
		Name: "test-protocol",
		Steps: []StepResult{
			{Index: 0, Status: StatusPassed},
			{Index: 1, Status: StatusPassed},
			{Index: 2, Status: StatusFailed},
			{Index: 3, Status: StatusSkipped},
			{Index: 4, Status: StatusWarned},
			{Index: 5, Status: StatusErrored},
		},
	}

	run.ComputeSummary()

	if run.TotalSteps != 6 {
		t.Errorf("TotalSteps = %d, want 6", run.TotalSteps)
	}
	if run.PassedSteps != 2 {
		t.Errorf("PassedSteps = %d, want 2", run.PassedSteps)
	}
	if run.FailedSteps != 2 { // Failed + Errored
		t.Errorf("FailedSteps = %d, want 2", run.FailedSteps)
	}
	if run.SkippedSteps != 1 {
		t.Errorf("SkippedSteps = %d, want 1", run.SkippedSteps)
	}
	if run.WarnedSteps != 1 {
		t.Errorf("WarnedSteps = %d, want 1", run.WarnedSteps)
	}
}

func TestRunResult_ComputeSummary_Empty(t *testing.T) {
	run := &RunResult{Name: "empty"}
	run.ComputeSummary()

	if run.TotalSteps != 0 {
		t.Errorf("TotalSteps = %d, want 0", run.TotalSteps)
	}
}

func TestRunResult_ComputeSummary_Flaky(t *testing.T) {
	run := &RunResult{
		Steps: []StepResult{
			{Status: StatusPassed, Flaky: true},
			{Status: StatusPassed},
		},
	}

	run.ComputeSummary()

	if run.FlakySteps != 1 {
		t.Errorf("FlakySteps = %d, want 1", run.FlakySteps)
	}
}

func TestRunResult_AggregateStatus(t *testing.T) {
	tests := []struct {
		name     string
		steps    []StepResult
		expected StepStatus
	}{
		{
			"all passed",
			[]StepResult{{Status: StatusPassed}, {Status: StatusPassed}},
			StatusPassed,
		},
		{
			"with warned",
			[]StepResult{{Status: StatusPassed}, {Status: StatusWarned}},
			StatusWarned,
		},
		{
			"with failed",
			[]StepResult{{Status: StatusPassed}, {Status: StatusFailed}},
			StatusFailed,
		},
		{
			"with errored",
			[]StepResult{{Status: StatusErrored}},
			StatusFailed,
		},
		{
			"failed beats warned",
			[]StepResult{{Status: StatusWarned}, {Status: StatusFailed}},
			StatusFailed,
		},
		{
			"empty",
			nil,
			StatusPassed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := &RunResult{Steps: tt.steps}
			if got := run.AggregateStatus(); got != tt.expected {
				t.Errorf("AggregateStatus() = %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestSuiteResult_ComputeSummary(t *testing.T) {
	suite := &SuiteResult{
		Name:      "suite",
		StartTime: time.Now(),
		Runs: []RunResult{
			{Status: StatusPassed},
			{Status: StatusWarned},
			{Status: StatusFailed},
			{Status: StatusSkipped},
			{Status: StatusPassed, FlakySteps: 2},
		},
	}

	suite.ComputeSummary()

	if suite.TotalRuns != 5 {
		t.Errorf("TotalRuns = %d, want 5", suite.TotalRuns)
	}
	if suite.PassedRuns != 3 { // passed + warned + flaky-passed
		t.Errorf("PassedRuns = %d, want 3", suite.PassedRuns)
	}
	if suite.FailedRuns != 1 {
		t.Errorf("FailedRuns = %d, want 1", suite.FailedRuns)
	}
	if suite.SkippedRuns != 1 {
		t.Errorf("SkippedRuns = %d, want 1", suite.SkippedRuns)
	}
	if suite.FlakyRuns != 1 {
		t.Errorf("FlakyRuns = %d, want 1", suite.FlakyRuns)
	}
}

func TestSuiteResult_Success(t *testing.T) {
	tests := []struct {
		name     string
		runs     []RunResult
		expected bool
	}{
		{"all passed", []RunResult{{Status: StatusPassed}}, true},
		{"warned counts as success", []RunResult{{Status: StatusWarned}}, true},
		{"one failed", []RunResult{{Status: StatusPassed}, {Status: StatusFailed}}, false},
		{"no runs", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			suite := &SuiteResult{Runs: tt.runs}
			if got := suite.Success(); got != tt.expected {
				t.Errorf("Success() = %v, want %v", got, tt.expected)
			}
		})
	}
}
