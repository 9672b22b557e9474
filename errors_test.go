package taskgraph

import (
	"errors"
	"testing"
)

func TestErrAlreadyInWorkflowError(t *testing.T) {
	err := &ErrAlreadyInWorkflow{Task: "a"}
	want := `taskgraph: task "a" already belongs to a workflow`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestErrUnknownPrerequisiteError(t *testing.T) {
	err := &ErrUnknownPrerequisite{Task: "b", Prerequisite: "a"}
	want := `taskgraph: task "b" references prerequisite "a" not present in this workflow`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestErrMissingRequiredKeysError(t *testing.T) {
	err := &ErrMissingRequiredKeys{Task: "t", Missing: []string{"a", "b"}}
	want := `taskgraph: task "t" is missing required prerequisite keys: a, b`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestErrNotExecutingError(t *testing.T) {
	err := &ErrNotExecuting{Task: "t", Op: "finish"}
	want := `taskgraph: finish called on task "t" while not Executing`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestErrConditionNotFulfilledIsSentinel(t *testing.T) {
	if !errors.Is(ErrConditionNotFulfilled, ErrConditionNotFulfilled) {
		t.Fatal("ErrConditionNotFulfilled is not itself")
	}
}

var (
	_ error = (*ErrAlreadyInWorkflow)(nil)
	_ error = (*ErrUnknownPrerequisite)(nil)
	_ error = (*ErrMissingRequiredKeys)(nil)
	_ error = (*ErrNotExecuting)(nil)
)
