package taskgraph

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAlreadyInWorkflow is returned by Workflow.AddTask when the task already
// belongs to a workflow (its own or another). A Task belongs to at most one
// Workflow over its entire lifetime.
type ErrAlreadyInWorkflow struct {
	Task string
}

func (e *ErrAlreadyInWorkflow) Error() string {
	return fmt.Sprintf("taskgraph: task %q already belongs to a workflow", e.Task)
}

// ErrUnknownPrerequisite is returned by Workflow.AddTask when a named
// prerequisite has not itself already been added to the same workflow.
type ErrUnknownPrerequisite struct {
	Task         string
	Prerequisite string
}

func (e *ErrUnknownPrerequisite) Error() string {
	return fmt.Sprintf("taskgraph: task %q references prerequisite %q not present in this workflow", e.Task, e.Prerequisite)
}

// ErrMissingRequiredKeys is returned by Workflow.AddTask when the keyed
// prerequisites supplied at add-time don't cover the task's required keys.
type ErrMissingRequiredKeys struct {
	Task    string
	Missing []string
}

func (e *ErrMissingRequiredKeys) Error() string {
	return fmt.Sprintf("taskgraph: task %q is missing required prerequisite keys: %s", e.Task, strings.Join(e.Missing, ", "))
}

// ErrNotExecuting is returned when Finish or Fail is called on a task that is
// not currently Executing. This is a programming error: the caller's task
// body raced with a cancel/reset, or called finish/fail more than once.
type ErrNotExecuting struct {
	Task string
	Op   string
}

func (e *ErrNotExecuting) Error() string {
	return fmt.Sprintf("taskgraph: %s called on task %q while not Executing", e.Op, e.Task)
}

// ErrConditionNotFulfilled is the synthetic error a condition-task fails with
// whenever its body runs before Fulfill has been called.
var ErrConditionNotFulfilled = errors.New("taskgraph: condition not fulfilled")
