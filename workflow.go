package taskgraph

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Workflow is a container of tasks: it owns the worker pool, the
// notification bus, and the graph topology, and is the entry point for
// lifecycle operations (start/cancel/reset/retry).
type Workflow struct {
	id   string
	name string

	delegate WorkflowDelegate
	pool     *WorkerPool
	bus      *NotificationBus
	logger   *slog.Logger

	mu          sync.Mutex
	tasks       []*Task
	taskSet     map[*Task]struct{}
	roots       []*Task // tasksWithNoPrerequisites, fixed at add-time
	started     bool
	finishFired bool
}

// WorkflowOption configures a Workflow at construction.
type WorkflowOption func(*Workflow)

// WithWorkflowDelegate attaches an observer for workflow-level callbacks.
func WithWorkflowDelegate(d WorkflowDelegate) WorkflowOption {
	return func(w *Workflow) { w.delegate = d }
}

// WithWorkerPool overrides the default worker pool.
func WithWorkerPool(p *WorkerPool) WorkflowOption {
	return func(w *Workflow) {
		if p != nil {
			w.pool = p
		}
	}
}

// WithNotificationBus overrides the default notification bus.
func WithNotificationBus(b *NotificationBus) WorkflowOption {
	return func(w *Workflow) {
		if b != nil {
			w.bus = b
		}
	}
}

// WithWorkflowLogger attaches a structured logger to the workflow.
func WithWorkflowLogger(l *slog.Logger) WorkflowOption {
	return func(w *Workflow) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWorkflow constructs an empty workflow. If no pool or bus is supplied via
// options, a default bounded pool and a fresh notification bus are created.
func NewWorkflow(name string, opts ...WorkflowOption) *Workflow {
	id := NewID()
	w := &Workflow{
		id:      id,
		name:    normalizeName(name, "workflow", id),
		taskSet: make(map[*Task]struct{}),
		logger:  nopLogger,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.pool == nil {
		w.pool = NewWorkerPool(0, WithPoolLogger(w.logger))
	}
	if w.bus == nil {
		w.bus = NewNotificationBus()
	}
	return w
}

// ID returns the workflow's stable identifier.
func (w *Workflow) ID() string { return w.id }

// Name returns the workflow's human name.
func (w *Workflow) Name() string { return w.name }

// Bus returns the workflow's notification bus, for subscribing observers
// (see the observer subpackage).
func (w *Workflow) Bus() *NotificationBus { return w.bus }

func (w *Workflow) hasStarted() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.started
}

// AddTask wires t into the workflow with the given unkeyed and keyed
// prerequisites. All prerequisites must already have been added to this
// workflow; t must not already belong to any workflow; t's required
// prerequisite keys (set via WithRequiredKeys) must be covered by keyed.
// Edges are wired both directions and t's initial state is computed: Ready
// if it has no prerequisites, Pending otherwise (silently — no notification
// is emitted for this state change).
func (w *Workflow) AddTask(t *Task, unkeyed []*Task, keyed map[string]*Task) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t.workflow != nil {
		return &ErrAlreadyInWorkflow{Task: t.name}
	}
	for _, p := range unkeyed {
		if _, ok := w.taskSet[p]; !ok {
			return &ErrUnknownPrerequisite{Task: t.name, Prerequisite: p.name}
		}
	}
	for _, p := range keyed {
		if _, ok := w.taskSet[p]; !ok {
			return &ErrUnknownPrerequisite{Task: t.name, Prerequisite: p.name}
		}
	}
	var missing []string
	for k := range t.requiredKeys {
		if _, ok := keyed[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return &ErrMissingRequiredKeys{Task: t.name, Missing: missing}
	}

	t.unkeyedPrereqs = append([]*Task(nil), unkeyed...)
	t.keyedPrereqs = make(map[string]*Task, len(keyed))
	for k, p := range keyed {
		t.keyedPrereqs[k] = p
	}
	t.workflow = w
	t.state = t.initialState()

	for _, p := range unkeyed {
		p.dependents = append(p.dependents, t)
	}
	for _, p := range keyed {
		p.dependents = append(p.dependents, t)
	}

	w.tasks = append(w.tasks, t)
	w.taskSet[t] = struct{}{}
	if !t.hasPrerequisites() {
		w.roots = append(w.roots, t)
	}
	return nil
}

// AllTasks returns every task added to the workflow, in add-order.
func (w *Workflow) AllTasks() []*Task {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]*Task, len(w.tasks))
	copy(out, w.tasks)
	return out
}

// TasksWithNoPrerequisites returns the workflow's root tasks.
func (w *Workflow) TasksWithNoPrerequisites() []*Task {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]*Task, len(w.roots))
	copy(out, w.roots)
	return out
}

// TasksWithNoDependents returns the workflow's leaf tasks. Unlike roots,
// this set isn't fixed at add-time (a task's dependents grow as later tasks
// name it as a prerequisite), so it is recomputed on every call.
func (w *Workflow) TasksWithNoDependents() []*Task {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []*Task
	for _, t := range w.tasks {
		if len(t.dependents) == 0 {
			out = append(out, t)
		}
	}
	return out
}

// RequiredPrerequisiteKeysFor returns the keys t required at add-time, and
// whether t is a member of this workflow.
func (w *Workflow) RequiredPrerequisiteKeysFor(t *Task) (map[string]struct{}, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.taskSet[t]; !ok {
		return nil, false
	}
	out := make(map[string]struct{}, len(t.requiredKeys))
	for k := range t.requiredKeys {
		out[k] = struct{}{}
	}
	return out, true
}

// PrerequisitesFor returns t's prerequisites (unkeyed ∪ keyed values), or nil
// if t does not belong to this workflow.
func (w *Workflow) PrerequisitesFor(t *Task) ([]*Task, bool) {
	w.mu.Lock()
	_, ok := w.taskSet[t]
	w.mu.Unlock()
	if !ok {
		return nil, false
	}
	return t.allPrerequisites(), true
}

// DependentsFor returns a snapshot of t's dependents, or nil if t does not
// belong to this workflow.
func (w *Workflow) DependentsFor(t *Task) ([]*Task, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.taskSet[t]; !ok {
		return nil, false
	}
	out := make([]*Task, len(t.dependents))
	copy(out, t.dependents)
	return out, true
}

// Start emits WorkflowWillStart then sends start to every prerequisite-less
// task. An empty workflow immediately fires WorkflowDidFinish.
func (w *Workflow) Start() {
	w.mu.Lock()
	w.started = true
	w.finishFired = false
	roots := append([]*Task(nil), w.roots...)
	w.mu.Unlock()

	w.logger.Info("workflow starting", "workflow_id", w.id, "workflow", w.name)
	w.bus.Post(Notification{Event: EventWorkflowWillStart, Source: w})
	for _, t := range roots {
		t.Start()
	}
	w.maybeFireFinish()
}

// Cancel emits WorkflowWillCancel then sends cancel to every
// prerequisite-less task, which propagate transitively to their dependents.
func (w *Workflow) Cancel() {
	w.mu.Lock()
	roots := append([]*Task(nil), w.roots...)
	w.mu.Unlock()

	w.bus.Post(Notification{Event: EventWorkflowWillCancel, Source: w})
	for _, t := range roots {
		t.Cancel()
	}
}

// Reset emits WorkflowWillReset then sends reset to every prerequisite-less
// task, which propagate transitively.
func (w *Workflow) Reset() {
	w.mu.Lock()
	w.finishFired = false
	roots := append([]*Task(nil), w.roots...)
	w.mu.Unlock()

	w.bus.Post(Notification{Event: EventWorkflowWillReset, Source: w})
	for _, t := range roots {
		t.Reset()
	}
}

// Retry emits WorkflowWillRetry then sends retry to every prerequisite-less
// task, which propagate transitively.
func (w *Workflow) Retry() {
	w.mu.Lock()
	roots := append([]*Task(nil), w.roots...)
	w.mu.Unlock()

	w.bus.Post(Notification{Event: EventWorkflowWillRetry, Source: w})
	for _, t := range roots {
		t.Retry()
	}
}

// HasUnfinishedTasks reports whether any task is not in a terminal state.
func (w *Workflow) HasUnfinishedTasks() bool {
	for _, t := range w.AllTasks() {
		if !t.State().IsTerminal() {
			return true
		}
	}
	return false
}

// HasFailedTasks reports whether any task is in Failed.
func (w *Workflow) HasFailedTasks() bool {
	for _, t := range w.AllTasks() {
		if t.State() == Failed {
			return true
		}
	}
	return false
}

// hasCancelledTasks reports whether any task is in Cancelled.
func (w *Workflow) hasCancelledTasks() bool {
	for _, t := range w.AllTasks() {
		if t.State() == Cancelled {
			return true
		}
	}
	return false
}

// maybeFireFinish fires WorkflowDidFinish exactly once per run, the moment
// every task has reached Finished with no failures and no cancellations. It
// is re-armed by Start/Reset. Called after every task transitions to
// Finished, plus once after Start itself (to catch the empty-workflow and
// already-all-finished cases).
func (w *Workflow) maybeFireFinish() {
	w.mu.Lock()
	if w.finishFired {
		w.mu.Unlock()
		return
	}
	if w.hasUnfinishedTasksLocked() || w.hasFailedTasksLocked() || w.hasCancelledTasksLocked() {
		w.mu.Unlock()
		return
	}
	w.finishFired = true
	w.mu.Unlock()

	w.logger.Info("workflow finished", "workflow_id", w.id, "workflow", w.name)
	if w.delegate != nil {
		w.delegate.WorkflowDidFinish(w)
	}
	w.bus.Post(Notification{Event: EventWorkflowDidFinish, Source: w})
}

// hasUnfinishedTasksLocked, hasFailedTasksLocked, hasCancelledTasksLocked are
// w.mu-held variants of the public scans, used by maybeFireFinish which
// already holds w.mu on entry.
func (w *Workflow) hasUnfinishedTasksLocked() bool {
	for _, t := range w.tasks {
		if !t.State().IsTerminal() {
			return true
		}
	}
	return false
}

func (w *Workflow) hasFailedTasksLocked() bool {
	for _, t := range w.tasks {
		if t.State() == Failed {
			return true
		}
	}
	return false
}

func (w *Workflow) hasCancelledTasksLocked() bool {
	for _, t := range w.tasks {
		if t.State() == Cancelled {
			return true
		}
	}
	return false
}

// Describe returns a deterministic, add-order textual dump of task
// names/states, for debugging. It is not identity formatting of a single
// task (out of scope) — just a workflow-level snapshot.
func (w *Workflow) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "workflow %q (%s)\n", w.name, w.id)
	for _, t := range w.AllTasks() {
		fmt.Fprintf(&b, "  %s: %s\n", t.name, t.State())
	}
	return b.String()
}
