package taskgraph

import (
	"log/slog"
	"sync"
	"time"
)

// Body is the single capability a Task is polymorphic over: "execute,
// eventually calling Finish or Fail on self". Built-in variants (closure,
// condition, sub-workflow) are implementations of Body, not a subclass tree.
type Body interface {
	Run(t *Task)
}

// BodyFunc adapts a plain function to Body.
type BodyFunc func(t *Task)

// Run calls f(t).
func (f BodyFunc) Run(t *Task) { f(t) }

// NilResult stands in for a prerequisite's result in the aggregate result
// views (§4.2) when that prerequisite finished with a nil result, so callers
// can distinguish "finished with nil" from "not a prerequisite at all".
var NilResult = &struct{ tag string }{"taskgraph.NilResult"}

// Task is one unit of work: it owns its state, result/error, edges to its
// prerequisites/dependents, and a non-owning back-reference to the Workflow
// that contains it.
//
// The prerequisite edges are wired exactly once, by Workflow.AddTask, under
// the workflow's lock, and are not mutated after that call returns
// (invariant: the union of edges forms a DAG fixed by add-order).
// requiredKeys is filled by WithRequiredKeys at construction. The dependents
// slice is appended to, under the workflow's lock, each time a later AddTask
// names this task as a prerequisite. The state-machine methods read
// prerequisites and dependents without taking any lock.
// Only {state, result, err, finishDate, userInfo} are guarded by mu, per the
// per-task-lock model in the concurrency design.
type Task struct {
	id   string
	name string
	desc string

	body Body

	workflow *Workflow
	delegate TaskDelegate

	unkeyedPrereqs []*Task
	keyedPrereqs   map[string]*Task
	requiredKeys   map[string]struct{}
	dependents     []*Task

	mu         sync.Mutex
	state      State
	result     any
	err        error
	finishDate time.Time
	userInfo   map[string]any

	logger *slog.Logger
}

// TaskOption configures a Task at construction.
type TaskOption func(*Task)

// WithRequiredKeys declares the keyed-prerequisite keys this task demands.
// Workflow.AddTask rejects adding the task unless its keyed-prereqs map
// covers every one of these keys.
func WithRequiredKeys(keys ...string) TaskOption {
	return func(t *Task) {
		for _, k := range keys {
			t.requiredKeys[k] = struct{}{}
		}
	}
}

// WithTaskDelegate attaches an observer that receives finish/fail/cancel
// callbacks for this task.
func WithTaskDelegate(d TaskDelegate) TaskOption {
	return func(t *Task) { t.delegate = d }
}

// WithDescription attaches a free-text, engine-uninterpreted description.
func WithDescription(desc string) TaskOption {
	return func(t *Task) { t.desc = desc }
}

// WithTaskLogger attaches a structured logger to the task.
func WithTaskLogger(l *slog.Logger) TaskOption {
	return func(t *Task) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithUserInfo seeds the task's caller-attached metadata bag.
func WithUserInfo(key string, value any) TaskOption {
	return func(t *Task) { t.userInfo[key] = value }
}

// NewTask constructs a task with the given name and body. The task starts
// out unaffiliated with any Workflow; Workflow.AddTask wires it in and
// computes its initial state.
func NewTask(name string, body Body, opts ...TaskOption) *Task {
	id := NewID()
	t := &Task{
		id:           id,
		name:         normalizeName(name, "task", id),
		body:         body,
		keyedPrereqs: make(map[string]*Task),
		requiredKeys: make(map[string]struct{}),
		userInfo:     make(map[string]any),
		logger:       nopLogger,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ID returns the task's stable, time-sortable identifier.
func (t *Task) ID() string { return t.id }

// Name returns the task's human name.
func (t *Task) Name() string { return t.name }

// Description returns the task's free-text description, if any.
func (t *Task) Description() string { return t.desc }

// Workflow returns the workflow this task belongs to, or nil.
func (t *Task) Workflow() *Workflow { return t.workflow }

// State returns the task's current state.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// IsExecuting reports whether the task is currently Executing. Bodies should
// poll this cooperatively to honor an advisory cancel.
func (t *Task) IsExecuting() bool { return t.State() == Executing }

// IsCancelled reports whether the task has been cancelled.
func (t *Task) IsCancelled() bool { return t.State() == Cancelled }

// Result returns the task's result and whether it is valid (only true while
// Finished).
func (t *Task) Result() (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Finished {
		return nil, false
	}
	return t.result, true
}

// Err returns the task's error and whether it is valid (only true while
// Failed).
func (t *Task) Err() (error, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Failed {
		return nil, false
	}
	return t.err, true
}

// FinishDate returns the wall-clock time the task entered Finished or
// Failed, and whether that time is valid.
func (t *Task) FinishDate() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finishDate.IsZero() {
		return time.Time{}, false
	}
	return t.finishDate, true
}

// UserInfo returns the value stored under key in the task's caller-attached
// metadata bag.
func (t *Task) UserInfo(key string) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.userInfo[key]
	return v, ok
}

// SetUserInfo stores a value in the task's caller-attached metadata bag.
func (t *Task) SetUserInfo(key string, value any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.userInfo[key] = value
}

// allPrerequisites returns the union of unkeyed and keyed prerequisites.
// Edges are fixed after AddTask, so this needs no lock.
func (t *Task) allPrerequisites() []*Task {
	out := make([]*Task, 0, len(t.unkeyedPrereqs)+len(t.keyedPrereqs))
	out = append(out, t.unkeyedPrereqs...)
	for _, p := range t.keyedPrereqs {
		out = append(out, p)
	}
	return out
}

func (t *Task) hasPrerequisites() bool {
	return len(t.unkeyedPrereqs) > 0 || len(t.keyedPrereqs) > 0
}

// initialState returns Ready if t has no prerequisites, else Pending.
func (t *Task) initialState() State {
	if t.hasPrerequisites() {
		return Pending
	}
	return Ready
}

// postBus posts n on the owning workflow's bus, if the task has been added
// to a workflow. Lifecycle operations are only meaningful post-AddTask, but
// this keeps a premature Cancel/Reset/Retry call a no-op rather than a panic.
func (t *Task) postBus(n Notification) {
	if t.workflow != nil {
		t.workflow.bus.Post(n)
	}
}

// --- §4.2 prerequisite result access ---

// AnyPrerequisiteResult returns any one prerequisite's result; order is
// unspecified. These views are meaningful only while t is Executing, when
// all prerequisites are guaranteed Finished.
func (t *Task) AnyPrerequisiteResult() (any, bool) {
	for _, p := range t.allPrerequisites() {
		if r, ok := p.Result(); ok {
			return r, true
		}
	}
	return nil, false
}

// AllPrerequisiteResults returns results from every prerequisite (keyed ∪
// unkeyed), substituting NilResult for a prerequisite that finished with a
// nil result.
func (t *Task) AllPrerequisiteResults() []any {
	prereqs := t.allPrerequisites()
	out := make([]any, 0, len(prereqs))
	for _, p := range prereqs {
		r, ok := p.Result()
		if !ok {
			continue
		}
		if r == nil {
			r = NilResult
		}
		out = append(out, r)
	}
	return out
}

// AllUnkeyedPrerequisiteResults is AllPrerequisiteResults restricted to
// unkeyed prerequisites.
func (t *Task) AllUnkeyedPrerequisiteResults() []any {
	out := make([]any, 0, len(t.unkeyedPrereqs))
	for _, p := range t.unkeyedPrereqs {
		r, ok := p.Result()
		if !ok {
			continue
		}
		if r == nil {
			r = NilResult
		}
		out = append(out, r)
	}
	return out
}

// KeyedPrerequisiteResults returns key -> result for keyed prerequisites
// only.
func (t *Task) KeyedPrerequisiteResults() map[string]any {
	out := make(map[string]any, len(t.keyedPrereqs))
	for k, p := range t.keyedPrereqs {
		if r, ok := p.Result(); ok {
			out[k] = r
		}
	}
	return out
}

// PrerequisiteResultForKey returns the keyed prerequisite's result for k, or
// nil if there is no such key or it hasn't finished.
func (t *Task) PrerequisiteResultForKey(k string) any {
	p, ok := t.keyedPrereqs[k]
	if !ok {
		return nil
	}
	r, _ := p.Result()
	return r
}

// PrerequisiteResultsByTask returns Task -> result for every prerequisite,
// both keyed and unkeyed.
func (t *Task) PrerequisiteResultsByTask() map[*Task]any {
	out := make(map[*Task]any)
	for _, p := range t.allPrerequisites() {
		if r, ok := p.Result(); ok {
			out[p] = r
		}
	}
	return out
}

// --- §4.1 state machine ---

// Start transitions a Ready task to Executing by enqueuing its body on the
// owning workflow's worker pool. It is a silent no-op on a non-Ready task.
func (t *Task) Start() {
	t.mu.Lock()
	ready := t.state == Ready
	t.mu.Unlock()
	if !ready || t.workflow == nil {
		return
	}
	t.workflow.pool.Enqueue(func() { t.dispatch() })
}

// dispatch runs on a worker-pool goroutine: recheck Ready, CAS to Executing,
// emit DidStart, invoke the body. Rechecking here (rather than trusting the
// precondition in Start) lets a cancel that arrived while the item was
// queued win the race.
func (t *Task) dispatch() {
	t.mu.Lock()
	if t.state != Ready {
		t.mu.Unlock()
		return
	}
	t.state = Executing
	t.mu.Unlock()

	t.logger.Info("task started", "task_id", t.id, "task", t.name)
	t.workflow.bus.Post(Notification{Event: EventTaskDidStart, Source: t})

	t.body.Run(t)
}

// Finish transitions an Executing task to Finished, storing result. It is a
// programming error to call Finish outside Executing (e.g. because cancel
// won a race); in that case ErrNotExecuting is returned and the call has no
// effect.
func (t *Task) Finish(result any) error {
	t.mu.Lock()
	if t.state != Executing {
		t.mu.Unlock()
		err := &ErrNotExecuting{Task: t.name, Op: "finish"}
		t.logger.Warn("finish called outside Executing", "task_id", t.id, "task", t.name)
		return err
	}
	t.result = result
	t.finishDate = time.Now()
	t.state = Finished
	t.mu.Unlock()

	t.logger.Info("task finished", "task_id", t.id, "task", t.name)
	if t.delegate != nil {
		t.delegate.TaskDidFinish(t)
	}
	t.workflow.bus.Post(Notification{Event: EventTaskDidFinish, Source: t})

	for _, dep := range t.dependents {
		dep.tryBecomeReady()
	}
	t.workflow.maybeFireFinish()
	return nil
}

// Fail transitions an Executing task to Failed, storing err. Dependents are
// left in Pending; they are not cascaded into Cancelled or Failed.
func (t *Task) Fail(err error) error {
	t.mu.Lock()
	if t.state != Executing {
		t.mu.Unlock()
		opErr := &ErrNotExecuting{Task: t.name, Op: "fail"}
		t.logger.Warn("fail called outside Executing", "task_id", t.id, "task", t.name)
		return opErr
	}
	t.err = err
	t.finishDate = time.Now()
	t.state = Failed
	t.mu.Unlock()

	t.logger.Error("task failed", "task_id", t.id, "task", t.name, "error", err)
	if t.delegate != nil {
		t.delegate.TaskDidFail(t, err)
	}
	t.workflow.bus.Post(Notification{Event: EventTaskDidFail, Source: t})
	if t.workflow.delegate != nil {
		t.workflow.delegate.WorkflowTaskDidFail(t.workflow, t)
	}
	t.workflow.bus.Post(Notification{Event: EventWorkflowTaskDidFail, Source: t.workflow, Task: t})
	return nil
}

// tryBecomeReady moves t from Pending to Ready if every prerequisite is now
// Finished, and, if the owning workflow has been started at least once,
// immediately attempts Start. It is the engine-internal counterpart to the
// Pending -> (prereq finished, all prereqs Finished) -> Ready transition.
func (t *Task) tryBecomeReady() {
	t.mu.Lock()
	if t.state != Pending {
		t.mu.Unlock()
		return
	}
	for _, p := range t.allPrerequisites() {
		if p.State() != Finished {
			t.mu.Unlock()
			return
		}
	}
	t.state = Ready
	t.mu.Unlock()

	if t.workflow.hasStarted() {
		t.Start()
	}
}

// Cancel transitions t to Cancelled from any of {Pending, Ready, Executing}
// and propagates the cancel to its dependents. It is idempotent: cancelling
// an already-terminal task is a no-op (no notification, no propagation).
func (t *Task) Cancel() {
	t.mu.Lock()
	if !oneOf(t.state, Pending, Ready, Executing) {
		t.mu.Unlock()
		return
	}
	t.state = Cancelled
	t.mu.Unlock()

	t.logger.Info("task cancelled", "task_id", t.id, "task", t.name)
	if t.delegate != nil {
		t.delegate.TaskDidCancel(t)
	}
	t.postBus(Notification{Event: EventTaskDidCancel, Source: t})
	if t.workflow != nil {
		if t.workflow.delegate != nil {
			t.workflow.delegate.WorkflowTaskDidCancel(t.workflow, t)
		}
		t.postBus(Notification{Event: EventWorkflowTaskDidCancel, Source: t.workflow, Task: t})
	}

	for _, dep := range t.dependents {
		dep.Cancel()
	}
}

// Reset clears a terminal (or Executing) task's result/error/finishDate and
// moves it back to Pending (or Ready if it has no prerequisites), then
// unconditionally propagates to every dependent. Reset while Executing does
// not stop the body; a subsequent Finish/Fail call races with the reset and
// is dropped because the state is no longer Executing.
//
// Propagation is structural: every dependent is signalled regardless of
// whether this task's own state actually changed, but each dependent's local
// state change remains conditional on its own current state (reset is a
// no-op on a task already in Pending/Ready).
func (t *Task) Reset() {
	t.mu.Lock()
	changed := oneOf(t.state, Finished, Failed, Cancelled, Executing)
	if changed {
		t.result = nil
		t.err = nil
		t.finishDate = time.Time{}
		t.state = t.initialState()
	}
	t.mu.Unlock()

	if changed {
		t.logger.Info("task reset", "task_id", t.id, "task", t.name)
		t.postBus(Notification{Event: EventTaskDidReset, Source: t})
	}
	for _, dep := range t.dependents {
		dep.Reset()
	}
}

// Retry transitions t from {Cancelled, Failed} back to Pending (or Ready),
// unconditionally propagates to dependents, and, if t itself became Ready,
// attempts to start it. Retry on a task not in {Cancelled, Failed} is a
// no-op for local state but still propagates.
func (t *Task) Retry() {
	t.mu.Lock()
	changed := oneOf(t.state, Cancelled, Failed)
	var becameReady bool
	if changed {
		t.result = nil
		t.err = nil
		t.finishDate = time.Time{}
		t.state = t.initialState()
		becameReady = t.state == Ready
	}
	t.mu.Unlock()

	if changed {
		t.logger.Info("task retried", "task_id", t.id, "task", t.name)
		t.postBus(Notification{Event: EventTaskDidRetry, Source: t})
	}
	for _, dep := range t.dependents {
		dep.Retry()
	}
	if becameReady {
		t.Start()
	}
}
