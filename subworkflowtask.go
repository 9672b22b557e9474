package taskgraph

import "sync"

// subworkflowOutcome is the first settling event observed on the inner
// workflow, used to decide how the outer sub-workflow task itself settles.
type subworkflowOutcome struct {
	kind string // "finish", "fail", or "cancel"
	err  error  // populated for "fail"
}

// subworkflowBody subscribes to the inner workflow's events, starts it (or
// short-circuits if it is already settled), and waits for the first
// finish/fail/cancel to decide the outer task's own outcome.
type subworkflowBody struct {
	inner *Workflow
}

func (b *subworkflowBody) Run(t *Task) {
	inner := b.inner

	var mu sync.Mutex
	var once sync.Once
	done := make(chan subworkflowOutcome, 1)
	finalize := func(o subworkflowOutcome) {
		once.Do(func() { done <- o })
	}

	unsubFinish := inner.bus.Subscribe(inner, EventWorkflowDidFinish, func(Notification) {
		finalize(subworkflowOutcome{kind: "finish"})
	})
	unsubFail := inner.bus.Subscribe(inner, EventWorkflowTaskDidFail, func(n Notification) {
		mu.Lock()
		var err error
		if n.Task != nil {
			err, _ = n.Task.Err()
		}
		mu.Unlock()
		finalize(subworkflowOutcome{kind: "fail", err: err})
	})
	unsubCancel := inner.bus.Subscribe(inner, EventWorkflowTaskDidCancel, func(Notification) {
		finalize(subworkflowOutcome{kind: "cancel"})
	})
	defer unsubFinish()
	defer unsubFail()
	defer unsubCancel()

	switch {
	case inner.HasFailedTasks():
		for _, it := range inner.AllTasks() {
			if it.State() == Failed {
				err, _ := it.Err()
				finalize(subworkflowOutcome{kind: "fail", err: err})
				break
			}
		}
	case inner.hasCancelledTasks():
		finalize(subworkflowOutcome{kind: "cancel"})
	case len(inner.AllTasks()) > 0 && !inner.HasUnfinishedTasks():
		finalize(subworkflowOutcome{kind: "finish"})
	default:
		inner.Start()
	}

	outcome := <-done
	switch outcome.kind {
	case "finish":
		t.Finish(inner)
	case "fail":
		t.Fail(outcome.err)
	case "cancel":
		t.Cancel()
	}
}

// SubworkflowTask is a Task that wraps an inner Workflow. When the inner
// workflow finishes, the outer finishes with result = the inner Workflow;
// when any inner task fails, the outer fails with that error; when any inner
// task cancels with no failure having occurred, the outer cancels itself.
// If, on entry, the inner is already finished/failed/cancelled, the outer
// short-circuits with the same logic.
type SubworkflowTask struct {
	*Task
	Inner *Workflow
}

// NewSubworkflowTask builds a sub-workflow task wrapping inner.
func NewSubworkflowTask(name string, inner *Workflow, opts ...TaskOption) *SubworkflowTask {
	return &SubworkflowTask{
		Task:  NewTask(name, &subworkflowBody{inner: inner}, opts...),
		Inner: inner,
	}
}
