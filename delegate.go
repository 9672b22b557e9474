package taskgraph

// TaskDelegate receives synchronous success/fail/cancel callbacks for a
// single Task, fired before the equivalent NotificationBus event for the
// same transition (delegate calls and bus notifications are two views of one
// event stream).
type TaskDelegate interface {
	TaskDidFinish(t *Task)
	TaskDidFail(t *Task, err error)
	TaskDidCancel(t *Task)
}

// WorkflowDelegate receives synchronous callbacks for a Workflow's overall
// run and per-task failures/cancellations within it.
type WorkflowDelegate interface {
	WorkflowDidFinish(w *Workflow)
	WorkflowTaskDidFail(w *Workflow, t *Task)
	WorkflowTaskDidCancel(w *Workflow, t *Task)
}
