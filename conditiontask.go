package taskgraph

import "sync"

// conditionBody fails with ErrConditionNotFulfilled until Fulfill has been
// called, at which point it finishes with the fulfilled result.
type conditionBody struct {
	mu        sync.Mutex
	fulfilled bool
	result    any
}

func (b *conditionBody) Run(t *Task) {
	b.mu.Lock()
	fulfilled, result := b.fulfilled, b.result
	b.mu.Unlock()

	if fulfilled {
		t.Finish(result)
		return
	}
	t.Fail(ErrConditionNotFulfilled)
}

// ConditionTask is a Task that fails with "not fulfilled" until an external
// caller invokes Fulfill, at which point it finishes with the fulfilled
// result.
type ConditionTask struct {
	*Task
	body *conditionBody
}

// NewConditionTask builds a condition-task. Its body always fails with
// ErrConditionNotFulfilled until Fulfill is called.
func NewConditionTask(name string, opts ...TaskOption) *ConditionTask {
	body := &conditionBody{}
	return &ConditionTask{
		Task: NewTask(name, body, opts...),
		body: body,
	}
}

// IsFulfilled reports whether Fulfill has been called.
func (c *ConditionTask) IsFulfilled() bool {
	c.body.mu.Lock()
	defer c.body.mu.Unlock()
	return c.body.fulfilled
}

// Fulfill marks the condition fulfilled with result and atomically: if the
// task is Cancelled or Failed, retries it; else if it is Ready, starts it.
// The task flips to Finished at fulfillment time (via the body re-running
// and observing fulfilled=true).
func (c *ConditionTask) Fulfill(result any) {
	c.body.mu.Lock()
	c.body.fulfilled = true
	c.body.result = result
	c.body.mu.Unlock()

	switch c.State() {
	case Cancelled, Failed:
		c.Retry()
	case Ready:
		c.Start()
	}
}
