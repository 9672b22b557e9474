package taskgraph

import "context"

// closureBody adapts a plain callback to Body, optionally deriving a
// context.Context that is cancelled when the task is cancelled. The context
// is a convenience over the same advisory-cancel contract as IsExecuting:
// the callback must still return on its own after the context is done; it is
// never forcibly interrupted.
type closureBody struct {
	fn func(t *Task, ctx context.Context)
}

func (b *closureBody) Run(t *Task) {
	ctx, cancel := context.WithCancel(context.Background())
	unsubscribe := t.workflow.bus.Subscribe(t, EventTaskDidCancel, func(Notification) {
		cancel()
	})
	defer unsubscribe()
	defer cancel()
	b.fn(t, ctx)
}

// NewClosureTask builds a task whose body is the given callable. fn must
// itself call t.Finish or t.Fail; the engine never calls either on fn's
// behalf. fn's context is cancelled (advisory only) when the task is
// cancelled.
func NewClosureTask(name string, fn func(t *Task, ctx context.Context), opts ...TaskOption) *Task {
	return NewTask(name, &closureBody{fn: fn}, opts...)
}
