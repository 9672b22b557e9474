// Package taskgraph is a task-graph execution engine: a library for
// declaring a directed acyclic graph of units of work with
// prerequisite/dependent relationships, then driving that graph through a
// lifecycle (start, cancel, reset, retry) with concurrent execution of ready
// tasks.
//
// # Quick Start
//
// Build a workflow, add tasks with their prerequisites, and start it:
//
//	wf := taskgraph.NewWorkflow("pipeline")
//
//	a := taskgraph.NewClosureTask("a", func(t *taskgraph.Task, _ context.Context) {
//		t.Finish("a-ok")
//	})
//	b := taskgraph.NewClosureTask("b", func(t *taskgraph.Task, _ context.Context) {
//		t.Finish("b-ok")
//	})
//	wf.AddTask(a, nil, nil)
//	wf.AddTask(b, []*taskgraph.Task{a}, nil)
//
//	wf.Start()
//
// # Core Types
//
//   - [Task] — one unit of work with a six-state lifecycle
//   - [Workflow] — a container and execution context for a set of tasks
//   - [WorkerPool] — the bounded-concurrency executor tasks dispatch onto
//   - [NotificationBus] — named-event fan-out keyed by (source, event)
//
// # Built-in Task Variants
//
// [NewClosureTask] wraps a plain callback. [NewConditionTask] builds a task
// that stays failed until externally [ConditionTask.Fulfill]ed.
// [NewSubworkflowTask] wraps an inner [Workflow], forwarding its outcome to
// the outer task.
package taskgraph
