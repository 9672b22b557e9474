package taskgraph

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewTaskDefaults(t *testing.T) {
	task := NewTask("my task", BodyFunc(func(t *Task) {}))
	if task.Name() != "my task" {
		t.Errorf("Name() = %q, want %q", task.Name(), "my task")
	}
	if task.ID() == "" {
		t.Error("ID() is empty")
	}
	if task.Description() != "" {
		t.Errorf("Description() = %q, want empty", task.Description())
	}
	if task.Workflow() != nil {
		t.Error("Workflow() should be nil before AddTask")
	}
}

func TestTaskOptions(t *testing.T) {
	task := NewTask("t", BodyFunc(func(t *Task) {}),
		WithDescription("does a thing"),
		WithUserInfo("k", "v"),
		WithRequiredKeys("a", "b"))

	if task.Description() != "does a thing" {
		t.Errorf("Description() = %q", task.Description())
	}
	if v, ok := task.UserInfo("k"); !ok || v != "v" {
		t.Errorf("UserInfo(k) = (%v, %v), want (v, true)", v, ok)
	}
	if _, ok := task.requiredKeys["a"]; !ok {
		t.Error("requiredKeys missing a")
	}
	if _, ok := task.requiredKeys["b"]; !ok {
		t.Error("requiredKeys missing b")
	}
}

func TestTaskSetUserInfo(t *testing.T) {
	task := NewTask("t", BodyFunc(func(t *Task) {}))
	if _, ok := task.UserInfo("missing"); ok {
		t.Error("UserInfo(missing) should be absent")
	}
	task.SetUserInfo("k", 123)
	if v, ok := task.UserInfo("k"); !ok || v != 123 {
		t.Errorf("UserInfo(k) = (%v, %v)", v, ok)
	}
}

func TestTaskInitialStateNoPrerequisites(t *testing.T) {
	w := NewWorkflow("w")
	task := NewTask("root", BodyFunc(func(t *Task) { t.Finish(nil) }))
	if err := w.AddTask(task, nil, nil); err != nil {
		t.Fatal(err)
	}
	if task.State() != Ready {
		t.Errorf("State() = %s, want Ready", task.State())
	}
}

func TestTaskInitialStateWithPrerequisites(t *testing.T) {
	w := NewWorkflow("w")
	root := NewTask("root", BodyFunc(func(t *Task) { t.Finish(nil) }))
	dependent := NewTask("dependent", BodyFunc(func(t *Task) { t.Finish(nil) }))
	if err := w.AddTask(root, nil, nil); err != nil {
		t.Fatal(err)
	}
	if err := w.AddTask(dependent, []*Task{root}, nil); err != nil {
		t.Fatal(err)
	}
	if dependent.State() != Pending {
		t.Errorf("State() = %s, want Pending", dependent.State())
	}
}

func TestTaskResultErrFinishDateOnlyValidInMatchingState(t *testing.T) {
	w := NewWorkflow("w")
	task := NewTask("t", BodyFunc(func(t *Task) {}))
	if err := w.AddTask(task, nil, nil); err != nil {
		t.Fatal(err)
	}
	if _, ok := task.Result(); ok {
		t.Error("Result() should be invalid before Finished")
	}
	if _, ok := task.Err(); ok {
		t.Error("Err() should be invalid before Failed")
	}
	if _, ok := task.FinishDate(); ok {
		t.Error("FinishDate() should be invalid before terminal")
	}

	// Drive state directly (same package): simulate having been dispatched.
	task.mu.Lock()
	task.state = Executing
	task.mu.Unlock()

	if err := task.Finish("result"); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if r, ok := task.Result(); !ok || r != "result" {
		t.Errorf("Result() = (%v, %v), want (result, true)", r, ok)
	}
	if _, ok := task.FinishDate(); !ok {
		t.Error("FinishDate() should be valid after Finished")
	}
	if _, ok := task.Err(); ok {
		t.Error("Err() should still be invalid after Finished")
	}
}

func TestTaskFinishOutsideExecutingReturnsErrNotExecuting(t *testing.T) {
	task := NewTask("t", BodyFunc(func(t *Task) {}))
	err := task.Finish("x")
	var notExecuting *ErrNotExecuting
	if !errors.As(err, &notExecuting) {
		t.Fatalf("Finish() error = %v, want *ErrNotExecuting", err)
	}
	if notExecuting.Op != "finish" {
		t.Errorf("Op = %q, want finish", notExecuting.Op)
	}
}

func TestTaskFailOutsideExecutingReturnsErrNotExecuting(t *testing.T) {
	task := NewTask("t", BodyFunc(func(t *Task) {}))
	err := task.Fail(errors.New("boom"))
	var notExecuting *ErrNotExecuting
	if !errors.As(err, &notExecuting) {
		t.Fatalf("Fail() error = %v, want *ErrNotExecuting", err)
	}
	if notExecuting.Op != "fail" {
		t.Errorf("Op = %q, want fail", notExecuting.Op)
	}
}

func TestTaskPrerequisiteResultAccessors(t *testing.T) {
	w := NewWorkflow("w")
	left := NewTask("left", BodyFunc(func(t *Task) { t.Finish("L") }))
	right := NewTask("right", BodyFunc(func(t *Task) { t.Finish(nil) }))
	join := NewTask("join", BodyFunc(func(t *Task) { t.Finish(nil) }), WithRequiredKeys("r"))

	if err := w.AddTask(left, nil, nil); err != nil {
		t.Fatal(err)
	}
	if err := w.AddTask(right, nil, nil); err != nil {
		t.Fatal(err)
	}
	if err := w.AddTask(join, []*Task{left}, map[string]*Task{"r": right}); err != nil {
		t.Fatal(err)
	}

	// Finish the prerequisites directly (no pool involved) to exercise the
	// accessors deterministically.
	left.mu.Lock()
	left.state = Executing
	left.mu.Unlock()
	if err := left.Finish("L"); err != nil {
		t.Fatal(err)
	}
	right.mu.Lock()
	right.state = Executing
	right.mu.Unlock()
	if err := right.Finish(nil); err != nil {
		t.Fatal(err)
	}

	if r, ok := join.AnyPrerequisiteResult(); !ok {
		t.Error("AnyPrerequisiteResult() should have a value")
	} else if r != "L" && r != nil {
		t.Errorf("AnyPrerequisiteResult() = %v", r)
	}

	all := join.AllPrerequisiteResults()
	if len(all) != 2 {
		t.Fatalf("AllPrerequisiteResults() len = %d, want 2", len(all))
	}
	foundNil := false
	for _, r := range all {
		if r == NilResult {
			foundNil = true
		}
	}
	if !foundNil {
		t.Error("AllPrerequisiteResults() should substitute NilResult for right's nil result")
	}

	unkeyed := join.AllUnkeyedPrerequisiteResults()
	if len(unkeyed) != 1 || unkeyed[0] != "L" {
		t.Errorf("AllUnkeyedPrerequisiteResults() = %v, want [L]", unkeyed)
	}

	keyed := join.KeyedPrerequisiteResults()
	if keyed["r"] != nil {
		t.Errorf(`KeyedPrerequisiteResults()["r"] = %v, want nil`, keyed["r"])
	}

	if got := join.PrerequisiteResultForKey("r"); got != nil {
		t.Errorf("PrerequisiteResultForKey(r) = %v, want nil", got)
	}
	if got := join.PrerequisiteResultForKey("missing"); got != nil {
		t.Errorf("PrerequisiteResultForKey(missing) = %v, want nil", got)
	}

	byTask := join.PrerequisiteResultsByTask()
	if byTask[left] != "L" {
		t.Errorf("PrerequisiteResultsByTask()[left] = %v, want L", byTask[left])
	}
}

func TestTaskStartIsNoOpWhenNotReady(t *testing.T) {
	w := NewWorkflow("w")
	root := NewTask("root", BodyFunc(func(t *Task) { t.Finish(nil) }))
	dependent := NewTask("dependent", BodyFunc(func(t *Task) { t.Finish(nil) }))
	if err := w.AddTask(root, nil, nil); err != nil {
		t.Fatal(err)
	}
	if err := w.AddTask(dependent, []*Task{root}, nil); err != nil {
		t.Fatal(err)
	}

	// dependent is Pending, not Ready: Start must be a silent no-op.
	dependent.Start()
	time.Sleep(10 * time.Millisecond)
	if dependent.State() != Pending {
		t.Errorf("State() = %s, want Pending (Start on non-Ready task is a no-op)", dependent.State())
	}
}

func TestTaskStartWithoutWorkflowIsNoOp(t *testing.T) {
	task := NewTask("orphan", BodyFunc(func(t *Task) { t.Finish(nil) }))
	task.mu.Lock()
	task.state = Ready
	task.mu.Unlock()
	task.Start() // must not panic despite task.workflow == nil
}

func TestTaskCancelBeforeWorkflowIsNoPanic(t *testing.T) {
	task := NewTask("orphan", BodyFunc(func(t *Task) {}))
	task.Cancel()
	if task.State() != Cancelled {
		t.Errorf("State() = %s, want Cancelled", task.State())
	}
}

func TestClosureTaskContextCancelledOnTaskCancel(t *testing.T) {
	w := NewWorkflow("w")
	started := make(chan struct{})
	cancelled := make(chan struct{})
	task := NewClosureTask("t", func(t *Task, ctx context.Context) {
		close(started)
		<-ctx.Done()
		close(cancelled)
		t.Finish(nil)
	})
	if err := w.AddTask(task, nil, nil); err != nil {
		t.Fatal(err)
	}

	w.Start()
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("closure body never started")
	}

	task.Cancel()

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("closure context was never cancelled")
	}
}
