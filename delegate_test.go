package taskgraph

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type recordingTaskDelegate struct {
	mu       sync.Mutex
	finished []*Task
	failed   []*Task
	cancel   []*Task
}

func (d *recordingTaskDelegate) TaskDidFinish(t *Task) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.finished = append(d.finished, t)
}

func (d *recordingTaskDelegate) TaskDidFail(t *Task, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failed = append(d.failed, t)
}

func (d *recordingTaskDelegate) TaskDidCancel(t *Task) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancel = append(d.cancel, t)
}

type recordingWorkflowDelegate struct {
	mu         sync.Mutex
	didFinish  int
	taskFail   []*Task
	taskCancel []*Task
}

func (d *recordingWorkflowDelegate) WorkflowDidFinish(w *Workflow) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.didFinish++
}

func (d *recordingWorkflowDelegate) WorkflowTaskDidFail(w *Workflow, t *Task) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.taskFail = append(d.taskFail, t)
}

func (d *recordingWorkflowDelegate) WorkflowTaskDidCancel(w *Workflow, t *Task) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.taskCancel = append(d.taskCancel, t)
}

func TestTaskDelegateReceivesFinish(t *testing.T) {
	delegate := &recordingTaskDelegate{}
	w := NewWorkflow("w")
	task := NewClosureTask("t", func(tk *Task, ctx context.Context) {
		tk.Finish("ok")
	}, WithTaskDelegate(delegate))

	if err := w.AddTask(task, nil, nil); err != nil {
		t.Fatal(err)
	}
	wait := watchSettled(t, w, []*Task{task})
	w.Start()
	wait()

	delegate.mu.Lock()
	defer delegate.mu.Unlock()
	if len(delegate.finished) != 1 || delegate.finished[0] != task {
		t.Errorf("finished = %v, want [%v]", delegate.finished, task)
	}
	if len(delegate.failed) != 0 || len(delegate.cancel) != 0 {
		t.Errorf("unexpected fail/cancel callbacks: %v %v", delegate.failed, delegate.cancel)
	}
}

func TestTaskDelegateReceivesFail(t *testing.T) {
	delegate := &recordingTaskDelegate{}
	failErr := errors.New("boom")
	w := NewWorkflow("w")
	task := NewClosureTask("t", func(tk *Task, ctx context.Context) {
		tk.Fail(failErr)
	}, WithTaskDelegate(delegate))

	if err := w.AddTask(task, nil, nil); err != nil {
		t.Fatal(err)
	}
	wait := watchSettled(t, w, []*Task{task})
	w.Start()
	wait()

	delegate.mu.Lock()
	defer delegate.mu.Unlock()
	if len(delegate.failed) != 1 || delegate.failed[0] != task {
		t.Errorf("failed = %v, want [%v]", delegate.failed, task)
	}
}

func TestTaskDelegateReceivesCancel(t *testing.T) {
	delegate := &recordingTaskDelegate{}
	task := NewTask("t", BodyFunc(func(t *Task) {}), WithTaskDelegate(delegate))
	task.Cancel()

	delegate.mu.Lock()
	defer delegate.mu.Unlock()
	if len(delegate.cancel) != 1 || delegate.cancel[0] != task {
		t.Errorf("cancel = %v, want [%v]", delegate.cancel, task)
	}
}

func TestWorkflowDelegateReceivesDidFinish(t *testing.T) {
	delegate := &recordingWorkflowDelegate{}
	w := NewWorkflow("w", WithWorkflowDelegate(delegate))
	task := newFinisher("a", nil)
	if err := w.AddTask(task, nil, nil); err != nil {
		t.Fatal(err)
	}

	wait := watchSettled(t, w, []*Task{task})
	w.Start()
	wait()

	delegate.mu.Lock()
	got := delegate.didFinish
	delegate.mu.Unlock()
	if got != 1 {
		t.Errorf("didFinish = %d, want 1", got)
	}
}

func TestWorkflowDelegateReceivesTaskFail(t *testing.T) {
	delegate := &recordingWorkflowDelegate{}
	w := NewWorkflow("w", WithWorkflowDelegate(delegate))
	task := newFailer("a", errors.New("boom"))
	if err := w.AddTask(task, nil, nil); err != nil {
		t.Fatal(err)
	}

	wait := watchSettled(t, w, []*Task{task})
	w.Start()
	wait()

	delegate.mu.Lock()
	defer delegate.mu.Unlock()
	if len(delegate.taskFail) != 1 || delegate.taskFail[0] != task {
		t.Errorf("taskFail = %v, want [%v]", delegate.taskFail, task)
	}
}
