package bot

import (
	"context"
	"testing"
)

func TestRunningTasksBeginRejectsBusyChat(t *testing.T) {
	r := newRunningTasks()

	if !r.Begin(1, "task-a", func() {}) {
		t.Fatal("first Begin should succeed")
	}
	if r.Begin(1, "task-b", func() {}) {
		t.Fatal("second Begin on the same chat should be rejected")
	}
	if !r.Begin(2, "task-c", func() {}) {
		t.Fatal("Begin on another chat should succeed")
	}
	if !r.Active(1) || !r.Active(2) {
		t.Fatal("both chats should be active")
	}
}

func TestRunningTasksEndMatchesTaskID(t *testing.T) {
	r := newRunningTasks()
	r.Begin(1, "task-a", func() {})

	r.End(1, "task-other")
	if !r.Active(1) {
		t.Fatal("End with a stale id must not release the slot")
	}

	r.End(1, "task-a")
	if r.Active(1) {
		t.Fatal("End with the matching id must release the slot")
	}

	if !r.Begin(1, "task-b", func() {}) {
		t.Fatal("chat should accept a new task after End")
	}
}

func TestRunningTasksCancelMatchesChatAndID(t *testing.T) {
	r := newRunningTasks()
	ctx, cancel := context.WithCancel(context.Background())
	r.Begin(7, "task-a", cancel)

	if r.Cancel(7, "unknown") {
		t.Fatal("Cancel with a stale id should report false")
	}
	if r.Cancel(8, "task-a") {
		t.Fatal("Cancel for another chat should report false")
	}
	if ctx.Err() != nil {
		t.Fatal("stale cancels must not touch the task")
	}

	if !r.Cancel(7, "task-a") {
		t.Fatal("Cancel with matching chat and id should report true")
	}
	if ctx.Err() == nil {
		t.Fatal("context should be cancelled")
	}

	// The slot stays claimed until the delivery goroutine calls End.
	if !r.Active(7) {
		t.Fatal("Cancel must not release the slot")
	}
}

func TestRunningTasksCancelAll(t *testing.T) {
	r := newRunningTasks()
	ctx1, cancel1 := context.WithCancel(context.Background())
	ctx2, cancel2 := context.WithCancel(context.Background())
	r.Begin(1, "task-a", cancel1)
	r.Begin(2, "task-b", cancel2)

	r.CancelAll()

	if ctx1.Err() == nil || ctx2.Err() == nil {
		t.Fatal("all task contexts should be cancelled")
	}
}
