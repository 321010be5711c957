package bot

import (
	"context"
	"sync"
)

type runningTask struct {
	id     string
	cancel context.CancelFunc
}

// runningTasks tracks at most one active download per chat and lets the
// cancel callback abort a task by chat and task id.
type runningTasks struct {
	mu    sync.Mutex
	tasks map[int64]runningTask
}

func newRunningTasks() *runningTasks {
	return &runningTasks{tasks: make(map[int64]runningTask)}
}

// Begin registers a task for the chat. It reports false when the chat
// already has an active task, leaving the existing one untouched.
func (r *runningTasks) Begin(chatID int64, taskID string, cancel context.CancelFunc) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.tasks[chatID]; busy {
		return false
	}
	r.tasks[chatID] = runningTask{id: taskID, cancel: cancel}
	return true
}

// End removes the chat's task if it still matches the given id.
func (r *runningTasks) End(chatID int64, taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.tasks[chatID]; ok && cur.id == taskID {
		delete(r.tasks, chatID)
	}
}

// Active reports whether the chat has a running task.
func (r *runningTasks) Active(chatID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tasks[chatID]
	return ok
}

// Cancel aborts the chat's task when the id still matches. It reports
// false for unknown chats and stale ids, so old buttons are harmless.
func (r *runningTasks) Cancel(chatID int64, taskID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.tasks[chatID]
	if !ok || cur.id != taskID {
		return false
	}
	cur.cancel()
	return true
}

// CancelAll aborts every running task. Used on shutdown.
func (r *runningTasks) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, task := range r.tasks {
		task.cancel()
	}
}
