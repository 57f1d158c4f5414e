// Package tasks tracks long-running background jobs so API clients can
// poll their progress.
package tasks

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is a point-in-time view of one named task.
type Status struct {
	TaskID    string    `json:"task_id"`
	Name      string    `json:"name"`
	Running   bool      `json:"running"`
	Progress  int       `json:"progress"` // 0-100
	Message   string    `json:"message"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Tracker holds the status of every named task. One task per name runs at
// a time; a second start is refused until the first finishes.
type Tracker struct {
	mu    sync.RWMutex
	tasks map[string]*Status
}

func NewTracker() *Tracker {
	return &Tracker{tasks: make(map[string]*Status)}
}

// Start registers a run and returns its id. The boolean is false when the
// task is already running.
func (t *Tracker) Start(name string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.tasks[name]; ok && existing.Running {
		return "", false
	}

	now := time.Now()
	status := &Status{
		TaskID:    uuid.New().String(),
		Name:      name,
		Running:   true,
		StartedAt: now,
		UpdatedAt: now,
	}
	t.tasks[name] = status
	return status.TaskID, true
}

// Update records progress for a running task.
func (t *Tracker) Update(name string, progress int, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	status, ok := t.tasks[name]
	if !ok {
		return
	}
	status.Progress = progress
	status.Message = message
	status.UpdatedAt = time.Now()
}

// Finish marks a task done at full progress.
func (t *Tracker) Finish(name, message string) {
	t.complete(name, 100, message)
}

// Fail marks a task done with a failure reason; progress resets to 0.
func (t *Tracker) Fail(name, reason string) {
	t.complete(name, 0, reason)
}

func (t *Tracker) complete(name string, progress int, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	status, ok := t.tasks[name]
	if !ok {
		return
	}
	status.Running = false
	status.Progress = progress
	status.Message = message
	status.UpdatedAt = time.Now()
}

// Get returns the last known status for a task name.
func (t *Tracker) Get(name string) (Status, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	status, ok := t.tasks[name]
	if !ok {
		return Status{}, false
	}
	return *status, true
}
