package orchestrator

import (
	"fmt"
	"time"
)

// TaskStatus is the per-task state machine: queued -> running ->
// success | error, with error -> running on explicit retry.
type TaskStatus string

const (
	StatusQueued  TaskStatus = "queued"
	StatusRunning TaskStatus = "running"
	StatusSuccess TaskStatus = "success"
	StatusError   TaskStatus = "error"
)

// Task is one (control, provider, resource model) generation unit.
type Task struct {
	ControlID    int
	ControlName  string
	Provider     string
	ResourceType string
}

// Key identifies the task across runs; the status log derives a
// task's current status from its latest row per key.
func (t Task) Key() string {
	return fmt.Sprintf("%d|%s|%s", t.ControlID, t.Provider, t.ResourceType)
}

// StatusRow is one appended status log entry.
type StatusRow struct {
	ControlID    int
	ControlName  string
	Provider     string
	ResourceType string
	Status       TaskStatus
	CheckID      string
	ErrorMessage string
	Timestamp    time.Time
	Attempts     int
}

func (r StatusRow) key() string {
	return Task{ControlID: r.ControlID, Provider: r.Provider, ResourceType: r.ResourceType}.Key()
}
