// Package task defines the Task domain entity and its status machine.
package task

import "time"

// Status represents the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusBlocked    Status = "blocked"
	StatusCancelled  Status = "cancelled"
)

// IsTerminal returns true if the task is in a final state. Blocked is not
// terminal: a later dependency scan may re-offer the task.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransition reports whether moving from s to next is a legal step of the
// task state machine. Transitions are monotonic; the only escape hatches are
// blocking an unfinished task and cancelling any non-terminal task.
func (s Status) CanTransition(next Status) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StatusCancelled {
		return true
	}
	switch s {
	case StatusPending:
		return next == StatusInProgress || next == StatusBlocked
	case StatusInProgress:
		return next == StatusCompleted || next == StatusBlocked
	case StatusBlocked:
		// Re-offered after a dependency re-evaluation.
		return next == StatusPending
	}
	return false
}

// Task is an atomic unit of work owned by exactly one Plan. Dependencies are
// ids only — weak references into the same plan, never ownership.
type Task struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Description  string         `json:"description,omitempty"`
	Status       Status         `json:"status"`
	Dependencies []string       `json:"dependencies,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	Outputs      map[string]any `json:"outputs,omitempty"`
}

// Duration returns the wall-clock time between start and completion, or zero
// if the task has not finished.
func (t *Task) Duration() time.Duration {
	if t.StartedAt == nil || t.CompletedAt == nil {
		return 0
	}
	return t.CompletedAt.Sub(*t.StartedAt)
}

// Clone returns a deep copy safe to hand to callers outside the manager lock.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	c.Dependencies = append([]string(nil), t.Dependencies...)
	if t.Outputs != nil {
		c.Outputs = make(map[string]any, len(t.Outputs))
		for k, v := range t.Outputs {
			c.Outputs[k] = v
		}
	}
	return &c
}

// CreateRequest holds the fields needed to append a new task to a plan.
type CreateRequest struct {
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
}
