// Package plan defines the Plan domain entity: an ordered collection of tasks
// with a lifecycle of its own.
package plan

import (
	"time"

	"github.com/planwright/planwright/internal/domain/task"
)

// Status represents the lifecycle state of a plan.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusArchived  Status = "archived"
)

// Plan is the top-level unit of work. Task insertion order is significant and
// defines the default scheduling order. CurrentTaskIndex is the scheduling
// cursor maintained by the manager, never by tasks themselves.
type Plan struct {
	ID               string      `json:"id"`
	Name             string      `json:"name"`
	Description      string      `json:"description,omitempty"`
	Status           Status      `json:"status"`
	Tasks            []task.Task `json:"tasks"`
	CurrentTaskIndex int         `json:"current_task_index"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// FindTask returns a pointer into the plan's task slice, or nil.
func (p *Plan) FindTask(id string) *task.Task {
	for i := range p.Tasks {
		if p.Tasks[i].ID == id {
			return &p.Tasks[i]
		}
	}
	return nil
}

// AllTerminal returns true if every task is completed or cancelled. A plan
// with no tasks is not considered finished.
func (p *Plan) AllTerminal() bool {
	if len(p.Tasks) == 0 {
		return false
	}
	for i := range p.Tasks {
		if !p.Tasks[i].Status.IsTerminal() {
			return false
		}
	}
	return true
}

// Clone returns a deep copy safe to hand to callers outside the manager lock.
func (p *Plan) Clone() *Plan {
	if p == nil {
		return nil
	}
	c := *p
	c.Tasks = make([]task.Task, len(p.Tasks))
	for i := range p.Tasks {
		c.Tasks[i] = *p.Tasks[i].Clone()
	}
	return &c
}
