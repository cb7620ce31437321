package plan

import (
	"testing"

	"github.com/planwright/planwright/internal/domain/task"
)

func TestFindTask(t *testing.T) {
	p := &Plan{Tasks: []task.Task{{ID: "a"}, {ID: "b"}}}

	if got := p.FindTask("b"); got == nil || got.ID != "b" {
		t.Fatalf("expected task b, got %v", got)
	}
	if got := p.FindTask("missing"); got != nil {
		t.Fatalf("expected nil for unknown id, got %v", got)
	}
}

func TestFindTaskReturnsPointerIntoPlan(t *testing.T) {
	p := &Plan{Tasks: []task.Task{{ID: "a", Status: task.StatusPending}}}

	p.FindTask("a").Status = task.StatusCompleted
	if p.Tasks[0].Status != task.StatusCompleted {
		t.Fatal("FindTask must return a pointer into the plan's slice")
	}
}

func TestAllTerminal(t *testing.T) {
	cases := []struct {
		name     string
		statuses []task.Status
		want     bool
	}{
		{"empty plan is never finished", nil, false},
		{"all completed", []task.Status{task.StatusCompleted, task.StatusCompleted}, true},
		{"mix of completed and cancelled", []task.Status{task.StatusCompleted, task.StatusCancelled}, true},
		{"blocked is not terminal", []task.Status{task.StatusCompleted, task.StatusBlocked}, false},
		{"pending remains", []task.Status{task.StatusCompleted, task.StatusPending}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := &Plan{}
			for i, s := range tc.statuses {
				p.Tasks = append(p.Tasks, task.Task{ID: string(rune('a' + i)), Status: s})
			}
			if got := p.AllTerminal(); got != tc.want {
				t.Fatalf("AllTerminal() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	p := &Plan{
		ID:    "p1",
		Tasks: []task.Task{{ID: "a", Dependencies: []string{"x"}}},
	}

	c := p.Clone()
	c.Tasks[0].Status = task.StatusCancelled
	c.Tasks[0].Dependencies[0] = "changed"

	if p.Tasks[0].Status == task.StatusCancelled {
		t.Fatal("clone shares the task slice")
	}
	if p.Tasks[0].Dependencies[0] != "x" {
		t.Fatal("clone shares a task's dependencies")
	}
}

func TestCloneNil(t *testing.T) {
	var p *Plan
	if p.Clone() != nil {
		t.Fatal("expected nil clone of nil plan")
	}
}
