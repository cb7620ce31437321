package natsbridge

import (
	"testing"

	"github.com/planwright/planwright/internal/bus"
)

func TestSubjectMapping(t *testing.T) {
	cases := []struct {
		typ  bus.Type
		want string
	}{
		{bus.TypePlanCreated, "workflow.plan.created"},
		{bus.TypePlanCompleted, "workflow.plan.completed"},
		{bus.TypeTaskStarted, "workflow.task.started"},
		{bus.TypeTaskBlocked, "workflow.task.blocked"},
		{bus.TypeTaskRequeued, "workflow.task.requeued"},
	}
	for _, tc := range cases {
		if got := Subject(tc.typ); got != tc.want {
			t.Errorf("Subject(%s) = %q, want %q", tc.typ, got, tc.want)
		}
	}
}

func TestSubjectsMatchStreamPattern(t *testing.T) {
	// Every subject must fall under the stream's workflow.> filter.
	for _, typ := range []bus.Type{
		bus.TypePlanCreated, bus.TypePlanCompleted, bus.TypePlanArchived, bus.TypePlanDeleted,
		bus.TypeTaskAdded, bus.TypeTaskRequeued, bus.TypeTaskStarted,
		bus.TypeTaskCompleted, bus.TypeTaskBlocked, bus.TypeTaskCancelled,
	} {
		s := Subject(typ)
		if len(s) <= len(subjectPrefix) || s[:len(subjectPrefix)] != subjectPrefix {
			t.Errorf("subject %q does not start with %q", s, subjectPrefix)
		}
	}
}
