package plan

import (
	"fmt"

	"github.com/planwright/planwright/internal/domain/task"
)

// DepsSatisfied reports whether every dependency of t refers to a completed
// task in the plan. Unknown ids count as unsatisfied.
func (p *Plan) DepsSatisfied(t *task.Task) bool {
	return len(p.UnmetDeps(t)) == 0
}

// UnmetDeps returns the dependency ids of t that are not yet completed.
func (p *Plan) UnmetDeps(t *task.Task) []string {
	completed := make(map[string]bool, len(p.Tasks))
	for i := range p.Tasks {
		if p.Tasks[i].Status == task.StatusCompleted {
			completed[p.Tasks[i].ID] = true
		}
	}

	var unmet []string
	for _, dep := range t.Dependencies {
		if !completed[dep] {
			unmet = append(unmet, dep)
		}
	}
	return unmet
}

// ValidateDeps checks that every id in deps references an existing task in
// the plan and that adding a task with those deps keeps the graph acyclic.
func (p *Plan) ValidateDeps(deps []string) error {
	for _, dep := range deps {
		if p.FindTask(dep) == nil {
			return fmt.Errorf("dependency %q references unknown task", dep)
		}
	}
	return nil
}

// ValidateAcyclic checks the full dependency graph of the plan using Kahn's
// algorithm. Dependencies can only reference pre-existing tasks, so a cycle
// cannot arise through the manager API; this guards snapshots that were
// edited or produced elsewhere.
func (p *Plan) ValidateAcyclic() error {
	index := make(map[string]int, len(p.Tasks))
	for i := range p.Tasks {
		index[p.Tasks[i].ID] = i
	}

	n := len(p.Tasks)
	inDegree := make([]int, n)
	adj := make([][]int, n)

	for i := range p.Tasks {
		for _, dep := range p.Tasks[i].Dependencies {
			j, ok := index[dep]
			if !ok {
				return fmt.Errorf("task %s depends on unknown task %q", p.Tasks[i].ID, dep)
			}
			if j == i {
				return fmt.Errorf("task %s depends on itself", p.Tasks[i].ID)
			}
			adj[j] = append(adj[j], i)
			inDegree[i]++
		}
	}

	queue := make([]int, 0, n)
	for i, d := range inDegree {
		if d == 0 {
			queue = append(queue, i)
		}
	}

	visited := 0
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		visited++
		for _, neighbor := range adj[node] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				queue = append(queue, neighbor)
			}
		}
	}

	if visited != n {
		return fmt.Errorf("task dependencies contain a cycle")
	}
	return nil
}
