package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/planwright/planwright/internal/domain"
	"github.com/planwright/planwright/internal/domain/task"
)

// statusCacheTTL bounds staleness if an invalidation is ever lost; every
// mutation deletes the cached entry explicitly.
const statusCacheTTL = 30 * time.Second

// Status is the progress summary of the current plan.
type Status struct {
	PlanID          string  `json:"plan_id"`
	PlanName        string  `json:"plan_name"`
	PlanStatus      string  `json:"plan_status"`
	TotalTasks      int     `json:"total_tasks"`
	Completed       int     `json:"completed"`
	ProgressPercent float64 `json:"progress_percent"`
	CurrentTask     string  `json:"current_task,omitempty"`
}

// Status computes the progress summary for the current plan. Results are
// served from the read cache when one is configured.
func (m *Manager) Status(ctx context.Context) (*Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil, domain.ErrNoActivePlan
	}

	key := statusKey(m.current.ID)
	if m.cache != nil {
		if data, ok, err := m.cache.Get(ctx, key); err == nil && ok {
			var st Status
			if err := json.Unmarshal(data, &st); err == nil {
				return &st, nil
			}
		}
	}

	st := &Status{
		PlanID:     m.current.ID,
		PlanName:   m.current.Name,
		PlanStatus: string(m.current.Status),
		TotalTasks: len(m.current.Tasks),
	}
	for i := range m.current.Tasks {
		if m.current.Tasks[i].Status == task.StatusCompleted {
			st.Completed++
		}
	}
	if st.TotalTasks > 0 {
		st.ProgressPercent = float64(st.Completed) / float64(st.TotalTasks) * 100
	}
	if idx := m.current.CurrentTaskIndex; idx < len(m.current.Tasks) {
		st.CurrentTask = m.current.Tasks[idx].Title
	}

	if m.cache != nil {
		if data, err := json.Marshal(st); err == nil {
			if err := m.cache.Set(ctx, key, data, statusCacheTTL); err != nil {
				slog.Debug("status cache set failed", "error", err)
			}
		}
	}
	return st, nil
}

// invalidateStatus drops the cached status for the current plan. Caller
// holds the lock.
func (m *Manager) invalidateStatus(ctx context.Context) {
	if m.cache == nil || m.current == nil {
		return
	}
	if err := m.cache.Delete(ctx, statusKey(m.current.ID)); err != nil {
		slog.Debug("status cache invalidation failed", "error", err)
	}
}

func statusKey(planID string) string {
	return "status:" + planID
}
