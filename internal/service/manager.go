// Package service implements the workflow manager: the single writer of
// plan and task state. Every mutation is validated, applied, persisted, and
// published as one atomic unit under the manager's mutex.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/planwright/planwright/internal/bus"
	"github.com/planwright/planwright/internal/domain"
	"github.com/planwright/planwright/internal/domain/plan"
	"github.com/planwright/planwright/internal/domain/task"
	"github.com/planwright/planwright/internal/port/cache"
	"github.com/planwright/planwright/internal/port/snapshot"
)

// DefaultHistoryRetention is the number of archived plans kept when no
// explicit retention is configured.
const DefaultHistoryRetention = 10

// Options tunes optional manager behavior.
type Options struct {
	// Cache, if set, backs Status() as a read-through cache invalidated on
	// every mutation.
	Cache cache.Cache
	// HistoryRetention bounds the archived plan history. Zero means
	// DefaultHistoryRetention.
	HistoryRetention int
	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// Manager is the sole mutator of workflow state. All public methods are safe
// for concurrent use; mutations are serialized by one mutex covering
// validate → mutate → persist → publish.
type Manager struct {
	mu        sync.Mutex
	store     snapshot.Store
	bus       *bus.Bus
	cache     cache.Cache
	retention int
	now       func() time.Time

	current *plan.Plan
	history []plan.Plan
	dirty   bool // last save failed; the next successful save clears it
}

// NewManager creates a manager and loads its initial state from the store.
func NewManager(ctx context.Context, store snapshot.Store, b *bus.Bus, opts Options) (*Manager, error) {
	snap, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	if snap.CurrentPlan != nil {
		if err := snap.CurrentPlan.ValidateAcyclic(); err != nil {
			slog.Warn("loaded plan has invalid dependency graph", "plan_id", snap.CurrentPlan.ID, "error", err)
		}
	}

	retention := opts.HistoryRetention
	if retention <= 0 {
		retention = DefaultHistoryRetention
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	return &Manager{
		store:     store,
		bus:       b,
		cache:     opts.Cache,
		retention: retention,
		now:       now,
		current:   snap.CurrentPlan,
		history:   snap.History,
	}, nil
}

// Subscribe registers an event handler on the manager's bus.
func (m *Manager) Subscribe(t bus.Type, h bus.Handler) {
	m.bus.Subscribe(t, h)
}

// CreatePlan archives the current plan, if any, and activates a new one.
func (m *Manager) CreatePlan(ctx context.Context, name, description string) (*plan.Plan, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: plan name is required", domain.ErrValidation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ts := m.now().UTC()
	var events []bus.Event

	if m.current != nil {
		prev := m.current
		prev.Status = plan.StatusArchived
		prev.UpdatedAt = ts
		m.pushHistory(*prev)
		events = append(events, bus.Event{
			Type:      bus.TypePlanArchived,
			PlanID:    prev.ID,
			From:      string(plan.StatusActive),
			To:        string(plan.StatusArchived),
			Timestamp: ts,
		})
	}

	p := &plan.Plan{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Status:      plan.StatusActive, // draft is transient: plans activate on creation
		Tasks:       []task.Task{},
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	m.current = p

	events = append(events, bus.Event{
		Type:      bus.TypePlanCreated,
		PlanID:    p.ID,
		From:      string(plan.StatusDraft),
		To:        string(plan.StatusActive),
		Timestamp: ts,
		Details:   map[string]any{"name": name},
	})

	if err := m.commit(ctx, events...); err != nil {
		return nil, err
	}

	slog.Info("plan created", "plan_id", p.ID, "name", name)
	return p.Clone(), nil
}

// GetCurrentPlan returns a copy of the current plan, or nil if none exists.
func (m *Manager) GetCurrentPlan() *plan.Plan {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.Clone()
}

// History returns copies of the archived plans, oldest first.
func (m *Manager) History() []plan.Plan {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]plan.Plan, len(m.history))
	for i := range m.history {
		out[i] = *m.history[i].Clone()
	}
	return out
}

// AddTask appends a pending task to the current plan. Dependency ids must
// reference tasks already in the plan, which keeps the graph acyclic by
// construction.
func (m *Manager) AddTask(ctx context.Context, req task.CreateRequest) (*task.Task, error) {
	if req.Title == "" {
		return nil, fmt.Errorf("%w: task title is required", domain.ErrValidation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil, domain.ErrNoActivePlan
	}
	if err := m.current.ValidateDeps(req.Dependencies); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}

	ts := m.now().UTC()
	t := task.Task{
		ID:           uuid.NewString(),
		Title:        req.Title,
		Description:  req.Description,
		Status:       task.StatusPending,
		Dependencies: append([]string(nil), req.Dependencies...),
		CreatedAt:    ts,
	}
	m.current.Tasks = append(m.current.Tasks, t)
	m.current.UpdatedAt = ts

	ev := bus.Event{
		Type:      bus.TypeTaskAdded,
		PlanID:    m.current.ID,
		TaskID:    t.ID,
		To:        string(task.StatusPending),
		Timestamp: ts,
		Details:   map[string]any{"title": t.Title},
	}
	if err := m.commit(ctx, ev); err != nil {
		return nil, err
	}

	slog.Info("task added", "plan_id", m.current.ID, "task_id", t.ID, "title", t.Title, "deps", len(t.Dependencies))
	return t.Clone(), nil
}

// StartTask transitions a pending task to in_progress. All dependencies must
// be completed.
func (m *Manager) StartTask(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.findTask(id)
	if err != nil {
		return err
	}
	if t.Status != task.StatusPending {
		return fmt.Errorf("%w: task %s is %s, expected pending", domain.ErrState, id, t.Status)
	}
	if unmet := m.current.UnmetDeps(t); len(unmet) > 0 {
		return fmt.Errorf("%w: task %s waits on %v", domain.ErrDependency, id, unmet)
	}

	ts := m.now().UTC()
	t.Status = task.StatusInProgress
	t.StartedAt = &ts
	m.current.UpdatedAt = ts

	ev := bus.Event{
		Type:      bus.TypeTaskStarted,
		PlanID:    m.current.ID,
		TaskID:    id,
		From:      string(task.StatusPending),
		To:        string(task.StatusInProgress),
		Timestamp: ts,
	}
	return m.commit(ctx, ev)
}

// CompleteTask transitions an in_progress task to completed and records its
// outputs. Completing the last non-terminal task completes the plan as a
// side effect.
func (m *Manager) CompleteTask(ctx context.Context, id, notes string, outputs map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.findTask(id)
	if err != nil {
		return err
	}
	if t.Status != task.StatusInProgress {
		return fmt.Errorf("%w: task %s is %s, expected in_progress", domain.ErrState, id, t.Status)
	}

	ts := m.now().UTC()
	t.Status = task.StatusCompleted
	t.CompletedAt = &ts
	if len(outputs) > 0 {
		if t.Outputs == nil {
			t.Outputs = make(map[string]any, len(outputs))
		}
		for k, v := range outputs {
			t.Outputs[k] = v
		}
	}
	m.current.UpdatedAt = ts

	events := []bus.Event{{
		Type:      bus.TypeTaskCompleted,
		PlanID:    m.current.ID,
		TaskID:    id,
		From:      string(task.StatusInProgress),
		To:        string(task.StatusCompleted),
		Timestamp: ts,
		Details:   map[string]any{"notes": notes, "duration_ms": t.Duration().Milliseconds()},
	}}
	events = append(events, m.maybeCompletePlan(ts)...)

	return m.commit(ctx, events...)
}

// BlockTask marks a pending or in_progress task blocked.
func (m *Manager) BlockTask(ctx context.Context, id, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.findTask(id)
	if err != nil {
		return err
	}
	if !t.Status.CanTransition(task.StatusBlocked) {
		return fmt.Errorf("%w: task %s is %s, cannot block", domain.ErrState, id, t.Status)
	}

	ts := m.now().UTC()
	from := t.Status
	t.Status = task.StatusBlocked
	m.current.UpdatedAt = ts

	ev := bus.Event{
		Type:      bus.TypeTaskBlocked,
		PlanID:    m.current.ID,
		TaskID:    id,
		From:      string(from),
		To:        string(task.StatusBlocked),
		Timestamp: ts,
		Details:   map[string]any{"reason": reason},
	}
	return m.commit(ctx, ev)
}

// RequeueTask re-offers a blocked task after its dependencies change.
func (m *Manager) RequeueTask(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.findTask(id)
	if err != nil {
		return err
	}
	if t.Status != task.StatusBlocked {
		return fmt.Errorf("%w: task %s is %s, expected blocked", domain.ErrState, id, t.Status)
	}

	ts := m.now().UTC()
	t.Status = task.StatusPending
	m.current.UpdatedAt = ts

	ev := bus.Event{
		Type:      bus.TypeTaskRequeued,
		PlanID:    m.current.ID,
		TaskID:    id,
		From:      string(task.StatusBlocked),
		To:        string(task.StatusPending),
		Timestamp: ts,
	}
	return m.commit(ctx, ev)
}

// CancelTask cancels any non-terminal task. Cancelling the last non-terminal
// task completes the plan as a side effect.
func (m *Manager) CancelTask(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.findTask(id)
	if err != nil {
		return err
	}
	if !t.Status.CanTransition(task.StatusCancelled) {
		return fmt.Errorf("%w: task %s is already %s", domain.ErrState, id, t.Status)
	}

	ts := m.now().UTC()
	from := t.Status
	t.Status = task.StatusCancelled
	m.current.UpdatedAt = ts

	events := []bus.Event{{
		Type:      bus.TypeTaskCancelled,
		PlanID:    m.current.ID,
		TaskID:    id,
		From:      string(from),
		To:        string(task.StatusCancelled),
		Timestamp: ts,
	}}
	events = append(events, m.maybeCompletePlan(ts)...)

	return m.commit(ctx, events...)
}

// ArchivePlan moves the current plan into history. Archiving an already
// archived plan is a no-op.
func (m *Manager) ArchivePlan(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.history {
		if m.history[i].ID == id {
			return nil // already archived
		}
	}
	if m.current == nil || m.current.ID != id {
		return fmt.Errorf("plan %s: %w", id, domain.ErrNotFound)
	}

	ts := m.now().UTC()
	from := m.current.Status
	m.current.Status = plan.StatusArchived
	m.current.UpdatedAt = ts
	m.pushHistory(*m.current)
	m.current = nil

	ev := bus.Event{
		Type:      bus.TypePlanArchived,
		PlanID:    id,
		From:      string(from),
		To:        string(plan.StatusArchived),
		Timestamp: ts,
	}
	return m.commit(ctx, ev)
}

// DeletePlan removes a plan entirely, from current or from history.
func (m *Manager) DeletePlan(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ts := m.now().UTC()
	if m.current != nil && m.current.ID == id {
		m.current = nil
	} else {
		idx := -1
		for i := range m.history {
			if m.history[i].ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("plan %s: %w", id, domain.ErrNotFound)
		}
		m.history = append(m.history[:idx], m.history[idx+1:]...)
	}

	ev := bus.Event{
		Type:      bus.TypePlanDeleted,
		PlanID:    id,
		Timestamp: ts,
	}
	return m.commit(ctx, ev)
}

// CurrentTask returns a copy of the task at the scheduling cursor, or nil if
// the plan is exhausted or absent.
func (m *Manager) CurrentTask() *task.Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil || m.current.CurrentTaskIndex >= len(m.current.Tasks) {
		return nil
	}
	return m.current.Tasks[m.current.CurrentTaskIndex].Clone()
}

// AdvanceCursor moves the scheduling cursor past the current task. The move
// is persisted but publishes no event: it is bookkeeping, not a transition.
func (m *Manager) AdvanceCursor(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return domain.ErrNoActivePlan
	}
	if m.current.CurrentTaskIndex < len(m.current.Tasks) {
		m.current.CurrentTaskIndex++
	}
	return m.commit(ctx)
}

// UnmetDependencies returns the unmet dependency ids for a task, for callers
// that need to decide scheduling without attempting a start.
func (m *Manager) UnmetDependencies(id string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.findTask(id)
	if err != nil {
		return nil, err
	}
	return m.current.UnmetDeps(t), nil
}

// findTask locates a task in the current plan. Caller holds the lock.
func (m *Manager) findTask(id string) (*task.Task, error) {
	if m.current == nil {
		return nil, domain.ErrNoActivePlan
	}
	t := m.current.FindTask(id)
	if t == nil {
		return nil, fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
	}
	return t, nil
}

// maybeCompletePlan transitions the current plan to completed when every
// task is terminal. Caller holds the lock.
func (m *Manager) maybeCompletePlan(ts time.Time) []bus.Event {
	if m.current == nil || m.current.Status != plan.StatusActive || !m.current.AllTerminal() {
		return nil
	}
	m.current.Status = plan.StatusCompleted
	m.current.UpdatedAt = ts
	return []bus.Event{{
		Type:      bus.TypePlanCompleted,
		PlanID:    m.current.ID,
		From:      string(plan.StatusActive),
		To:        string(plan.StatusCompleted),
		Timestamp: ts,
	}}
}

// pushHistory appends a plan to history, evicting the oldest entries beyond
// the retention bound. Caller holds the lock.
func (m *Manager) pushHistory(p plan.Plan) {
	m.history = append(m.history, p)
	if excess := len(m.history) - m.retention; excess > 0 {
		evicted := m.history[:excess]
		for i := range evicted {
			slog.Debug("evicting archived plan", "plan_id", evicted[i].ID, "name", evicted[i].Name)
		}
		m.history = append([]plan.Plan(nil), m.history[excess:]...)
	}
}

// commit persists the snapshot and then publishes the given events, in that
// order. Persistence failure short-circuits publication: no event is emitted
// for a mutation that did not durably succeed. The in-memory mutation is
// kept; the next successful commit makes it durable. Caller holds the lock.
func (m *Manager) commit(ctx context.Context, events ...bus.Event) error {
	m.invalidateStatus(ctx)

	snap := &snapshot.Snapshot{
		CurrentPlan: m.current,
		History:     m.history,
		Metadata: snapshot.Metadata{
			Version:     snapshot.SchemaVersion,
			LastUpdated: m.now().UTC(),
		},
	}
	if snap.History == nil {
		snap.History = []plan.Plan{}
	}

	if err := m.store.Save(ctx, snap); err != nil {
		m.dirty = true
		slog.Warn("snapshot save failed, state not yet durable", "error", err)
		return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	if m.dirty {
		slog.Info("snapshot save recovered, state durable again")
		m.dirty = false
	}

	for _, ev := range events {
		m.bus.Publish(ctx, ev)
	}
	return nil
}
