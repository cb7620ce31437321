// Package executor implements the auto task executor: a single background
// worker that drives the current plan's tasks to completion through the
// manager's public API. It never mutates workflow state directly.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/planwright/planwright/internal/domain"
	"github.com/planwright/planwright/internal/domain/task"
	"github.com/planwright/planwright/internal/service"
)

// State is the executor's own lifecycle, distinct from task statuses.
type State string

const (
	StateStopped State = "stopped"
	StateRunning State = "running"
	StatePaused  State = "paused"
)

// WorkFunc performs the actual unit of work for one task. It may block for
// an arbitrary duration; cancellation is cooperative via ctx. Returned
// outputs are recorded on the completed task.
type WorkFunc func(ctx context.Context, t task.Task) (map[string]any, error)

// Config tunes scheduling behavior.
type Config struct {
	// AutoSkipBlocked blocks and skips past tasks with unmet dependencies
	// instead of halting the loop.
	AutoSkipBlocked bool
	// PauseOnError pauses the executor after a work callback failure
	// instead of continuing with the next task.
	PauseOnError bool
	// InterTaskDelay is slept between task iterations.
	InterTaskDelay time.Duration
	// PollInterval is the idle wait used while halted on unmet
	// dependencies. Zero means InterTaskDelay, or 250ms if both are zero.
	PollInterval time.Duration
}

// Stats are the executor's run counters. Readable concurrently via Stats().
type Stats struct {
	TotalExecuted int       `json:"total_executed"`
	Successful    int       `json:"successful"`
	Failed        int       `json:"failed"`
	Skipped       int       `json:"skipped"`
	StartedAt     time.Time `json:"started_at,omitzero"`
	EndedAt       time.Time `json:"ended_at,omitzero"`
}

// Executor is the background scheduler. One instance drives one manager.
type Executor struct {
	mgr  *service.Manager
	work WorkFunc
	cfg  Config

	mu    sync.Mutex
	cond  *sync.Cond
	state State
	stats Stats
	done  chan struct{}
	stop  context.CancelFunc

	beforeTask []func(task.Task)
	afterTask  []func(task.Task)
	onError    []func(task.Task, error)
	onBlocked  []func(task.Task, []string)
	onComplete []func(Stats)
}

// New creates an executor for the given manager and work callback.
func New(mgr *service.Manager, work WorkFunc, cfg Config) *Executor {
	e := &Executor{
		mgr:   mgr,
		work:  work,
		cfg:   cfg,
		state: StateStopped,
	}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// OnBeforeTask registers a hook fired before a task's work begins.
func (e *Executor) OnBeforeTask(fn func(task.Task)) { e.addHook(func() { e.beforeTask = append(e.beforeTask, fn) }) }

// OnAfterTask registers a hook fired after a task completes successfully.
func (e *Executor) OnAfterTask(fn func(task.Task)) { e.addHook(func() { e.afterTask = append(e.afterTask, fn) }) }

// OnError registers a hook fired when a work callback fails.
func (e *Executor) OnError(fn func(task.Task, error)) { e.addHook(func() { e.onError = append(e.onError, fn) }) }

// OnBlocked registers a hook fired when a task is auto-skipped as blocked.
func (e *Executor) OnBlocked(fn func(task.Task, []string)) { e.addHook(func() { e.onBlocked = append(e.onBlocked, fn) }) }

// OnComplete registers a hook fired when the plan has no more work.
func (e *Executor) OnComplete(fn func(Stats)) { e.addHook(func() { e.onComplete = append(e.onComplete, fn) }) }

func (e *Executor) addHook(register func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	register()
}

// State returns the executor's current state.
func (e *Executor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Stats returns a copy of the current run counters.
func (e *Executor) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Start spawns the background worker. Starting a non-stopped executor is an
// error, and so is starting while a previous worker is still draining an
// in-flight work callback after a timed-out Stop.
func (e *Executor) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateStopped {
		return fmt.Errorf("executor is %s, expected stopped", e.state)
	}
	if e.done != nil {
		select {
		case <-e.done:
		default:
			return fmt.Errorf("executor is stopping, previous worker still running")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.stop = cancel
	done := make(chan struct{})
	e.done = done
	e.state = StateRunning
	e.stats = Stats{StartedAt: time.Now().UTC()}

	go e.run(ctx, done)
	slog.Info("executor started",
		"auto_skip_blocked", e.cfg.AutoSkipBlocked,
		"pause_on_error", e.cfg.PauseOnError,
		"inter_task_delay", e.cfg.InterTaskDelay,
	)
	return nil
}

// Stop signals a cooperative stop and joins the worker. A work callback
// already in flight is never preempted; if it outlives the timeout, Stop
// returns an error and the worker exits after the callback returns.
func (e *Executor) Stop(timeout time.Duration) error {
	e.mu.Lock()
	if e.state == StateStopped {
		e.mu.Unlock()
		return nil
	}
	e.state = StateStopped
	e.cond.Broadcast()
	done := e.done
	cancel := e.stop
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("executor stop: worker did not exit within %s", timeout)
	}
}

// Pause suspends scheduling at the next iteration boundary. An in-flight
// task finishes normally.
func (e *Executor) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateRunning {
		e.state = StatePaused
		e.cond.Broadcast()
		slog.Info("executor paused")
	}
}

// Resume continues scheduling after a pause.
func (e *Executor) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StatePaused {
		e.state = StateRunning
		e.cond.Broadcast()
		slog.Info("executor resumed")
	}
}

// run is the scheduling loop. Each iteration is guarded so an unexpected
// panic is logged and the loop continues rather than dying silently.
func (e *Executor) run(ctx context.Context, done chan struct{}) {
	defer func() {
		e.mu.Lock()
		e.state = StateStopped
		e.stats.EndedAt = time.Now().UTC()
		e.mu.Unlock()
		close(done)
		slog.Info("executor stopped")
	}()

	for {
		if !e.awaitRunnable() {
			return
		}

		wait, exhausted := e.iterate(ctx)
		if exhausted {
			return
		}
		if !e.sleep(ctx, wait) {
			return
		}
	}
}

// awaitRunnable blocks while paused and reports false once stopped.
func (e *Executor) awaitRunnable() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for e.state == StatePaused {
		e.cond.Wait()
	}
	return e.state == StateRunning
}

// sleep waits for d unless the executor is stopped first.
func (e *Executor) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// iterate performs one scheduling step and returns how long to wait before
// the next one, plus whether the plan is exhausted.
func (e *Executor) iterate(ctx context.Context) (wait time.Duration, exhausted bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("executor iteration panicked", "panic", r)
			wait, exhausted = e.interTaskDelay(), false
		}
	}()

	cur := e.mgr.CurrentTask()
	if cur == nil {
		// All work complete (or no plan): finish the run.
		e.fireOnComplete()
		return 0, true
	}

	// Already-terminal tasks are passed over without re-execution.
	if cur.Status.IsTerminal() {
		if err := e.mgr.AdvanceCursor(ctx); err != nil {
			slog.Warn("advance cursor", "task_id", cur.ID, "error", err)
		}
		return 0, false
	}

	unmet, err := e.mgr.UnmetDependencies(cur.ID)
	if err != nil {
		slog.Warn("dependency check", "task_id", cur.ID, "error", err)
		return e.interTaskDelay(), false
	}
	if cur.Status == task.StatusBlocked && len(unmet) == 0 {
		// Dependencies were completed since the task was blocked: re-offer it.
		if err := e.mgr.RequeueTask(ctx, cur.ID); err != nil {
			slog.Warn("requeue task", "task_id", cur.ID, "error", err)
		}
		return 0, false
	}
	if len(unmet) > 0 {
		return e.handleBlocked(ctx, *cur, unmet), false
	}

	e.execute(ctx, *cur)
	return e.interTaskDelay(), false
}

// handleBlocked decides what to do with a task whose dependencies are unmet.
func (e *Executor) handleBlocked(ctx context.Context, cur task.Task, unmet []string) time.Duration {
	if !e.cfg.AutoSkipBlocked {
		// Halt without advancing; a later iteration re-evaluates after
		// dependencies may have been completed by other callers.
		return e.pollInterval()
	}

	if cur.Status != task.StatusBlocked {
		if err := e.mgr.BlockTask(ctx, cur.ID, fmt.Sprintf("unmet dependencies: %v", unmet)); err != nil {
			// The task changed under us or persistence failed; do not count
			// a skip that never applied. Re-examine next iteration.
			slog.Warn("block task", "task_id", cur.ID, "error", err)
			return e.pollInterval()
		}
	}
	e.fireOnBlocked(cur, unmet)

	e.mu.Lock()
	e.stats.Skipped++
	e.mu.Unlock()

	if err := e.mgr.AdvanceCursor(ctx); err != nil {
		slog.Warn("advance cursor", "task_id", cur.ID, "error", err)
	}
	return 0
}

// execute runs one task through start → work → complete, applying the
// failure policy on error.
func (e *Executor) execute(ctx context.Context, cur task.Task) {
	e.fireBeforeTask(cur)

	if err := e.mgr.StartTask(ctx, cur.ID); err != nil {
		// Lost a race with a foreground caller, or a dependency regressed
		// between the check and the start. Re-examine next iteration.
		if !errors.Is(err, domain.ErrPersistence) {
			slog.Warn("start task", "task_id", cur.ID, "error", err)
		}
		return
	}

	outputs, workErr := e.invokeWork(ctx, cur)

	e.mu.Lock()
	e.stats.TotalExecuted++
	e.mu.Unlock()

	if workErr != nil {
		e.mu.Lock()
		e.stats.Failed++
		e.mu.Unlock()

		slog.Error("task work failed", "task_id", cur.ID, "title", cur.Title, "error", workErr)
		if err := e.mgr.BlockTask(ctx, cur.ID, workErr.Error()); err != nil {
			slog.Warn("block failed task", "task_id", cur.ID, "error", err)
		}
		e.fireOnError(cur, workErr)

		if err := e.mgr.AdvanceCursor(ctx); err != nil {
			slog.Warn("advance cursor", "task_id", cur.ID, "error", err)
		}
		if e.cfg.PauseOnError {
			e.Pause()
		}
		return
	}

	if err := e.mgr.CompleteTask(ctx, cur.ID, "", outputs); err != nil {
		slog.Error("complete task", "task_id", cur.ID, "error", err)
		return
	}

	e.mu.Lock()
	e.stats.Successful++
	e.mu.Unlock()

	e.fireAfterTask(cur)
	slog.Info("task executed", "task_id", cur.ID, "title", cur.Title)
}

// invokeWork calls the injected work callback, converting a panic into an
// error so a misbehaving callback cannot kill the loop.
func (e *Executor) invokeWork(ctx context.Context, cur task.Task) (outputs map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", domain.ErrExecutor, r)
		}
	}()
	outputs, err = e.work(ctx, cur)
	if err != nil {
		err = fmt.Errorf("%w: %w", domain.ErrExecutor, err)
	}
	return outputs, err
}

func (e *Executor) interTaskDelay() time.Duration {
	return e.cfg.InterTaskDelay
}

func (e *Executor) pollInterval() time.Duration {
	if e.cfg.PollInterval > 0 {
		return e.cfg.PollInterval
	}
	if e.cfg.InterTaskDelay > 0 {
		return e.cfg.InterTaskDelay
	}
	return 250 * time.Millisecond
}
