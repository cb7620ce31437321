package executor

import (
	"log/slog"
	"slices"

	"github.com/planwright/planwright/internal/domain/task"
)

// Hooks are best-effort: each is invoked in registration order and a panic
// in one is logged without aborting the loop or the remaining hooks.

func (e *Executor) fireBeforeTask(t task.Task) {
	for _, fn := range e.snapshotHooks(&e.beforeTask) {
		invokeHook("before_task", func() { fn(t) })
	}
}

func (e *Executor) fireAfterTask(t task.Task) {
	for _, fn := range e.snapshotHooks(&e.afterTask) {
		invokeHook("after_task", func() { fn(t) })
	}
}

func (e *Executor) fireOnError(t task.Task, err error) {
	e.mu.Lock()
	hooks := slices.Clone(e.onError)
	e.mu.Unlock()
	for _, fn := range hooks {
		invokeHook("on_error", func() { fn(t, err) })
	}
}

func (e *Executor) fireOnBlocked(t task.Task, unmet []string) {
	e.mu.Lock()
	hooks := slices.Clone(e.onBlocked)
	e.mu.Unlock()
	for _, fn := range hooks {
		invokeHook("on_blocked", func() { fn(t, unmet) })
	}
}

func (e *Executor) fireOnComplete() {
	e.mu.Lock()
	hooks := slices.Clone(e.onComplete)
	stats := e.stats
	e.mu.Unlock()
	for _, fn := range hooks {
		invokeHook("on_complete", func() { fn(stats) })
	}
}

func (e *Executor) snapshotHooks(hooks *[]func(task.Task)) []func(task.Task) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(*hooks)
}

func invokeHook(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("executor hook panicked", "hook", name, "panic", r)
		}
	}()
	fn()
}
