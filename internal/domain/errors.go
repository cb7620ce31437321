// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested plan or task does not exist.
var ErrNotFound = errors.New("not found")

// ErrValidation indicates malformed arguments, such as an empty title or a
// dependency id that references no known task.
var ErrValidation = errors.New("validation failed")

// ErrState indicates an illegal lifecycle transition was attempted.
var ErrState = errors.New("illegal state transition")

// ErrDependency indicates a task cannot start because at least one of its
// dependencies is not completed.
var ErrDependency = errors.New("unmet dependencies")

// ErrNoActivePlan indicates an operation requires a current plan and none exists.
var ErrNoActivePlan = errors.New("no active plan")

// ErrPersistence indicates an I/O failure while loading or saving a snapshot.
var ErrPersistence = errors.New("persistence failure")

// ErrExecutor indicates the injected work callback failed or panicked.
var ErrExecutor = errors.New("work callback failed")
