package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidTaskType   = errors.New("invalid task type")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrInvalidState      = errors.New("invalid state")
	ErrStatusConflict    = errors.New("status changed concurrently")
	ErrEmptyBatch        = errors.New("batch has no tasks")
	ErrProviderFailure   = errors.New("provider failure")
)

// TransitionError describes a rejected state change.
type TransitionError struct {
	TaskID string
	From   TaskStatus
	To     TaskStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("task %s: cannot move from %s to %s", e.TaskID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// CreationError reports that a task row could not be persisted.
type CreationError struct {
	TaskType TaskType
	Err      error
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("create %s task: %v", e.TaskType, e.Err)
}

func (e *CreationError) Unwrap() error { return e.Err }
