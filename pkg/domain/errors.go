package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a workflow or step id is unknown.
var ErrNotFound = errors.New("not found")

// ErrInvalidState is returned when an operation is not permitted in the current status.
var ErrInvalidState = errors.New("invalid state")

// ErrUnknownAction is returned when a step references an unregistered handler.
var ErrUnknownAction = errors.New("unknown action")

// ErrInvalidStep is returned when a step definition is malformed.
var ErrInvalidStep = errors.New("invalid step definition")

// ErrSessionNotFound is returned when a session cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrExecutionNotFound is returned when an execution id cannot be found in the store.
var ErrExecutionNotFound = errors.New("execution not found")

// HandlerError wraps a failure raised by an action handler.
type HandlerError struct {
	Step   string
	Action string
	Err    error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("step '%s' (action %s) failed: %v", e.Step, e.Action, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// StoreError wraps a State Store failure. The message is the store's, unchanged.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return e.Err.Error()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsStoreFailure reports whether err originated in the State Store.
func IsStoreFailure(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
