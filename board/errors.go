package board

import "errors"

var (
	// ErrNotPermitted rejects a mutation before any state change or gateway
	// call when the acting role lacks the required permission.
	ErrNotPermitted = errors.New("role is not permitted to perform this action")

	// ErrTaskBusy rejects a second mutation on a task id whose previous
	// remote call has not yet resolved.
	ErrTaskBusy = errors.New("task has an operation in flight")

	// ErrTaskNotFound rejects a mutation targeting an id no longer on the
	// board. The operation is a no-op, never a crash.
	ErrTaskNotFound = errors.New("task not found on the board")
)
