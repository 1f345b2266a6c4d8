package board

import (
	"context"

	"trellis-api/domain"
)

// Gateway is the system-of-record boundary the store mutates through. The
// remote side assigns task ids on create. Every failure, transport or
// application-level, surfaces as a single error carrying a readable message.
type Gateway interface {
	List(ctx context.Context, projectID string) ([]domain.Task, error)
	Create(ctx context.Context, projectID string, fields domain.Fields) (domain.Task, error)
	Patch(ctx context.Context, projectID, taskID string, fields domain.Fields) (domain.Task, error)
	Delete(ctx context.Context, projectID, taskID string) error
}

// RemoteError is the uniform failure outcome of a gateway call.
type RemoteError struct {
	Op      string
	Message string
	Err     error
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return e.Op + ": " + e.Message
	}
	if e.Err != nil {
		return e.Op + ": " + e.Err.Error()
	}
	return e.Op + ": remote call failed"
}

func (e *RemoteError) Unwrap() error { return e.Err }
