package domain

import (
	"errors"
	"fmt"
)

var (
	ErrMissingID  = errors.New("task id is missing")
	ErrEmptyTitle = errors.New("task title must not be empty")
)

// InvalidValueError reports a field carrying a value outside its enumeration.
type InvalidValueError struct {
	Field string
	Value string
}

func (e InvalidValueError) Error() string {
	return fmt.Sprintf("invalid %s value %q", e.Field, e.Value)
}

// Fields is a partial update for a task. Nil pointers mean "leave unchanged";
// a pointer to the zero value clears the field where clearing is meaningful
// (description, priority, assignee).
type Fields struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Status      *Status   `json:"status,omitempty"`
	Priority    *Priority `json:"priority,omitempty"`
	Assignee    *string   `json:"assignee,omitempty"`
}

// Validate rejects values outside their enumerations and, when forCreate is
// set, requires the fields a brand-new task cannot do without.
func (f Fields) Validate(forCreate bool) error {
	if forCreate {
		if f.Title == nil || *f.Title == "" {
			return ErrEmptyTitle
		}
		if f.Status == nil {
			return InvalidValueError{Field: "status", Value: ""}
		}
	}
	if f.Title != nil && *f.Title == "" {
		return ErrEmptyTitle
	}
	if f.Status != nil && !f.Status.Valid() {
		return InvalidValueError{Field: "status", Value: string(*f.Status)}
	}
	if f.Priority != nil && !f.Priority.Valid() {
		return InvalidValueError{Field: "priority", Value: string(*f.Priority)}
	}
	return nil
}

// Empty reports whether the update changes nothing.
func (f Fields) Empty() bool {
	return f.Title == nil && f.Description == nil && f.Status == nil &&
		f.Priority == nil && f.Assignee == nil
}

// StatusOnly reports whether the update touches the status field and nothing
// else, which is the shape of a board move.
func (f Fields) StatusOnly() bool {
	return f.Status != nil && f.Title == nil && f.Description == nil &&
		f.Priority == nil && f.Assignee == nil
}

// Apply merges the set fields into t.
func (f Fields) Apply(t *Task) {
	if f.Title != nil {
		t.Title = *f.Title
	}
	if f.Description != nil {
		t.Description = *f.Description
	}
	if f.Status != nil {
		t.Status = *f.Status
	}
	if f.Priority != nil {
		t.Priority = *f.Priority
	}
	if f.Assignee != nil {
		t.Assignee = *f.Assignee
	}
}
