package domain

// Status places a task in exactly one board column. Any status is reachable
// from any other in a single move; there is no enforced workflow ordering.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusDone       Status = "done"
	StatusBlocked    Status = "blocked"
)

// Valid reports whether s is one of the known board columns.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone, StatusBlocked:
		return true
	}
	return false
}

// Statuses lists the board columns in display order.
func Statuses() []Status {
	return []Status{StatusTodo, StatusInProgress, StatusDone, StatusBlocked}
}

// Priority is an optional task weight. The empty value means unset.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is a known priority. The empty priority is valid.
func (p Priority) Valid() bool {
	switch p {
	case "", PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Task represents a single board item for one project.
type Task struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Status      Status   `json:"status"`
	Priority    Priority `json:"priority,omitempty"`
	Assignee    string   `json:"assignee,omitempty"`
}

// Validate checks the invariants every task in board state must satisfy.
// Records arriving from the remote tier go through this before they are
// trusted as typed tasks.
func (t Task) Validate() error {
	if t.ID == "" {
		return ErrMissingID
	}
	if t.Title == "" {
		return ErrEmptyTitle
	}
	if !t.Status.Valid() {
		return InvalidValueError{Field: "status", Value: string(t.Status)}
	}
	if !t.Priority.Valid() {
		return InvalidValueError{Field: "priority", Value: string(t.Priority)}
	}
	return nil
}
