package domain

// Task event types published to the board event feed.
const (
	EventTaskCreated = "task-created"
	EventTaskUpdated = "task-updated"
	EventTaskMoved   = "task-moved"
	EventTaskDeleted = "task-deleted"
)

// TaskEvent is the envelope enqueued to the event feed after a successful
// mutation of the system of record.
type TaskEvent struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	TaskID    string `json:"taskId"`
	Type      string `json:"type"`
	Task      *Task  `json:"task,omitempty"`
	Timestamp int64  `json:"timestamp"`
}
