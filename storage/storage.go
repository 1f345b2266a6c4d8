// Package storage implements the board gateway on Azure Table Storage, with
// a task event feed on an Azure Storage Queue and an optional Redis cache.
package storage

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"trellis-api/board"
	"trellis-api/domain"
)

// Storage is the system of record for task records. One table partition per
// project, one row per task; every successful mutation publishes a task
// event to the feed queue.
type Storage struct {
	taskTable  *aztables.Client
	eventQueue *azqueue.QueueClient
}

// New creates a Storage instance from the given connection string.
func New(connStr, tasksTable, eventQueue string) (*Storage, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	queueClientOptions := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	eq, err := azqueue.NewQueueClientFromConnectionString(connStr, eventQueue, &queueClientOptions)
	if err != nil {
		return nil, err
	}
	return &Storage{taskTable: svc.NewClient(tasksTable), eventQueue: eq}, nil
}

type taskEntity struct {
	aztables.Entity
	Title       string `json:"Title"`
	Description string `json:"Description"`
	Status      string `json:"Status"`
	Priority    string `json:"Priority"`
	Assignee    string `json:"Assignee"`
}

func (e taskEntity) task() domain.Task {
	return domain.Task{
		ID:          e.RowKey,
		Title:       e.Title,
		Description: e.Description,
		Status:      domain.Status(e.Status),
		Priority:    domain.Priority(e.Priority),
		Assignee:    e.Assignee,
	}
}

func entityFromTask(projectID string, t domain.Task) taskEntity {
	return taskEntity{
		Entity:      aztables.Entity{PartitionKey: projectID, RowKey: t.ID},
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		Assignee:    t.Assignee,
	}
}

// partitionFilter builds an OData filter for the project partition. Project
// ids come from request input, so embedded quotes are doubled.
func partitionFilter(projectID string) string {
	return "PartitionKey eq '" + strings.ReplaceAll(projectID, "'", "''") + "'"
}

// List retrieves all tasks for the project. Rows that fail task validation
// are dropped with a warning rather than poisoning the whole board.
func (s *Storage) List(ctx context.Context, projectID string) ([]domain.Task, error) {
	filter := partitionFilter(projectID)
	pager := s.taskTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, remoteErr("list", err)
		}
		for _, raw := range resp.Entities {
			var ent taskEntity
			if err := json.Unmarshal(raw, &ent); err != nil {
				return nil, remoteErr("list", err)
			}
			task := ent.task()
			if err := task.Validate(); err != nil {
				log.WithFields(log.Fields{
					"project_id": projectID,
					"task_id":    ent.RowKey,
				}).Warnf("skipping malformed task row: %v", err)
				continue
			}
			tasks = append(tasks, task)
		}
	}
	return tasks, nil
}

// Create assigns a fresh id, writes the row and publishes a task-created
// event.
func (s *Storage) Create(ctx context.Context, projectID string, fields domain.Fields) (domain.Task, error) {
	if err := fields.Validate(true); err != nil {
		return domain.Task{}, remoteErr("create", err)
	}
	task := domain.Task{ID: uuid.NewString()}
	fields.Apply(&task)

	data, err := json.Marshal(entityFromTask(projectID, task))
	if err != nil {
		return domain.Task{}, remoteErr("create", err)
	}
	if _, err := s.taskTable.AddEntity(ctx, data, nil); err != nil {
		return domain.Task{}, remoteErr("create", err)
	}
	s.publishEvent(ctx, projectID, domain.EventTaskCreated, task)
	return task, nil
}

// Patch merges the fields into the stored row and returns the updated task.
func (s *Storage) Patch(ctx context.Context, projectID, taskID string, fields domain.Fields) (domain.Task, error) {
	if err := fields.Validate(false); err != nil {
		return domain.Task{}, remoteErr("patch", err)
	}
	resp, err := s.taskTable.GetEntity(ctx, projectID, taskID, nil)
	if err != nil {
		return domain.Task{}, remoteErr("patch", err)
	}
	var ent taskEntity
	if err := json.Unmarshal(resp.Value, &ent); err != nil {
		return domain.Task{}, remoteErr("patch", err)
	}
	task := ent.task()
	fields.Apply(&task)
	if err := task.Validate(); err != nil {
		return domain.Task{}, remoteErr("patch", err)
	}

	data, err := json.Marshal(entityFromTask(projectID, task))
	if err != nil {
		return domain.Task{}, remoteErr("patch", err)
	}
	opts := &aztables.UpdateEntityOptions{UpdateMode: aztables.UpdateModeReplace}
	if _, err := s.taskTable.UpdateEntity(ctx, data, opts); err != nil {
		return domain.Task{}, remoteErr("patch", err)
	}

	eventType := domain.EventTaskUpdated
	if fields.StatusOnly() {
		eventType = domain.EventTaskMoved
	}
	s.publishEvent(ctx, projectID, eventType, task)
	return task, nil
}

// Delete removes the row and publishes a task-deleted event.
func (s *Storage) Delete(ctx context.Context, projectID, taskID string) error {
	if _, err := s.taskTable.DeleteEntity(ctx, projectID, taskID, nil); err != nil {
		return remoteErr("delete", err)
	}
	s.publishEvent(ctx, projectID, domain.EventTaskDeleted, domain.Task{ID: taskID})
	return nil
}

// publishEvent enqueues the event envelope best-effort: the record write has
// already succeeded, so a feed failure is logged, not surfaced.
func (s *Storage) publishEvent(ctx context.Context, projectID, eventType string, task domain.Task) {
	if s.eventQueue == nil {
		return
	}
	ev := domain.TaskEvent{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		TaskID:    task.ID,
		Type:      eventType,
		Timestamp: time.Now().UnixNano(),
	}
	if eventType != domain.EventTaskDeleted {
		ev.Task = &task
	}
	data, err := json.Marshal(ev)
	if err != nil {
		log.Warnf("marshal task event: %v", err)
		return
	}
	if _, err := s.eventQueue.EnqueueMessage(ctx, string(data), nil); err != nil {
		log.WithFields(log.Fields{
			"project_id": projectID,
			"task_id":    task.ID,
			"event":      eventType,
		}).Warnf("enqueue task event: %v", err)
	}
}

func remoteErr(op string, err error) *board.RemoteError {
	return &board.RemoteError{Op: op, Message: err.Error(), Err: err}
}
