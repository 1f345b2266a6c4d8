// Package board holds the in-memory task board for one project and applies
// mutations optimistically against the system of record: authorize, snapshot,
// apply locally, call the gateway, roll back if the call fails.
package board

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"trellis-api/domain"
	"trellis-api/rbac"
)

// Store owns the board state for a single project. Mutations take the acting
// role explicitly; the store never reads it from ambient state. Per-task
// serialization comes from the pending set. The mutex is never held across
// a gateway call, so operations on different task ids proceed independently.
type Store struct {
	projectID string
	gw        Gateway
	log       *log.Logger

	mu      sync.Mutex
	tasks   map[string]domain.Task
	order   []string
	pending map[string]struct{}
	loaded  bool
	loading bool
	lastErr error
}

// New creates an empty store for the project. Nothing is fetched until Load.
func New(projectID string, gw Gateway, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Store{
		projectID: projectID,
		gw:        gw,
		log:       logger,
		tasks:     make(map[string]domain.Task),
		pending:   make(map[string]struct{}),
	}
}

// Load fetches the full task list and replaces board state wholesale. On
// failure the previous state is kept (empty on first load) and the error is
// recorded and returned.
func (s *Store) Load(ctx context.Context) ([]domain.Task, error) {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	tasks, err := s.gw.List(ctx, s.projectID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.lastErr = err
		s.log.WithFields(log.Fields{"project_id": s.projectID, "op": "load"}).Warn(err)
		return nil, err
	}

	s.tasks = make(map[string]domain.Task, len(tasks))
	s.order = s.order[:0]
	for _, t := range tasks {
		if err := t.Validate(); err != nil {
			s.log.WithFields(log.Fields{
				"project_id": s.projectID,
				"task_id":    t.ID,
			}).Warnf("dropping malformed task record: %v", err)
			continue
		}
		if _, seen := s.tasks[t.ID]; !seen {
			s.order = append(s.order, t.ID)
		}
		s.tasks[t.ID] = t
	}
	s.loaded = true
	s.lastErr = nil
	return s.snapshotLocked(), nil
}

// EnsureLoaded loads the board once; later calls are no-ops after the first
// successful load.
func (s *Store) EnsureLoaded(ctx context.Context) error {
	s.mu.Lock()
	loaded := s.loaded
	s.mu.Unlock()
	if loaded {
		return nil
	}
	_, err := s.Load(ctx)
	return err
}

// Tasks returns a snapshot of the board in local insertion order. Order is
// not a preserved invariant across reloads or rollbacks.
func (s *Store) Tasks() []domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() []domain.Task {
	out := make([]domain.Task, 0, len(s.tasks))
	for _, id := range s.order {
		if t, ok := s.tasks[id]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Err returns the last transient failure. It stays set until the next
// failure overwrites it or ClearErr dismisses it.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// ClearErr dismisses the recorded transient failure.
func (s *Store) ClearErr() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = nil
}

// Loading reports whether a Load call is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Create issues a remote create and appends the server-assigned task on
// success. There is no optimistic placeholder: the id does not exist until
// the remote side assigns it.
func (s *Store) Create(ctx context.Context, role rbac.Role, status domain.Status, fields domain.Fields) (domain.Task, error) {
	if !rbac.HasPermission(role, rbac.PermCreateTask) {
		return domain.Task{}, ErrNotPermitted
	}
	fields.Status = &status
	if err := fields.Validate(true); err != nil {
		return domain.Task{}, err
	}

	task, err := s.gw.Create(ctx, s.projectID, fields)
	if err != nil {
		s.recordErr("create", "", err)
		return domain.Task{}, err
	}
	if verr := task.Validate(); verr != nil {
		err := &RemoteError{Op: "create", Message: "malformed task record from remote", Err: verr}
		s.recordErr("create", task.ID, err)
		return domain.Task{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.tasks[task.ID]; !seen {
		s.order = append(s.order, task.ID)
	}
	s.tasks[task.ID] = task
	return task, nil
}

// Update merges fields into the task and issues a remote patch. The local
// state flips before the remote call resolves; a failure restores the prior
// field values exactly.
func (s *Store) Update(ctx context.Context, role rbac.Role, taskID string, fields domain.Fields) (domain.Task, error) {
	if !rbac.HasPermission(role, rbac.PermEditTask) {
		return domain.Task{}, ErrNotPermitted
	}
	if err := fields.Validate(false); err != nil {
		return domain.Task{}, err
	}

	s.mu.Lock()
	prior, ok := s.tasks[taskID]
	if !ok {
		s.mu.Unlock()
		return domain.Task{}, ErrTaskNotFound
	}
	if _, busy := s.pending[taskID]; busy {
		s.mu.Unlock()
		return domain.Task{}, ErrTaskBusy
	}
	if fields.Empty() {
		// Nothing to change; converges without a remote round trip.
		s.mu.Unlock()
		return prior, nil
	}
	s.pending[taskID] = struct{}{}
	next := prior
	fields.Apply(&next)
	s.tasks[taskID] = next
	s.mu.Unlock()

	updated, err := s.gw.Patch(ctx, s.projectID, taskID, fields)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, taskID)
	if err != nil {
		s.tasks[taskID] = prior
		s.recordErrLocked("update", taskID, err)
		return domain.Task{}, err
	}
	if verr := updated.Validate(); verr != nil {
		s.tasks[taskID] = prior
		rerr := &RemoteError{Op: "patch", Message: "malformed task record from remote", Err: verr}
		s.recordErrLocked("update", taskID, rerr)
		return domain.Task{}, rerr
	}
	s.tasks[taskID] = updated
	return updated, nil
}

// Move flips the task's status column. It is an Update restricted to the
// status field and is authorized by the same edit permission; there is no
// separate move permission.
func (s *Store) Move(ctx context.Context, role rbac.Role, taskID string, status domain.Status) (domain.Task, error) {
	if !status.Valid() {
		return domain.Task{}, domain.InvalidValueError{Field: "status", Value: string(status)}
	}
	return s.Update(ctx, role, taskID, domain.Fields{Status: &status})
}

// Delete removes the task locally, then issues the remote delete. On failure
// the task is re-inserted with its original status and fields; its position
// among siblings is not preserved.
func (s *Store) Delete(ctx context.Context, role rbac.Role, taskID string) error {
	if !rbac.HasPermission(role, rbac.PermDeleteTask) {
		return ErrNotPermitted
	}

	s.mu.Lock()
	prior, ok := s.tasks[taskID]
	if !ok {
		s.mu.Unlock()
		return ErrTaskNotFound
	}
	if _, busy := s.pending[taskID]; busy {
		s.mu.Unlock()
		return ErrTaskBusy
	}
	s.pending[taskID] = struct{}{}
	delete(s.tasks, taskID)
	s.removeFromOrderLocked(taskID)
	s.mu.Unlock()

	err := s.gw.Delete(ctx, s.projectID, taskID)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, taskID)
	if err != nil {
		s.tasks[taskID] = prior
		s.order = append(s.order, taskID)
		s.recordErrLocked("delete", taskID, err)
		return err
	}
	return nil
}

func (s *Store) removeFromOrderLocked(taskID string) {
	for i, id := range s.order {
		if id == taskID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

func (s *Store) recordErr(op, taskID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordErrLocked(op, taskID, err)
}

func (s *Store) recordErrLocked(op, taskID string, err error) {
	s.lastErr = err
	fields := log.Fields{"project_id": s.projectID, "op": op}
	if taskID != "" {
		fields["task_id"] = taskID
	}
	s.log.WithFields(fields).Warn(err)
}
