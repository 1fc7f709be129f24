// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/evotodo/evotodo/internal/auth"
	"github.com/evotodo/evotodo/internal/metrics"
	"github.com/evotodo/evotodo/internal/model"
	"github.com/evotodo/evotodo/internal/repository"
)

// Service errors.
var (
	ErrTaskNotFound       = errors.New("task not found")
	ErrTaskForbidden      = errors.New("task belongs to another user")
	ErrTitleRequired      = errors.New("title must not be empty")
	ErrTitleTooLong       = errors.New("title exceeds maximum length")
	ErrDescriptionTooLong = errors.New("description exceeds maximum length")
	ErrStoreUnavailable   = errors.New("task store unavailable")
)

// Validation limits mirror what clients are told in the API contract.
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 1000
)

// TaskStore is the persistence contract the access-control layer
// requires. GetTaskByID is deliberately unfiltered by owner so that
// "absent" and "not yours" can be told apart; UpdateTask and DeleteTask
// run their callback against the same locked row the mutation commits
// against.
type TaskStore interface {
	CreateTask(ctx context.Context, task *model.Task) error
	GetTaskByID(ctx context.Context, id int64) (*model.Task, error)
	ListTasksByOwner(ctx context.Context, ownerID string) ([]*model.Task, error)
	UpdateTask(ctx context.Context, id int64, fn func(*model.Task) error) (*model.Task, error)
	DeleteTask(ctx context.Context, id int64, fn func(*model.Task) error) error
}

// TaskService mediates every store call through an ownership filter.
// It keeps no per-request state and caches nothing across requests;
// every call re-reads and re-verifies ownership at the store.
type TaskService struct {
	store   TaskStore
	metrics metrics.Recorder
}

// NewTaskService creates a new TaskService.
func NewTaskService(store TaskStore, recorder metrics.Recorder) *TaskService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &TaskService{
		store:   store,
		metrics: recorder,
	}
}

// CreateTaskInput defines input for creating a task.
type CreateTaskInput struct {
	Title       string
	Description *string
}

// CreateTask inserts a new task owned by the caller. The owner is taken
// from the verified identity, never from the request body.
func (s *TaskService) CreateTask(ctx context.Context, identity *auth.Identity, input CreateTaskInput) (*model.Task, error) {
	if err := validateTitle(input.Title); err != nil {
		return nil, err
	}
	if err := validateDescription(input.Description); err != nil {
		return nil, err
	}

	task := &model.Task{
		OwnerID:     identity.SubjectID,
		Title:       input.Title,
		Description: input.Description,
		Completed:   false,
	}

	if err := s.store.CreateTask(ctx, task); err != nil {
		return nil, storeFailure(err)
	}

	s.metrics.IncTaskCreated()

	return task, nil
}

// ListTasks returns every task owned by the caller, oldest first.
// Other tenants' rows are excluded at the store query, not filtered
// here.
func (s *TaskService) ListTasks(ctx context.Context, identity *auth.Identity) ([]*model.Task, error) {
	tasks, err := s.store.ListTasksByOwner(ctx, identity.SubjectID)
	if err != nil {
		return nil, storeFailure(err)
	}
	return tasks, nil
}

// GetTask returns the task if it exists and the caller owns it.
// A task owned by someone else yields ErrTaskForbidden; a task that
// does not exist at all yields ErrTaskNotFound.
func (s *TaskService) GetTask(ctx context.Context, identity *auth.Identity, taskID int64) (*model.Task, error) {
	task, err := s.store.GetTaskByID(ctx, taskID)
	if err != nil {
		return nil, s.classify(err)
	}

	if err := s.requireOwner(identity, task); err != nil {
		return nil, err
	}

	return task, nil
}

// UpdateTask applies the provided patch fields to the caller's task.
// Ownership is re-verified against the row the update commits against;
// owner, id and creation time are never touched.
func (s *TaskService) UpdateTask(ctx context.Context, identity *auth.Identity, taskID int64, patch model.TaskPatch) (*model.Task, error) {
	if patch.Title != nil {
		if err := validateTitle(*patch.Title); err != nil {
			return nil, err
		}
	}
	if err := validateDescription(patch.Description); err != nil {
		return nil, err
	}

	task, err := s.store.UpdateTask(ctx, taskID, func(t *model.Task) error {
		if err := s.requireOwner(identity, t); err != nil {
			return err
		}
		patch.Apply(t)
		return nil
	})
	if err != nil {
		return nil, s.classify(err)
	}

	s.metrics.IncTaskUpdated()

	return task, nil
}

// ToggleComplete flips the task's completed flag. Equivalent to an
// update that touches only the boolean field.
func (s *TaskService) ToggleComplete(ctx context.Context, identity *auth.Identity, taskID int64) (*model.Task, error) {
	task, err := s.store.UpdateTask(ctx, taskID, func(t *model.Task) error {
		if err := s.requireOwner(identity, t); err != nil {
			return err
		}
		t.Completed = !t.Completed
		return nil
	})
	if err != nil {
		return nil, s.classify(err)
	}

	s.metrics.IncTaskUpdated()

	return task, nil
}

// DeleteTask permanently removes the caller's task.
func (s *TaskService) DeleteTask(ctx context.Context, identity *auth.Identity, taskID int64) error {
	err := s.store.DeleteTask(ctx, taskID, func(t *model.Task) error {
		return s.requireOwner(identity, t)
	})
	if err != nil {
		return s.classify(err)
	}

	s.metrics.IncTaskDeleted()

	return nil
}

// requireOwner is the single ownership check every read and mutation
// funnels through.
func (s *TaskService) requireOwner(identity *auth.Identity, task *model.Task) error {
	if task.OwnerID != identity.SubjectID {
		s.metrics.IncOwnershipDenied()
		return ErrTaskForbidden
	}
	return nil
}

// classify translates errors coming back from a store call. Ownership
// and existence keep their sentinels; anything else is a storage
// failure and must not cross this boundary untranslated.
func (s *TaskService) classify(err error) error {
	switch {
	case errors.Is(err, repository.ErrTaskNotFound):
		return ErrTaskNotFound
	case errors.Is(err, ErrTaskForbidden):
		return ErrTaskForbidden
	default:
		return storeFailure(err)
	}
}

// storeFailure wraps an unclassified persistence error so transport can
// map it to 503 without seeing the driver error text.
func storeFailure(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func validateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return ErrTitleRequired
	}
	if len([]rune(title)) > MaxTitleLength {
		return ErrTitleTooLong
	}
	return nil
}

func validateDescription(description *string) error {
	if description != nil && len([]rune(*description)) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}
