package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/evotodo/evotodo/internal/auth"
	"github.com/evotodo/evotodo/internal/metrics"
	"github.com/evotodo/evotodo/internal/model"
	"github.com/evotodo/evotodo/internal/repository"
)

// fakeStore is an in-memory TaskStore for unit tests. It mimics the
// repository contract: unfiltered lookup by id, owner filter on list,
// callback-guarded mutations.
type fakeStore struct {
	nextID int64
	tasks  map[int64]*model.Task
	err    error // when set, every call fails with it
}

func newFakeStore() *fakeStore {
	return &fakeStore{nextID: 1, tasks: make(map[int64]*model.Task)}
}

func (f *fakeStore) CreateTask(ctx context.Context, task *model.Task) error {
	if f.err != nil {
		return f.err
	}
	now := time.Now().UTC()
	task.ID = f.nextID
	f.nextID++
	task.CreatedAt = now
	task.UpdatedAt = now
	clone := *task
	f.tasks[task.ID] = &clone
	return nil
}

func (f *fakeStore) GetTaskByID(ctx context.Context, id int64) (*model.Task, error) {
	if f.err != nil {
		return nil, f.err
	}
	task, ok := f.tasks[id]
	if !ok {
		return nil, repository.ErrTaskNotFound
	}
	clone := *task
	return &clone, nil
}

func (f *fakeStore) ListTasksByOwner(ctx context.Context, ownerID string) ([]*model.Task, error) {
	if f.err != nil {
		return nil, f.err
	}
	tasks := make([]*model.Task, 0)
	for id := int64(1); id < f.nextID; id++ {
		if task, ok := f.tasks[id]; ok && task.OwnerID == ownerID {
			clone := *task
			tasks = append(tasks, &clone)
		}
	}
	return tasks, nil
}

func (f *fakeStore) UpdateTask(ctx context.Context, id int64, fn func(*model.Task) error) (*model.Task, error) {
	if f.err != nil {
		return nil, f.err
	}
	task, ok := f.tasks[id]
	if !ok {
		return nil, repository.ErrTaskNotFound
	}
	clone := *task
	if err := fn(&clone); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if !now.After(clone.UpdatedAt) {
		now = clone.UpdatedAt.Add(time.Nanosecond)
	}
	clone.UpdatedAt = now
	stored := clone
	f.tasks[id] = &stored
	return &clone, nil
}

func (f *fakeStore) DeleteTask(ctx context.Context, id int64, fn func(*model.Task) error) error {
	if f.err != nil {
		return f.err
	}
	task, ok := f.tasks[id]
	if !ok {
		return repository.ErrTaskNotFound
	}
	clone := *task
	if err := fn(&clone); err != nil {
		return err
	}
	delete(f.tasks, id)
	return nil
}

var (
	alice = &auth.Identity{SubjectID: "alice", Email: "alice@example.com"}
	bob   = &auth.Identity{SubjectID: "bob", Email: "bob@example.com"}
)

func strPtr(s string) *string { return &s }

func newTestService() (*TaskService, *fakeStore) {
	store := newFakeStore()
	return NewTaskService(store, metrics.NewInMemory()), store
}

func TestCreateTask(t *testing.T) {
	svc, _ := newTestService()

	task, err := svc.CreateTask(context.Background(), alice, CreateTaskInput{
		Title:       "Buy milk",
		Description: strPtr("Two liters"),
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if task.ID == 0 {
		t.Error("expected server-assigned id")
	}
	if task.OwnerID != "alice" {
		t.Errorf("expected owner alice, got %s", task.OwnerID)
	}
	if task.Completed {
		t.Error("expected new task to start incomplete")
	}
	if !task.CreatedAt.Equal(task.UpdatedAt) {
		t.Error("expected created_at == updated_at on a fresh task")
	}
}

func TestCreateTask_Validation(t *testing.T) {
	svc, _ := newTestService()

	tests := []struct {
		name  string
		input CreateTaskInput
		want  error
	}{
		{"empty title", CreateTaskInput{Title: ""}, ErrTitleRequired},
		{"blank title", CreateTaskInput{Title: "   "}, ErrTitleRequired},
		{"title too long", CreateTaskInput{Title: strings.Repeat("x", MaxTitleLength+1)}, ErrTitleTooLong},
		{"description too long", CreateTaskInput{
			Title:       "ok",
			Description: strPtr(strings.Repeat("x", MaxDescriptionLength+1)),
		}, ErrDescriptionTooLong},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.CreateTask(context.Background(), alice, tc.input); !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}

	// Boundary lengths are allowed.
	if _, err := svc.CreateTask(context.Background(), alice, CreateTaskInput{
		Title:       strings.Repeat("x", MaxTitleLength),
		Description: strPtr(strings.Repeat("x", MaxDescriptionLength)),
	}); err != nil {
		t.Errorf("expected boundary lengths to pass, got %v", err)
	}
}

func TestListTasks_TenantIsolation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	for _, title := range []string{"a1", "a2"} {
		if _, err := svc.CreateTask(ctx, alice, CreateTaskInput{Title: title}); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}
	for _, title := range []string{"b1", "b2", "b3"} {
		if _, err := svc.CreateTask(ctx, bob, CreateTaskInput{Title: title}); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	tasks, err := svc.ListTasks(ctx, alice)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks for alice, got %d", len(tasks))
	}
	for _, task := range tasks {
		if task.OwnerID != "alice" {
			t.Errorf("leaked task owned by %s into alice's list", task.OwnerID)
		}
	}

	// Insertion order is preserved.
	if tasks[0].Title != "a1" || tasks[1].Title != "a2" {
		t.Errorf("unexpected order: %s, %s", tasks[0].Title, tasks[1].Title)
	}
}

func TestListTasks_Empty(t *testing.T) {
	svc, _ := newTestService()

	tasks, err := svc.ListTasks(context.Background(), alice)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if tasks == nil || len(tasks) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", tasks)
	}
}

// TestOwnershipClassification verifies that "someone else's task" and
// "no such task" map to the same outcomes across every operation.
func TestOwnershipClassification(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	owned, err := svc.CreateTask(ctx, bob, CreateTaskInput{Title: "bob's task"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	const missingID = int64(999999)

	ops := []struct {
		name string
		call func(id int64) error
	}{
		{"get", func(id int64) error {
			_, err := svc.GetTask(ctx, alice, id)
			return err
		}},
		{"update", func(id int64) error {
			_, err := svc.UpdateTask(ctx, alice, id, model.TaskPatch{Title: strPtr("hijack")})
			return err
		}},
		{"toggle", func(id int64) error {
			_, err := svc.ToggleComplete(ctx, alice, id)
			return err
		}},
		{"delete", func(id int64) error {
			return svc.DeleteTask(ctx, alice, id)
		}},
	}

	for _, op := range ops {
		t.Run(op.name, func(t *testing.T) {
			if err := op.call(owned.ID); !errors.Is(err, ErrTaskForbidden) {
				t.Errorf("foreign task: expected ErrTaskForbidden, got %v", err)
			}
			if err := op.call(missingID); !errors.Is(err, ErrTaskNotFound) {
				t.Errorf("missing task: expected ErrTaskNotFound, got %v", err)
			}
		})
	}

	// Bob's task survived every denied attempt untouched.
	got, err := svc.GetTask(ctx, bob, owned.ID)
	if err != nil {
		t.Fatalf("expected bob to still own the task, got %v", err)
	}
	if got.Title != "bob's task" || got.Completed {
		t.Errorf("task mutated by denied caller: %+v", got)
	}
}

func TestUpdateTask_PatchSemantics(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, alice, CreateTaskInput{
		Title:       "original",
		Description: strPtr("keep me"),
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Only title provided: description and completed stay put.
	updated, err := svc.UpdateTask(ctx, alice, task.ID, model.TaskPatch{Title: strPtr("renamed")})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Title != "renamed" {
		t.Errorf("expected renamed title, got %s", updated.Title)
	}
	if updated.Description == nil || *updated.Description != "keep me" {
		t.Errorf("description should be untouched, got %v", updated.Description)
	}
	if updated.Completed {
		t.Error("completed should be untouched")
	}

	// Immutable fields survive.
	if updated.ID != task.ID || updated.OwnerID != task.OwnerID || !updated.CreatedAt.Equal(task.CreatedAt) {
		t.Error("id, owner or created_at changed on update")
	}
	if !updated.UpdatedAt.After(task.UpdatedAt) {
		t.Error("updated_at should be refreshed on write")
	}

	// Validation applies to patch fields too.
	if _, err := svc.UpdateTask(ctx, alice, task.ID, model.TaskPatch{Title: strPtr("")}); !errors.Is(err, ErrTitleRequired) {
		t.Errorf("expected ErrTitleRequired, got %v", err)
	}
	if _, err := svc.UpdateTask(ctx, alice, task.ID, model.TaskPatch{
		Description: strPtr(strings.Repeat("x", MaxDescriptionLength+1)),
	}); !errors.Is(err, ErrDescriptionTooLong) {
		t.Errorf("expected ErrDescriptionTooLong, got %v", err)
	}
}

func TestToggleComplete_Idempotence(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, alice, CreateTaskInput{Title: "flip me"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	first, err := svc.ToggleComplete(ctx, alice, task.ID)
	if err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	if !first.Completed {
		t.Error("expected completed=true after first toggle")
	}
	if !first.UpdatedAt.After(task.UpdatedAt) {
		t.Error("updated_at should increase on first toggle")
	}

	second, err := svc.ToggleComplete(ctx, alice, task.ID)
	if err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	if second.Completed {
		t.Error("expected completed=false after second toggle")
	}
	if !second.UpdatedAt.After(first.UpdatedAt) {
		t.Error("updated_at should increase on second toggle")
	}
}

func TestDeleteTask(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, alice, CreateTaskInput{Title: "ephemeral"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := svc.DeleteTask(ctx, alice, task.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if _, err := svc.GetTask(ctx, alice, task.ID); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound after delete, got %v", err)
	}

	// Deleting again is a plain not-found, not an error leak.
	if err := svc.DeleteTask(ctx, alice, task.ID); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestStoreFailureTranslation(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, alice, CreateTaskInput{Title: "pre-outage"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	store.err = errors.New("connection refused")

	calls := map[string]func() error{
		"create": func() error {
			_, err := svc.CreateTask(ctx, alice, CreateTaskInput{Title: "x"})
			return err
		},
		"list": func() error {
			_, err := svc.ListTasks(ctx, alice)
			return err
		},
		"get": func() error {
			_, err := svc.GetTask(ctx, alice, task.ID)
			return err
		},
		"update": func() error {
			_, err := svc.UpdateTask(ctx, alice, task.ID, model.TaskPatch{Title: strPtr("y")})
			return err
		},
		"toggle": func() error {
			_, err := svc.ToggleComplete(ctx, alice, task.ID)
			return err
		},
		"delete": func() error {
			return svc.DeleteTask(ctx, alice, task.ID)
		},
	}

	for name, call := range calls {
		if err := call(); !errors.Is(err, ErrStoreUnavailable) {
			t.Errorf("%s: expected ErrStoreUnavailable, got %v", name, err)
		}
	}
}

func TestMetricsRecorded(t *testing.T) {
	recorder := metrics.NewInMemory()
	svc := NewTaskService(newFakeStore(), recorder)
	ctx := context.Background()

	task, _ := svc.CreateTask(ctx, alice, CreateTaskInput{Title: "count me"})
	_, _ = svc.ToggleComplete(ctx, alice, task.ID)
	_, _ = svc.GetTask(ctx, bob, task.ID)
	_ = svc.DeleteTask(ctx, alice, task.ID)

	snap := recorder.Snapshot()
	if snap.TasksCreated != 1 {
		t.Errorf("expected 1 task created, got %d", snap.TasksCreated)
	}
	if snap.TasksUpdated != 1 {
		t.Errorf("expected 1 task updated, got %d", snap.TasksUpdated)
	}
	if snap.TasksDeleted != 1 {
		t.Errorf("expected 1 task deleted, got %d", snap.TasksDeleted)
	}
	if snap.OwnershipDenials != 1 {
		t.Errorf("expected 1 ownership denial, got %d", snap.OwnershipDenials)
	}
}
