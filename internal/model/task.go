// Package model defines domain entities for the application.
package model

import "time"

// Task represents a single to-do item owned by exactly one user.
// OwnerID is assigned at creation and is never reassigned afterwards.
type Task struct {
	ID          int64     `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TaskPatch carries the optional fields of an update. Nil means
// "leave unchanged". ID, OwnerID and CreatedAt are not patchable.
type TaskPatch struct {
	Title       *string
	Description *string
	Completed   *bool
}

// Apply copies the provided fields onto the task.
func (p TaskPatch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = p.Description
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
}
