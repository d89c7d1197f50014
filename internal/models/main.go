// Package models defines the core data structures for users and tasks.
package models

import "time"

// User represents an application user with credentials.
type User struct {
	// Email is the normalized (lower-case) login and primary key.
	Email string
	// PasswordHash is the salted hash of the user's password. It never
	// leaves the server.
	PasswordHash string
}

// Priority ranks a task. Only the values 1..3 are stored.
type Priority int

const (
	// PriorityLow is the lowest task priority.
	PriorityLow Priority = 1
	// PriorityMedium is the default task priority.
	PriorityMedium Priority = 2
	// PriorityHigh is the highest task priority.
	PriorityHigh Priority = 3
)

// Task is a single to-do item owned by one user.
type Task struct {
	// ID is the server-generated identifier.
	ID string `json:"id"`
	// OwnerEmail is the email of the owning user, taken from the session.
	OwnerEmail string `json:"ownerEmail"`
	// Title is the sanitized task title.
	Title string `json:"title"`
	// Progress is the completion percentage in [0,100].
	Progress int `json:"progress"`
	// Priority is one of PriorityLow, PriorityMedium or PriorityHigh.
	Priority Priority `json:"priority"`
	// Completed marks the task as done.
	Completed bool `json:"completed"`
	// Date is the time of the last relevant activity.
	Date time.Time `json:"date"`
}

// TaskPatch carries validated task fields. A nil field means "not supplied":
// on create the default applies, on update the stored value is kept.
type TaskPatch struct {
	Title     *string
	Progress  *int
	Priority  *Priority
	Completed *bool
	Date      *time.Time
}

// Apply merges the supplied fields of p into t.
func (p TaskPatch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Progress != nil {
		t.Progress = *p.Progress
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
}

// ProfileUpdate describes a change to the caller's own credentials.
type ProfileUpdate struct {
	CurrentPassword string
	NewEmail        string
	NewPassword     string
}
