package tracker

import (
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Task is a standalone work item. JobID is a loose reference that is never
// checked against the jobs collection.
type Task struct {
	ID          primitive.ObjectID `json:"_id" bson:"_id"`
	Title       string             `json:"title" bson:"title"`
	Description string             `json:"description,omitempty" bson:"description,omitempty"`
	DueDate     *time.Time         `json:"dueDate,omitempty" bson:"dueDate,omitempty"`
	Priority    Priority           `json:"priority" bson:"priority"`
	Status      Status             `json:"status" bson:"status"`
	AssignedTo  string             `json:"assignedTo,omitempty" bson:"assignedTo,omitempty"`
	JobID       string             `json:"jobId,omitempty" bson:"jobId,omitempty"`
	CreatedAt   time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt" bson:"updatedAt"`
}

func (t Task) MarshalJSON() ([]byte, error) {
	type plain Task
	return json.Marshal(struct {
		plain
		DueDate   *string `json:"dueDate,omitempty"`
		CreatedAt string  `json:"createdAt"`
		UpdatedAt string  `json:"updatedAt"`
	}{
		plain:     plain(t),
		DueDate:   formatTimePtr(t.DueDate),
		CreatedAt: formatTime(t.CreatedAt),
		UpdatedAt: formatTime(t.UpdatedAt),
	})
}

type TaskFields struct {
	Title       Optional[string] `json:"title,omitzero"`
	Description Optional[string] `json:"description,omitzero"`
	DueDate     Optional[string] `json:"dueDate,omitzero"`
	Priority    Optional[string] `json:"priority,omitzero"`
	Status      Optional[string] `json:"status,omitzero"`
	AssignedTo  Optional[string] `json:"assignedTo,omitzero"`
	JobID       Optional[string] `json:"jobId,omitzero"`
}

// Apply merges f into t and validates the result.
func (f TaskFields) Apply(t *Task, creating bool) error {
	errs := fieldErrors{}
	requiredString(errs, "title", f.Title, &t.Title, creating)
	optionalString(f.Description, &t.Description)
	optionalString(f.AssignedTo, &t.AssignedTo)
	optionalString(f.JobID, &t.JobID)
	optionalDate(errs, "dueDate", f.DueDate, &t.DueDate)

	if f.Priority.Set && !f.Priority.Null && trimmed(f.Priority) != "" {
		p := Priority(trimmed(f.Priority))
		if !p.Valid() {
			errs.add("priority", "must be one of High, Medium, Low")
		} else {
			t.Priority = p
		}
	} else if f.Priority.Set || t.Priority == "" {
		t.Priority = PriorityLow
	}

	if f.Status.Set && !f.Status.Null && trimmed(f.Status) != "" {
		s := Status(trimmed(f.Status))
		if !s.Valid() {
			errs.add("status", "must be one of Pending, In Progress, Completed")
		} else {
			t.Status = s
		}
	} else if f.Status.Set || t.Status == "" {
		t.Status = StatusPending
	}
	return errs.err()
}
