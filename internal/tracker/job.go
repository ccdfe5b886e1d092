package tracker

import (
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Job is a unit of customer work. A non-nil CompletedDate is the only
// completion signal.
type Job struct {
	ID             primitive.ObjectID `json:"_id" bson:"_id"`
	Customer       string             `json:"customer" bson:"customer"`
	JobName        string             `json:"jobName" bson:"jobName"`
	JobNumber      string             `json:"jobNumber" bson:"jobNumber"`
	ProjectManager string             `json:"projectManager,omitempty" bson:"projectManager,omitempty"`
	StartDate      time.Time          `json:"startDate" bson:"startDate"`
	FinishedDate   *time.Time         `json:"finishedDate,omitempty" bson:"finishedDate,omitempty"`
	CompletedDate  *time.Time         `json:"completedDate,omitempty" bson:"completedDate,omitempty"`
	Priority       Priority           `json:"priority" bson:"priority"`
	Documents      []Document         `json:"documents" bson:"documents"`
	CreatedAt      time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt" bson:"updatedAt"`
}

func (j Job) MarshalJSON() ([]byte, error) {
	type plain Job
	return json.Marshal(struct {
		plain
		StartDate     string  `json:"startDate"`
		FinishedDate  *string `json:"finishedDate,omitempty"`
		CompletedDate *string `json:"completedDate,omitempty"`
		CreatedAt     string  `json:"createdAt"`
		UpdatedAt     string  `json:"updatedAt"`
	}{
		plain:         plain(j),
		StartDate:     formatTime(j.StartDate),
		FinishedDate:  formatTimePtr(j.FinishedDate),
		CompletedDate: formatTimePtr(j.CompletedDate),
		CreatedAt:     formatTime(j.CreatedAt),
		UpdatedAt:     formatTime(j.UpdatedAt),
	})
}

func (j *Job) Completed() bool {
	return j.CompletedDate != nil
}

// Document finds the attached document stored under filename.
func (j *Job) Document(filename string) (Document, bool) {
	for _, d := range j.Documents {
		if d.Filename == filename {
			return d, true
		}
	}
	return Document{}, false
}

// Document describes one uploaded PDF. The bytes live in blob storage under
// BlobKey(jobID, Filename).
type Document struct {
	ID           primitive.ObjectID `json:"_id" bson:"_id"`
	Filename     string             `json:"filename" bson:"filename"`
	OriginalName string             `json:"originalName" bson:"originalName"`
	MimeType     string             `json:"mimeType" bson:"mimeType"`
	Size         int64              `json:"size" bson:"size"`
	Pages        int                `json:"pages,omitempty" bson:"pages,omitempty"`
	UploadedAt   time.Time          `json:"uploadedAt" bson:"uploadedAt"`
}

func (d Document) MarshalJSON() ([]byte, error) {
	type plain Document
	return json.Marshal(struct {
		plain
		UploadedAt string `json:"uploadedAt"`
	}{plain(d), formatTime(d.UploadedAt)})
}

// JobFields carries the client supplied fields of a create or update.
// Dates arrive as strings and are parsed in one place.
type JobFields struct {
	Customer       Optional[string] `json:"customer,omitzero"`
	JobName        Optional[string] `json:"jobName,omitzero"`
	JobNumber      Optional[string] `json:"jobNumber,omitzero"`
	ProjectManager Optional[string] `json:"projectManager,omitzero"`
	StartDate      Optional[string] `json:"startDate,omitzero"`
	FinishedDate   Optional[string] `json:"finishedDate,omitzero"`
	CompletedDate  Optional[string] `json:"completedDate,omitzero"`
	Priority       Optional[string] `json:"priority,omitzero"`
}

// Apply merges f into j and validates the result. On error j may be
// partially modified.
func (f JobFields) Apply(j *Job, creating bool) error {
	errs := fieldErrors{}
	requiredString(errs, "customer", f.Customer, &j.Customer, creating)
	requiredString(errs, "jobName", f.JobName, &j.JobName, creating)
	requiredString(errs, "jobNumber", f.JobNumber, &j.JobNumber, creating)
	optionalString(f.ProjectManager, &j.ProjectManager)
	requiredDate(errs, "startDate", f.StartDate, &j.StartDate, creating)
	optionalDate(errs, "finishedDate", f.FinishedDate, &j.FinishedDate)
	optionalDate(errs, "completedDate", f.CompletedDate, &j.CompletedDate)

	if f.Priority.Set && !f.Priority.Null && trimmed(f.Priority) != "" {
		p := Priority(trimmed(f.Priority))
		if !p.Valid() {
			errs.add("priority", "must be one of High, Medium, Low")
		} else {
			j.Priority = p
		}
	} else if f.Priority.Set || j.Priority == "" {
		j.Priority = PriorityLow
	}
	return errs.err()
}
