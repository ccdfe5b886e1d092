package mongodb

import (
	"context"
	"os"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/juju/errors"
	"github.com/kidandcat/jobtracker/internal/tracker"
	"github.com/sirupsen/logrus/hooks/test"
	"go.mongodb.org/mongo-driver/bson"
)

// openTestConnector connects to TRACKER_TEST_MONGODB_URI using a throwaway
// database, or skips.
func openTestConnector(t *testing.T) *Connector {
	t.Helper()
	uri := os.Getenv("TRACKER_TEST_MONGODB_URI")
	if uri == "" {
		t.Skip("TRACKER_TEST_MONGODB_URI not set")
	}
	log, _ := test.NewNullLogger()
	name := "jobtracker_test_" + tracker.NewID().Hex()
	conn := NewConnector(uri, name, WithLogger(log))
	t.Cleanup(func() {
		ctx := context.Background()
		if db, err := conn.Connect(ctx); err == nil {
			db.Drop(ctx)
		}
		conn.Close(ctx)
	})
	return conn
}

func TestMongoJobStore(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	conn := openTestConnector(t)
	store := NewJobStore(conn)

	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	done := created.Add(48 * time.Hour)
	job := tracker.Job{
		ID:             tracker.NewID(),
		Customer:       "Acme",
		JobName:        "Culvert 12",
		JobNumber:      "J-100",
		ProjectManager: "Dana",
		StartDate:      created,
		CompletedDate:  &done,
		Priority:       tracker.PriorityHigh,
		Documents:      []tracker.Document{},
		CreatedAt:      created,
		UpdatedAt:      created,
	}
	c.Assert(store.InsertJob(ctx, job), qt.IsNil)

	doc := tracker.Document{ID: tracker.NewID(), Filename: "1-spec.pdf", OriginalName: "spec.pdf", MimeType: "application/pdf", Size: 10, UploadedAt: created}
	got, err := store.AppendDocuments(ctx, job.ID, []tracker.Document{doc}, created.Add(time.Minute))
	c.Assert(err, qt.IsNil)
	c.Assert(got.Documents, qt.HasLen, 1)

	job.ProjectManager = ""
	job.CompletedDate = nil
	c.Assert(store.UpdateJob(ctx, job), qt.IsNil)

	// cleared fields are removed from the stored document
	db, err := conn.Connect(ctx)
	c.Assert(err, qt.IsNil)
	raw, err := db.Collection(jobsCollection).FindOne(ctx, bson.M{"_id": job.ID}).Raw()
	c.Assert(err, qt.IsNil)
	_, err = raw.LookupErr("projectManager")
	c.Assert(err, qt.Not(qt.IsNil))
	_, err = raw.LookupErr("completedDate")
	c.Assert(err, qt.Not(qt.IsNil))

	got, err = store.GetJob(ctx, job.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(got.ProjectManager, qt.Equals, "")
	c.Assert(got.CompletedDate, qt.IsNil)
	c.Assert(got.Documents, qt.HasLen, 1)
	c.Assert(got.StartDate.Equal(created), qt.IsTrue)

	jobs, err := store.ListJobs(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(jobs, qt.HasLen, 1)

	deleted, err := store.DeleteJob(ctx, job.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(deleted.Documents, qt.HasLen, 1)
	_, err = store.GetJob(ctx, job.ID)
	c.Assert(errors.Is(err, errors.NotFound), qt.IsTrue)
}

func TestMongoTaskStore(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	store := NewTaskStore(openTestConnector(t))

	now := time.Now().UTC().Truncate(time.Millisecond)
	task := tracker.Task{
		ID:        tracker.NewID(),
		Title:     "Pour footing",
		Priority:  tracker.PriorityLow,
		Status:    tracker.StatusPending,
		JobID:     tracker.NewID().Hex(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	c.Assert(store.InsertTask(ctx, task), qt.IsNil)

	task.Status = tracker.StatusCompleted
	task.JobID = ""
	c.Assert(store.UpdateTask(ctx, task), qt.IsNil)

	got, err := store.GetTask(ctx, task.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(got.Status, qt.Equals, tracker.StatusCompleted)
	c.Assert(got.JobID, qt.Equals, "")

	c.Assert(store.DeleteTask(ctx, task.ID), qt.IsNil)
	err = store.DeleteTask(ctx, task.ID)
	c.Assert(errors.Is(err, errors.NotFound), qt.IsTrue)
}
