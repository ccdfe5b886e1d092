package mongodb

import (
	"context"
	"time"

	"github.com/juju/errors"
	"github.com/kidandcat/jobtracker/internal/tracker"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	jobsCollection  = "jobs"
	tasksCollection = "tasks"
)

type JobStore struct {
	conn *Connector
}

var _ tracker.JobStore = (*JobStore)(nil)

func NewJobStore(conn *Connector) *JobStore {
	return &JobStore{conn: conn}
}

func (s *JobStore) coll(ctx context.Context) (*mongo.Collection, error) {
	db, err := s.conn.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return db.Collection(jobsCollection), nil
}

func (s *JobStore) ListJobs(ctx context.Context) ([]tracker.Job, error) {
	coll, err := s.coll(ctx)
	if err != nil {
		return nil, err
	}
	cur, err := coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}))
	if err != nil {
		return nil, errors.Annotate(err, "find jobs")
	}
	jobs := []tracker.Job{}
	if err := cur.All(ctx, &jobs); err != nil {
		return nil, errors.Annotate(err, "decode jobs")
	}
	for i := range jobs {
		normalizeJob(&jobs[i])
	}
	return jobs, nil
}

func (s *JobStore) GetJob(ctx context.Context, id primitive.ObjectID) (tracker.Job, error) {
	coll, err := s.coll(ctx)
	if err != nil {
		return tracker.Job{}, err
	}
	var job tracker.Job
	err = coll.FindOne(ctx, bson.M{"_id": id}).Decode(&job)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return tracker.Job{}, errors.NotFoundf("job %s", id.Hex())
	}
	if err != nil {
		return tracker.Job{}, errors.Annotate(err, "find job")
	}
	normalizeJob(&job)
	return job, nil
}

func (s *JobStore) InsertJob(ctx context.Context, job tracker.Job) error {
	coll, err := s.coll(ctx)
	if err != nil {
		return err
	}
	if job.Documents == nil {
		job.Documents = []tracker.Document{}
	}
	_, err = coll.InsertOne(ctx, job)
	return errors.Annotate(err, "insert job")
}

// UpdateJob sets every editable field and unsets the optional ones that
// are empty, leaving documents and createdAt alone.
func (s *JobStore) UpdateJob(ctx context.Context, job tracker.Job) error {
	coll, err := s.coll(ctx)
	if err != nil {
		return err
	}
	set := bson.M{
		"customer":  job.Customer,
		"jobName":   job.JobName,
		"jobNumber": job.JobNumber,
		"startDate": job.StartDate,
		"priority":  job.Priority,
		"updatedAt": job.UpdatedAt,
	}
	unset := bson.M{}
	optional(set, unset, "projectManager", job.ProjectManager, job.ProjectManager != "")
	optional(set, unset, "finishedDate", job.FinishedDate, job.FinishedDate != nil)
	optional(set, unset, "completedDate", job.CompletedDate, job.CompletedDate != nil)

	res, err := coll.UpdateOne(ctx, bson.M{"_id": job.ID}, update(set, unset))
	if err != nil {
		return errors.Annotate(err, "update job")
	}
	if res.MatchedCount == 0 {
		return errors.NotFoundf("job %s", job.ID.Hex())
	}
	return nil
}

// AppendDocuments pushes docs in a single update so concurrent uploads to
// one job cannot overwrite each other.
func (s *JobStore) AppendDocuments(ctx context.Context, id primitive.ObjectID, docs []tracker.Document, updatedAt time.Time) (tracker.Job, error) {
	coll, err := s.coll(ctx)
	if err != nil {
		return tracker.Job{}, err
	}
	var job tracker.Job
	err = coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{
			"$push": bson.M{"documents": bson.M{"$each": docs}},
			"$set":  bson.M{"updatedAt": updatedAt},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&job)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return tracker.Job{}, errors.NotFoundf("job %s", id.Hex())
	}
	if err != nil {
		return tracker.Job{}, errors.Annotate(err, "append documents")
	}
	normalizeJob(&job)
	return job, nil
}

func (s *JobStore) DeleteJob(ctx context.Context, id primitive.ObjectID) (tracker.Job, error) {
	coll, err := s.coll(ctx)
	if err != nil {
		return tracker.Job{}, err
	}
	var job tracker.Job
	err = coll.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&job)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return tracker.Job{}, errors.NotFoundf("job %s", id.Hex())
	}
	if err != nil {
		return tracker.Job{}, errors.Annotate(err, "delete job")
	}
	normalizeJob(&job)
	return job, nil
}

// normalizeJob fills in what older records may lack and puts times in UTC.
func normalizeJob(j *tracker.Job) {
	if j.Documents == nil {
		j.Documents = []tracker.Document{}
	}
	if j.Priority == "" {
		j.Priority = tracker.PriorityLow
	}
	j.StartDate = j.StartDate.UTC()
	j.CreatedAt = j.CreatedAt.UTC()
	j.UpdatedAt = j.UpdatedAt.UTC()
	j.FinishedDate = utcPtr(j.FinishedDate)
	j.CompletedDate = utcPtr(j.CompletedDate)
	for i := range j.Documents {
		j.Documents[i].UploadedAt = j.Documents[i].UploadedAt.UTC()
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func optional(set, unset bson.M, field string, v any, present bool) {
	if present {
		set[field] = v
	} else {
		unset[field] = ""
	}
}

func update(set, unset bson.M) bson.M {
	u := bson.M{"$set": set}
	if len(unset) > 0 {
		u["$unset"] = unset
	}
	return u
}
