package mongodb

import (
	"context"

	"github.com/juju/errors"
	"github.com/kidandcat/jobtracker/internal/tracker"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type TaskStore struct {
	conn *Connector
}

var _ tracker.TaskStore = (*TaskStore)(nil)

func NewTaskStore(conn *Connector) *TaskStore {
	return &TaskStore{conn: conn}
}

func (s *TaskStore) coll(ctx context.Context) (*mongo.Collection, error) {
	db, err := s.conn.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return db.Collection(tasksCollection), nil
}

func (s *TaskStore) ListTasks(ctx context.Context) ([]tracker.Task, error) {
	coll, err := s.coll(ctx)
	if err != nil {
		return nil, err
	}
	cur, err := coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}))
	if err != nil {
		return nil, errors.Annotate(err, "find tasks")
	}
	tasks := []tracker.Task{}
	if err := cur.All(ctx, &tasks); err != nil {
		return nil, errors.Annotate(err, "decode tasks")
	}
	for i := range tasks {
		normalizeTask(&tasks[i])
	}
	return tasks, nil
}

func (s *TaskStore) GetTask(ctx context.Context, id primitive.ObjectID) (tracker.Task, error) {
	coll, err := s.coll(ctx)
	if err != nil {
		return tracker.Task{}, err
	}
	var task tracker.Task
	err = coll.FindOne(ctx, bson.M{"_id": id}).Decode(&task)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return tracker.Task{}, errors.NotFoundf("task %s", id.Hex())
	}
	if err != nil {
		return tracker.Task{}, errors.Annotate(err, "find task")
	}
	normalizeTask(&task)
	return task, nil
}

func (s *TaskStore) InsertTask(ctx context.Context, task tracker.Task) error {
	coll, err := s.coll(ctx)
	if err != nil {
		return err
	}
	_, err = coll.InsertOne(ctx, task)
	return errors.Annotate(err, "insert task")
}

func (s *TaskStore) UpdateTask(ctx context.Context, task tracker.Task) error {
	coll, err := s.coll(ctx)
	if err != nil {
		return err
	}
	set := bson.M{
		"title":     task.Title,
		"priority":  task.Priority,
		"status":    task.Status,
		"updatedAt": task.UpdatedAt,
	}
	unset := bson.M{}
	optional(set, unset, "description", task.Description, task.Description != "")
	optional(set, unset, "assignedTo", task.AssignedTo, task.AssignedTo != "")
	optional(set, unset, "jobId", task.JobID, task.JobID != "")
	optional(set, unset, "dueDate", task.DueDate, task.DueDate != nil)

	res, err := coll.UpdateOne(ctx, bson.M{"_id": task.ID}, update(set, unset))
	if err != nil {
		return errors.Annotate(err, "update task")
	}
	if res.MatchedCount == 0 {
		return errors.NotFoundf("task %s", task.ID.Hex())
	}
	return nil
}

func (s *TaskStore) DeleteTask(ctx context.Context, id primitive.ObjectID) error {
	coll, err := s.coll(ctx)
	if err != nil {
		return err
	}
	res, err := coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Annotate(err, "delete task")
	}
	if res.DeletedCount == 0 {
		return errors.NotFoundf("task %s", id.Hex())
	}
	return nil
}

func normalizeTask(t *tracker.Task) {
	if t.Priority == "" {
		t.Priority = tracker.PriorityLow
	}
	if t.Status == "" {
		t.Status = tracker.StatusPending
	}
	t.DueDate = utcPtr(t.DueDate)
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
}
