package tracker

import (
	"context"
	"time"

	"github.com/juju/errors"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TaskStore persists tasks. Unknown ids give errors satisfying
// errors.Is(err, errors.NotFound).
type TaskStore interface {
	// ListTasks returns all tasks, newest first.
	ListTasks(ctx context.Context) ([]Task, error)
	GetTask(ctx context.Context, id primitive.ObjectID) (Task, error)
	InsertTask(ctx context.Context, task Task) error
	// UpdateTask replaces every field except CreatedAt.
	UpdateTask(ctx context.Context, task Task) error
	DeleteTask(ctx context.Context, id primitive.ObjectID) error
}

type TaskRepository struct {
	store TaskStore
	log   logrus.FieldLogger
	now   func() time.Time
}

func NewTaskRepository(store TaskStore, log logrus.FieldLogger) *TaskRepository {
	return &TaskRepository{store: store, log: log, now: time.Now}
}

func (r *TaskRepository) ListTasks(ctx context.Context) ([]Task, error) {
	tasks, err := r.store.ListTasks(ctx)
	if err != nil {
		return nil, errors.Annotate(err, "list tasks")
	}
	if tasks == nil {
		tasks = []Task{}
	}
	return tasks, nil
}

func (r *TaskRepository) GetTask(ctx context.Context, id string) (Task, error) {
	oid, err := ParseID("task", id)
	if err != nil {
		return Task{}, err
	}
	task, err := r.store.GetTask(ctx, oid)
	if err != nil {
		return Task{}, errors.Annotatef(err, "get task %s", id)
	}
	return task, nil
}

func (r *TaskRepository) CreateTask(ctx context.Context, f TaskFields) (Task, error) {
	var task Task
	if err := f.Apply(&task, true); err != nil {
		return Task{}, err
	}
	now := Timestamp(r.now())
	task.ID = NewID()
	task.CreatedAt = now
	task.UpdatedAt = now
	if err := r.store.InsertTask(ctx, task); err != nil {
		return Task{}, errors.Annotate(err, "insert task")
	}
	r.log.WithField("op", "create_task").WithField("task", task.ID.Hex()).Debug("task created")
	return task, nil
}

func (r *TaskRepository) UpdateTask(ctx context.Context, id string, f TaskFields) (Task, error) {
	task, err := r.GetTask(ctx, id)
	if err != nil {
		return Task{}, err
	}
	if err := f.Apply(&task, false); err != nil {
		return Task{}, err
	}
	task.UpdatedAt = Timestamp(r.now())
	if err := r.store.UpdateTask(ctx, task); err != nil {
		return Task{}, errors.Annotatef(err, "update task %s", id)
	}
	return task, nil
}

func (r *TaskRepository) DeleteTask(ctx context.Context, id string) error {
	oid, err := ParseID("task", id)
	if err != nil {
		return err
	}
	if err := r.store.DeleteTask(ctx, oid); err != nil {
		return errors.Annotatef(err, "delete task %s", id)
	}
	return nil
}
