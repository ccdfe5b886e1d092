package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/juju/errors"
	"github.com/kidandcat/jobtracker/internal/tracker"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TaskStore struct {
	d *DB
}

var _ tracker.TaskStore = (*TaskStore)(nil)

func (s *TaskStore) ListTasks(ctx context.Context) ([]tracker.Task, error) {
	rows, err := s.d.db.QueryContext(ctx, "SELECT body FROM tasks ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []tracker.Task{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		var t tracker.Task
		if err := json.Unmarshal([]byte(body), &t); err != nil {
			return nil, fmt.Errorf("decode task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *TaskStore) GetTask(ctx context.Context, id primitive.ObjectID) (tracker.Task, error) {
	var body string
	err := s.d.db.QueryRowContext(ctx, s.d.rebind("SELECT body FROM tasks WHERE id = ?"), id.Hex()).Scan(&body)
	if err == sql.ErrNoRows {
		return tracker.Task{}, errors.NotFoundf("task %s", id.Hex())
	}
	if err != nil {
		return tracker.Task{}, fmt.Errorf("query task: %w", err)
	}
	var t tracker.Task
	if err := json.Unmarshal([]byte(body), &t); err != nil {
		return tracker.Task{}, fmt.Errorf("decode task: %w", err)
	}
	return t, nil
}

func (s *TaskStore) InsertTask(ctx context.Context, task tracker.Task) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	_, err = s.d.db.ExecContext(ctx, s.d.rebind("INSERT INTO tasks (id, created_at, body) VALUES (?, ?, ?)"),
		task.ID.Hex(), task.CreatedAt.UnixMilli(), string(body))
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// UpdateTask keeps the stored creation time.
func (s *TaskStore) UpdateTask(ctx context.Context, task tracker.Task) error {
	cur, err := s.GetTask(ctx, task.ID)
	if err != nil {
		return err
	}
	task.CreatedAt = cur.CreatedAt
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	res, err := s.d.db.ExecContext(ctx, s.d.rebind("UPDATE tasks SET body = ? WHERE id = ?"), string(body), task.ID.Hex())
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFoundf("task %s", task.ID.Hex())
	}
	return nil
}

func (s *TaskStore) DeleteTask(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.d.db.ExecContext(ctx, s.d.rebind("DELETE FROM tasks WHERE id = ?"), id.Hex())
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFoundf("task %s", id.Hex())
	}
	return nil
}
