package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/juju/errors"
	"github.com/kidandcat/jobtracker/internal/tracker"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type JobStore struct {
	d *DB
}

var _ tracker.JobStore = (*JobStore)(nil)

func (s *JobStore) ListJobs(ctx context.Context) ([]tracker.Job, error) {
	rows, err := s.d.db.QueryContext(ctx, "SELECT body FROM jobs ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	jobs := []tracker.Job{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		job, err := decodeJob(body)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (s *JobStore) GetJob(ctx context.Context, id primitive.ObjectID) (tracker.Job, error) {
	return s.get(ctx, s.d.db, id, "")
}

func (s *JobStore) get(ctx context.Context, q querier, id primitive.ObjectID, suffix string) (tracker.Job, error) {
	var body string
	err := q.QueryRowContext(ctx, s.d.rebind("SELECT body FROM jobs WHERE id = ?"+suffix), id.Hex()).Scan(&body)
	if err == sql.ErrNoRows {
		return tracker.Job{}, errors.NotFoundf("job %s", id.Hex())
	}
	if err != nil {
		return tracker.Job{}, fmt.Errorf("query job: %w", err)
	}
	return decodeJob(body)
}

func (s *JobStore) InsertJob(ctx context.Context, job tracker.Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	_, err = s.d.db.ExecContext(ctx, s.d.rebind("INSERT INTO jobs (id, created_at, body) VALUES (?, ?, ?)"),
		job.ID.Hex(), job.CreatedAt.UnixMilli(), string(body))
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (s *JobStore) UpdateJob(ctx context.Context, job tracker.Job) error {
	return s.d.withTx(ctx, func(tx *sql.Tx) error {
		cur, err := s.get(ctx, tx, job.ID, s.d.forUpdate())
		if err != nil {
			return err
		}
		job.Documents = cur.Documents
		job.CreatedAt = cur.CreatedAt
		return s.write(ctx, tx, job)
	})
}

func (s *JobStore) AppendDocuments(ctx context.Context, id primitive.ObjectID, docs []tracker.Document, updatedAt time.Time) (tracker.Job, error) {
	var job tracker.Job
	err := s.d.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		job, err = s.get(ctx, tx, id, s.d.forUpdate())
		if err != nil {
			return err
		}
		job.Documents = append(job.Documents, docs...)
		job.UpdatedAt = updatedAt
		return s.write(ctx, tx, job)
	})
	if err != nil {
		return tracker.Job{}, err
	}
	return job, nil
}

func (s *JobStore) DeleteJob(ctx context.Context, id primitive.ObjectID) (tracker.Job, error) {
	var job tracker.Job
	err := s.d.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		job, err = s.get(ctx, tx, id, s.d.forUpdate())
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.d.rebind("DELETE FROM jobs WHERE id = ?"), id.Hex()); err != nil {
			return fmt.Errorf("delete job: %w", err)
		}
		return nil
	})
	if err != nil {
		return tracker.Job{}, err
	}
	return job, nil
}

func (s *JobStore) write(ctx context.Context, tx *sql.Tx, job tracker.Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	_, err = tx.ExecContext(ctx, s.d.rebind("UPDATE jobs SET body = ? WHERE id = ?"), string(body), job.ID.Hex())
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

func decodeJob(body string) (tracker.Job, error) {
	var job tracker.Job
	if err := json.Unmarshal([]byte(body), &job); err != nil {
		return tracker.Job{}, fmt.Errorf("decode job: %w", err)
	}
	if job.Documents == nil {
		job.Documents = []tracker.Document{}
	}
	return job, nil
}
