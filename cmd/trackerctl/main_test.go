package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/kidandcat/jobtracker/internal/api"
	"github.com/kidandcat/jobtracker/internal/blob"
	"github.com/kidandcat/jobtracker/internal/db/sqldb"
	"github.com/kidandcat/jobtracker/internal/tracker"
)

type cli struct {
	c      *qt.C
	server string
}

func newCLI(c *qt.C) *cli {
	ctx := context.Background()
	dir := c.TempDir()
	db, err := sqldb.OpenSQLite(ctx, filepath.Join(dir, "tracker.db"))
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { db.Close() })
	blobs, err := blob.NewLocal(filepath.Join(dir, "uploads"))
	c.Assert(err, qt.IsNil)

	log, _ := test.NewNullLogger()
	srv := api.New(
		tracker.NewJobRepository(db.Jobs(), blobs, log),
		tracker.NewTaskRepository(db.Tasks(), log),
		tracker.NewStatsService(db.Jobs(), db.Tasks(), time.UTC),
		api.Options{Log: log},
	)
	ts := httptest.NewServer(srv.Handler())
	c.Cleanup(ts.Close)
	return &cli{c: c, server: ts.URL + "/api"}
}

func (l *cli) run(args ...string) (code int, stdout, stderr string) {
	var out, errOut bytes.Buffer
	code = run(context.Background(), append([]string{"--server", l.server}, args...), &out, &errOut)
	return code, out.String(), errOut.String()
}

func (l *cli) mustRun(args ...string) string {
	code, stdout, stderr := l.run(args...)
	l.c.Assert(code, qt.Equals, 0, qt.Commentf("stderr: %s", stderr))
	return stdout
}

func TestJobCommands(t *testing.T) {
	c := qt.New(t)
	l := newCLI(c)

	out := l.mustRun("add-job", "--customer", "Acme", "--name", "Culvert 12", "--number", "J-100",
		"--start", "2024-03-01", "--priority", "High", "--pm", "Dana")
	var job tracker.Job
	c.Assert(json.Unmarshal([]byte(out), &job), qt.IsNil)
	c.Assert(job.ProjectManager, qt.Equals, "Dana")
	id := job.ID.Hex()

	out = l.mustRun("update-job", id, "--pm", "")
	job = tracker.Job{}
	c.Assert(json.Unmarshal([]byte(out), &job), qt.IsNil)
	c.Assert(job.ProjectManager, qt.Equals, "")
	c.Assert(job.Priority, qt.Equals, tracker.PriorityHigh)

	out = l.mustRun("jobs")
	c.Assert(out, qt.Contains, id)
	c.Assert(out, qt.Contains, "Culvert 12")

	dir := c.TempDir()
	pdf := filepath.Join(dir, "plan.pdf")
	c.Assert(os.WriteFile(pdf, []byte("%PDF-1.4 plan"), 0644), qt.IsNil)
	png := filepath.Join(dir, "photo.png")
	c.Assert(os.WriteFile(png, []byte("\x89PNG"), 0644), qt.IsNil)

	code, stdout, stderr := l.run("upload", id, pdf, png)
	c.Assert(code, qt.Equals, 0)
	c.Assert(stdout, qt.Contains, "plan.pdf")
	c.Assert(stderr, qt.Contains, "1 file(s) were not PDFs")

	out = l.mustRun("show-job", id)
	c.Assert(out, qt.Contains, "plan.pdf")
	c.Assert(out, qt.Contains, "13 B")

	job = tracker.Job{}
	c.Assert(json.Unmarshal([]byte(l.mustRun("update-job", id)), &job), qt.IsNil)
	c.Assert(job.Documents, qt.HasLen, 1)

	target := filepath.Join(dir, "out.pdf")
	out = l.mustRun("download", "-o", target, id, job.Documents[0].Filename)
	c.Assert(out, qt.Contains, "wrote 13 B")
	data, err := os.ReadFile(target)
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Equals, "%PDF-1.4 plan")

	l.mustRun("remove-job", id)
	code, _, stderr = l.run("show-job", id)
	c.Assert(code, qt.Equals, 1)
	c.Assert(stderr, qt.Contains, "request failed")
}

func TestTaskAndStatsCommands(t *testing.T) {
	c := qt.New(t)
	l := newCLI(c)

	var task tracker.Task
	out := l.mustRun("add-task", "--title", "Order pipe", "--status", "In Progress", "--due", "2024-03-15")
	c.Assert(json.Unmarshal([]byte(out), &task), qt.IsNil)
	c.Assert(task.Status, qt.Equals, tracker.StatusInProgress)

	out = l.mustRun("update-task", task.ID.Hex(), "--status", "Completed")
	c.Assert(out, qt.Contains, `"status": "Completed"`)

	out = l.mustRun("tasks")
	c.Assert(out, qt.Contains, "Order pipe")
	c.Assert(out, qt.Contains, "2024-03-15")

	out = l.mustRun("stats", "--period", "yearly")
	c.Assert(out, qt.Contains, "tasks:     1 (Pending 0, In Progress 0, Completed 1)")

	code, _, _ := l.run("stats", "--period", "hourly")
	c.Assert(code, qt.Equals, 1)

	l.mustRun("remove-task", task.ID.Hex())
}

func TestUsageErrors(t *testing.T) {
	c := qt.New(t)
	l := newCLI(c)

	code, _, stderr := l.run()
	c.Assert(code, qt.Equals, 2)
	c.Assert(stderr, qt.Contains, "commands:")

	code, _, stderr = l.run("frobnicate")
	c.Assert(code, qt.Equals, 2)
	c.Assert(stderr, qt.Contains, "unrecognized command")

	code, _, stderr = l.run("show-job")
	c.Assert(code, qt.Equals, 2)
	c.Assert(stderr, qt.Contains, "no job id specified")

	code, _, stderr = l.run("jobs", "extra")
	c.Assert(code, qt.Equals, 2)
	c.Assert(stderr, qt.Contains, "unrecognized args: extra")
}
