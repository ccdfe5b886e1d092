package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/juju/errors"
	"github.com/kidandcat/jobtracker/internal/tracker"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

// fakeJobs records every call that reaches it.
type fakeJobs struct {
	calls int
	err   error
	panic bool
}

func (f *fakeJobs) ListJobs(context.Context) ([]tracker.Job, error) {
	f.calls++
	if f.panic {
		panic("boom")
	}
	return []tracker.Job{}, f.err
}

func (f *fakeJobs) GetJob(context.Context, string) (tracker.Job, error) {
	f.calls++
	return tracker.Job{}, f.err
}

func (f *fakeJobs) CreateJob(context.Context, tracker.JobFields) (tracker.Job, error) {
	f.calls++
	return tracker.Job{}, f.err
}

func (f *fakeJobs) UpdateJob(context.Context, string, tracker.JobFields) (tracker.Job, error) {
	f.calls++
	return tracker.Job{}, f.err
}

func (f *fakeJobs) DeleteJob(context.Context, string) error {
	f.calls++
	return f.err
}

func (f *fakeJobs) UploadDocuments(context.Context, string, []tracker.Upload) (tracker.UploadResult, error) {
	f.calls++
	return tracker.UploadResult{}, f.err
}

func (f *fakeJobs) DownloadDocument(context.Context, string, string) (tracker.Download, error) {
	f.calls++
	return tracker.Download{}, f.err
}

func (f *fakeJobs) ProjectManagers(context.Context) ([]string, error) {
	f.calls++
	return []string{}, f.err
}

type fakeTasks struct {
	calls int
}

func (f *fakeTasks) ListTasks(context.Context) ([]tracker.Task, error) {
	f.calls++
	return []tracker.Task{}, nil
}

func (f *fakeTasks) GetTask(context.Context, string) (tracker.Task, error) {
	f.calls++
	return tracker.Task{}, nil
}

func (f *fakeTasks) CreateTask(context.Context, tracker.TaskFields) (tracker.Task, error) {
	f.calls++
	return tracker.Task{}, nil
}

func (f *fakeTasks) UpdateTask(context.Context, string, tracker.TaskFields) (tracker.Task, error) {
	f.calls++
	return tracker.Task{}, nil
}

func (f *fakeTasks) DeleteTask(context.Context, string) error {
	f.calls++
	return nil
}

type fakeStats struct{}

func (fakeStats) Stats(_ context.Context, p tracker.Period) (tracker.Stats, error) {
	return tracker.Stats{Period: p}, nil
}

type fakeHealth struct{ err error }

func (f fakeHealth) Ping(context.Context) error { return f.err }

type request struct {
	Route  string
	Status int
}

// recordingSink keeps the route label of every completed request.
type recordingSink struct {
	mu       sync.Mutex
	requests []request
}

func (s *recordingSink) RequestCompleted(_, route string, status int, _ time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, request{route, status})
}

func (s *recordingSink) DocumentsUploaded(int, int, int64) {}
func (s *recordingSink) DocumentDownloaded(int64)          {}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(c *qt.C, rec *httptest.ResponseRecorder) errorResponse {
	var resp errorResponse
	c.Assert(json.Unmarshal(rec.Body.Bytes(), &resp), qt.IsNil, qt.Commentf("body %s", rec.Body.String()))
	return resp
}

func TestMalformedIDsNeverReachRepository(t *testing.T) {
	c := qt.New(t)
	jobs, tasks := &fakeJobs{}, &fakeTasks{}
	log, _ := test.NewNullLogger()
	h := New(jobs, tasks, fakeStats{}, Options{Log: log}).Handler()

	tests := []struct {
		method, path, body, want string
	}{
		{"GET", "/jobs/not-an-id", "", "Invalid job ID format"},
		{"PUT", "/jobs/123", `{"customer":"x"}`, "Invalid job ID format"},
		{"DELETE", "/api/jobs/zzzzzzzzzzzzzzzzzzzzzzzz", "", "Invalid job ID format"},
		{"POST", "/jobs/abc/upload", "", "Invalid job ID format"},
		{"GET", "/jobs/abc/files/plan.pdf", "", "Invalid job ID format"},
		{"GET", "/tasks/nope", "", "Invalid task ID format"},
		{"PUT", "/api/tasks/nope", `{}`, "Invalid task ID format"},
		{"DELETE", "/tasks/65f1c0ffee65f1c0ffee65f1aa", "", "Invalid task ID format"},
	}
	for _, test := range tests {
		c.Run(test.method+" "+test.path, func(c *qt.C) {
			rec := do(h, test.method, test.path, test.body)
			c.Assert(rec.Code, qt.Equals, http.StatusBadRequest)
			c.Assert(decodeError(c, rec).Error, qt.Equals, test.want)
		})
	}
	c.Assert(jobs.calls, qt.Equals, 0)
	c.Assert(tasks.calls, qt.Equals, 0)
}

func TestServiceErrorMapping(t *testing.T) {
	c := qt.New(t)
	const id = "65f1c0ffee65f1c0ffee65f1"

	tests := []struct {
		about  string
		err    error
		status int
		want   string
	}{{
		about:  "validation",
		err:    &tracker.ValidationError{Fields: map[string]string{"customer": "is required"}},
		status: http.StatusBadRequest,
		want:   "validation failed",
	}, {
		about:  "not found",
		err:    errors.NotFoundf("job %q", id),
		status: http.StatusNotFound,
		want:   "Job not found",
	}, {
		about:  "annotated not found",
		err:    errors.Annotate(errors.NotFoundf("job"), "load"),
		status: http.StatusNotFound,
		want:   "Job not found",
	}, {
		about:  "connection",
		err:    &tracker.ConnectionError{Err: errors.New("dial tcp: refused")},
		status: http.StatusInternalServerError,
		want:   "internal error",
	}}
	for _, test := range tests {
		c.Run(test.about, func(c *qt.C) {
			log, hook := newLogger()
			h := New(&fakeJobs{err: test.err}, &fakeTasks{}, fakeStats{}, Options{Log: log}).Handler()
			rec := do(h, "GET", "/jobs/"+id, "")
			c.Assert(rec.Code, qt.Equals, test.status)
			resp := decodeError(c, rec)
			c.Assert(resp.Error, qt.Equals, test.want)
			if test.status == http.StatusInternalServerError {
				c.Assert(strings.Contains(rec.Body.String(), "refused"), qt.IsFalse)
				c.Assert(hook.LastEntry(), qt.Not(qt.IsNil))
			}
		})
	}
}

func newLogger() (*logrus.Logger, *test.Hook) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	return log, hook
}

func TestValidationFieldsReturned(t *testing.T) {
	c := qt.New(t)
	err := &tracker.ValidationError{Fields: map[string]string{"priority": "must be one of High, Medium, Low"}}
	h := New(&fakeJobs{err: err}, &fakeTasks{}, fakeStats{}, Options{}).Handler()

	rec := do(h, "POST", "/jobs", `{"priority":"Urgent"}`)
	c.Assert(rec.Code, qt.Equals, http.StatusBadRequest)
	c.Assert(decodeError(c, rec).Fields, qt.DeepEquals, map[string]string{
		"priority": "must be one of High, Medium, Low",
	})
}

func TestInvalidJSON(t *testing.T) {
	c := qt.New(t)
	jobs := &fakeJobs{}
	h := New(jobs, &fakeTasks{}, fakeStats{}, Options{}).Handler()

	rec := do(h, "POST", "/jobs", `{"customer":`)
	c.Assert(rec.Code, qt.Equals, http.StatusBadRequest)
	c.Assert(decodeError(c, rec).Error, qt.Equals, "invalid JSON")

	rec = do(h, "POST", "/jobs", `{"customer":"`+strings.Repeat("a", maxRequestBodySize)+`"}`)
	c.Assert(rec.Code, qt.Equals, http.StatusRequestEntityTooLarge)
	c.Assert(jobs.calls, qt.Equals, 0)
}

func TestUnknownRoute(t *testing.T) {
	c := qt.New(t)
	h := New(&fakeJobs{}, &fakeTasks{}, fakeStats{}, Options{}).Handler()

	rec := do(h, "GET", "/nothing/here", "")
	c.Assert(rec.Code, qt.Equals, http.StatusNotFound)
	c.Assert(decodeError(c, rec).Error, qt.Equals, "not found")
	c.Assert(rec.Header().Get("Allow"), qt.Equals, "")
}

func TestWrongMethodOnKnownPath(t *testing.T) {
	c := qt.New(t)
	jobs := &fakeJobs{}
	h := New(jobs, &fakeTasks{}, fakeStats{}, Options{}).Handler()

	tests := []struct {
		method, path, allow string
	}{
		{"POST", "/health", "GET"},
		{"DELETE", "/api/jobs", "GET, POST"},
		{"POST", "/jobs/65f1c0ffee65f1c0ffee65f1", "GET, PUT, DELETE"},
		{"GET", "/api/jobs/65f1c0ffee65f1c0ffee65f1/upload", "POST"},
		{"PUT", "/stats", "GET"},
	}
	for _, tt := range tests {
		c.Run(tt.method+" "+tt.path, func(c *qt.C) {
			rec := do(h, tt.method, tt.path, "")
			c.Assert(rec.Code, qt.Equals, http.StatusMethodNotAllowed)
			c.Assert(rec.Header().Get("Allow"), qt.Equals, tt.allow)
			c.Assert(decodeError(c, rec).Error, qt.Equals, "method not allowed")
		})
	}
	c.Assert(jobs.calls, qt.Equals, 0)
}

func TestAPIPrefix(t *testing.T) {
	c := qt.New(t)
	jobs := &fakeJobs{}
	h := New(jobs, &fakeTasks{}, fakeStats{}, Options{}).Handler()

	for _, path := range []string{"/jobs", "/api/jobs"} {
		rec := do(h, "GET", path, "")
		c.Assert(rec.Code, qt.Equals, http.StatusOK)
		c.Assert(strings.TrimSpace(rec.Body.String()), qt.Equals, "[]")
	}
	c.Assert(jobs.calls, qt.Equals, 2)
}

func TestCORS(t *testing.T) {
	c := qt.New(t)
	jobs := &fakeJobs{}
	h := New(jobs, &fakeTasks{}, fakeStats{}, Options{CORSOrigin: "https://tracker.example.com"}).Handler()

	rec := do(h, "OPTIONS", "/jobs", "")
	c.Assert(rec.Code, qt.Equals, http.StatusNoContent)
	c.Assert(rec.Header().Get("Access-Control-Allow-Origin"), qt.Equals, "https://tracker.example.com")
	c.Assert(rec.Header().Get("Access-Control-Allow-Methods"), qt.Contains, "DELETE")
	c.Assert(jobs.calls, qt.Equals, 0)

	rec = do(New(jobs, &fakeTasks{}, fakeStats{}, Options{}).Handler(), "GET", "/jobs", "")
	c.Assert(rec.Header().Get("Access-Control-Allow-Origin"), qt.Equals, "*")
}

func TestRequestIDAndAccessLog(t *testing.T) {
	c := qt.New(t)
	log, hook := newLogger()
	sink := &recordingSink{}
	h := New(&fakeJobs{}, &fakeTasks{}, fakeStats{}, Options{Log: log, Metrics: sink}).Handler()

	req := httptest.NewRequest("GET", "/api/jobs/65f1c0ffee65f1c0ffee65f1", nil)
	req.Header.Set(requestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	c.Assert(rec.Header().Get(requestIDHeader), qt.Equals, "req-42")
	entry := hook.LastEntry()
	c.Assert(entry, qt.Not(qt.IsNil))
	c.Assert(entry.Message, qt.Equals, "request")
	c.Assert(entry.Data["request_id"], qt.Equals, "req-42")
	c.Assert(entry.Data["status"], qt.Equals, http.StatusOK)
	c.Assert(sink.requests, qt.DeepEquals, []request{{"GET /api/jobs/{id}", http.StatusOK}})

	rec = do(h, "GET", "/jobs", "")
	c.Assert(rec.Header().Get(requestIDHeader), qt.HasLen, 36)
}

func TestPanicRecovered(t *testing.T) {
	c := qt.New(t)
	log, hook := newLogger()
	h := New(&fakeJobs{panic: true}, &fakeTasks{}, fakeStats{}, Options{Log: log}).Handler()

	rec := do(h, "GET", "/jobs", "")
	c.Assert(rec.Code, qt.Equals, http.StatusInternalServerError)
	c.Assert(decodeError(c, rec).Error, qt.Equals, "internal error")

	var panicked bool
	for _, e := range hook.AllEntries() {
		if e.Message == "handler panicked" {
			panicked = true
		}
	}
	c.Assert(panicked, qt.IsTrue)
}

func TestHealth(t *testing.T) {
	c := qt.New(t)

	h := New(&fakeJobs{}, &fakeTasks{}, fakeStats{}, Options{Health: fakeHealth{}}).Handler()
	rec := do(h, "GET", "/health", "")
	c.Assert(rec.Code, qt.Equals, http.StatusOK)
	c.Assert(strings.TrimSpace(rec.Body.String()), qt.Equals, `{"status":"ok"}`)

	rec = do(h, "GET", "/health?verbose=true", "")
	c.Assert(rec.Code, qt.Equals, http.StatusOK)
	c.Assert(rec.Body.String(), qt.Contains, `"database":"healthy"`)

	log, _ := test.NewNullLogger()
	h = New(&fakeJobs{}, &fakeTasks{}, fakeStats{}, Options{Log: log, Health: fakeHealth{errors.New("down")}}).Handler()
	rec = do(h, "GET", "/health?verbose=true", "")
	c.Assert(rec.Code, qt.Equals, http.StatusServiceUnavailable)
	var resp HealthResponse
	c.Assert(json.Unmarshal(rec.Body.Bytes(), &resp), qt.IsNil)
	c.Assert(resp, qt.DeepEquals, HealthResponse{Status: "degraded", Components: map[string]string{"database": "unhealthy"}})
}

func TestStatsPeriod(t *testing.T) {
	c := qt.New(t)
	h := New(&fakeJobs{}, &fakeTasks{}, fakeStats{}, Options{}).Handler()

	rec := do(h, "GET", "/stats", "")
	c.Assert(rec.Code, qt.Equals, http.StatusOK)
	c.Assert(rec.Body.String(), qt.Contains, `"period":"monthly"`)

	rec = do(h, "GET", "/api/stats?period=fortnightly", "")
	c.Assert(rec.Code, qt.Equals, http.StatusBadRequest)
	c.Assert(decodeError(c, rec).Fields["period"], qt.Not(qt.Equals), "")
}

func TestMetricsRoute(t *testing.T) {
	c := qt.New(t)
	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("# metrics\n"))
	})
	h := New(&fakeJobs{}, &fakeTasks{}, fakeStats{}, Options{
		MetricsPath:    "/metrics",
		MetricsHandler: metricsHandler,
	}).Handler()

	rec := do(h, "GET", "/metrics", "")
	c.Assert(rec.Code, qt.Equals, http.StatusOK)
	c.Assert(rec.Body.String(), qt.Equals, "# metrics\n")
}
