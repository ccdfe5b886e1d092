// Package api serves the job tracker over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/kidandcat/jobtracker/internal/metrics"
	"github.com/kidandcat/jobtracker/internal/tracker"
	"github.com/sirupsen/logrus"
)

type JobService interface {
	ListJobs(ctx context.Context) ([]tracker.Job, error)
	GetJob(ctx context.Context, id string) (tracker.Job, error)
	CreateJob(ctx context.Context, f tracker.JobFields) (tracker.Job, error)
	UpdateJob(ctx context.Context, id string, f tracker.JobFields) (tracker.Job, error)
	DeleteJob(ctx context.Context, id string) error
	UploadDocuments(ctx context.Context, id string, files []tracker.Upload) (tracker.UploadResult, error)
	DownloadDocument(ctx context.Context, id, filename string) (tracker.Download, error)
	ProjectManagers(ctx context.Context) ([]string, error)
}

type TaskService interface {
	ListTasks(ctx context.Context) ([]tracker.Task, error)
	GetTask(ctx context.Context, id string) (tracker.Task, error)
	CreateTask(ctx context.Context, f tracker.TaskFields) (tracker.Task, error)
	UpdateTask(ctx context.Context, id string, f tracker.TaskFields) (tracker.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

type StatsService interface {
	Stats(ctx context.Context, period tracker.Period) (tracker.Stats, error)
}

// HealthChecker reports database reachability for /health?verbose=true.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Log            logrus.FieldLogger
	Metrics        metrics.Sink
	MetricsPath    string
	MetricsHandler http.Handler
	Health         HealthChecker
	CORSOrigin     string
	MaxUploadBytes int64
}

type Server struct {
	jobs  JobService
	tasks TaskService
	stats StatsService
	opts  Options
}

const (
	// maxRequestBodySize limits JSON bodies.
	maxRequestBodySize = 1 << 20

	defaultMaxUploadBytes = 32 << 20
)

func New(jobs JobService, tasks TaskService, stats StatsService, opts Options) *Server {
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNoopSink()
	}
	if opts.CORSOrigin == "" {
		opts.CORSOrigin = "*"
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	return &Server{jobs: jobs, tasks: tasks, stats: stats, opts: opts}
}

// Handler returns the routes wrapped in the middleware chain. Every API
// route is served both at the root and below /api.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux, "")
	s.RegisterRoutes(mux, "/api")

	mux.HandleFunc("GET /health", s.handleHealth)
	if s.opts.MetricsHandler != nil && s.opts.MetricsPath != "" {
		mux.Handle("GET "+s.opts.MetricsPath, s.opts.MetricsHandler)
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if allow := allowedMethods(mux, r); len(allow) > 0 {
			w.Header().Set("Allow", strings.Join(allow, ", "))
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		writeError(w, http.StatusNotFound, "not found")
	})

	var h http.Handler = mux
	h = s.cors(h)
	h = s.recoverPanics(h)
	h = s.accessLog(h)
	h = s.requestID(h)
	return h
}

var routeMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete}

// allowedMethods lists the methods routed for the path of r. The catch-all
// route does not count.
func allowedMethods(mux *http.ServeMux, r *http.Request) []string {
	var allow []string
	for _, m := range routeMethods {
		alt := r.Clone(r.Context())
		alt.Method = m
		if _, pattern := mux.Handler(alt); pattern != "" && pattern != "/" {
			allow = append(allow, m)
		}
	}
	return allow
}

func (s *Server) RegisterRoutes(mux *http.ServeMux, prefix string) {
	// Jobs
	mux.HandleFunc("GET "+prefix+"/jobs", s.handleListJobs)
	mux.HandleFunc("POST "+prefix+"/jobs", s.handleCreateJob)
	mux.HandleFunc("GET "+prefix+"/jobs/{id}", s.handleGetJob)
	mux.HandleFunc("PUT "+prefix+"/jobs/{id}", s.handleUpdateJob)
	mux.HandleFunc("DELETE "+prefix+"/jobs/{id}", s.handleDeleteJob)

	// Documents
	mux.HandleFunc("POST "+prefix+"/jobs/{id}/upload", s.handleUpload)
	mux.HandleFunc("GET "+prefix+"/jobs/{id}/files/{filename}", s.handleDownload)

	// Tasks
	mux.HandleFunc("GET "+prefix+"/tasks", s.handleListTasks)
	mux.HandleFunc("POST "+prefix+"/tasks", s.handleCreateTask)
	mux.HandleFunc("GET "+prefix+"/tasks/{id}", s.handleGetTask)
	mux.HandleFunc("PUT "+prefix+"/tasks/{id}", s.handleUpdateTask)
	mux.HandleFunc("DELETE "+prefix+"/tasks/{id}", s.handleDeleteTask)

	mux.HandleFunc("GET "+prefix+"/stats", s.handleStats)
	mux.HandleFunc("GET "+prefix+"/project-managers", s.handleProjectManagers)
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps a repository error to a response. Details of
// unexpected errors only go to the log.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	var verr *tracker.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Fields: verr.Fields})
	case tracker.IsValidation(err):
		writeError(w, http.StatusBadRequest, "invalid request")
	case tracker.IsNotFound(err):
		writeError(w, http.StatusNotFound, notFound)
	default:
		logger(r).WithError(err).Error("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON reads a size limited JSON body into v, writing the error
// response itself when it fails.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

// validID checks a path id before any repository call.
func validID(w http.ResponseWriter, r *http.Request, kind string) (string, bool) {
	id := r.PathValue("id")
	if !tracker.ValidID(id) {
		writeError(w, http.StatusBadRequest, "Invalid "+kind+" ID format")
		return "", false
	}
	return id, true
}
