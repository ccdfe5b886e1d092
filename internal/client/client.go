// Package client is a typed Go client for the job tracker HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/kidandcat/jobtracker/internal/tracker"
)

// ErrRequestFailed is matched by every error returned for a non-2xx
// response.
const ErrRequestFailed = errors.ConstError("request failed")

// StatusError is returned for a non-2xx response. The body is not read.
type StatusError struct {
	Method string
	Path   string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %s: %d %s", e.Method, e.Path, ErrRequestFailed, e.Status, http.StatusText(e.Status))
}

func (e *StatusError) Is(target error) bool {
	return target == ErrRequestFailed
}

type Client struct {
	base *url.URL
	http *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default client, which has a 30s timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New returns a client for the API rooted at baseURL, for example
// "http://localhost:8080/api".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Annotatef(err, "parse base URL %q", baseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.NotValidf("base URL %q", baseURL)
	}
	c := &Client{
		base: u,
		http: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) url(elem ...string) string {
	return c.base.JoinPath(elem...).String()
}

// do sends a request and decodes a JSON response into out when out is not nil.
func (c *Client) do(ctx context.Context, method, target string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return errors.Trace(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Annotatef(err, "%s %s", method, req.URL.Path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return &StatusError{Method: method, Path: req.URL.Path, Status: resp.StatusCode}
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Annotatef(err, "decode %s %s", method, req.URL.Path)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, target string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return errors.Trace(err)
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}
	return c.do(ctx, method, target, body, contentType, out)
}

func (c *Client) ListJobs(ctx context.Context) ([]tracker.Job, error) {
	var jobs []tracker.Job
	err := c.doJSON(ctx, http.MethodGet, c.url("jobs"), nil, &jobs)
	return jobs, err
}

func (c *Client) GetJob(ctx context.Context, id string) (tracker.Job, error) {
	var job tracker.Job
	err := c.doJSON(ctx, http.MethodGet, c.url("jobs", id), nil, &job)
	return job, err
}

func (c *Client) CreateJob(ctx context.Context, f tracker.JobFields) (tracker.Job, error) {
	var job tracker.Job
	err := c.doJSON(ctx, http.MethodPost, c.url("jobs"), f, &job)
	return job, err
}

// UpdateJob sends only the fields set in f.
func (c *Client) UpdateJob(ctx context.Context, id string, f tracker.JobFields) (tracker.Job, error) {
	var job tracker.Job
	err := c.doJSON(ctx, http.MethodPut, c.url("jobs", id), f, &job)
	return job, err
}

func (c *Client) DeleteJob(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, c.url("jobs", id), nil, nil)
}

// File is one part of an upload.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

type UploadResult struct {
	Message       string             `json:"message"`
	UploadedFiles []tracker.Document `json:"uploadedFiles"`
	Note          string             `json:"note,omitempty"`
}

// UploadFiles posts files as one multipart request. Files that are not PDFs
// are dropped by the server and are missing from the result.
func (c *Client) UploadFiles(ctx context.Context, jobID string, files []File) (UploadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename=%q`, f.Name))
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		w, err := mw.CreatePart(h)
		if err != nil {
			return UploadResult{}, errors.Trace(err)
		}
		if _, err := w.Write(f.Data); err != nil {
			return UploadResult{}, errors.Trace(err)
		}
	}
	if err := mw.Close(); err != nil {
		return UploadResult{}, errors.Trace(err)
	}

	var res UploadResult
	err := c.do(ctx, http.MethodPost, c.url("jobs", jobID, "upload"), &buf, mw.FormDataContentType(), &res)
	return res, err
}

// FileURL is the download address of a stored document.
func (c *Client) FileURL(jobID, filename string) string {
	return c.url("jobs", jobID, "files", filename)
}

// DownloadFile writes the bytes of a stored document to w and returns the
// number of bytes written.
func (c *Client) DownloadFile(ctx context.Context, jobID, filename string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.FileURL(jobID, filename), nil)
	if err != nil {
		return 0, errors.Trace(err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, errors.Annotatef(err, "download %s", filename)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, &StatusError{Method: http.MethodGet, Path: req.URL.Path, Status: resp.StatusCode}
	}
	n, err := io.Copy(w, resp.Body)
	return n, errors.Annotatef(err, "download %s", filename)
}

func (c *Client) ListTasks(ctx context.Context) ([]tracker.Task, error) {
	var tasks []tracker.Task
	err := c.doJSON(ctx, http.MethodGet, c.url("tasks"), nil, &tasks)
	return tasks, err
}

func (c *Client) GetTask(ctx context.Context, id string) (tracker.Task, error) {
	var task tracker.Task
	err := c.doJSON(ctx, http.MethodGet, c.url("tasks", id), nil, &task)
	return task, err
}

func (c *Client) CreateTask(ctx context.Context, f tracker.TaskFields) (tracker.Task, error) {
	var task tracker.Task
	err := c.doJSON(ctx, http.MethodPost, c.url("tasks"), f, &task)
	return task, err
}

func (c *Client) UpdateTask(ctx context.Context, id string, f tracker.TaskFields) (tracker.Task, error) {
	var task tracker.Task
	err := c.doJSON(ctx, http.MethodPut, c.url("tasks", id), f, &task)
	return task, err
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, c.url("tasks", id), nil, nil)
}

// Stats fetches the dashboard summary. An empty period means monthly.
func (c *Client) Stats(ctx context.Context, period tracker.Period) (tracker.Stats, error) {
	target := c.url("stats")
	if period != "" {
		target += "?" + url.Values{"period": {string(period)}}.Encode()
	}
	var stats tracker.Stats
	err := c.doJSON(ctx, http.MethodGet, target, nil, &stats)
	return stats, err
}
