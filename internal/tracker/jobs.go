package tracker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/juju/errors"
	"github.com/kidandcat/jobtracker/internal/blob"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// JobStore persists jobs. Implementations return errors satisfying
// errors.Is(err, errors.NotFound) for unknown ids.
type JobStore interface {
	// ListJobs returns all jobs, newest first.
	ListJobs(ctx context.Context) ([]Job, error)
	GetJob(ctx context.Context, id primitive.ObjectID) (Job, error)
	InsertJob(ctx context.Context, job Job) error
	// UpdateJob replaces every field except Documents and CreatedAt.
	UpdateJob(ctx context.Context, job Job) error
	// AppendDocuments adds docs to the end of the job's list in one
	// atomic step and returns the updated job.
	AppendDocuments(ctx context.Context, id primitive.ObjectID, docs []Document, updatedAt time.Time) (Job, error)
	// DeleteJob removes the job and returns what was stored.
	DeleteJob(ctx context.Context, id primitive.ObjectID) (Job, error)
}

// Upload is one file received for a job.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

type UploadResult struct {
	Documents []Document
	Skipped   int
	Bytes     int64
	// Note is set when the bytes were not kept.
	Note string
}

type Download struct {
	Data         []byte
	MimeType     string
	OriginalName string
}

const skippedNote = "File storage is not available in this deployment; document metadata was recorded without the file contents."

// BlobKey is where the bytes of a job document are stored.
func BlobKey(jobID primitive.ObjectID, filename string) string {
	return jobID.Hex() + "/" + filename
}

type JobRepository struct {
	store   JobStore
	blobs   blob.Store
	log     logrus.FieldLogger
	now     func() time.Time
	uploads jobLocks
}

// jobLocks hands out one mutex per job id. Entries are dropped once no
// caller holds or waits for them.
type jobLocks struct {
	mu    sync.Mutex
	locks map[primitive.ObjectID]*jobLock
}

type jobLock struct {
	sync.Mutex
	refs int
}

func (l *jobLocks) lock(id primitive.ObjectID) (unlock func()) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = map[primitive.ObjectID]*jobLock{}
	}
	jl := l.locks[id]
	if jl == nil {
		jl = &jobLock{}
		l.locks[id] = jl
	}
	jl.refs++
	l.mu.Unlock()

	jl.Lock()
	return func() {
		jl.Unlock()
		l.mu.Lock()
		jl.refs--
		if jl.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

func NewJobRepository(store JobStore, blobs blob.Store, log logrus.FieldLogger) *JobRepository {
	return &JobRepository{store: store, blobs: blobs, log: log, now: time.Now}
}

func (r *JobRepository) ListJobs(ctx context.Context) ([]Job, error) {
	jobs, err := r.store.ListJobs(ctx)
	if err != nil {
		return nil, errors.Annotate(err, "list jobs")
	}
	if jobs == nil {
		jobs = []Job{}
	}
	return jobs, nil
}

func (r *JobRepository) GetJob(ctx context.Context, id string) (Job, error) {
	oid, err := ParseID("job", id)
	if err != nil {
		return Job{}, err
	}
	job, err := r.store.GetJob(ctx, oid)
	if err != nil {
		return Job{}, errors.Annotatef(err, "get job %s", id)
	}
	return job, nil
}

func (r *JobRepository) CreateJob(ctx context.Context, f JobFields) (Job, error) {
	var job Job
	if err := f.Apply(&job, true); err != nil {
		return Job{}, err
	}
	now := Timestamp(r.now())
	job.ID = NewID()
	job.Documents = []Document{}
	job.CreatedAt = now
	job.UpdatedAt = now
	if err := r.store.InsertJob(ctx, job); err != nil {
		return Job{}, errors.Annotate(err, "insert job")
	}
	r.log.WithField("op", "create_job").WithField("job", job.ID.Hex()).Debug("job created")
	return job, nil
}

func (r *JobRepository) UpdateJob(ctx context.Context, id string, f JobFields) (Job, error) {
	job, err := r.GetJob(ctx, id)
	if err != nil {
		return Job{}, err
	}
	if err := f.Apply(&job, false); err != nil {
		return Job{}, err
	}
	job.UpdatedAt = Timestamp(r.now())
	if err := r.store.UpdateJob(ctx, job); err != nil {
		return Job{}, errors.Annotatef(err, "update job %s", id)
	}
	return job, nil
}

// DeleteJob removes the job and then its stored documents. Failing to remove
// a document is logged and does not fail the delete.
func (r *JobRepository) DeleteJob(ctx context.Context, id string) error {
	oid, err := ParseID("job", id)
	if err != nil {
		return err
	}
	job, err := r.store.DeleteJob(ctx, oid)
	if err != nil {
		return errors.Annotatef(err, "delete job %s", id)
	}
	log := r.log.WithField("op", "delete_job").WithField("job", id)
	for _, doc := range job.Documents {
		key := BlobKey(oid, doc.Filename)
		if err := r.blobs.Delete(ctx, key); err != nil && !errors.Is(err, errors.NotFound) {
			log.WithError(err).WithField("key", key).Warn("could not remove document")
		}
	}
	return nil
}

// UploadDocuments stores every PDF in files and attaches them to the job.
// Files of any other type are dropped. Uploads to one job are serialized
// within the process so generated filenames never collide.
func (r *JobRepository) UploadDocuments(ctx context.Context, id string, files []Upload) (UploadResult, error) {
	job, err := r.GetJob(ctx, id)
	if err != nil {
		return UploadResult{}, err
	}
	unlock := r.uploads.lock(job.ID)
	defer unlock()
	// Reload so documents attached while waiting are taken into account.
	if job, err = r.store.GetJob(ctx, job.ID); err != nil {
		return UploadResult{}, errors.Annotatef(err, "get job %s", id)
	}
	log := r.log.WithField("op", "upload").WithField("job", id)

	taken := make(map[string]bool, len(job.Documents))
	for _, d := range job.Documents {
		taken[d.Filename] = true
	}

	var (
		res     = UploadResult{Documents: []Document{}}
		written []string
		skipped bool
		now     = Timestamp(r.now())
	)
	for _, f := range files {
		if !isPDF(f.ContentType) {
			res.Skipped++
			log.WithField("name", f.Name).WithField("type", f.ContentType).Debug("dropping non-PDF upload")
			continue
		}
		name := baseName(f.Name)
		filename := uniqueFilename(name, now, taken)
		taken[filename] = true
		key := BlobKey(job.ID, filename)

		err := r.blobs.Put(ctx, key, f.Data, pdfMimeType)
		switch {
		case errors.Is(err, blob.ErrSkipped):
			skipped = true
		case err != nil:
			r.removeBlobs(ctx, log, written)
			return UploadResult{}, &IOError{Op: "store", Key: key, Err: err}
		default:
			written = append(written, key)
		}

		res.Documents = append(res.Documents, Document{
			ID:           NewID(),
			Filename:     filename,
			OriginalName: name,
			MimeType:     pdfMimeType,
			Size:         int64(len(f.Data)),
			Pages:        pageCount(f.Data),
			UploadedAt:   now,
		})
		res.Bytes += int64(len(f.Data))
	}

	if len(res.Documents) == 0 {
		return res, nil
	}
	if _, err := r.store.AppendDocuments(ctx, job.ID, res.Documents, now); err != nil {
		r.removeBlobs(ctx, log, written)
		return UploadResult{}, errors.Annotatef(err, "attach documents to job %s", id)
	}
	if skipped {
		res.Note = skippedNote
	}
	log.WithField("files", len(res.Documents)).
		WithField("size", humanize.Bytes(uint64(res.Bytes))).
		Info("documents uploaded")
	return res, nil
}

func (r *JobRepository) removeBlobs(ctx context.Context, log logrus.FieldLogger, keys []string) {
	for _, key := range keys {
		if err := r.blobs.Delete(ctx, key); err != nil {
			log.WithError(err).WithField("key", key).Warn("could not roll back stored document")
		}
	}
}

// uniqueFilename prefixes name with the upload time in milliseconds, moving
// the time forward until the result is not taken.
func uniqueFilename(name string, at time.Time, taken map[string]bool) string {
	ms := at.UnixMilli()
	for {
		fn := fmt.Sprintf("%d-%s", ms, name)
		if !taken[fn] {
			return fn
		}
		ms++
	}
}

// DownloadDocument returns the stored bytes of one job document. A document
// whose bytes are gone is reported as not found.
func (r *JobRepository) DownloadDocument(ctx context.Context, id, filename string) (Download, error) {
	job, err := r.GetJob(ctx, id)
	if err != nil {
		return Download{}, err
	}
	doc, ok := job.Document(filename)
	if !ok {
		return Download{}, errors.NotFoundf("file %q", filename)
	}
	key := BlobKey(job.ID, doc.Filename)
	data, err := r.blobs.Get(ctx, key)
	if errors.Is(err, errors.NotFound) {
		r.log.WithField("op", "download").WithField("key", key).Warn("document metadata without stored file")
		return Download{}, errors.NotFoundf("file %q", filename)
	}
	if err != nil {
		return Download{}, &IOError{Op: "read", Key: key, Err: err}
	}
	mimeType := doc.MimeType
	if mimeType == "" {
		mimeType = pdfMimeType
	}
	return Download{Data: data, MimeType: mimeType, OriginalName: doc.OriginalName}, nil
}

// ProjectManagers returns the distinct project managers named on jobs,
// sorted.
func (r *JobRepository) ProjectManagers(ctx context.Context) ([]string, error) {
	jobs, err := r.ListJobs(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	names := []string{}
	for _, j := range jobs {
		if j.ProjectManager == "" || seen[j.ProjectManager] {
			continue
		}
		seen[j.ProjectManager] = true
		names = append(names, j.ProjectManager)
	}
	sort.Strings(names)
	return names, nil
}
