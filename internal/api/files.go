package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/kidandcat/jobtracker/internal/tracker"
)

// multipartMemory is how much of a multipart body is held in memory before
// spilling to temporary files.
const multipartMemory = 32 << 20

type uploadResponse struct {
	Message       string             `json:"message"`
	UploadedFiles []tracker.Document `json:"uploadedFiles"`
	Note          string             `json:"note,omitempty"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	id, ok := validID(w, r, "job")
	if !ok {
		return
	}
	// An unknown job is reported before the body is read.
	if _, err := s.jobs.GetJob(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err, "Job not found")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge,
				"upload exceeds "+humanize.Bytes(uint64(s.opts.MaxUploadBytes)))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "No files uploaded")
		return
	}

	files := make([]tracker.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			s.writeServiceError(w, r, err, "Job not found")
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			s.writeServiceError(w, r, err, "Job not found")
			return
		}
		files = append(files, tracker.Upload{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	res, err := s.jobs.UploadDocuments(r.Context(), id, files)
	if err != nil {
		s.writeServiceError(w, r, err, "Job not found")
		return
	}
	s.opts.Metrics.DocumentsUploaded(len(res.Documents), res.Skipped, res.Bytes)
	writeJSON(w, http.StatusOK, uploadResponse{
		Message:       "Files uploaded successfully",
		UploadedFiles: res.Documents,
		Note:          res.Note,
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id, ok := validID(w, r, "job")
	if !ok {
		return
	}
	filename := r.PathValue("filename")

	dl, err := s.jobs.DownloadDocument(r.Context(), id, filename)
	if err != nil {
		s.writeServiceError(w, r, err, "File not found")
		return
	}
	s.opts.Metrics.DocumentDownloaded(int64(len(dl.Data)))

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", dl.OriginalName))
	w.Header().Set("Content-Type", dl.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(dl.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(dl.Data)
}
