package api

import (
	"net/http"

	"github.com/kidandcat/jobtracker/internal/tracker"
)

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.jobs.ListJobs(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err, "Job not found")
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var f tracker.JobFields
	if !decodeJSON(w, r, &f) {
		return
	}
	job, err := s.jobs.CreateJob(r.Context(), f)
	if err != nil {
		s.writeServiceError(w, r, err, "Job not found")
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := validID(w, r, "job")
	if !ok {
		return
	}
	job, err := s.jobs.GetJob(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err, "Job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleUpdateJob(w http.ResponseWriter, r *http.Request) {
	id, ok := validID(w, r, "job")
	if !ok {
		return
	}
	var f tracker.JobFields
	if !decodeJSON(w, r, &f) {
		return
	}
	job, err := s.jobs.UpdateJob(r.Context(), id, f)
	if err != nil {
		s.writeServiceError(w, r, err, "Job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	id, ok := validID(w, r, "job")
	if !ok {
		return
	}
	if err := s.jobs.DeleteJob(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err, "Job not found")
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Job deleted successfully"})
}

func (s *Server) handleProjectManagers(w http.ResponseWriter, r *http.Request) {
	names, err := s.jobs.ProjectManagers(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err, "not found")
		return
	}
	writeJSON(w, http.StatusOK, names)
}
