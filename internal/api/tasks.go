package api

import (
	"net/http"

	"github.com/kidandcat/jobtracker/internal/tracker"
)

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.tasks.ListTasks(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err, "Task not found")
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var f tracker.TaskFields
	if !decodeJSON(w, r, &f) {
		return
	}
	task, err := s.tasks.CreateTask(r.Context(), f)
	if err != nil {
		s.writeServiceError(w, r, err, "Task not found")
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := validID(w, r, "task")
	if !ok {
		return
	}
	task, err := s.tasks.GetTask(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err, "Task not found")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := validID(w, r, "task")
	if !ok {
		return
	}
	var f tracker.TaskFields
	if !decodeJSON(w, r, &f) {
		return
	}
	task, err := s.tasks.UpdateTask(r.Context(), id, f)
	if err != nil {
		s.writeServiceError(w, r, err, "Task not found")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := validID(w, r, "task")
	if !ok {
		return
	}
	if err := s.tasks.DeleteTask(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err, "Task not found")
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Task deleted successfully"})
}
