package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/dosetrack/internal/adapters/repository"
	"github.com/okian/dosetrack/internal/domain/model"
)

type subjectRequest struct {
	Name string `json:"name" validate:"required,max=256"`
}

func (s *Server) handleListSubjects(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Subjects())
}

// handleUpdateSubject stores the new display name and lets the core refresh
// the schedules that carry it.
func (s *Server) handleUpdateSubject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	writer, ok := s.deps.SubjectRepository().(repository.SubjectWriter)
	if !ok {
		s.writeServiceError(w, r, ErrSubjectsReadOnly)
		return
	}
	var req subjectRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	sub := model.Subject{ID: id, Name: req.Name}
	if err := writer.Save(r.Context(), sub); err != nil {
		s.writeServiceError(w, r, fmt.Errorf("save subject %s: %w", id, err))
		return
	}
	if err := s.deps.OnSubjectUpdated(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// handleDeleteSubject removes the subject from a writable repository, then
// cascades. Against a read-only repository it only cascades, acting as the
// deletion notification of an external owner.
func (s *Server) handleDeleteSubject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if writer, ok := s.deps.SubjectRepository().(repository.SubjectWriter); ok {
		if err := writer.Delete(r.Context(), id); err != nil && !errors.Is(err, repository.ErrNotFound) {
			s.writeServiceError(w, r, fmt.Errorf("delete subject %s: %w", id, err))
			return
		}
	}
	if err := s.deps.OnSubjectDeleted(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteAllSubjects(w http.ResponseWriter, r *http.Request) {
	repo := s.deps.SubjectRepository()
	if writer, ok := repo.(repository.SubjectWriter); ok {
		all, err := repo.FetchAll(r.Context())
		if err != nil {
			s.writeServiceError(w, r, fmt.Errorf("list subjects: %w", err))
			return
		}
		for _, sub := range all {
			if err := writer.Delete(r.Context(), sub.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
				s.writeServiceError(w, r, fmt.Errorf("delete subject %s: %w", sub.ID, err))
				return
			}
		}
	}
	if err := s.deps.OnAllSubjectsDeleted(r.Context()); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
