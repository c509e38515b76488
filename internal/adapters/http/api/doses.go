package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/okian/dosetrack/internal/domain/model"
)

// doseRequest is the body of POST /doses and PUT /doses/{id}. A zero timestamp
// means now on create and unchanged on update.
type doseRequest struct {
	ID            string    `json:"id" validate:"omitempty,max=128"`
	SubjectID     string    `json:"subject_id" validate:"max=128"`
	SubjectName   string    `json:"subject_name" validate:"max=256"`
	Timestamp     time.Time `json:"timestamp"`
	Taken         bool      `json:"taken"`
	SkippedReason string    `json:"skipped_reason" validate:"max=256"`
	Notes         string    `json:"notes" validate:"max=1024"`
}

func (req doseRequest) event() model.DoseEvent {
	return model.DoseEvent{
		ID:            req.ID,
		SubjectID:     req.SubjectID,
		SubjectName:   req.SubjectName,
		Timestamp:     req.Timestamp,
		Taken:         req.Taken,
		SkippedReason: req.SkippedReason,
		Notes:         req.Notes,
	}
}

func (s *Server) handleListDoses(w http.ResponseWriter, r *http.Request) {
	events := s.deps.DoseEvents()
	if subjectID := r.URL.Query().Get("subject_id"); subjectID != "" {
		filtered := make([]model.DoseEvent, 0, len(events))
		for _, e := range events {
			if e.SubjectID == subjectID {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleGetDose(w http.ResponseWriter, r *http.Request) {
	e, err := s.deps.DoseEvent(chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleRecordDose(w http.ResponseWriter, r *http.Request) {
	var req doseRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	saved, err := s.deps.RecordDose(r.Context(), req.event())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleUpdateDose(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req doseRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if err := matchID(id, req.ID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	req.ID = id
	saved, err := s.deps.UpdateDose(r.Context(), req.event())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleDeleteDose(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.DeleteDose(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
