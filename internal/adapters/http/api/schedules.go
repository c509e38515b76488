package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/dosetrack/internal/domain/model"
)

// scheduleRequest is the body of POST /schedules and PUT /schedules/{id}.
type scheduleRequest struct {
	ID          string            `json:"id" validate:"omitempty,max=128"`
	SubjectID   string            `json:"subject_id" validate:"required,max=128"`
	SubjectName string            `json:"subject_name" validate:"max=256"`
	Frequency   model.Frequency   `json:"frequency"`
	TimesOfDay  []model.TimeOfDay `json:"times_of_day"`
	Active      *bool             `json:"active"`
	StartDate   model.Date        `json:"start_date"`
	EndDate     model.Date        `json:"end_date"`
	Notes       string            `json:"notes" validate:"max=1024"`
}

// schedule converts the request. Active defaults to true when omitted.
func (req scheduleRequest) schedule() model.Schedule {
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return model.Schedule{
		ID:          req.ID,
		SubjectID:   req.SubjectID,
		SubjectName: req.SubjectName,
		Frequency:   req.Frequency,
		TimesOfDay:  req.TimesOfDay,
		Active:      active,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Notes:       req.Notes,
	}
}

func (s *Server) handleListSchedules(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Schedules())
}

func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	sc, err := s.deps.Schedule(chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

func (s *Server) handleAddSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	saved, err := s.deps.AddSchedule(r.Context(), req.schedule())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req scheduleRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if err := matchID(id, req.ID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	req.ID = id
	saved, err := s.deps.UpdateSchedule(r.Context(), req.schedule())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.DeleteSchedule(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
