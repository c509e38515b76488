package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type rateResponse struct {
	SubjectID  string  `json:"subject_id"`
	WindowDays int     `json:"window_days"`
	Rate       float64 `json:"rate"`
}

type streakResponse struct {
	SubjectID string `json:"subject_id"`
	Streak    int    `json:"streak"`
}

func (s *Server) handleToday(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.TodayDueSlots(r.Context()))
}

// handleUpcoming handles GET /upcoming?limit=N. A missing or zero limit uses
// the configured default.
func (s *Server) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", 0)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.UpcomingDueSlots(r.Context(), limit))
}

func (s *Server) handleAdherence(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	window, err := intQuery(r, "window", DefaultWindowDays)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	rate, err := s.deps.AdherenceRate(r.Context(), id, window)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rateResponse{SubjectID: id, WindowDays: window, Rate: rate})
}

func (s *Server) handleStreak(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	streak, err := s.deps.CurrentStreak(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, streakResponse{SubjectID: id, Streak: streak})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	window, err := intQuery(r, "window", DefaultWindowDays)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	report, err := s.deps.AdherenceReport(r.Context(), id, window)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
