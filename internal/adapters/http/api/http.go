// Package api exposes the dose tracking core over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/okian/dosetrack/internal/adapters/repository"
	service "github.com/okian/dosetrack/internal/app"
	"github.com/okian/dosetrack/internal/domain/adherence"
	"github.com/okian/dosetrack/internal/domain/model"
	"github.com/okian/dosetrack/pkg/logger"
)

// Dependencies is the slice of the tracking core the handlers need.
type Dependencies interface {
	Schedules() []model.Schedule
	Schedule(id string) (model.Schedule, error)
	AddSchedule(ctx context.Context, s model.Schedule) (model.Schedule, error)
	UpdateSchedule(ctx context.Context, s model.Schedule) (model.Schedule, error)
	DeleteSchedule(ctx context.Context, id string) error

	DoseEvents() []model.DoseEvent
	DoseEvent(id string) (model.DoseEvent, error)
	RecordDose(ctx context.Context, e model.DoseEvent) (model.DoseEvent, error)
	UpdateDose(ctx context.Context, e model.DoseEvent) (model.DoseEvent, error)
	DeleteDose(ctx context.Context, id string) error

	Subjects() []model.Subject
	SubjectRepository() repository.SubjectRepository
	OnSubjectUpdated(ctx context.Context, subjectID string) error
	OnSubjectDeleted(ctx context.Context, subjectID string) error
	OnAllSubjectsDeleted(ctx context.Context) error

	TodayDueSlots(ctx context.Context) []service.SlotView
	UpcomingDueSlots(ctx context.Context, limit int) []service.UpcomingSlot
	AdherenceRate(ctx context.Context, subjectID string, windowDays int) (float64, error)
	CurrentStreak(ctx context.Context, subjectID string) (int, error)
	AdherenceReport(ctx context.Context, subjectID string, windowDays int) (adherence.Report, error)
}

// DefaultWindowDays is used by the adherence endpoints when no window is given.
const DefaultWindowDays = 30

// Server wires HTTP routes for the tracking API.
type Server struct {
	deps          Dependencies
	validate      *validator.Validate
	log           logger.Logger
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		deps:          deps,
		validate:      validator.New(),
		log:           logger.Get().Named("http"),
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(statsProvider),
	}
}

// Handler returns a router with the standard middleware stack and every route.
// Callers may mount further routes on it.
func (s *Server) Handler() *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(MetricsMiddleware)
	s.Register(r)
	return r
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(r chi.Router) {
	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Get("/stats", s.statsHandler.HandleStats)

	r.Get("/today", s.handleToday)
	r.Get("/upcoming", s.handleUpcoming)

	r.Route("/schedules", func(sr chi.Router) {
		sr.Get("/", s.handleListSchedules)
		sr.Post("/", s.handleAddSchedule)
		sr.Get("/{id}", s.handleGetSchedule)
		sr.Put("/{id}", s.handleUpdateSchedule)
		sr.Delete("/{id}", s.handleDeleteSchedule)
	})

	r.Route("/doses", func(dr chi.Router) {
		dr.Get("/", s.handleListDoses)
		dr.Post("/", s.handleRecordDose)
		dr.Get("/{id}", s.handleGetDose)
		dr.Put("/{id}", s.handleUpdateDose)
		dr.Delete("/{id}", s.handleDeleteDose)
	})

	r.Route("/subjects", func(sr chi.Router) {
		sr.Get("/", s.handleListSubjects)
		sr.Delete("/", s.handleDeleteAllSubjects)
		sr.Put("/{id}", s.handleUpdateSubject)
		sr.Delete("/{id}", s.handleDeleteSubject)
		sr.Get("/{id}/adherence", s.handleAdherence)
		sr.Get("/{id}/streak", s.handleStreak)
		sr.Get("/{id}/report", s.handleReport)
	})
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError maps core errors onto HTTP statuses.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.log.Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.String("request_id", chimw.GetReqID(r.Context())),
			logger.Error(err))
	}
	writeError(w, status, code, err)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrNotFound), errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, ErrBadRequest),
		errors.Is(err, ErrInvalidQueryParam), errors.Is(err, ErrMismatchedEntityID):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrSubjectsReadOnly):
		return http.StatusMethodNotAllowed, "read_only"
	case errors.Is(err, service.ErrAlreadyExists), errors.Is(err, repository.ErrDuplicate):
		return http.StatusConflict, "conflict"
	case errors.Is(err, adherence.ErrCancelled):
		return http.StatusServiceUnavailable, "cancelled"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
