// Package memory provides map-backed repositories. They are the default storage
// and keep everything in process.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/okian/dosetrack/internal/adapters/repository"
	"github.com/okian/dosetrack/internal/domain/model"
)

// SubjectRepo is an in-memory subject repository.
type SubjectRepo struct {
	mu   sync.RWMutex
	byID map[string]model.Subject
}

// NewSubjectRepo creates a repository seeded with subjects.
func NewSubjectRepo(subjects ...model.Subject) *SubjectRepo {
	r := &SubjectRepo{byID: make(map[string]model.Subject, len(subjects))}
	for _, s := range subjects {
		r.byID[s.ID] = s
	}
	return r
}

func (r *SubjectRepo) FetchAll(_ context.Context) ([]model.Subject, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Subject, 0, len(r.byID))
	for _, s := range r.byID {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b model.Subject) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (r *SubjectRepo) FetchByID(_ context.Context, id string) (model.Subject, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	if !ok {
		return model.Subject{}, fmt.Errorf("subject %s: %w", id, repository.ErrNotFound)
	}
	return s, nil
}

func (r *SubjectRepo) Save(_ context.Context, s model.Subject) error {
	if s.ID == "" {
		return fmt.Errorf("subject id required: %w", repository.ErrInvalidEntity)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[s.ID] = s
	return nil
}

func (r *SubjectRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return fmt.Errorf("subject %s: %w", id, repository.ErrNotFound)
	}
	delete(r.byID, id)
	return nil
}

// ScheduleRepo is an in-memory schedule repository.
type ScheduleRepo struct {
	mu   sync.RWMutex
	byID map[string]model.Schedule
}

func NewScheduleRepo() *ScheduleRepo {
	return &ScheduleRepo{byID: make(map[string]model.Schedule)}
}

func (r *ScheduleRepo) FetchAll(_ context.Context) ([]model.Schedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Schedule, 0, len(r.byID))
	for _, s := range r.byID {
		out = append(out, s.Clone())
	}
	slices.SortFunc(out, func(a, b model.Schedule) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (r *ScheduleRepo) Save(_ context.Context, s model.Schedule) error {
	if s.ID == "" {
		return fmt.Errorf("schedule id required: %w", repository.ErrInvalidEntity)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[s.ID] = s.Clone()
	return nil
}

func (r *ScheduleRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return fmt.Errorf("schedule %s: %w", id, repository.ErrNotFound)
	}
	delete(r.byID, id)
	return nil
}

// DoseEventRepo is an in-memory dose event repository.
type DoseEventRepo struct {
	mu   sync.RWMutex
	byID map[string]model.DoseEvent
}

func NewDoseEventRepo() *DoseEventRepo {
	return &DoseEventRepo{byID: make(map[string]model.DoseEvent)}
}

func (r *DoseEventRepo) FetchAll(_ context.Context) ([]model.DoseEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.DoseEvent, 0, len(r.byID))
	for _, e := range r.byID {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b model.DoseEvent) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (r *DoseEventRepo) Save(_ context.Context, e model.DoseEvent) error {
	if e.ID == "" {
		return fmt.Errorf("dose event id required: %w", repository.ErrInvalidEntity)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[e.ID] = e
	return nil
}

func (r *DoseEventRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return fmt.Errorf("dose event %s: %w", id, repository.ErrNotFound)
	}
	delete(r.byID, id)
	return nil
}

// HistoryRepo is an in-memory append-only history.
type HistoryRepo struct {
	mu      sync.RWMutex
	records []model.HistoryRecord
}

func NewHistoryRepo() *HistoryRepo {
	return &HistoryRepo{}
}

func (r *HistoryRepo) Append(_ context.Context, rec model.HistoryRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func (r *HistoryRepo) DeleteBefore(_ context.Context, cutoff time.Time) (int, error) {
	return r.deleteWhere(func(rec model.HistoryRecord) bool { return rec.ScheduledTime.Before(cutoff) }), nil
}

func (r *HistoryRepo) DeleteSubject(_ context.Context, subjectID string) (int, error) {
	return r.deleteWhere(func(rec model.HistoryRecord) bool { return rec.SubjectID == subjectID }), nil
}

func (r *HistoryRepo) deleteWhere(match func(model.HistoryRecord) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	before := len(r.records)
	r.records = slices.DeleteFunc(r.records, match)
	return before - len(r.records)
}

func (r *HistoryRepo) FetchAll(_ context.Context) ([]model.HistoryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := slices.Clone(r.records)
	slices.SortStableFunc(out, func(a, b model.HistoryRecord) int {
		return a.ScheduledTime.Compare(b.ScheduledTime)
	})
	return out, nil
}

var (
	_ repository.SubjectRepository   = (*SubjectRepo)(nil)
	_ repository.SubjectWriter       = (*SubjectRepo)(nil)
	_ repository.ScheduleRepository  = (*ScheduleRepo)(nil)
	_ repository.DoseEventRepository = (*DoseEventRepo)(nil)
	_ repository.HistoryRepository   = (*HistoryRepo)(nil)
)
