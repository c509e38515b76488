package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/okian/dosetrack/internal/adapters/repository"
	"github.com/okian/dosetrack/internal/domain/model"
	"github.com/okian/dosetrack/internal/domain/schedule"
	"github.com/okian/dosetrack/pkg/logger"
	"github.com/okian/dosetrack/pkg/metrics"
)

// mutation persists a change and returns the snapshot to publish. It runs with
// s.mu held and must not touch s.snap itself.
type mutation func(ctx context.Context, cur *state) (*state, []Change, error)

// apply is the single mutation pipeline: the step validates, normalizes and
// persists, then the result is committed, views are recomputed and listeners run.
// On error nothing is committed.
func (s *Service) apply(ctx context.Context, op string, step mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, changes, err := step(ctx, s.snap.Load())
	if err != nil {
		metrics.RecordMutation(op, "error")
		s.logger.Debug(ctx, "mutation rejected", logger.String("op", op), logger.Error(err))
		return err
	}
	s.commit(next)
	metrics.RecordMutation(op, "ok")
	s.notify(ctx, changes)
	return nil
}

// AddSchedule normalizes and stores a new schedule. An empty id is replaced by a
// UUID, an empty subject name is filled from the subject repository and a zero
// start date becomes today.
func (s *Service) AddSchedule(ctx context.Context, sc model.Schedule) (model.Schedule, error) {
	var saved model.Schedule
	err := s.apply(ctx, "add_schedule", func(ctx context.Context, cur *state) (*state, []Change, error) {
		if sc.ID == "" {
			sc.ID = uuid.NewString()
		} else if _, ok := cur.schedule(sc.ID); ok {
			return nil, nil, fmt.Errorf("schedule %s: %w", sc.ID, ErrAlreadyExists)
		}
		next, norm, err := s.prepareSchedule(ctx, cur, sc)
		if err != nil {
			return nil, nil, err
		}
		if err := s.schedules.Save(ctx, norm); err != nil {
			return nil, nil, s.repoErr("schedule", "save", err)
		}
		saved = norm
		return next.withSchedule(norm), []Change{{Kind: ChangeScheduleSaved, SubjectID: norm.SubjectID, EntityID: norm.ID}}, nil
	})
	return saved, err
}

// UpdateSchedule replaces an existing schedule by id.
func (s *Service) UpdateSchedule(ctx context.Context, sc model.Schedule) (model.Schedule, error) {
	var saved model.Schedule
	err := s.apply(ctx, "update_schedule", func(ctx context.Context, cur *state) (*state, []Change, error) {
		old, ok := cur.schedule(sc.ID)
		if !ok {
			return nil, nil, fmt.Errorf("schedule %s: %w", sc.ID, ErrNotFound)
		}
		if sc.SubjectID == "" {
			sc.SubjectID = old.SubjectID
		}
		if sc.SubjectName == "" && sc.SubjectID == old.SubjectID {
			sc.SubjectName = old.SubjectName
		}
		if sc.StartDate.IsZero() {
			sc.StartDate = old.StartDate
		}
		next, norm, err := s.prepareSchedule(ctx, cur, sc)
		if err != nil {
			return nil, nil, err
		}
		if err := s.schedules.Save(ctx, norm); err != nil {
			return nil, nil, s.repoErr("schedule", "save", err)
		}
		saved = norm
		return next.withSchedule(norm), []Change{{Kind: ChangeScheduleSaved, SubjectID: norm.SubjectID, EntityID: norm.ID}}, nil
	})
	return saved, err
}

// prepareSchedule validates and normalizes sc. The returned state may carry a
// subject registered on the way.
func (s *Service) prepareSchedule(ctx context.Context, cur *state, sc model.Schedule) (*state, model.Schedule, error) {
	if sc.SubjectID == "" {
		return nil, model.Schedule{}, fmt.Errorf("%w: %w", ErrInvalidInput, model.ErrMissingSubject)
	}

	norm, changed := sc.Normalize()
	if norm.StartDate.IsZero() {
		norm.StartDate = s.today()
		changed = true
	}
	if changed {
		metrics.RecordNormalization()
		s.logger.Debug(ctx, "schedule normalized",
			logger.String("scheduleID", norm.ID),
			logger.String("subjectID", norm.SubjectID),
			logger.Any("validation", sc.Validate()),
		)
	}

	next, err := s.ensureSubject(ctx, cur, norm.SubjectID, norm.SubjectName)
	if err != nil {
		return nil, model.Schedule{}, err
	}
	if norm.SubjectName == "" {
		norm.SubjectName = next.subjects[norm.SubjectID].Name
	}
	return next, norm, nil
}

// ensureSubject makes sure the snapshot knows subjectID. Unknown subjects are
// looked up in the repository and, when the repository accepts writes, registered
// with name. Otherwise the subject stays unknown and its slots are dropped from views.
func (s *Service) ensureSubject(ctx context.Context, cur *state, subjectID, name string) (*state, error) {
	if _, ok := cur.subjects[subjectID]; ok {
		return cur, nil
	}
	sub, err := s.subjects.FetchByID(ctx, subjectID)
	switch {
	case err == nil:
		return cur.withSubject(sub), nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, s.repoErr("subject", "fetch", err)
	}

	w, ok := s.subjects.(repository.SubjectWriter)
	if !ok {
		s.logger.Warn(ctx, "unknown subject", logger.String("subjectID", subjectID))
		return cur, nil
	}
	sub = model.Subject{ID: subjectID, Name: name}
	if err := w.Save(ctx, sub); err != nil {
		return nil, s.repoErr("subject", "save", err)
	}
	return cur.withSubject(sub), nil
}

// DeleteSchedule removes a schedule and every dose event of its subject.
func (s *Service) DeleteSchedule(ctx context.Context, id string) error {
	return s.apply(ctx, "delete_schedule", func(ctx context.Context, cur *state) (*state, []Change, error) {
		sc, ok := cur.schedule(id)
		if !ok {
			return nil, nil, fmt.Errorf("schedule %s: %w", id, ErrNotFound)
		}
		if err := s.schedules.Delete(ctx, id); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, nil, s.repoErr("schedule", "delete", err)
		}

		changes := []Change{{Kind: ChangeScheduleDeleted, SubjectID: sc.SubjectID, EntityID: id}}
		for _, e := range cur.subjectEvents(sc.SubjectID) {
			if err := s.doses.Delete(ctx, e.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
				s.reloadAfterPartialCascade(ctx, "delete_schedule")
				return nil, nil, s.repoErr("dose", "delete", err)
			}
			changes = append(changes, Change{Kind: ChangeDoseDeleted, SubjectID: sc.SubjectID, EntityID: e.ID})
		}

		next := cur.withoutSchedule(id).withoutEvents(func(e model.DoseEvent) bool { return e.SubjectID == sc.SubjectID })
		return next, changes, nil
	})
}

// RecordDose stores a new dose event and appends it to history. An empty id gets a
// UUID and a zero timestamp becomes now.
func (s *Service) RecordDose(ctx context.Context, e model.DoseEvent) (model.DoseEvent, error) {
	var saved model.DoseEvent
	err := s.apply(ctx, "record_dose", func(ctx context.Context, cur *state) (*state, []Change, error) {
		if e.SubjectID == "" {
			return nil, nil, fmt.Errorf("%w: %w", ErrInvalidInput, model.ErrMissingSubject)
		}
		if e.ID == "" {
			e.ID = uuid.NewString()
		} else if _, ok := cur.event(e.ID); ok {
			return nil, nil, fmt.Errorf("dose %s: %w", e.ID, ErrAlreadyExists)
		}
		if e.Timestamp.IsZero() {
			e.Timestamp = s.now()
		}
		next, err := s.ensureSubject(ctx, cur, e.SubjectID, e.SubjectName)
		if err != nil {
			return nil, nil, err
		}
		if e.SubjectName == "" {
			e.SubjectName = next.subjects[e.SubjectID].Name
		}

		if err := s.doses.Save(ctx, e); err != nil {
			return nil, nil, s.repoErr("dose", "save", err)
		}
		metrics.RecordDose(string(e.Status()))
		s.appendHistory(ctx, s.historyFor(next, e))

		saved = e
		return next.withEvent(e), []Change{{Kind: ChangeDoseSaved, SubjectID: e.SubjectID, EntityID: e.ID}}, nil
	})
	return saved, err
}

// historyFor builds the history record of a freshly recorded dose. The scheduled
// time is the nearest due slot within tolerance, or the dose time itself.
func (s *Service) historyFor(st *state, e model.DoseEvent) model.HistoryRecord {
	scheduled := e.Timestamp
	day := model.DateOf(e.Timestamp.In(s.loc))
	best := s.tolerance + 1
	for d := -1; d <= 1; d++ {
		for _, slot := range schedule.SlotsOnDay(st.schedules, e.SubjectID, day.AddDays(d), s.loc) {
			diff := slot.ScheduledTime.Sub(e.Timestamp)
			if diff < 0 {
				diff = -diff
			}
			if diff <= s.tolerance && diff < best {
				best, scheduled = diff, slot.ScheduledTime
			}
		}
	}
	return model.HistoryRecord{
		ID:            uuid.NewString(),
		SubjectID:     e.SubjectID,
		SubjectName:   e.SubjectName,
		ScheduledTime: scheduled,
		RecordedTime:  s.now(),
		Status:        e.Status(),
		Notes:         e.Notes,
	}
}

// appendHistory is best effort: the dose itself is already persisted.
func (s *Service) appendHistory(ctx context.Context, rec model.HistoryRecord) {
	if err := s.history.Append(ctx, rec); err != nil {
		metrics.RecordRepositoryError("history", "append")
		s.logger.Error(ctx, "history append failed",
			logger.String("subjectID", rec.SubjectID),
			logger.Time("scheduledTime", rec.ScheduledTime),
			logger.Error(err),
		)
		return
	}
	metrics.RecordHistoryAppended()
}

// UpdateDose replaces an existing dose event by id. History is not rewritten.
func (s *Service) UpdateDose(ctx context.Context, e model.DoseEvent) (model.DoseEvent, error) {
	var saved model.DoseEvent
	err := s.apply(ctx, "update_dose", func(ctx context.Context, cur *state) (*state, []Change, error) {
		old, ok := cur.event(e.ID)
		if !ok {
			return nil, nil, fmt.Errorf("dose %s: %w", e.ID, ErrNotFound)
		}
		if e.SubjectID == "" {
			e.SubjectID = old.SubjectID
		}
		if e.SubjectName == "" && e.SubjectID == old.SubjectID {
			e.SubjectName = old.SubjectName
		}
		if e.Timestamp.IsZero() {
			e.Timestamp = old.Timestamp
		}
		next, err := s.ensureSubject(ctx, cur, e.SubjectID, e.SubjectName)
		if err != nil {
			return nil, nil, err
		}
		if e.SubjectName == "" {
			e.SubjectName = next.subjects[e.SubjectID].Name
		}
		if err := s.doses.Save(ctx, e); err != nil {
			return nil, nil, s.repoErr("dose", "save", err)
		}
		saved = e
		return next.withEvent(e), []Change{{Kind: ChangeDoseSaved, SubjectID: e.SubjectID, EntityID: e.ID}}, nil
	})
	return saved, err
}

// DeleteDose removes a dose event by id.
func (s *Service) DeleteDose(ctx context.Context, id string) error {
	return s.apply(ctx, "delete_dose", func(ctx context.Context, cur *state) (*state, []Change, error) {
		e, ok := cur.event(id)
		if !ok {
			return nil, nil, fmt.Errorf("dose %s: %w", id, ErrNotFound)
		}
		if err := s.doses.Delete(ctx, id); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, nil, s.repoErr("dose", "delete", err)
		}
		next := cur.withoutEvents(func(x model.DoseEvent) bool { return x.ID == id })
		return next, []Change{{Kind: ChangeDoseDeleted, SubjectID: e.SubjectID, EntityID: id}}, nil
	})
}

// OnSubjectDeleted cascades a subject removal to its schedules, dose events and
// history.
func (s *Service) OnSubjectDeleted(ctx context.Context, subjectID string) error {
	return s.apply(ctx, "delete_subject", func(ctx context.Context, cur *state) (*state, []Change, error) {
		changes, err := s.cascadeSubject(ctx, cur, subjectID)
		if err != nil {
			s.reloadAfterPartialCascade(ctx, "delete_subject")
			return nil, nil, err
		}
		return cur.withoutSubject(subjectID), changes, nil
	})
}

// OnAllSubjectsDeleted cascades the removal of every subject.
func (s *Service) OnAllSubjectsDeleted(ctx context.Context) error {
	return s.apply(ctx, "delete_all_subjects", func(ctx context.Context, cur *state) (*state, []Change, error) {
		ids := cur.subjectIDs()
		records, err := s.history.FetchAll(ctx)
		if err != nil {
			return nil, nil, s.repoErr("history", "fetch_all", err)
		}
		seen := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			seen[id] = struct{}{}
		}
		for _, r := range records {
			if _, ok := seen[r.SubjectID]; !ok {
				seen[r.SubjectID] = struct{}{}
				ids = append(ids, r.SubjectID)
			}
		}

		var changes []Change
		for _, id := range ids {
			c, err := s.cascadeSubject(ctx, cur, id)
			if err != nil {
				s.reloadAfterPartialCascade(ctx, "delete_all_subjects")
				return nil, nil, err
			}
			changes = append(changes, c...)
		}
		return emptyState(), changes, nil
	})
}

// cascadeSubject deletes everything stored for subjectID. Entities already gone
// from storage are skipped.
func (s *Service) cascadeSubject(ctx context.Context, cur *state, subjectID string) ([]Change, error) {
	var changes []Change
	for _, sc := range cur.subjectSchedules(subjectID) {
		if err := s.schedules.Delete(ctx, sc.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, s.repoErr("schedule", "delete", err)
		}
		changes = append(changes, Change{Kind: ChangeScheduleDeleted, SubjectID: subjectID, EntityID: sc.ID})
	}
	for _, e := range cur.subjectEvents(subjectID) {
		if err := s.doses.Delete(ctx, e.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, s.repoErr("dose", "delete", err)
		}
		changes = append(changes, Change{Kind: ChangeDoseDeleted, SubjectID: subjectID, EntityID: e.ID})
	}
	n, err := s.history.DeleteSubject(ctx, subjectID)
	if err != nil {
		return nil, s.repoErr("history", "delete_subject", err)
	}
	s.deduper.ForgetSubject(ctx, subjectID)

	s.logger.Info(ctx, "subject cascade deleted",
		logger.String("subjectID", subjectID),
		logger.Int("schedules", len(cur.subjectSchedules(subjectID))),
		logger.Int("doseEvents", len(cur.subjectEvents(subjectID))),
		logger.Int("historyRecords", n),
	)
	return append(changes, Change{Kind: ChangeSubjectDeleted, SubjectID: subjectID, EntityID: subjectID}), nil
}

// OnSubjectUpdated refreshes a subject's display name on its schedules. Dose events
// keep the name they were recorded with.
func (s *Service) OnSubjectUpdated(ctx context.Context, subjectID string) error {
	return s.apply(ctx, "update_subject", func(ctx context.Context, cur *state) (*state, []Change, error) {
		sub, err := s.subjects.FetchByID(ctx, subjectID)
		if err != nil {
			return nil, nil, s.repoErr("subject", "fetch", err)
		}
		next := cur.withSubject(sub)
		for _, sc := range cur.subjectSchedules(subjectID) {
			if sc.SubjectName == sub.Name {
				continue
			}
			sc = sc.Clone()
			sc.SubjectName = sub.Name
			if err := s.schedules.Save(ctx, sc); err != nil {
				s.reloadAfterPartialCascade(ctx, "update_subject")
				return nil, nil, s.repoErr("schedule", "save", err)
			}
			next = next.withSchedule(sc)
		}
		return next, []Change{{Kind: ChangeSubjectUpdated, SubjectID: subjectID, EntityID: subjectID}}, nil
	})
}

// reloadAfterPartialCascade queues a full reload so memory converges with storage
// after a cascade stopped half way.
func (s *Service) reloadAfterPartialCascade(ctx context.Context, op string) {
	if _, err := s.SubmitReload(ctx); err != nil {
		s.logger.Warn(ctx, "could not queue reload after partial cascade",
			logger.String("op", op),
			logger.Error(err),
		)
		return
	}
	s.logger.Warn(ctx, "partial cascade, reload queued", logger.String("op", op))
}
