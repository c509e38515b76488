package service

import (
	"cmp"
	"maps"
	"slices"

	"github.com/okian/dosetrack/internal/domain/model"
)

// state is an immutable snapshot. Every change builds a new value; readers load the
// current pointer and never see a partial mutation.
type state struct {
	schedules []model.Schedule  // ordered by id
	events    []model.DoseEvent // ordered by timestamp, then id
	subjects  map[string]model.Subject
	today     todayView
}

// todayView caches the evaluated slots of one calendar day. Statuses are derived
// at read time because they depend on the current instant.
type todayView struct {
	day     model.Date
	slots   []model.DueSlot
	dropped int
}

func emptyState() *state {
	return &state{subjects: map[string]model.Subject{}}
}

func newState(schedules []model.Schedule, events []model.DoseEvent, subjects []model.Subject) *state {
	st := &state{
		schedules: slices.Clone(schedules),
		events:    slices.Clone(events),
		subjects:  make(map[string]model.Subject, len(subjects)),
	}
	for _, sub := range subjects {
		st.subjects[sub.ID] = sub
	}
	sortSchedules(st.schedules)
	sortEvents(st.events)
	return st
}

// clone copies the collections so the result can be modified freely.
func (st *state) clone() *state {
	return &state{
		schedules: slices.Clone(st.schedules),
		events:    slices.Clone(st.events),
		subjects:  maps.Clone(st.subjects),
	}
}

func (st *state) schedule(id string) (model.Schedule, bool) {
	i, ok := slices.BinarySearchFunc(st.schedules, id, func(s model.Schedule, id string) int {
		return cmp.Compare(s.ID, id)
	})
	if !ok {
		return model.Schedule{}, false
	}
	return st.schedules[i], true
}

func (st *state) event(id string) (model.DoseEvent, bool) {
	for _, e := range st.events {
		if e.ID == id {
			return e, true
		}
	}
	return model.DoseEvent{}, false
}

func (st *state) withSchedule(s model.Schedule) *state {
	next := st.clone()
	next.schedules = slices.DeleteFunc(next.schedules, func(x model.Schedule) bool { return x.ID == s.ID })
	next.schedules = append(next.schedules, s.Clone())
	sortSchedules(next.schedules)
	return next
}

func (st *state) withoutSchedule(id string) *state {
	next := st.clone()
	next.schedules = slices.DeleteFunc(next.schedules, func(x model.Schedule) bool { return x.ID == id })
	return next
}

func (st *state) withEvent(e model.DoseEvent) *state {
	next := st.clone()
	next.events = slices.DeleteFunc(next.events, func(x model.DoseEvent) bool { return x.ID == e.ID })
	next.events = append(next.events, e)
	sortEvents(next.events)
	return next
}

func (st *state) withoutEvents(drop func(model.DoseEvent) bool) *state {
	next := st.clone()
	next.events = slices.DeleteFunc(next.events, drop)
	return next
}

func (st *state) withSubject(sub model.Subject) *state {
	next := st.clone()
	next.subjects[sub.ID] = sub
	return next
}

func (st *state) withoutSubject(id string) *state {
	next := st.clone()
	next.schedules = slices.DeleteFunc(next.schedules, func(x model.Schedule) bool { return x.SubjectID == id })
	next.events = slices.DeleteFunc(next.events, func(x model.DoseEvent) bool { return x.SubjectID == id })
	delete(next.subjects, id)
	return next
}

func (st *state) subjectSchedules(id string) []model.Schedule {
	var out []model.Schedule
	for _, s := range st.schedules {
		if s.SubjectID == id {
			out = append(out, s)
		}
	}
	return out
}

func (st *state) subjectEvents(id string) []model.DoseEvent {
	var out []model.DoseEvent
	for _, e := range st.events {
		if e.SubjectID == id {
			out = append(out, e)
		}
	}
	return out
}

// subjectIDs returns every subject id referenced by the snapshot.
func (st *state) subjectIDs() []string {
	seen := make(map[string]struct{}, len(st.subjects))
	for id := range st.subjects {
		seen[id] = struct{}{}
	}
	for _, s := range st.schedules {
		seen[s.SubjectID] = struct{}{}
	}
	for _, e := range st.events {
		seen[e.SubjectID] = struct{}{}
	}
	return slices.Sorted(maps.Keys(seen))
}

func sortSchedules(v []model.Schedule) {
	slices.SortFunc(v, func(a, b model.Schedule) int { return cmp.Compare(a.ID, b.ID) })
}

func sortEvents(v []model.DoseEvent) {
	slices.SortFunc(v, func(a, b model.DoseEvent) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
