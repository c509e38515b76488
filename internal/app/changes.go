package service

import "context"

// ChangeKind names what a mutation did.
type ChangeKind string

const (
	ChangeScheduleSaved   ChangeKind = "schedule_saved"
	ChangeScheduleDeleted ChangeKind = "schedule_deleted"
	ChangeDoseSaved       ChangeKind = "dose_saved"
	ChangeDoseDeleted     ChangeKind = "dose_deleted"
	ChangeSubjectUpdated  ChangeKind = "subject_updated"
	ChangeSubjectDeleted  ChangeKind = "subject_deleted"
	ChangeReloaded        ChangeKind = "reloaded"
)

// Change is delivered to listeners after a mutation commits.
type Change struct {
	Kind      ChangeKind `json:"kind"`
	SubjectID string     `json:"subject_id,omitempty"`
	EntityID  string     `json:"entity_id,omitempty"`
}

// Listener receives changes in commit order. Listeners run synchronously under the
// mutation lock and must not call mutating Service methods.
type Listener func(ctx context.Context, c Change)

// Subscribe registers l for every later change.
func (s *Service) Subscribe(l Listener) {
	if l == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// notify must be called with s.mu held.
func (s *Service) notify(ctx context.Context, changes []Change) {
	for _, c := range changes {
		for _, l := range s.listeners {
			l(ctx, c)
		}
	}
}
