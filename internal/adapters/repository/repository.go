// Package repository defines the storage contracts the tracking core consumes.
//
// Every method takes a context first. Save is an upsert keyed by ID. Delete of an
// unknown id returns ErrNotFound.
package repository

import (
	"context"
	"time"

	"github.com/okian/dosetrack/internal/domain/model"
)

// SubjectRepository resolves display data and existence of subjects.
type SubjectRepository interface {
	FetchAll(ctx context.Context) ([]model.Subject, error)
	// FetchByID returns ErrNotFound if the subject is unknown.
	FetchByID(ctx context.Context, id string) (model.Subject, error)
}

// SubjectWriter is implemented by subject repositories that accept writes.
// The core never requires it; the HTTP surface uses it when available.
type SubjectWriter interface {
	Save(ctx context.Context, s model.Subject) error
	Delete(ctx context.Context, id string) error
}

// ScheduleRepository persists schedule definitions.
type ScheduleRepository interface {
	FetchAll(ctx context.Context) ([]model.Schedule, error)
	Save(ctx context.Context, s model.Schedule) error
	Delete(ctx context.Context, id string) error
}

// DoseEventRepository persists recorded dose events.
type DoseEventRepository interface {
	FetchAll(ctx context.Context) ([]model.DoseEvent, error)
	Save(ctx context.Context, e model.DoseEvent) error
	Delete(ctx context.Context, id string) error
}

// HistoryRepository is the append-only dose history.
type HistoryRepository interface {
	Append(ctx context.Context, r model.HistoryRecord) error
	// DeleteBefore removes records scheduled strictly before cutoff and returns the count.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int, error)
	// DeleteSubject removes every record of a subject and returns the count.
	DeleteSubject(ctx context.Context, subjectID string) (int, error)
	FetchAll(ctx context.Context) ([]model.HistoryRecord, error)
}
