package postgres

import (
	"context"
	"database/sql"

	"github.com/okian/dosetrack/internal/adapters/repository"
	"github.com/okian/dosetrack/internal/domain/model"
)

// DoseEventRepo stores recorded dose events.
type DoseEventRepo struct {
	db *sql.DB
}

func NewDoseEventRepo(db *sql.DB) *DoseEventRepo {
	return &DoseEventRepo{db: db}
}

func (r *DoseEventRepo) FetchAll(ctx context.Context) ([]model.DoseEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, subject_id, subject_name, taken_at, taken, skipped_reason, notes
		FROM dose_events
		ORDER BY taken_at, id
	`)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.DoseEvent
	for rows.Next() {
		var e model.DoseEvent
		if err := rows.Scan(&e.ID, &e.SubjectID, &e.SubjectName, &e.Timestamp, &e.Taken, &e.SkippedReason, &e.Notes); err != nil {
			return nil, MapError(err)
		}
		out = append(out, e)
	}
	return out, MapError(rows.Err())
}

func (r *DoseEventRepo) Save(ctx context.Context, e model.DoseEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO dose_events (id, subject_id, subject_name, taken_at, taken, skipped_reason, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO UPDATE SET
			subject_id = EXCLUDED.subject_id,
			subject_name = EXCLUDED.subject_name,
			taken_at = EXCLUDED.taken_at,
			taken = EXCLUDED.taken,
			skipped_reason = EXCLUDED.skipped_reason,
			notes = EXCLUDED.notes
	`, e.ID, e.SubjectID, e.SubjectName, e.Timestamp, e.Taken, e.SkippedReason, e.Notes)
	return MapError(err)
}

func (r *DoseEventRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM dose_events WHERE id = $1`, id)
	if err != nil {
		return MapError(err)
	}
	return checkRowsAffected(res, "dose event", id)
}

var _ repository.DoseEventRepository = (*DoseEventRepo)(nil)
