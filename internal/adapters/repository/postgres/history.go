package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/okian/dosetrack/internal/adapters/repository"
	"github.com/okian/dosetrack/internal/domain/model"
)

// HistoryRepo stores the append-only dose history.
type HistoryRepo struct {
	db *sql.DB
}

func NewHistoryRepo(db *sql.DB) *HistoryRepo {
	return &HistoryRepo{db: db}
}

func (r *HistoryRepo) Append(ctx context.Context, rec model.HistoryRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO dose_history (id, subject_id, subject_name, scheduled_time, recorded_time, status, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, rec.ID, rec.SubjectID, rec.SubjectName, rec.ScheduledTime, rec.RecordedTime, string(rec.Status), rec.Notes)
	return MapError(err)
}

func (r *HistoryRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	return r.exec(ctx, `DELETE FROM dose_history WHERE scheduled_time < $1`, cutoff)
}

func (r *HistoryRepo) DeleteSubject(ctx context.Context, subjectID string) (int, error) {
	return r.exec(ctx, `DELETE FROM dose_history WHERE subject_id = $1`, subjectID)
}

func (r *HistoryRepo) exec(ctx context.Context, query string, arg any) (int, error) {
	res, err := r.db.ExecContext(ctx, query, arg)
	if err != nil {
		return 0, MapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, MapError(err)
	}
	return int(n), nil
}

func (r *HistoryRepo) FetchAll(ctx context.Context) ([]model.HistoryRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, subject_id, subject_name, scheduled_time, recorded_time, status, notes
		FROM dose_history
		ORDER BY scheduled_time, id
	`)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.HistoryRecord
	for rows.Next() {
		var (
			rec    model.HistoryRecord
			status string
		)
		if err := rows.Scan(&rec.ID, &rec.SubjectID, &rec.SubjectName, &rec.ScheduledTime, &rec.RecordedTime, &status, &rec.Notes); err != nil {
			return nil, MapError(err)
		}
		rec.Status = model.Status(status)
		out = append(out, rec)
	}
	return out, MapError(rows.Err())
}

var _ repository.HistoryRepository = (*HistoryRepo)(nil)
