package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/okian/dosetrack/internal/adapters/repository"
	"github.com/okian/dosetrack/internal/domain/model"
)

// ScheduleRepo stores schedule definitions. Times of day and weekdays are kept
// as comma-joined text.
type ScheduleRepo struct {
	db *sql.DB
}

func NewScheduleRepo(db *sql.DB) *ScheduleRepo {
	return &ScheduleRepo{db: db}
}

func (r *ScheduleRepo) FetchAll(ctx context.Context) ([]model.Schedule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, subject_id, subject_name, kind, days_of_week, interval_days,
		       times_of_day, active, start_date, end_date, notes
		FROM schedules
		ORDER BY id
	`)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Schedule
	for rows.Next() {
		var (
			s           model.Schedule
			kind        string
			days, times string
			start, end  sql.NullTime
		)
		if err := rows.Scan(
			&s.ID, &s.SubjectID, &s.SubjectName, &kind, &days, &s.Frequency.IntervalDays,
			&times, &s.Active, &start, &end, &s.Notes,
		); err != nil {
			return nil, MapError(err)
		}
		s.Frequency.Kind = model.FrequencyKind(kind)
		if s.Frequency.DaysOfWeek, err = decodeDays(days); err != nil {
			return nil, fmt.Errorf("schedule %s: %w", s.ID, err)
		}
		if s.TimesOfDay, err = decodeTimes(times); err != nil {
			return nil, fmt.Errorf("schedule %s: %w", s.ID, err)
		}
		s.StartDate = dateFromColumn(start)
		s.EndDate = dateFromColumn(end)
		out = append(out, s)
	}
	return out, MapError(rows.Err())
}

func (r *ScheduleRepo) Save(ctx context.Context, s model.Schedule) error {
	start := dateValue(s.StartDate)
	if !start.Valid {
		return fmt.Errorf("schedule %s start date required: %w", s.ID, repository.ErrInvalidEntity)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO schedules (
			id, subject_id, subject_name, kind, days_of_week, interval_days,
			times_of_day, active, start_date, end_date, notes
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (id) DO UPDATE SET
			subject_id = EXCLUDED.subject_id,
			subject_name = EXCLUDED.subject_name,
			kind = EXCLUDED.kind,
			days_of_week = EXCLUDED.days_of_week,
			interval_days = EXCLUDED.interval_days,
			times_of_day = EXCLUDED.times_of_day,
			active = EXCLUDED.active,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			notes = EXCLUDED.notes
	`,
		s.ID,
		s.SubjectID,
		s.SubjectName,
		string(s.Frequency.Kind),
		encodeDays(s.Frequency.DaysOfWeek),
		s.Frequency.IntervalDays,
		encodeTimes(s.TimesOfDay),
		s.Active,
		start,
		dateValue(s.EndDate),
		s.Notes,
	)
	return MapError(err)
}

func (r *ScheduleRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return MapError(err)
	}
	return checkRowsAffected(res, "schedule", id)
}

var _ repository.ScheduleRepository = (*ScheduleRepo)(nil)
