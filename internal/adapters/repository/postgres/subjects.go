package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/okian/dosetrack/internal/adapters/repository"
	"github.com/okian/dosetrack/internal/domain/model"
)

// SubjectRepo stores subjects in the subjects table.
type SubjectRepo struct {
	db *sql.DB
}

func NewSubjectRepo(db *sql.DB) *SubjectRepo {
	return &SubjectRepo{db: db}
}

func (r *SubjectRepo) FetchAll(ctx context.Context) ([]model.Subject, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM subjects ORDER BY id`)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Subject
	for rows.Next() {
		var s model.Subject
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, MapError(err)
		}
		out = append(out, s)
	}
	return out, MapError(rows.Err())
}

func (r *SubjectRepo) FetchByID(ctx context.Context, id string) (model.Subject, error) {
	var s model.Subject
	err := r.db.QueryRowContext(ctx, `SELECT id, name FROM subjects WHERE id = $1`, id).Scan(&s.ID, &s.Name)
	if err != nil {
		return model.Subject{}, fmt.Errorf("subject %s: %w", id, MapError(err))
	}
	return s, nil
}

func (r *SubjectRepo) Save(ctx context.Context, s model.Subject) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subjects (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
	`, s.ID, s.Name)
	return MapError(err)
}

func (r *SubjectRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM subjects WHERE id = $1`, id)
	if err != nil {
		return MapError(err)
	}
	return checkRowsAffected(res, "subject", id)
}

var (
	_ repository.SubjectRepository = (*SubjectRepo)(nil)
	_ repository.SubjectWriter      = (*SubjectRepo)(nil)
)
