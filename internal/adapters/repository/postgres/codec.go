package postgres

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/okian/dosetrack/internal/domain/model"
)

const listSep = ","

func encodeTimes(times []model.TimeOfDay) string {
	parts := make([]string, len(times))
	for i, t := range times {
		parts[i] = t.String()
	}
	return strings.Join(parts, listSep)
}

func decodeTimes(s string) ([]model.TimeOfDay, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, listSep)
	out := make([]model.TimeOfDay, 0, len(parts))
	for _, p := range parts {
		t, err := model.ParseTimeOfDay(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func encodeDays(days []int) string {
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, listSep)
}

func decodeDays(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, listSep)
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		d, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("day of week %q: %w", p, err)
		}
		out = append(out, d)
	}
	return out, nil
}

// dateValue maps a Date onto a DATE column; the zero Date becomes NULL.
func dateValue(d model.Date) sql.NullTime {
	if d.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: d.Start(time.UTC), Valid: true}
}

func dateFromColumn(v sql.NullTime) model.Date {
	if !v.Valid {
		return model.Date{}
	}
	return model.DateOf(v.Time.UTC())
}
