package service

import (
	"time"

	"github.com/okian/dosetrack/internal/adapters/repository"
	"github.com/okian/dosetrack/internal/domain/model"
	"github.com/okian/dosetrack/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the zone calendar days are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithTolerance sets the dose matching window.
func WithTolerance(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.tolerance = d
		}
	}
}

// WithUpcomingLimit sets the default number of upcoming slots.
func WithUpcomingLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.upcomingLimit = n
		}
	}
}

// WithRetention sets how long dose history is kept.
func WithRetention(p model.RetentionPeriod) Option {
	return func(s *Service) {
		s.retentionPeriod = p
	}
}

// WithMaxStreakDays bounds the streak walk.
func WithMaxStreakDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.maxStreakDays = days
		}
	}
}

// WithWorkerCount sets the number of background job workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the background job queue capacity.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize bounds the missed-sweep deduplication memory.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

func WithSubjectRepository(r repository.SubjectRepository) Option {
	return func(s *Service) {
		if r != nil {
			s.subjects = r
		}
	}
}

func WithScheduleRepository(r repository.ScheduleRepository) Option {
	return func(s *Service) {
		if r != nil {
			s.schedules = r
		}
	}
}

func WithDoseRepository(r repository.DoseEventRepository) Option {
	return func(s *Service) {
		if r != nil {
			s.doses = r
		}
	}
}

func WithHistoryRepository(r repository.HistoryRepository) Option {
	return func(s *Service) {
		if r != nil {
			s.history = r
		}
	}
}
