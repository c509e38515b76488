// Package service hosts the tracking coordinator: it owns the in-memory snapshot of
// schedules and dose events, runs every mutation through one pipeline, and serves
// today/upcoming views and adherence analytics.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	eventqueue "github.com/okian/dosetrack/internal/adapters/mq/queue"
	workerpool "github.com/okian/dosetrack/internal/adapters/mq/worker"
	"github.com/okian/dosetrack/internal/adapters/repository"
	"github.com/okian/dosetrack/internal/adapters/repository/memory"
	"github.com/okian/dosetrack/internal/domain/adherence"
	"github.com/okian/dosetrack/internal/domain/dedupe"
	"github.com/okian/dosetrack/internal/domain/model"
	"github.com/okian/dosetrack/internal/domain/reconcile"
	"github.com/okian/dosetrack/internal/domain/retention"
	"github.com/okian/dosetrack/internal/domain/schedule"
	"github.com/okian/dosetrack/pkg/logger"
	"github.com/okian/dosetrack/pkg/metrics"
)

const (
	defaultUpcomingLimit = 5
	defaultQueueSize     = 64
	defaultDedupeSize    = 50000
	reloadAttempts       = 3
	stopTimeout          = 10 * time.Second
)

// Service is the tracking coordinator. One instance is constructed by main and
// injected into every consumer.
type Service struct {
	// mu serializes mutations and guards version and listeners.
	mu        sync.Mutex
	snap      atomic.Pointer[state]
	version   uint64
	listeners []Listener

	subjects  repository.SubjectRepository
	schedules repository.ScheduleRepository
	doses     repository.DoseEventRepository
	history   repository.HistoryRepository

	reconciler *reconcile.Reconciler
	analyzer   *adherence.Analyzer
	retention  retention.Policy
	deduper    dedupe.Deduper

	// Configuration
	now             func() time.Time
	loc             *time.Location
	tolerance       time.Duration
	upcomingLimit   int
	retentionPeriod model.RetentionPeriod
	maxStreakDays   int
	workerCount     int
	queueSize       int
	dedupeSize      int

	// Lifecycle
	lifeMu  sync.Mutex
	started bool
	jobs    atomic.Pointer[eventqueue.InMemoryQueue]
	pool    *workerpool.Pool
	cancel  context.CancelFunc

	logger logger.Logger
}

// New constructs a Service. Repositories that are not supplied default to the
// in-memory adapters.
func New(opts ...Option) *Service {
	s := &Service{
		now:             time.Now,
		loc:             time.Local,
		tolerance:       reconcile.DefaultTolerance,
		upcomingLimit:   defaultUpcomingLimit,
		retentionPeriod: model.RetentionIndefinite,
		maxStreakDays:   adherence.DefaultMaxStreakDays,
		workerCount:     runtime.NumCPU(),
		queueSize:       defaultQueueSize,
		dedupeSize:      defaultDedupeSize,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("coordinator")
	}
	if s.subjects == nil {
		s.subjects = memory.NewSubjectRepo()
	}
	if s.schedules == nil {
		s.schedules = memory.NewScheduleRepo()
	}
	if s.doses == nil {
		s.doses = memory.NewDoseEventRepo()
	}
	if s.history == nil {
		s.history = memory.NewHistoryRepo()
	}

	s.reconciler = reconcile.New(reconcile.WithTolerance(s.tolerance))
	s.analyzer = adherence.New(
		adherence.WithLocation(s.loc),
		adherence.WithTolerance(s.tolerance),
		adherence.WithMaxStreakDays(s.maxStreakDays),
	)
	s.retention = retention.NewPolicy(s.retentionPeriod)
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.snap.Store(emptyState())
	return s
}

// Start loads the initial snapshot and starts the background job workers.
func (s *Service) Start(ctx context.Context) error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting tracking coordinator...")

	if err := s.Reload(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	q := eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, q, workerpool.WithLogger(s.logger.Named("jobs")))
	s.pool.Start(runCtx)
	s.jobs.Store(q)

	s.started = true
	st := s.snap.Load()
	s.logger.Info(ctx, "tracking coordinator started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("schedules", len(st.schedules)),
		logger.Int("doseEvents", len(st.events)),
		logger.String("retention", s.retentionPeriod.String()),
		logger.Duration("tolerance", s.tolerance),
	)
	return nil
}

// Stop drains queued jobs and stops the workers.
func (s *Service) Stop() {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping tracking coordinator...")
	s.jobs.Store(nil)
	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown incomplete", logger.Error(err))
	}
	s.cancel()

	s.pool, s.cancel = nil, nil
	s.started = false
	s.logger.Info(ctx, "tracking coordinator stopped")
}

// Reload replaces the snapshot with the repositories' contents. Loading happens
// outside the mutation lock; when a mutation commits meanwhile the load is retried,
// and the last attempt loads under the lock.
func (s *Service) Reload(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		if attempt == reloadAttempts {
			s.mu.Lock()
			defer s.mu.Unlock()
			next, err := s.load(ctx)
			if err != nil {
				metrics.RecordMutation("reload", "error")
				return err
			}
			s.commitReload(ctx, next)
			return nil
		}

		s.mu.Lock()
		v := s.version
		s.mu.Unlock()

		next, err := s.load(ctx)
		if err != nil {
			metrics.RecordMutation("reload", "error")
			return err
		}

		s.mu.Lock()
		if s.version == v {
			s.commitReload(ctx, next)
			s.mu.Unlock()
			return nil
		}
		s.mu.Unlock()
		s.logger.Debug(ctx, "snapshot changed during reload, retrying", logger.Int("attempt", attempt))
	}
}

// commitReload must be called with s.mu held.
func (s *Service) commitReload(ctx context.Context, next *state) {
	s.commit(next)
	metrics.RecordMutation("reload", "ok")
	s.notify(ctx, []Change{{Kind: ChangeReloaded}})
}

func (s *Service) load(ctx context.Context) (*state, error) {
	subjects, err := s.subjects.FetchAll(ctx)
	if err != nil {
		return nil, s.repoErr("subject", "fetch_all", err)
	}
	schedules, err := s.schedules.FetchAll(ctx)
	if err != nil {
		return nil, s.repoErr("schedule", "fetch_all", err)
	}
	events, err := s.doses.FetchAll(ctx)
	if err != nil {
		return nil, s.repoErr("dose", "fetch_all", err)
	}

	normalized := 0
	for i := range schedules {
		var changed bool
		schedules[i], changed = schedules[i].Normalize()
		if changed {
			normalized++
			metrics.RecordNormalization()
		}
	}
	if normalized > 0 {
		s.logger.Debug(ctx, "normalized stored schedules", logger.Int("count", normalized))
	}
	return newState(schedules, events, subjects), nil
}

// commit publishes next and recomputes the cached today view. It must be called
// with s.mu held.
func (s *Service) commit(next *state) {
	next.today = s.buildToday(next, s.today())
	s.snap.Store(next)
	s.version++

	metrics.UpdateSnapshotSize(len(next.schedules), len(next.events))
	metrics.RecordDroppedSlots(next.today.dropped)
	counts := map[model.Status]int{
		model.StatusTaken:   0,
		model.StatusSkipped: 0,
		model.StatusMissed:  0,
		model.StatusPending: 0,
	}
	for _, st := range s.reconciler.Reconcile(next.today.slots, next.events, s.now()) {
		counts[st.Status]++
	}
	for status, n := range counts {
		metrics.UpdateTodaySlots(string(status), n)
	}
}

// buildToday evaluates day and drops slots whose subject is unknown.
func (s *Service) buildToday(st *state, day model.Date) todayView {
	all := schedule.SlotsOnDay(st.schedules, "", day, s.loc)
	view := todayView{day: day, slots: make([]model.DueSlot, 0, len(all))}
	for _, slot := range all {
		if _, ok := st.subjects[slot.SubjectID]; !ok {
			view.dropped++
			continue
		}
		view.slots = append(view.slots, slot)
	}
	return view
}

func (s *Service) today() model.Date {
	return model.DateOf(s.now().In(s.loc))
}

// Schedules returns a copy of every schedule, ordered by id.
func (s *Service) Schedules() []model.Schedule {
	st := s.snap.Load()
	out := make([]model.Schedule, len(st.schedules))
	for i, sc := range st.schedules {
		out[i] = sc.Clone()
	}
	return out
}

// Schedule returns one schedule by id.
func (s *Service) Schedule(id string) (model.Schedule, error) {
	sc, ok := s.snap.Load().schedule(id)
	if !ok {
		return model.Schedule{}, fmt.Errorf("schedule %s: %w", id, ErrNotFound)
	}
	return sc.Clone(), nil
}

// DoseEvents returns a copy of every dose event, ordered by timestamp.
func (s *Service) DoseEvents() []model.DoseEvent {
	st := s.snap.Load()
	out := make([]model.DoseEvent, len(st.events))
	copy(out, st.events)
	return out
}

// DoseEvent returns one dose event by id.
func (s *Service) DoseEvent(id string) (model.DoseEvent, error) {
	e, ok := s.snap.Load().event(id)
	if !ok {
		return model.DoseEvent{}, fmt.Errorf("dose %s: %w", id, ErrNotFound)
	}
	return e, nil
}

// Subjects returns the subjects known to the snapshot.
func (s *Service) Subjects() []model.Subject {
	st := s.snap.Load()
	out := make([]model.Subject, 0, len(st.subjects))
	for _, id := range st.subjectIDs() {
		if sub, ok := st.subjects[id]; ok {
			out = append(out, sub)
		}
	}
	return out
}

// SubjectRepository exposes the configured subject repository.
func (s *Service) SubjectRepository() repository.SubjectRepository {
	return s.subjects
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	st := s.snap.Load()
	view := st.today
	if view.day != s.today() {
		view = s.buildToday(st, s.today())
	}

	stats := map[string]interface{}{
		"schedules":     len(st.schedules),
		"doseEvents":    len(st.events),
		"subjects":      len(st.subjects),
		"todaySlots":    len(view.slots),
		"droppedSlots":  view.dropped,
		"dedupeSize":    s.deduper.Size(),
		"toleranceMins": int(s.tolerance / time.Minute),
		"retention":     s.retentionPeriod.String(),
		"upcomingLimit": s.upcomingLimit,
	}

	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	stats["started"] = s.started
	stats["workerCount"] = s.workerCount
	stats["queueSize"] = s.queueSize
	if s.started {
		if q := s.jobs.Load(); q != nil {
			stats["queueLength"] = q.Len(context.Background())
		}
		stats["jobsProcessed"] = s.pool.Processed()
	}
	return stats
}

func (s *Service) repoErr(repo, op string, err error) error {
	metrics.RecordRepositoryError(repo, op)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%s %s: %w: %w", repo, op, ErrNotFound, err)
	}
	return fmt.Errorf("%w: %s %s: %w", ErrRepository, repo, op, err)
}
