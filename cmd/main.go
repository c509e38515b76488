package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/okian/dosetrack/internal/adapters/http/api"
	"github.com/okian/dosetrack/internal/adapters/http/swagger"
	service "github.com/okian/dosetrack/internal/app"
	"github.com/okian/dosetrack/internal/config"
	"github.com/okian/dosetrack/internal/domain/model"
	"github.com/okian/dosetrack/pkg/logger"
	"github.com/okian/dosetrack/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// System metrics are collected into the custom registry instead.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Get().Error(ctx, "dosetrack exited", logger.Error(err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	log := logger.Get()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	svc, err := newService(cfg, st, log)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	loc, _ := cfg.Location()
	go startSystemMetricsUpdater(ctx)
	go startJobScheduler(ctx, svc, cfg.PruneInterval(), cfg.SweepInterval(), loc)

	router := api.NewServer(svc, svc).Handler()
	swagger.Register(router)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("storage", cfg.Storage))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// newService translates configuration into coordinator options.
func newService(cfg *config.Config, st *stores, log logger.Logger) (*service.Service, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	retention, err := cfg.Retention()
	if err != nil {
		return nil, err
	}
	return service.New(
		service.WithLogger(log),
		service.WithLocation(loc),
		service.WithTolerance(cfg.Tolerance()),
		service.WithUpcomingLimit(cfg.UpcomingLimit),
		service.WithRetention(retention),
		service.WithMaxStreakDays(cfg.MaxStreakDays),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithSubjectRepository(st.subjects),
		service.WithScheduleRepository(st.schedules),
		service.WithDoseRepository(st.doses),
		service.WithHistoryRepository(st.history),
	), nil
}

// startJobScheduler submits history pruning and the missed dose sweep on their
// intervals. A zero interval disables the job.
func startJobScheduler(ctx context.Context, svc *service.Service, prune, sweep time.Duration, loc *time.Location) {
	log := logger.Get().Named("scheduler")
	if loc == nil {
		loc = time.Local
	}

	pruneC, stopPrune := tick(prune)
	defer stopPrune()
	sweepC, stopSweep := tick(sweep)
	defer stopSweep()

	for {
		select {
		case <-ctx.Done():
			return
		case <-pruneC:
			if _, err := svc.SubmitPrune(ctx); err != nil {
				log.Warn(ctx, "prune not queued", logger.Error(err))
			}
		case <-sweepC:
			today := model.DateOf(time.Now().In(loc))
			// Yesterday is swept too so slots that expire around midnight are not lost.
			for _, day := range []model.Date{today.AddDays(-1), today} {
				if _, err := svc.SubmitSweep(ctx, day); err != nil {
					log.Warn(ctx, "sweep not queued", logger.String("day", day.String()), logger.Error(err))
				}
			}
		}
	}
}

// tick returns a ticker channel, or a nil channel that never fires when d <= 0.
func tick(d time.Duration) (<-chan time.Time, func()) {
	if d <= 0 {
		return nil, func() {}
	}
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
