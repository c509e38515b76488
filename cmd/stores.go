package main

import (
	"context"
	"database/sql"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/okian/dosetrack/internal/adapters/repository"
	"github.com/okian/dosetrack/internal/adapters/repository/memory"
	"github.com/okian/dosetrack/internal/adapters/repository/postgres"
	"github.com/okian/dosetrack/internal/adapters/repository/redis"
	"github.com/okian/dosetrack/internal/config"
)

// stores bundles the repositories selected by configuration and the
// connections behind them.
type stores struct {
	subjects  repository.SubjectRepository
	schedules repository.ScheduleRepository
	doses     repository.DoseEventRepository
	history   repository.HistoryRepository

	db    *sql.DB
	redis *goredis.Client
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	s := &stores{}
	switch cfg.Storage {
	case config.StoragePostgres:
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		s.db = db
		if err := postgres.Migrate(ctx, db); err != nil {
			s.Close()
			return nil, err
		}
		s.subjects = postgres.NewSubjectRepo(db)
		s.schedules = postgres.NewScheduleRepo(db)
		s.doses = postgres.NewDoseEventRepo(db)
		s.history = postgres.NewHistoryRepo(db)
	case config.StorageMemory:
		s.subjects = memory.NewSubjectRepo()
		s.schedules = memory.NewScheduleRepo()
		s.doses = memory.NewDoseEventRepo()
		s.history = memory.NewHistoryRepo()
	default:
		return nil, fmt.Errorf("%w: storage %q", config.ErrInvalidConfig, cfg.Storage)
	}

	if cfg.HistoryStore == config.HistoryRedis {
		rc := redis.DefaultConfig()
		rc.Addr = cfg.RedisAddr
		rc.Password = cfg.RedisPassword
		rc.DB = cfg.RedisDB
		client, err := redis.Open(ctx, rc)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.redis = client
		s.history = redis.NewHistoryStore(client)
	}
	return s, nil
}

// Close releases every open connection.
func (s *stores) Close() {
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}
