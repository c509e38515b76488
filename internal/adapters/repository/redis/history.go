// Package redis stores dose history in Redis sorted sets.
//
// All records live in one sorted set scored by scheduled time in milliseconds,
// so age-based pruning is a single ZREMRANGEBYSCORE. A set per subject indexes
// members for the subject cascade.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/dosetrack/internal/adapters/repository"
	"github.com/okian/dosetrack/internal/domain/model"
)

var (
	// ErrConnection is returned when Redis cannot be reached.
	ErrConnection = errors.New("redis: connection failed")
	// ErrSerialization is returned when a record cannot be encoded or decoded.
	ErrSerialization = errors.New("redis: serialization failed")
)

// Open connects to Redis and verifies the connection.
func Open(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	return client, nil
}

// HistoryStore implements repository.HistoryRepository on Redis.
type HistoryStore struct {
	client redis.UniversalClient
	prefix string
}

// NewHistoryStore creates a store on an existing client.
func NewHistoryStore(client redis.UniversalClient, opts ...Option) *HistoryStore {
	s := &HistoryStore{client: client, prefix: defaultKeyPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *HistoryStore) historyKey() string {
	return s.prefix + "history"
}

func (s *HistoryStore) subjectKey(subjectID string) string {
	return s.prefix + "history:subject:" + subjectID
}

func score(t time.Time) float64 {
	return float64(t.UnixMilli())
}

func encode(rec model.HistoryRecord) (string, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSerialization, err)
	}
	return string(b), nil
}

func decode(member string) (model.HistoryRecord, error) {
	var rec model.HistoryRecord
	if err := json.Unmarshal([]byte(member), &rec); err != nil {
		return model.HistoryRecord{}, fmt.Errorf("%w: %w", ErrSerialization, err)
	}
	return rec, nil
}

func (s *HistoryStore) Append(ctx context.Context, rec model.HistoryRecord) error {
	member, err := encode(rec)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, s.historyKey(), redis.Z{Score: score(rec.ScheduledTime), Member: member})
		pipe.SAdd(ctx, s.subjectKey(rec.SubjectID), member)
		return nil
	})
	return err
}

func (s *HistoryStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	maxScore := "(" + strconv.FormatInt(cutoff.UnixMilli(), 10)
	members, err := s.client.ZRangeByScore(ctx, s.historyKey(), &redis.ZRangeBy{Min: "-inf", Max: maxScore}).Result()
	if err != nil {
		return 0, err
	}
	if len(members) == 0 {
		return 0, nil
	}

	var removed *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.ZRemRangeByScore(ctx, s.historyKey(), "-inf", maxScore)
		for _, m := range members {
			rec, err := decode(m)
			if err != nil {
				continue
			}
			pipe.SRem(ctx, s.subjectKey(rec.SubjectID), m)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(removed.Val()), nil
}

func (s *HistoryStore) DeleteSubject(ctx context.Context, subjectID string) (int, error) {
	members, err := s.client.SMembers(ctx, s.subjectKey(subjectID)).Result()
	if err != nil {
		return 0, err
	}
	if len(members) == 0 {
		return 0, nil
	}

	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	var removed *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.ZRem(ctx, s.historyKey(), args...)
		pipe.Del(ctx, s.subjectKey(subjectID))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(removed.Val()), nil
}

func (s *HistoryStore) FetchAll(ctx context.Context) ([]model.HistoryRecord, error) {
	members, err := s.client.ZRange(ctx, s.historyKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]model.HistoryRecord, 0, len(members))
	for _, m := range members {
		rec, err := decode(m)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

var _ repository.HistoryRepository = (*HistoryStore)(nil)
