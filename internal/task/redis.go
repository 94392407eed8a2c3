package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const maxWatchRetries = 8

// RedisConfig configures a RedisRegistry.
type RedisConfig struct {
	Prefix string        // Key prefix (default "popsci:")
	TTL    time.Duration // Expiry applied once a task is terminal (0 = keep)
	Logger *slog.Logger
}

// RedisRegistry stores snapshots as JSON strings in Redis so that several
// server processes can share one task table. Updates use WATCH/MULTI so a
// snapshot is always replaced whole.
type RedisRegistry struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewRedisRegistry wraps an existing client.
func NewRedisRegistry(client *redis.Client, cfg RedisConfig) *RedisRegistry {
	if cfg.Prefix == "" {
		cfg.Prefix = "popsci:"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &RedisRegistry{
		client: client,
		prefix: cfg.Prefix,
		ttl:    cfg.TTL,
		logger: cfg.Logger,
		now:    time.Now,
	}
}

func (r *RedisRegistry) key(id string) string { return r.prefix + "task:" + id }
func (r *RedisRegistry) index() string        { return r.prefix + "tasks" }

// Create stores t unless its id is taken.
func (r *RedisRegistry) Create(ctx context.Context, t *Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to encode task: %w", err)
	}
	ok, err := r.client.SetNX(ctx, r.key(t.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	if !ok {
		return ErrExists
	}
	if err := r.client.ZAdd(ctx, r.index(), redis.Z{
		Score:  float64(t.CreatedAt.UnixMilli()),
		Member: t.ID,
	}).Err(); err != nil {
		return fmt.Errorf("failed to index task: %w", err)
	}

	r.logger.Info("task created", "id", t.ID, "url", t.Request.URL)
	return nil
}

// Get loads the current snapshot.
func (r *RedisRegistry) Get(ctx context.Context, id string) (*Task, error) {
	return r.load(ctx, r.client, id)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *RedisRegistry) load(ctx context.Context, c getter, id string) (*Task, error) {
	data, err := c.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	var t Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to decode task %s: %w", id, err)
	}
	return &t, nil
}

// UpdateStage applies u inside an optimistic transaction.
func (r *RedisRegistry) UpdateStage(ctx context.Context, id string, u Update) (*Task, error) {
	key := r.key(id)
	var next *Task

	txf := func(tx *redis.Tx) error {
		cur, err := r.load(ctx, tx, id)
		if err != nil {
			return err
		}
		next, err = cur.Apply(u, r.now())
		if err != nil {
			return err
		}
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to encode task: %w", err)
		}
		ttl := time.Duration(0)
		if next.Status.Terminal() {
			ttl = r.ttl
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			return next, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("failed to update task %s: too much contention", id)
}

// List returns tasks newest first. Index entries whose snapshot expired are pruned.
func (r *RedisRegistry) List(ctx context.Context, filter ListFilter) ([]*Task, error) {
	ids, err := r.client.ZRevRange(ctx, r.index(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	out := make([]*Task, 0, len(ids))
	for _, id := range ids {
		t, err := r.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			r.client.ZRem(ctx, r.index(), id)
			continue
		}
		if err != nil {
			return nil, err
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		out = append(out, t)
		if len(out) == filter.limit() {
			break
		}
	}
	return out, nil
}

// Delete removes a task and its index entry.
func (r *RedisRegistry) Delete(ctx context.Context, id string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key(id))
		pipe.ZRem(ctx, r.index(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

var _ Registry = (*RedisRegistry)(nil)
