package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/railzwaylabs/recon/internal/costing/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const lockKeyPrefix = "recon:recalc:"

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// snapshotLock serializes recalculations per snapshot: a mutex per snapshot
// inside the process and, when Redis is configured, a lease shared with other
// processes.
type snapshotLock struct {
	mu    sync.Mutex
	local map[int64]*sync.Mutex

	rdb *redis.Client
	ttl time.Duration
	log *zap.Logger
}

func newSnapshotLock(rdb *redis.Client, ttl time.Duration, log *zap.Logger) *snapshotLock {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &snapshotLock{
		local: make(map[int64]*sync.Mutex),
		rdb:   rdb,
		ttl:   ttl,
		log:   log,
	}
}

func lockKey(snapshotID int64) string {
	return fmt.Sprintf("%s%d", lockKeyPrefix, snapshotID)
}

// acquire blocks on the local mutex and then tries the Redis lease once.
// ErrRecalcInProgress means another process holds the lease.
func (l *snapshotLock) acquire(ctx context.Context, snapshotID int64) (func(), error) {
	l.mu.Lock()
	m, ok := l.local[snapshotID]
	if !ok {
		m = &sync.Mutex{}
		l.local[snapshotID] = m
	}
	l.mu.Unlock()

	m.Lock()
	if l.rdb == nil {
		return m.Unlock, nil
	}

	key := lockKey(snapshotID)
	token := ulid.Make().String()
	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		m.Unlock()
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		m.Unlock()
		return nil, domain.ErrRecalcInProgress
	}

	return func() {
		if err := releaseScript.Run(context.Background(), l.rdb, []string{key}, token).Err(); err != nil {
			l.log.Warn("release recalculation lock", zap.String("key", key), zap.Error(err))
		}
		m.Unlock()
	}, nil
}
