package database

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/xompass/vsaas-search/search_errors"
)

// DefaultLockTTL bounds how long a lease can be held if the process dies
// without releasing it, when no copy timeout is available to derive a
// tighter bound from. It exceeds the default copy timeout so a slow but
// healthy operation is never fenced out mid-flight.
const DefaultLockTTL = 2 * DefaultCopyTimeout

// MigrationLocker serializes migrations per index. Two concurrent migrations
// of the same index would race on index creation and the alias swap, so the
// migrator acquires a lease before any mutating step.
type MigrationLocker interface {
	// Acquire takes the lease for the index and returns a release function.
	// It fails immediately when another migration holds the lease; there is
	// no waiting, the caller owns retry policy.
	Acquire(ctx context.Context, indexName string, ttl time.Duration) (func(), error)
}

const migrationLockPrefix = "vsaas:migration_lock:"

// Delete only when the lease still carries our token, so an expired lease
// re-acquired by another process is never released by us.
var releaseLockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

type redisMigrationLocker struct {
	client *redis.Client
}

// NewRedisMigrationLocker builds a cross-process locker backed by a Redis
// lease document per index.
func NewRedisMigrationLocker(client *redis.Client) MigrationLocker {
	return &redisMigrationLocker{client: client}
}

func (l *redisMigrationLocker) Acquire(ctx context.Context, indexName string, ttl time.Duration) (func(), error) {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}

	key := migrationLockPrefix + indexName
	token := uuid.New().String()

	acquired, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, search_errors.ClusterIOError("failed to acquire migration lock for " + indexName + ": " + err.Error())
	}

	if !acquired {
		return nil, search_errors.MigrationLockedError("another migration is running for index " + indexName)
	}

	release := func() {
		if err := releaseLockScript.Run(context.Background(), l.client, []string{key}, token).Err(); err != nil && err != redis.Nil {
			log.Printf("Warning: could not release migration lock for %s: %v", indexName, err)
		}
	}

	return release, nil
}

type memoryMigrationLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewMemoryMigrationLocker builds an in-process locker for deployments
// without Redis. It does not protect against other processes.
func NewMemoryMigrationLocker() MigrationLocker {
	return &memoryMigrationLocker{held: map[string]bool{}}
}

func (l *memoryMigrationLocker) Acquire(ctx context.Context, indexName string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held[indexName] {
		return nil, search_errors.MigrationLockedError("another migration is running for index " + indexName)
	}

	l.held[indexName] = true

	release := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, indexName)
	}

	return release, nil
}
