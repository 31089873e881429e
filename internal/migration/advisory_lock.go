package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
)

// The advisory lock key is derived from a fixed namespace so every deploy
// of this schema contends on the same postgres lock.
const lockNamespace = "soilsync.migrations"

func advisoryLockKey() int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(lockNamespace))
	return int64(h.Sum64())
}

type unlockFunc func(ctx context.Context) error

// acquireAdvisoryLock takes the session-level migration lock, failing fast
// when another process holds it. The returned func releases the lock and
// must be called on the same connection pool.
func acquireAdvisoryLock(ctx context.Context, db *sql.DB) (unlockFunc, error) {
	if db == nil {
		return nil, errors.New("advisory lock requires database handle")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	key := advisoryLockKey()

	var locked bool
	if err := db.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&locked); err != nil {
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !locked {
		return nil, errors.New("another migration process holds the advisory lock")
	}

	return func(unlockCtx context.Context) error {
		if unlockCtx == nil {
			unlockCtx = context.Background()
		}
		var released bool
		if err := db.QueryRowContext(unlockCtx, "SELECT pg_advisory_unlock($1)", key).Scan(&released); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		if !released {
			return errors.New("advisory lock was not held by this session")
		}
		return nil
	}, nil
}
