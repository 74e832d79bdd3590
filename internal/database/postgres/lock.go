package postgres

import (
	"context"
	"fmt"
	"hash/fnv"
	"log"

	"github.com/kozaktomas/face-engine/internal/database"
)

// AdvisoryLock hands out the per-tenant indexing lock using Postgres
// session advisory locks. The lock lives on a dedicated connection that
// stays checked out until release, so pool recycling cannot drop it; if
// the process dies, the server releases it with the session.
type AdvisoryLock struct {
	pool *Pool
}

// NewAdvisoryLock creates an advisory lock helper backed by the pool.
func NewAdvisoryLock(pool *Pool) *AdvisoryLock {
	return &AdvisoryLock{pool: pool}
}

// lockKey maps a tenant name onto the 64-bit advisory lock space.
func lockKey(tenant string) int64 {
	h := fnv.New64a()
	h.Write([]byte("face-engine:" + tenant))
	return int64(h.Sum64())
}

// Acquire takes the tenant's lock without waiting. Returns
// database.ErrLocked when another session already holds it.
func (l *AdvisoryLock) Acquire(ctx context.Context, tenant string) (func(), error) {
	conn, err := l.pool.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("checking out lock connection: %w", err)
	}

	key := lockKey(tenant)
	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&acquired); err != nil {
		conn.Close()
		return nil, fmt.Errorf("acquiring advisory lock: %w", err)
	}
	if !acquired {
		conn.Close()
		return nil, database.ErrLocked
	}

	release := func() {
		// best effort; closing the connection releases the lock anyway
		if _, err := conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", key); err != nil {
			log.Printf("[SUPERVISOR] failed to release advisory lock: %v", err)
		}
		conn.Close()
	}
	return release, nil
}
