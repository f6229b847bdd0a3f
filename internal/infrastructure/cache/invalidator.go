// Package cache provides cache invalidation over PostgreSQL LISTEN/NOTIFY.
// Schema writes NOTIFY the entity_schema_changed channel; every server
// instance listening drops its cached copy, so stale schemas disappear
// without TTL polling.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"metaform/pkg/logger"
)

// Channel is the NOTIFY channel carrying changed entity type IDs. An empty
// payload means "everything changed".
const Channel = "entity_schema_changed"

// Invalidator listens for schema change notifications and forwards the
// changed entity type to a callback.
type Invalidator struct {
	pool       *pgxpool.Pool
	invalidate func(entityType string)

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

func NewInvalidator(pool *pgxpool.Pool, invalidate func(entityType string)) *Invalidator {
	return &Invalidator{pool: pool, invalidate: invalidate}
}

// Start launches the listener goroutine. Starting twice is a no-op.
func (i *Invalidator) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	i.mu.Lock()
	if i.started {
		i.mu.Unlock()
		return
	}
	i.ctx, i.cancel = context.WithCancel(ctx)
	i.started = true
	i.mu.Unlock()

	i.wg.Add(1)
	go i.listenLoop()
	logger.Info(i.ctx, "schema invalidator started")
}

// Stop gracefully stops the listener.
func (i *Invalidator) Stop() {
	i.mu.Lock()
	if !i.started {
		i.mu.Unlock()
		return
	}
	cancel := i.cancel
	i.started = false
	i.cancel = nil
	i.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	i.wg.Wait()
	logger.Info(context.Background(), "schema invalidator stopped")
}

func (i *Invalidator) listenLoop() {
	defer i.wg.Done()

	for {
		select {
		case <-i.ctx.Done():
			return
		default:
		}

		// LISTEN needs a dedicated connection.
		conn, err := i.pool.Acquire(i.ctx)
		if err != nil {
			logger.Error(i.ctx, "failed to acquire connection for LISTEN", "error", err)
			time.Sleep(time.Second)
			continue
		}

		if _, err := conn.Exec(i.ctx, "LISTEN "+Channel); err != nil {
			logger.Error(i.ctx, "failed to LISTEN", "error", err)
			conn.Release()
			time.Sleep(time.Second)
			continue
		}

		logger.Info(i.ctx, "listening for schema change notifications")
		i.waitForNotifications(conn)
		conn.Release()
	}
}

func (i *Invalidator) waitForNotifications(conn *pgxpool.Conn) {
	for {
		select {
		case <-i.ctx.Done():
			return
		default:
		}

		// Timeout keeps shutdown responsive; a timeout is not an error.
		ctx, cancel := context.WithTimeout(i.ctx, 30*time.Second)
		notification, err := conn.Conn().WaitForNotification(ctx)
		cancel()

		if err != nil {
			if i.ctx.Err() != nil {
				return
			}
			continue
		}

		logger.Debug(i.ctx, "schema change notification",
			"entityType", notification.Payload)
		i.invalidate(notification.Payload)
	}
}
