package client

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// SessionFactory opens a new database session for the pool, typically a
// closure over Client.Open.
type SessionFactory func() (*Database, error)

// PoolStats is the pool's live counter set. Read a coherent copy through
// Stats.
type PoolStats struct {
	ActiveSessions atomic.Int32
	IdleSessions   atomic.Int32
	TotalSessions  atomic.Int32
	WaitCount      atomic.Int64
	WaitDuration   atomic.Int64 // nanoseconds
	Hits           atomic.Int64
	Misses         atomic.Int64
	Timeouts       atomic.Int64
	Errors         atomic.Int64
}

// PoolSnapshot is a point-in-time copy of the pool counters.
type PoolSnapshot struct {
	ActiveSessions int32
	IdleSessions   int32
	TotalSessions  int32
	WaitCount      int64
	WaitDuration   time.Duration
	Hits           int64
	Misses         int64
	Timeouts       int64
	Errors         int64
}

type pooledSession struct {
	db        *Database
	idleSince time.Time
}

// SessionPool keeps a bounded set of open database sessions for concurrent
// use. One session carries one request at a time, so concurrency across
// goroutines means checking out separate sessions. Background workers close
// sessions idle past the timeout and ping the rest.
type SessionPool struct {
	sessions            chan pooledSession
	factory             SessionFactory
	minIdle             int
	maxOpen             int
	idleTimeout         time.Duration
	healthCheckInterval time.Duration
	stats               PoolStats
	logger              Logger
	stopCh              chan struct{}
	wg                  sync.WaitGroup
	mu                  sync.RWMutex
	closed              bool
}

// NewSessionPool builds a pool sized by the client's PoolMinSize and
// PoolMaxSize options. Call Initialize before Get.
func NewSessionPool(c *Client, factory SessionFactory) *SessionPool {
	minIdle := c.opts.PoolMinSize
	maxOpen := c.opts.PoolMaxSize
	if minIdle < 0 {
		minIdle = 0
	}
	if maxOpen < 1 {
		maxOpen = 1
	}
	if minIdle > maxOpen {
		minIdle = maxOpen
	}

	return &SessionPool{
		sessions:            make(chan pooledSession, maxOpen),
		factory:             factory,
		minIdle:             minIdle,
		maxOpen:             maxOpen,
		idleTimeout:         c.opts.PoolIdleTimeout,
		healthCheckInterval: c.opts.HealthCheckInterval,
		logger:              c.logger.WithFields(String("component", "session_pool")),
		stopCh:              make(chan struct{}),
	}
}

// Initialize opens the minimum idle sessions and starts the background
// workers.
func (p *SessionPool) Initialize() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return fmt.Errorf("session pool is closed")
	}

	if err := p.warm(); err != nil {
		return fmt.Errorf("warming session pool: %w", err)
	}

	p.wg.Add(2)
	go p.cleanupWorker()
	go p.healthCheckWorker()

	p.logger.Info("session pool initialized",
		Int("min_idle", p.minIdle),
		Int("max_open", p.maxOpen))
	return nil
}

// warm opens sessions concurrently until minIdle are pooled. On any failure
// the sessions that did open are closed again and the first error returns.
func (p *SessionPool) warm() error {
	var g errgroup.Group
	opened := make(chan *Database, p.minIdle)
	for i := 0; i < p.minIdle; i++ {
		g.Go(func() error {
			db, err := p.factory()
			if err != nil {
				return err
			}
			opened <- db
			return nil
		})
	}
	err := g.Wait()
	close(opened)

	for db := range opened {
		if err != nil {
			db.Close()
			continue
		}
		p.sessions <- pooledSession{db: db, idleSince: time.Now()}
		p.stats.TotalSessions.Add(1)
		p.stats.IdleSessions.Add(1)
	}
	return err
}

// Get checks a session out of the pool, opening a new one when every pooled
// session is busy and the pool is under maxOpen. Blocks until a session
// frees up or ctx ends.
func (p *SessionPool) Get(ctx context.Context) (*Database, error) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, fmt.Errorf("session pool is closed")
	}
	p.mu.RUnlock()

	startWait := time.Now()
	p.stats.WaitCount.Add(1)

	select {
	case <-ctx.Done():
		p.stats.Timeouts.Add(1)
		return nil, ctx.Err()

	case ps := <-p.sessions:
		p.stats.WaitDuration.Add(int64(time.Since(startWait)))
		p.stats.Hits.Add(1)
		p.stats.IdleSessions.Add(-1)
		p.stats.ActiveSessions.Add(1)

		if !ps.db.IsAlive() {
			p.stats.TotalSessions.Add(-1)
			p.stats.ActiveSessions.Add(-1)
			ps.db.Close()
			return p.Get(ctx)
		}
		return ps.db, nil

	default:
		// No idle session. Open a fresh one if the pool has room.
		if p.stats.TotalSessions.Load() < int32(p.maxOpen) {
			db, err := p.factory()
			if err != nil {
				p.stats.Errors.Add(1)
				return nil, err
			}

			p.stats.WaitDuration.Add(int64(time.Since(startWait)))
			p.stats.Misses.Add(1)
			p.stats.TotalSessions.Add(1)
			p.stats.ActiveSessions.Add(1)
			return db, nil
		}

		// At capacity. Wait for a checkout to come back.
		select {
		case <-ctx.Done():
			p.stats.Timeouts.Add(1)
			return nil, ctx.Err()

		case ps := <-p.sessions:
			p.stats.WaitDuration.Add(int64(time.Since(startWait)))
			p.stats.Hits.Add(1)
			p.stats.IdleSessions.Add(-1)
			p.stats.ActiveSessions.Add(1)

			if !ps.db.IsAlive() {
				p.stats.TotalSessions.Add(-1)
				p.stats.ActiveSessions.Add(-1)
				ps.db.Close()
				return p.Get(ctx)
			}
			return ps.db, nil
		}
	}
}

// Put returns a session to the pool. Dead sessions and overflow beyond the
// pool's capacity are closed instead.
func (p *SessionPool) Put(db *Database) {
	if db == nil {
		return
	}

	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()

	if closed {
		db.Close()
		return
	}

	p.stats.ActiveSessions.Add(-1)

	if !db.IsAlive() {
		p.stats.TotalSessions.Add(-1)
		db.Close()
		return
	}

	select {
	case p.sessions <- pooledSession{db: db, idleSince: time.Now()}:
		p.stats.IdleSessions.Add(1)
	default:
		p.stats.TotalSessions.Add(-1)
		db.Close()
	}
}

// Stats returns a snapshot of the pool counters.
func (p *SessionPool) Stats() PoolSnapshot {
	return PoolSnapshot{
		ActiveSessions: p.stats.ActiveSessions.Load(),
		IdleSessions:   p.stats.IdleSessions.Load(),
		TotalSessions:  p.stats.TotalSessions.Load(),
		WaitCount:      p.stats.WaitCount.Load(),
		WaitDuration:   time.Duration(p.stats.WaitDuration.Load()),
		Hits:           p.stats.Hits.Load(),
		Misses:         p.stats.Misses.Load(),
		Timeouts:       p.stats.Timeouts.Load(),
		Errors:         p.stats.Errors.Load(),
	}
}

// Close stops the workers and closes every pooled session. Sessions checked
// out at the time are closed by Put when they come back.
func (p *SessionPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	close(p.stopCh)
	p.wg.Wait()

	p.drain()
	p.logger.Info("session pool closed")
	return nil
}

// reset closes every idle session and warms the pool back to its minimum.
// The health monitor calls this when the server stops answering.
func (p *SessionPool) reset() error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return fmt.Errorf("session pool is closed")
	}
	p.mu.RUnlock()

	p.drain()
	return p.warm()
}

func (p *SessionPool) drain() {
	for {
		select {
		case ps := <-p.sessions:
			p.stats.IdleSessions.Add(-1)
			p.stats.TotalSessions.Add(-1)
			ps.db.Close()
		default:
			return
		}
	}
}

// cleanupWorker periodically closes sessions idle past the timeout.
func (p *SessionPool) cleanupWorker() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.idleTimeout / 4)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.cleanupIdleSessions()
		}
	}
}

// cleanupIdleSessions closes stale sessions while keeping minIdle pooled.
// The channel rotates oldest-first, so one fresh session means the rest
// are fresh too.
func (p *SessionPool) cleanupIdleSessions() {
	now := time.Now()

	for int(p.stats.IdleSessions.Load()) > p.minIdle {
		select {
		case ps := <-p.sessions:
			if now.Sub(ps.idleSince) > p.idleTimeout {
				p.stats.IdleSessions.Add(-1)
				p.stats.TotalSessions.Add(-1)
				ps.db.Close()
				p.logger.Debug("idle session closed",
					Duration("idle", now.Sub(ps.idleSince)))
			} else {
				p.sessions <- ps
				return
			}
		default:
			return
		}
	}
}

// healthCheckWorker periodically pings idle sessions.
func (p *SessionPool) healthCheckWorker() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.pingIdleSessions()
		}
	}
}

// pingIdleSessions runs one liveness round over the idle set, dropping
// sessions that fail.
func (p *SessionPool) pingIdleSessions() {
	idleCount := int(p.stats.IdleSessions.Load())

	for i := 0; i < idleCount; i++ {
		select {
		case ps := <-p.sessions:
			if err := ps.db.Ping(); err != nil || !ps.db.IsAlive() {
				p.stats.IdleSessions.Add(-1)
				p.stats.TotalSessions.Add(-1)
				ps.db.Close()
				p.logger.Debug("dead session dropped", Error("error", err))
			} else {
				p.sessions <- pooledSession{db: ps.db, idleSince: ps.idleSince}
			}
		default:
			return
		}
	}
}
