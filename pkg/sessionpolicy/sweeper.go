package sessionpolicy

import (
	"context"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/ckdqa/pkg/database"
)

// Sweeper periodically evicts expired sessions and their ledgers in the
// background, grounded on the ticking worker-loop shape of
// pkg/queue/pool.go's orphan-reclaim goroutine, generalized from queue
// jobs to sessions.
type Sweeper struct {
	manager  *Manager
	ledgers  *LedgerRegistry
	streams  *StreamRegistry
	interval time.Duration
}

// NewSweeper builds a Sweeper over a session Manager and its associated
// ledger/stream registries.
func NewSweeper(m *Manager, ledgers *LedgerRegistry, streams *StreamRegistry, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{manager: m, ledgers: ledgers, streams: streams, interval: interval}
}

// Run blocks, sweeping on each tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := s.manager.CleanupExpired()
			for _, id := range removed {
				if s.ledgers != nil {
					s.ledgers.Delete(id)
				}
				if s.streams != nil {
					s.streams.Finish(id)
				}
			}
			if len(removed) > 0 {
				slog.Info("swept expired sessions", "count", len(removed))
			}
		}
	}
}

// RetentionSweeper periodically purges durable sessions (and their
// cascaded history/token rows, per the database schema's ON DELETE
// CASCADE) past the configured retention window. Grounded on the same
// ticking worker-loop shape as Sweeper, generalized from the in-memory
// Manager to database.Store so retention applies to both layers.
type RetentionSweeper struct {
	store    *database.Store
	maxAge   time.Duration
	interval time.Duration
}

// NewRetentionSweeper builds a RetentionSweeper over a durable Store.
func NewRetentionSweeper(store *database.Store, maxAge, interval time.Duration) *RetentionSweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &RetentionSweeper{store: store, maxAge: maxAge, interval: interval}
}

// Run blocks, purging on each tick until ctx is cancelled.
func (r *RetentionSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := r.store.DeleteExpiredSessions(ctx, r.maxAge)
			if err != nil {
				slog.Error("retention sweep failed", "error", err)
				continue
			}
			if count > 0 {
				slog.Info("retention: purged expired sessions", "count", count)
			}
		}
	}
}
