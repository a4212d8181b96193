package web

import (
	"context"
	"time"

	"clauselens/store"

	"go.uber.org/zap"
)

// CleanupService removes chat sessions that have been inactive past the
// retention age. Documents are unaffected; only conversation state expires.
type CleanupService struct {
	store        *store.PostgresStore
	retentionAge time.Duration
	interval     time.Duration
	logger       *zap.Logger
}

// NewCleanupService creates a new cleanup service instance
func NewCleanupService(store *store.PostgresStore, retentionAge, interval time.Duration, logger *zap.Logger) *CleanupService {
	return &CleanupService{
		store:        store,
		retentionAge: retentionAge,
		interval:     interval,
		logger:       logger,
	}
}

// Run sweeps on the configured interval until ctx is cancelled. An initial
// sweep runs at startup so restarts don't postpone retention.
func (cs *CleanupService) Run(ctx context.Context) {
	cs.sweep(ctx)

	ticker := time.NewTicker(cs.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cs.sweep(ctx)
		}
	}
}

func (cs *CleanupService) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-cs.retentionAge)
	cs.logger.Debug("Starting stale session cleanup", zap.Time("cutoff", cutoff))

	deleted, err := cs.store.DeleteInactiveSessions(ctx, cutoff)
	if err != nil {
		cs.logger.Error("Stale session cleanup failed", zap.Error(err))
		return
	}
	if deleted > 0 {
		cs.logger.Info("Stale session cleanup completed", zap.Int64("sessions_deleted", deleted))
	}
}
