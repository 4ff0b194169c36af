package notification

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Cleanup deletes aggregates past the retention period on a fixed interval
type Cleanup struct {
	repo      Repository
	interval  time.Duration
	retention time.Duration
}

// NewCleanup creates the retention job
func NewCleanup(repo Repository, interval, retention time.Duration) *Cleanup {
	return &Cleanup{repo: repo, interval: interval, retention: retention}
}

// Run sweeps until ctx is cancelled (call in a goroutine)
func (c *Cleanup) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Notification cleanup stopped")
			return
		case <-ticker.C:
			c.sweep(ctx)
		}
	}
}

func (c *Cleanup) sweep(ctx context.Context) {
	deleted, err := c.repo.DeleteOlderThan(ctx, c.retention)
	if err != nil {
		log.Error().Err(err).Msg("Notification cleanup failed")
		return
	}
	if deleted > 0 {
		log.Info().Int64("deleted", deleted).Msg("Expired notifications removed")
	}
}
