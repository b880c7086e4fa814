// Package retention sweeps expired confirmation checkpoints.
//
// A pending checkpoint whose approval window has passed is marked expired by
// the state store on the next resume attempt anyway; the janitor bounds how
// long stale pendings linger when nobody ever resumes them. It runs as a
// background goroutine and respects context cancellation for graceful
// shutdown.
package retention

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/briefdesk/briefdesk/internal/state"
)

// Janitor periodically expires overdue checkpoints.
type Janitor struct {
	store    state.Store
	interval time.Duration
}

// NewJanitor creates a janitor that sweeps on the given interval.
func NewJanitor(s state.Store, interval time.Duration) *Janitor {
	if interval < time.Second {
		interval = time.Minute
	}
	return &Janitor{store: s, interval: interval}
}

// Run sweeps until the context is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", j.interval).Msg("checkpoint janitor started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("checkpoint janitor stopped")
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	n, err := j.store.ExpireCheckpoints(ctx, time.Now().UTC())
	if err != nil {
		log.Warn().Err(err).Msg("checkpoint sweep failed")
		return
	}
	if n > 0 {
		log.Info().Int("expired", n).Msg("checkpoints expired")
	}
}
