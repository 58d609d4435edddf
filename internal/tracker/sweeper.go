package tracker

import (
	"context"
	"time"

	"github.com/rudransh-shrivastava/rtracker/internal/store"
	"github.com/sirupsen/logrus"
)

// Sweeper periodically removes peers that stopped announcing.
type Sweeper struct {
	swarm    store.SwarmRepository
	interval time.Duration
	ttl      time.Duration
	logger   *logrus.Logger
}

func NewSweeper(swarm store.SwarmRepository, interval, ttl time.Duration, logger *logrus.Logger) *Sweeper {
	return &Sweeper{swarm: swarm, interval: interval, ttl: ttl, logger: logger}
}

// Run sweeps every interval until ctx is done.
func (sw *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sw.Sweep(ctx)
		}
	}
}

// Sweep prunes once. A failure is logged and the stale rows wait for the
// next cycle.
func (sw *Sweeper) Sweep(ctx context.Context) {
	removed, err := sw.swarm.Prune(ctx, sw.ttl)
	if err != nil {
		sw.logger.WithError(err).Error("Failed to prune stale peers")
		return
	}
	sw.logger.WithFields(logrus.Fields{"removed": removed, "ttl": sw.ttl}).Debug("Pruned stale peers")
}
