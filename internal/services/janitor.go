package services

import (
	"context"
	"time"

	"github.com/johnwmail/npaste/internal/events"
	"github.com/johnwmail/npaste/internal/metrics"
	"github.com/johnwmail/npaste/storage"
	"go.uber.org/zap"
)

// Janitor periodically deletes expired pastes
type Janitor struct {
	store     storage.PasteStore
	publisher events.Publisher
	interval  time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewJanitor creates a janitor sweeping every interval. publisher may be nil.
func NewJanitor(store storage.PasteStore, publisher events.Publisher, interval time.Duration, logger *zap.Logger) *Janitor {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Janitor{
		store:     store,
		publisher: publisher,
		interval:  interval,
		logger:    logger,
		now:       time.Now,
	}
}

// Run sweeps until ctx is done. A non-positive interval disables it.
func (j *Janitor) Run(ctx context.Context) {
	if j.interval <= 0 {
		j.logger.Info("expired paste cleanup disabled")
		return
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := j.Sweep(ctx); err != nil && ctx.Err() == nil {
				j.logger.Error("expired paste cleanup failed", zap.Error(err))
			}
		}
	}
}

// Sweep runs one purge and returns how many pastes were removed
func (j *Janitor) Sweep(ctx context.Context) (int64, error) {
	start := time.Now()
	n, err := j.store.PurgeExpired(ctx, j.now())
	metrics.ObserveStore("purge_expired", start, err)
	if err != nil {
		return n, storeError("purge expired", err)
	}
	if n > 0 {
		metrics.PastesPurged.Add(float64(n))
		j.logger.Info("purged expired pastes", zap.Int64("count", n))
		if err := j.publisher.Publish(ctx, events.Event{Type: events.PastesPurged, Count: n, OccurredAt: time.Now().UTC()}); err != nil {
			j.logger.Warn("failed to publish event", zap.String("type", events.PastesPurged), zap.Error(err))
		}
	}
	return n, nil
}
