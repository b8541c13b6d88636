// Package worker runs periodic maintenance against the list store.
package worker

import (
	"context"
	"log/slog"
	"time"
)

// BatchStore is the slice of the store the worker needs.
type BatchStore interface {
	PruneMergeBatches(ctx context.Context, before time.Time) (int64, error)
}

// Config holds worker configuration.
type Config struct {
	// Interval is how often the prune pass runs.
	Interval time.Duration

	// Retention is how long merge batch markers are kept. Markers only
	// matter while a client may still retry a batch, so this can be
	// short; it must comfortably exceed the client's sync timeout.
	Retention time.Duration
}

// Worker prunes expired merge batch markers on a fixed interval.
type Worker struct {
	config Config
	store  BatchStore
	logger *slog.Logger
}

// New creates a maintenance worker.
func New(store BatchStore, config Config, logger *slog.Logger) *Worker {
	if config.Interval == 0 {
		config.Interval = 1 * time.Hour
	}
	if config.Retention == 0 {
		config.Retention = 30 * 24 * time.Hour
	}
	return &Worker{
		config: config,
		store:  store,
		logger: logger,
	}
}

// Start runs prune passes until the context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("maintenance worker starting",
		"interval", w.config.Interval,
		"retention", w.config.Retention,
	)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("maintenance worker shutting down")
			return ctx.Err()
		case <-ticker.C:
			w.prune(ctx)
		}
	}
}

func (w *Worker) prune(ctx context.Context) {
	cutoff := time.Now().Add(-w.config.Retention)

	pruned, err := w.store.PruneMergeBatches(ctx, cutoff)
	if err != nil {
		w.logger.Error("failed to prune merge batches", "error", err)
		return
	}
	if pruned > 0 {
		w.logger.Info("pruned merge batches", "count", pruned, "cutoff", cutoff)
	}
}
