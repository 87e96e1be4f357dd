package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/inair/reportes/internal/archive"
	"github.com/inair/reportes/internal/types"
)

// RetentionStore is the subset of store.Store the retention worker needs.
type RetentionStore interface {
	ListSentBefore(ctx context.Context, cutoff time.Time) ([]types.DraftReport, error)
	DeleteDraft(ctx context.Context, folio string) error
}

// RetentionCoordinator archives sent drafts older than maxAge and removes
// them from the database. A draft whose archive write fails is kept and
// retried on the next cycle.
type RetentionCoordinator struct {
	store    RetentionStore
	archiver archive.Archiver
	interval time.Duration
	maxAge   time.Duration
	now      func() time.Time
}

// NewRetentionCoordinator creates a coordinator. A nil archiver behaves
// like archive.NoopArchiver.
func NewRetentionCoordinator(
	store RetentionStore,
	archiver archive.Archiver,
	interval time.Duration,
	maxAge time.Duration,
) *RetentionCoordinator {
	if archiver == nil {
		archiver = archive.NoopArchiver{}
	}
	return &RetentionCoordinator{
		store:    store,
		archiver: archiver,
		interval: interval,
		maxAge:   maxAge,
		now:      time.Now,
	}
}

// WithClock replaces the time source used to compute the retention cutoff.
func (c *RetentionCoordinator) WithClock(now func() time.Time) *RetentionCoordinator {
	c.now = now
	return c
}

// CycleResult summarizes one retention pass.
type CycleResult struct {
	Candidates int
	Archived   int
	Deleted    int
	Failed     int
}

// Run starts the coordinator loop. The first cycle runs immediately.
func (c *RetentionCoordinator) Run(ctx context.Context) {
	slog.Info("worker started",
		"component", "worker",
		"worker", "retention-coordinator",
		"action", "worker_started",
		"interval", c.interval,
		"max_age", c.maxAge,
		"archive_enabled", archive.Enabled(c.archiver),
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped",
				"component", "worker",
				"worker", "retention-coordinator",
				"action", "worker_stopped",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			c.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single retention pass and returns its summary.
func (c *RetentionCoordinator) RunOnce(ctx context.Context) CycleResult {
	var res CycleResult

	cutoff := c.now().Add(-c.maxAge)
	drafts, err := c.store.ListSentBefore(ctx, cutoff)
	if err != nil {
		slog.Error("failed to list expired drafts",
			"component", "worker",
			"worker", "retention-coordinator",
			"action", "list_expired_failed",
			"error", err,
		)
		return res
	}
	res.Candidates = len(drafts)

	for _, d := range drafts {
		if ctx.Err() != nil {
			return res // Graceful shutdown, don't log summary
		}
		if c.retire(ctx, d, &res) {
			res.Deleted++
		} else {
			res.Failed++
		}
	}

	if res.Candidates > 0 {
		slog.Info("retention cycle completed",
			"component", "worker",
			"worker", "retention-coordinator",
			"action", "cycle_complete",
			"cutoff", cutoff.UTC().Format(time.RFC3339),
			"total", res.Candidates,
			"archived", res.Archived,
			"deleted", res.Deleted,
			"failed", res.Failed,
		)
	}
	return res
}

// retire archives then deletes a single draft. Returns true if the draft was removed.
func (c *RetentionCoordinator) retire(ctx context.Context, d types.DraftReport, res *CycleResult) bool {
	if err := c.archiver.Archive(ctx, d); err != nil {
		if ctx.Err() != nil {
			return false
		}
		slog.Warn("draft archive failed, keeping draft",
			"component", "worker",
			"worker", "retention-coordinator",
			"action", "archive_failed",
			"folio", d.Folio,
			"error", err,
		)
		return false
	}
	if archive.Enabled(c.archiver) {
		res.Archived++
	}

	if err := c.store.DeleteDraft(ctx, d.Folio); err != nil {
		slog.Warn("expired draft delete failed",
			"component", "worker",
			"worker", "retention-coordinator",
			"action", "delete_failed",
			"folio", d.Folio,
			"error", err,
		)
		return false
	}

	slog.Info("expired draft removed",
		"component", "worker",
		"worker", "retention-coordinator",
		"action", "draft_retired",
		"folio", d.Folio,
	)
	return true
}
