package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/tlsrelay/pkg/journal"
)

// Pruner deletes journal records older than the retention period.
type Pruner struct {
	storage       journal.Storage
	retentionDays int
	logger        *slog.Logger
	now           func() time.Time
}

// NewPruner creates a pruner. A retentionDays of zero or less keeps records
// forever.
func NewPruner(storage journal.Storage, retentionDays int, logger *slog.Logger) *Pruner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{
		storage:       storage,
		retentionDays: retentionDays,
		logger:        logger.With("component", "journal.retention"),
		now:           time.Now,
	}
}

// Cutoff returns the start time before which records are pruned, and false
// when retention is unlimited.
func (p *Pruner) Cutoff() (time.Time, bool) {
	if p.retentionDays <= 0 {
		return time.Time{}, false
	}
	return p.now().AddDate(0, 0, -p.retentionDays), true
}

// Prune deletes expired records and returns how many were removed.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	cutoff, ok := p.Cutoff()
	if !ok {
		p.logger.Debug("retention unlimited, nothing to prune")
		return 0, nil
	}

	deleted, err := p.storage.Delete(ctx, &journal.Query{EndTime: &cutoff})
	if err != nil {
		return 0, fmt.Errorf("prune by age failed: %w", err)
	}

	if deleted > 0 {
		p.logger.Info("journal pruning completed",
			"deleted_count", deleted,
			"retention_days", p.retentionDays,
			"cutoff_time", cutoff,
		)
	} else {
		p.logger.Debug("no journal records pruned", "cutoff_time", cutoff)
	}
	return deleted, nil
}
