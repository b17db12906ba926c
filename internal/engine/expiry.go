package engine

import (
	"context"
	"time"

	"github.com/locaidev/locai/internal/errs"
	"github.com/locaidev/locai/internal/metrics"
)

// ExpiryReport summarizes one expiry sweep.
type ExpiryReport struct {
	Expired []string `json:"expired"`
	Vetoed  []string `json:"vetoed,omitempty"`
	DryRun  bool     `json:"dry_run"`
}

// SweepExpired deletes memories whose expires_at has passed. Deletion goes
// through the normal path, so pre-delete hooks can veto individual records;
// vetoed ids are reported, not failed. With dryRun set, the report lists what
// would expire without touching anything.
func (e *Engine) SweepExpired(ctx context.Context, dryRun bool) (*ExpiryReport, error) {
	now := time.Now().UTC()
	report := &ExpiryReport{DryRun: dryRun}

	all, err := e.store.ListMemories(ctx, nil, 0, 0)
	if err != nil {
		return nil, err
	}
	for i := range all {
		m := &all[i]
		if m.ExpiresAt == nil || m.ExpiresAt.After(now) {
			continue
		}
		if dryRun {
			report.Expired = append(report.Expired, m.ID)
			continue
		}
		deleted, err := e.DeleteMemory(ctx, m.ID)
		if err != nil {
			if errs.IsKind(err, errs.KindVetoed) {
				report.Vetoed = append(report.Vetoed, m.ID)
				continue
			}
			return nil, err
		}
		if deleted {
			report.Expired = append(report.Expired, m.ID)
			metrics.Inc(metrics.ExpiredMemories)
		}
	}

	if !dryRun && len(report.Expired) > 0 {
		e.logger.Info("expiry sweep completed",
			"expired", len(report.Expired), "vetoed", len(report.Vetoed))
	}
	return report, nil
}

// RunExpirySweeper loops SweepExpired on the given interval until the
// context is cancelled. Intended to run in its own goroutine.
func (e *Engine) RunExpirySweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.SweepExpired(ctx, false); err != nil {
				e.logger.Error("expiry sweep failed", "error", err)
			}
		}
	}
}
