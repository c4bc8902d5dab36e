package backup

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukerupert/catalogops/internal/remote"
)

// Retention deletes snapshots that have aged out of the retention window.
type Retention struct {
	objects remote.ObjectStore
	layout  Layout
	logger  *slog.Logger
}

func NewRetention(objects remote.ObjectStore, layout Layout, logger *slog.Logger) *Retention {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retention{objects: objects, layout: layout, logger: logger}
}

// CleanupReport summarizes one retention sweep.
type CleanupReport struct {
	Cutoff  time.Time `json:"cutoff"`
	Scanned int       `json:"scanned"`
	Deleted int       `json:"deleted"`
	Failed  int       `json:"failed"`
}

// CleanupExpired deletes every snapshot whose timestamp is strictly before
// now - retentionDays*24h. Deletion failures are logged per snapshot and the
// sweep continues; only a failure to list snapshots is returned.
func (r *Retention) CleanupExpired(ctx context.Context, now time.Time, retentionDays int) (CleanupReport, error) {
	report := CleanupReport{}
	if retentionDays <= 0 {
		return report, nil
	}
	report.Cutoff = now.UTC().Add(-time.Duration(retentionDays) * 24 * time.Hour)

	snapshots, err := listSnapshots(ctx, r.objects, r.layout)
	if err != nil {
		return report, err
	}
	report.Scanned = len(snapshots)

	for _, snap := range snapshots {
		if !snap.CreatedAt.Before(report.Cutoff) {
			continue
		}
		if err := r.objects.DeletePrefix(ctx, snap.Prefix); err != nil {
			report.Failed++
			r.logger.Error("failed to delete expired backup", "prefix", snap.Prefix, "error", err)
			continue
		}
		report.Deleted++
		r.logger.Info("deleted expired backup", "prefix", snap.Prefix, "created_at", snap.CreatedAt)
	}

	return report, nil
}
