package backup

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukerupert/catalogops/internal/optracker"
	"github.com/dukerupert/catalogops/internal/remote"
)

// Restorer imports the most recent snapshot back into the database.
type Restorer struct {
	tracker *optracker.Tracker
	objects remote.ObjectStore
	layout  Layout
	logger  *slog.Logger
}

func NewRestorer(tracker *optracker.Tracker, objects remote.ObjectStore, layout Layout, logger *slog.Logger) *Restorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Restorer{tracker: tracker, objects: objects, layout: layout, logger: logger}
}

// RestoreResult names the started import and the snapshot it reads.
type RestoreResult struct {
	Operation string `json:"operation"`
	Source    string `json:"source"`
}

// Latest returns the URI of the newest snapshot. Keys are zero-padded
// timestamps, so the lexicographic maximum is the newest.
func (r *Restorer) Latest(ctx context.Context) (string, error) {
	snapshots, err := listSnapshots(ctx, r.objects, r.layout)
	if err != nil {
		return "", err
	}
	if len(snapshots) == 0 {
		return "", ErrNoBackupAvailable
	}
	latest := snapshots[0]
	for _, s := range snapshots[1:] {
		if s.Key > latest.Key {
			latest = s
		}
	}
	return r.objects.Location().URI(latest.Prefix), nil
}

// Run starts an import of the newest snapshot and returns immediately; the
// import is not awaited.
func (r *Restorer) Run(ctx context.Context) (RestoreResult, error) {
	source, err := r.Latest(ctx)
	if err != nil {
		return RestoreResult{}, err
	}

	r.logger.Info("starting restore", "source", source)
	op, err := r.tracker.Start(ctx, source, remote.Import)
	if err != nil {
		return RestoreResult{}, fmt.Errorf("start import of %s: %w", source, err)
	}
	r.logger.Info("restore requested", "operation", op.Name, "source", source)

	return RestoreResult{Operation: op.Name, Source: source}, nil
}
