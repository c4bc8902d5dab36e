package backup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorhill/cronexpr"

	"github.com/dukerupert/catalogops/internal/model"
	"github.com/dukerupert/catalogops/internal/optracker"
	"github.com/dukerupert/catalogops/internal/remote"
)

// RunsCollection holds the append-only BackupRun audit log.
const RunsCollection = "backupRuns"

var (
	ErrExportStartFailed = errors.New("export start failed")
	ErrBackupIncomplete  = errors.New("backup incomplete")
	ErrNoBackupAvailable = errors.New("no backup available")
)

// Config holds backup manager configuration.
type Config struct {
	Prefix string
	// Schedule is a cron expression evaluated in UTC. Empty or "off"
	// disables scheduled backups.
	Schedule      string
	RetentionDays int
	PollInterval  time.Duration
	PollTimeout   time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = 15 * time.Minute
	}
	return c
}

// State represents the backup manager state.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

// Status holds the current backup manager status.
type Status struct {
	State           State      `json:"state"`
	LastBackup      *time.Time `json:"lastBackup,omitempty"`
	LastDestination string     `json:"lastDestination,omitempty"`
	NextRun         *time.Time `json:"nextRun,omitempty"`
	Error           string     `json:"error,omitempty"`
	InProgress      bool       `json:"inProgress"`
}

// StatusCallback is called whenever the backup state changes.
type StatusCallback func(Status)

// Result describes a completed backup.
type Result struct {
	Destination string `json:"destination"`
	SizeBytes   uint64 `json:"sizeBytes"`
}

// Manager runs database exports into the backup bucket, on a schedule and on
// demand, records each successful run and applies retention afterwards.
type Manager struct {
	mu       sync.RWMutex
	cfg      Config
	layout   Layout
	status   Status
	callback StatusCallback
	schedule *cronexpr.Expression

	tracker   *optracker.Tracker
	objects   remote.ObjectStore
	docs      remote.DocumentStore
	retention *Retention
	logger    *slog.Logger
	now       func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a new backup manager.
func NewManager(cfg Config, tracker *optracker.Tracker, objects remote.ObjectStore, docs remote.DocumentStore, logger *slog.Logger, callback StatusCallback) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	layout := Layout{Prefix: cfg.Prefix}

	m := &Manager{
		cfg:       cfg,
		layout:    layout,
		callback:  callback,
		tracker:   tracker,
		objects:   objects,
		docs:      docs,
		retention: NewRetention(objects, layout, logger.With("component", "retention")),
		logger:    logger,
		now:       time.Now,
		status:    Status{State: StateDisabled},
	}

	if s := strings.TrimSpace(cfg.Schedule); s != "" && s != "off" {
		expr, err := cronexpr.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("parse backup schedule %q: %w", s, err)
		}
		m.schedule = expr
		m.status.State = StateIdle
	}

	return m, nil
}

// Layout returns where snapshots are stored.
func (m *Manager) Layout() Layout { return m.layout }

// Start begins the scheduled backup loop. It is a no-op when no schedule is
// configured.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.schedule == nil {
		m.mu.Unlock()
		m.logger.Info("scheduled backups disabled")
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		for {
			next := m.schedule.Next(m.now().UTC())
			if next.IsZero() {
				m.logger.Warn("backup schedule has no future runs", "schedule", m.cfg.Schedule)
				return
			}
			m.setNextRun(next)

			timer := time.NewTimer(time.Until(next))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}

			if _, err := m.Run(ctx, model.TriggerScheduled); err != nil {
				m.logger.Error("scheduled backup failed", "error", err)
			}
		}
	}()
}

// Stop gracefully stops the backup manager.
func (m *Manager) Stop() {
	m.mu.RLock()
	cancel := m.cancel
	done := m.done
	m.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Status returns the current backup status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	s.NextRun = m.status.NextRun
	if s.LastBackup == nil {
		s.LastBackup = m.status.LastBackup
		s.LastDestination = m.status.LastDestination
	}
	m.status = s
	m.mu.Unlock()
	if m.callback != nil {
		m.callback(s)
	}
}

func (m *Manager) setNextRun(t time.Time) {
	m.mu.Lock()
	m.status.NextRun = &t
	m.mu.Unlock()
}

// Run exports the database to a new snapshot and waits for the export to
// finish. Only a finished export is sized, recorded and followed by
// retention cleanup; any earlier failure leaves no trace in the run log.
func (m *Manager) Run(ctx context.Context, trigger model.Trigger) (Result, error) {
	started := m.now().UTC()
	name := m.layout.Destination(started)
	destination := m.objects.Location().URI(name)

	m.setStatus(Status{State: StateRunning, InProgress: true})
	m.logger.Info("starting backup", "destination", destination, "trigger", trigger)

	op, err := m.tracker.Start(ctx, destination, remote.Export)
	if err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return Result{}, fmt.Errorf("%w: %w", ErrExportStartFailed, err)
	}

	done, err := m.tracker.Await(ctx, op.Name, m.cfg.PollInterval, m.cfg.PollTimeout)
	if err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return Result{}, fmt.Errorf("%w: %w", ErrBackupIncomplete, err)
	}

	actual := destination
	if reported := done.MetadataString("outputUriPrefix"); reported != "" {
		actual = reported
	}
	prefix, ok := m.objects.Location().Resolve(actual)
	if !ok {
		m.logger.Warn("export reported a prefix outside the backup bucket", "reported", actual)
		prefix, actual = name, destination
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	size, err := m.sizeOf(ctx, prefix)
	if err != nil {
		m.logger.Warn("could not measure backup size", "prefix", prefix, "error", err)
	}

	run := model.BackupRun{
		Destination: actual,
		SizeBytes:   size,
		Trigger:     trigger,
		CreatedAt:   m.now().UTC(),
	}
	if _, err := m.docs.Create(ctx, RunsCollection, run.Doc()); err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return Result{}, fmt.Errorf("record backup run: %w", err)
	}
	m.logger.Info("backup complete",
		"destination", actual,
		"size_bytes", size,
		"size", humanize.Bytes(size),
		"trigger", trigger,
		"duration", m.now().Sub(started),
	)

	if report, err := m.retention.CleanupExpired(ctx, m.now(), m.cfg.RetentionDays); err != nil {
		m.logger.Error("backup cleanup failed", "error", err)
	} else if report.Deleted > 0 || report.Failed > 0 {
		m.logger.Info("backup cleanup finished", "deleted", report.Deleted, "failed", report.Failed, "cutoff", report.Cutoff)
	}

	finished := m.now().UTC()
	m.setStatus(Status{State: StateIdle, LastBackup: &finished, LastDestination: actual})

	return Result{Destination: actual, SizeBytes: size}, nil
}

func (m *Manager) sizeOf(ctx context.Context, prefix string) (uint64, error) {
	objects, err := m.objects.List(ctx, prefix)
	if err != nil {
		return 0, err
	}
	var total uint64
	for _, obj := range objects {
		if obj.Size > 0 {
			total += uint64(obj.Size)
		}
	}
	return total, nil
}

// Snapshots lists stored snapshots, oldest first.
func (m *Manager) Snapshots(ctx context.Context) ([]model.BackupSnapshot, error) {
	return listSnapshots(ctx, m.objects, m.layout)
}

// Cleanup applies the configured retention window now.
func (m *Manager) Cleanup(ctx context.Context) (CleanupReport, error) {
	return m.retention.CleanupExpired(ctx, m.now(), m.cfg.RetentionDays)
}
