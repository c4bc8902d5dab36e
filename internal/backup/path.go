package backup

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/dukerupert/catalogops/internal/model"
	"github.com/dukerupert/catalogops/internal/remote"
)

const keyLayout = "2006-01-02/1504"

var keyPattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})/(\d{4})/`)

// Layout places snapshots under Prefix/YYYY-MM-DD/HHMM/ in the bucket.
type Layout struct {
	Prefix string
}

// Root is the object-name prefix every snapshot lives under.
func (l Layout) Root() string {
	p := strings.Trim(l.Prefix, "/")
	if p == "" {
		return ""
	}
	return p + "/"
}

// Destination returns the object-name prefix of a snapshot taken at t.
// Minute granularity: two snapshots in the same minute share a destination.
func (l Layout) Destination(t time.Time) string {
	return l.Root() + SnapshotKey(t)
}

// SnapshotKey formats t as the UTC key "2006-01-02/1504/".
func SnapshotKey(t time.Time) string {
	return t.UTC().Format(keyLayout) + "/"
}

// ParseSnapshotKey extracts the snapshot key and its timestamp from an object
// name relative to the layout root. ok is false for anything that is not a
// well-formed key with a real calendar date and time.
func ParseSnapshotKey(rel string) (key string, ts time.Time, ok bool) {
	m := keyPattern.FindStringSubmatch(rel)
	if m == nil {
		return "", time.Time{}, false
	}
	ts, err := time.Parse(keyLayout, m[1]+"/"+m[2])
	if err != nil {
		return "", time.Time{}, false
	}
	return m[0], ts, true
}

// listSnapshots groups every object under the layout root by snapshot key.
// Objects whose names do not parse are ignored. Result is sorted by key.
func listSnapshots(ctx context.Context, objects remote.ObjectStore, layout Layout) ([]model.BackupSnapshot, error) {
	root := layout.Root()
	list, err := objects.List(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", objects.Location().URI(root), err)
	}

	byKey := make(map[string]*model.BackupSnapshot)
	for _, obj := range list {
		key, ts, ok := ParseSnapshotKey(strings.TrimPrefix(obj.Name, root))
		if !ok {
			continue
		}
		snap, ok := byKey[key]
		if !ok {
			snap = &model.BackupSnapshot{Key: key, Prefix: root + key, CreatedAt: ts}
			byKey[key] = snap
		}
		if obj.Size > 0 {
			snap.SizeBytes += uint64(obj.Size)
		}
	}

	snapshots := make([]model.BackupSnapshot, 0, len(byKey))
	for _, s := range byKey {
		snapshots = append(snapshots, *s)
	}
	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].Key < snapshots[j].Key })
	return snapshots, nil
}
