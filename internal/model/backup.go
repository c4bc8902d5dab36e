package model

import "time"

type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
)

// BackupSnapshot is one exported copy of the document database. Key is the
// timestamp-encoded path segment ("2006-01-02/1504/") and sorts chronologically.
type BackupSnapshot struct {
	Key       string    `json:"key"`
	Prefix    string    `json:"prefix"`
	CreatedAt time.Time `json:"createdAt"`
	SizeBytes uint64    `json:"sizeBytes"`
}

// BackupRun is the audit record appended after every successful backup.
type BackupRun struct {
	Destination string    `json:"destination"`
	SizeBytes   uint64    `json:"sizeBytes"`
	Trigger     Trigger   `json:"trigger"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Doc returns the document representation stored in the run log collection.
func (r BackupRun) Doc() map[string]any {
	return map[string]any{
		"destination": r.Destination,
		"sizeBytes":   int64(r.SizeBytes),
		"trigger":     string(r.Trigger),
		"createdAt":   r.CreatedAt,
	}
}
