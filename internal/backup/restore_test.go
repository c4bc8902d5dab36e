package backup

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/dukerupert/catalogops/internal/optracker"
	"github.com/dukerupert/catalogops/internal/remote"
	"github.com/dukerupert/catalogops/internal/remote/remotetest"
)

func TestRestorePicksNewestSnapshot(t *testing.T) {
	objects := remotetest.NewObjects("backups")
	objects.Add("firestore/2024-01-01/0300/out", 1)
	objects.Add("firestore/2024-01-02/0300/out", 1)
	objects.Add("firestore/2023-12-31/2359/out", 1)
	objects.Add("firestore/garbage/out", 1)
	ops := remotetest.NewOperations()

	r := NewRestorer(optracker.New(ops, slog.Default()), objects, Layout{Prefix: "firestore"}, nil)
	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}

	want := "gs://backups/firestore/2024-01-02/0300/"
	if res.Source != want {
		t.Errorf("source = %q, want %q", res.Source, want)
	}
	if res.Operation == "" {
		t.Error("expected an operation name")
	}

	starts := ops.Starts()
	if len(starts) != 1 || starts[0].Direction != remote.Import || starts[0].URI != want {
		t.Errorf("starts = %+v, want one import of %s", starts, want)
	}
	if polls := ops.Polls(res.Operation); polls != 0 {
		t.Errorf("restore polled %d times, want 0", polls)
	}
}

func TestRestoreNoBackup(t *testing.T) {
	objects := remotetest.NewObjects("backups")
	objects.Add("firestore/notes.txt", 1)
	ops := remotetest.NewOperations()

	r := NewRestorer(optracker.New(ops, nil), objects, Layout{Prefix: "firestore"}, nil)
	_, err := r.Run(context.Background())
	if !errors.Is(err, ErrNoBackupAvailable) {
		t.Fatalf("err = %v, want ErrNoBackupAvailable", err)
	}
	if len(ops.Starts()) != 0 {
		t.Error("no import should start without a snapshot")
	}
}

func TestRestoreStartRejected(t *testing.T) {
	objects := remotetest.NewObjects("backups")
	objects.Add("firestore/2024-01-01/0300/out", 1)
	ops := remotetest.NewOperations()
	ops.StartErr = &remote.StatusError{Code: 403, Body: "denied"}

	r := NewRestorer(optracker.New(ops, nil), objects, Layout{Prefix: "firestore"}, nil)
	_, err := r.Run(context.Background())
	var rejected *optracker.RemoteRejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("err = %v, want *RemoteRejectedError", err)
	}
	if rejected.StatusCode != 403 {
		t.Errorf("status = %d, want 403", rejected.StatusCode)
	}
}
