// Package optracker starts long-running export/import operations and watches
// them until they finish.
package optracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/catalogops/internal/remote"
)

var (
	// ErrRemoteRejected matches any *RemoteRejectedError.
	ErrRemoteRejected = errors.New("remote rejected request")
	// ErrOperationTimeout means the deadline passed before the operation was done.
	ErrOperationTimeout = errors.New("operation did not complete before timeout")
)

// RemoteRejectedError is returned when the store refuses to start an operation.
type RemoteRejectedError struct {
	Direction  remote.Direction
	StatusCode int
	Body       string
	Err        error
}

func (e *RemoteRejectedError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s rejected: status %d: %s", e.Direction, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s rejected: %v", e.Direction, e.Err)
}

func (e *RemoteRejectedError) Unwrap() error { return e.Err }

func (e *RemoteRejectedError) Is(target error) bool { return target == ErrRemoteRejected }

// PollError wraps a failed status request.
type PollError struct {
	Operation string
	Err       error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("poll %s: %v", e.Operation, e.Err)
}

func (e *PollError) Unwrap() error { return e.Err }

// OperationFailedError is returned when an operation finished with an error.
type OperationFailedError struct {
	Operation string
	Code      int
	Message   string
}

func (e *OperationFailedError) Error() string {
	return fmt.Sprintf("operation %s failed: code %d: %s", e.Operation, e.Code, e.Message)
}

// Tracker issues operations through an OperationClient and polls them.
type Tracker struct {
	client remote.OperationClient
	logger *slog.Logger
}

func New(client remote.OperationClient, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{client: client, logger: logger}
}

// Start requests a new operation against uri.
func (t *Tracker) Start(ctx context.Context, uri string, dir remote.Direction) (remote.Operation, error) {
	op, err := t.client.Start(ctx, dir, uri)
	if err != nil {
		rejected := &RemoteRejectedError{Direction: dir, Err: err}
		var se *remote.StatusError
		if errors.As(err, &se) {
			rejected.StatusCode = se.Code
			rejected.Body = se.Body
		}
		return remote.Operation{}, rejected
	}
	t.logger.Info("operation started", "operation", op.Name, "direction", dir, "uri", uri)
	return op, nil
}

// Await polls the named operation every interval until it is done or timeout
// elapses. Neither timeouts nor poll failures are retried; the remote job
// keeps running either way.
func (t *Tracker) Await(ctx context.Context, name string, interval, timeout time.Duration) (remote.Operation, error) {
	deadline := time.Now().Add(timeout)
	timer := time.NewTimer(min(interval, timeout))
	defer timer.Stop()

	for polls := 1; ; polls++ {
		select {
		case <-ctx.Done():
			return remote.Operation{}, ctx.Err()
		case <-timer.C:
		}

		op, err := t.client.Get(ctx, name)
		if err != nil {
			return remote.Operation{}, &PollError{Operation: name, Err: err}
		}
		if op.Done {
			if op.Error != nil {
				return op, &OperationFailedError{Operation: name, Code: op.Error.Code, Message: op.Error.Message}
			}
			t.logger.Info("operation done", "operation", name, "polls", polls)
			return op, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			t.logger.Warn("operation timed out", "operation", name, "polls", polls, "timeout", timeout)
			return op, fmt.Errorf("%s: %w", name, ErrOperationTimeout)
		}
		t.logger.Debug("operation pending", "operation", name, "polls", polls)
		timer.Reset(min(interval, remaining))
	}
}
