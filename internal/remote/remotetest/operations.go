package remotetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/dukerupert/catalogops/internal/remote"
)

// Started records one Start call.
type Started struct {
	Direction remote.Direction
	URI       string
}

// Operations is a scripted remote.OperationClient. Each started operation
// reports done after DoneAfter polls.
type Operations struct {
	mu     sync.Mutex
	seq    int
	polls  map[string]int
	starts []Started

	// StartErr is returned by Start when set.
	StartErr error
	// PollErr is returned by Get when set.
	PollErr error
	// DoneAfter is the number of polls before an operation reports done.
	// A negative value means it never completes.
	DoneAfter int
	// Metadata is attached to every operation.
	Metadata map[string]any
	// Failure makes completed operations report this error.
	Failure *remote.OperationError
}

func NewOperations() *Operations {
	return &Operations{polls: make(map[string]int)}
}

func (o *Operations) Start(_ context.Context, dir remote.Direction, uri string) (remote.Operation, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.StartErr != nil {
		return remote.Operation{}, o.StartErr
	}
	o.seq++
	o.starts = append(o.starts, Started{Direction: dir, URI: uri})
	name := fmt.Sprintf("operations/%s-%d", dir, o.seq)
	o.polls[name] = 0
	return remote.Operation{Name: name, Metadata: o.Metadata}, nil
}

func (o *Operations) Get(_ context.Context, name string) (remote.Operation, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.PollErr != nil {
		return remote.Operation{}, o.PollErr
	}
	n, ok := o.polls[name]
	if !ok {
		return remote.Operation{}, remote.ErrNotFound
	}
	n++
	o.polls[name] = n
	op := remote.Operation{Name: name, Metadata: o.Metadata}
	if o.DoneAfter >= 0 && n >= o.DoneAfter {
		op.Done = true
		op.Error = o.Failure
	}
	return op, nil
}

// Starts returns a copy of the recorded Start calls.
func (o *Operations) Starts() []Started {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Started(nil), o.starts...)
}

// Polls returns how many times an operation was polled.
func (o *Operations) Polls(name string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.polls[name]
}
