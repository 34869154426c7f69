package store

import (
	"context"
	"sync"
	"sync/atomic"
)

// Outcome reports what a mutation did. Applied means the local mirror
// changed; Persisted means the remote write succeeded. A mutation never
// reports Applied without Persisted.
type Outcome struct {
	Applied   bool
	Persisted bool
	Err       error
}

// OK reports whether the mutation finished without error.
func (o Outcome) OK() bool {
	return o.Err == nil
}

func failed(err error) Outcome {
	return Outcome{Err: err}
}

func applied() Outcome {
	return Outcome{Applied: true, Persisted: true}
}

// noop is a successful mutation that had nothing to change.
func noop() Outcome {
	return Outcome{}
}

// State is the lifecycle of an asynchronous Mutation.
type State int32

const (
	StatePending State = iota
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Mutation is a handle to a mutation running in the background.
type Mutation struct {
	state   atomic.Int32
	done    chan struct{}
	outcome Outcome
}

// State reports whether the mutation is still running and how it ended.
func (m *Mutation) State() State {
	return State(m.state.Load())
}

// Done is closed once the mutation has finished.
func (m *Mutation) Done() <-chan struct{} {
	return m.done
}

// Wait blocks until the mutation finishes or ctx is done. Giving up on ctx
// does not stop the mutation.
func (m *Mutation) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-m.done:
		return m.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

func (m *Mutation) finish(o Outcome) {
	m.outcome = o
	if o.Err != nil {
		m.state.Store(int32(StateFailed))
	} else {
		m.state.Store(int32(StateSucceeded))
	}
	close(m.done)
}

// tracker counts in-flight background mutations so Teardown can drain them.
type tracker struct {
	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
}

func (t *tracker) start() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	t.wg.Add(1)
	return true
}

func (t *tracker) close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.wg.Wait()
}

func (t *tracker) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Go runs fn in the background and returns a handle to its outcome. fn
// receives a context that keeps ctx's values but is not cancelled with it,
// so a started write always completes and reports honestly.
func (s *Store) Go(ctx context.Context, fn func(ctx context.Context) Outcome) *Mutation {
	m := &Mutation{done: make(chan struct{})}
	if !s.inflight.start() {
		m.finish(failed(ErrClosed))
		return m
	}
	detached := context.WithoutCancel(ctx)
	go func() {
		defer s.inflight.wg.Done()
		m.finish(fn(detached))
	}()
	return m
}
