package control

import (
	"sync"
	"sync/atomic"
)

// RunState is the shared running flag. It starts true and, once cleared,
// stays false. All methods are safe for concurrent use.
type RunState struct {
	running atomic.Bool
	once    sync.Once
	done    chan struct{}
}

// NewRunState returns a running state.
func NewRunState() *RunState {
	r := &RunState{done: make(chan struct{})}
	r.running.Store(true)
	return r
}

// IsRunning reports whether no stop has been requested.
func (r *RunState) IsRunning() bool {
	return r.running.Load()
}

// RequestStop clears the flag. Extra calls do nothing.
func (r *RunState) RequestStop() {
	r.once.Do(func() {
		r.running.Store(false)
		close(r.done)
	})
}

// Done is closed when a stop is requested.
func (r *RunState) Done() <-chan struct{} {
	return r.done
}
