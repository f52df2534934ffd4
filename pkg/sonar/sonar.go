package sonar

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stianeikeland/go-rpio/v4"
)

// DefaultInterval is the pause between two polling rounds.
const DefaultInterval = 60 * time.Millisecond

// Array polls the left, front and right range finders in turn. Distances are
// published through atomics so any goroutine may read them; a reading can be
// one polling round old.
type Array struct {
	rangers     map[Side]Ranger
	calibration Calibration
	interval    time.Duration
	release     func() error

	distances map[Side]*atomic.Int64
	errors    atomic.Int64

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	closed   bool
	closeErr error
}

// Open maps GPIO memory and creates an array from the calibration.
func Open(cal Calibration, interval time.Duration) (*Array, error) {
	rangers := make(map[Side]Ranger, len(cal))
	for _, side := range AllSides() {
		if _, ok := cal.BySide(side); !ok {
			return nil, fmt.Errorf("%s range finder not calibrated", side)
		}
	}

	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("open gpio: %w", err)
	}
	for _, side := range AllSides() {
		rc, _ := cal.BySide(side)
		rangers[side] = newGPIORanger(rc)
	}

	a := NewArray(rangers, cal, interval)
	a.release = rpio.Close
	return a, nil
}

// NewArray creates an array from existing rangers.
func NewArray(rangers map[Side]Ranger, cal Calibration, interval time.Duration) *Array {
	if interval <= 0 {
		interval = DefaultInterval
	}
	a := &Array{
		rangers:     rangers,
		calibration: cal,
		interval:    interval,
		distances:   make(map[Side]*atomic.Int64, len(AllSides())),
	}
	for _, side := range AllSides() {
		a.distances[side] = new(atomic.Int64)
	}
	return a
}

// Start begins polling in the background. It returns an error if the array
// is already polling or closed.
func (a *Array) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return fmt.Errorf("sonar array closed")
	}
	if a.done != nil {
		return fmt.Errorf("already running")
	}

	ctx, a.cancel = context.WithCancel(ctx)
	a.done = make(chan struct{})
	go a.poll(ctx, a.done)
	return nil
}

func (a *Array) poll(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		a.Poll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Poll runs one round over all range finders. Failed echoes keep the previous distance.
func (a *Array) Poll(ctx context.Context) {
	for _, side := range AllSides() {
		r, ok := a.rangers[side]
		if !ok {
			continue
		}
		echo, err := r.Echo(ctx)
		if err != nil {
			a.errors.Add(1)
			continue
		}
		a.distances[side].Store(int64(a.calibration[side].Distance(echo)))
	}
}

// Distance returns the last distance measured on a side, in millimetres.
func (a *Array) Distance(side Side) int {
	d, ok := a.distances[side]
	if !ok {
		return 0
	}
	return int(d.Load())
}

func (a *Array) LeftDistance() int  { return a.Distance(Left) }
func (a *Array) FrontDistance() int { return a.Distance(Front) }
func (a *Array) RightDistance() int { return a.Distance(Right) }

// Errors returns the number of failed echoes so far.
func (a *Array) Errors() int64 {
	return a.errors.Load()
}

// Close stops polling and releases the GPIO. It is safe to call more than once.
func (a *Array) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return a.closeErr
	}
	a.closed = true

	if a.cancel != nil {
		a.cancel()
		<-a.done
	}
	if a.release != nil {
		a.closeErr = a.release()
	}
	return a.closeErr
}
