// Package control runs the reactive drive loop of the maze robot.
package control

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultDwell is how long the back-off command is held after a bump.
const DefaultDwell = 3 * time.Second

// DefaultSpeed is the nominal straight-line speed.
const DefaultSpeed = 300

// Motor drives the wheels.
type Motor interface {
	DriveDirect(ctx context.Context, left, right int) error
}

// Sensors takes a fresh sensor snapshot.
type Sensors interface {
	ReadSensors(ctx context.Context) (Snapshot, error)
}

// Ranges exposes the latest ultrasonic distances in millimetres.
type Ranges interface {
	LeftDistance() int
	FrontDistance() int
	RightDistance() int
}

// Platform is the hardware handle the controller drives. Close releases the
// motor link first, then the sensor links.
type Platform interface {
	Motor
	Sensors
	Ranges
	Close() error
}

// State is published after every command.
type State struct {
	Snapshot  Snapshot
	Command   Command
	Phase     Phase
	Timestamp time.Time
	Error     error
}

// Config holds configuration for the controller.
type Config struct {
	Platform Platform
	RunState *RunState // shared with supervisors; created if nil
	Sink     Sink      // receives log lines; a ChannelSink if nil
	Dwell    time.Duration
	Speed    int
}

// Controller manages the decision loop.
type Controller struct {
	platform Platform
	run      *RunState
	sink     Sink
	logs     *ChannelSink
	dwell    time.Duration
	speed    int

	started  atomic.Bool
	stateCh  chan State
	shutOnce sync.Once
	shutErr  error
}

// NewController creates a new controller.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Platform == nil {
		return nil, errors.New("no platform")
	}
	if cfg.RunState == nil {
		cfg.RunState = NewRunState()
	}
	if cfg.Dwell <= 0 {
		cfg.Dwell = DefaultDwell
	}
	if cfg.Speed <= 0 {
		cfg.Speed = DefaultSpeed
	}

	c := &Controller{
		platform: cfg.Platform,
		run:      cfg.RunState,
		sink:     cfg.Sink,
		dwell:    cfg.Dwell,
		speed:    cfg.Speed,
		stateCh:  make(chan State, 1),
	}
	if c.sink == nil {
		c.logs = NewChannelSink(10)
		c.sink = c.logs
	}
	return c, nil
}

// States returns a channel that receives state updates.
func (c *Controller) States() <-chan State {
	return c.stateCh
}

// Logs returns the log channel, or nil if a custom Sink was configured.
func (c *Controller) Logs() <-chan string {
	if c.logs == nil {
		return nil
	}
	return c.logs.Messages()
}

// IsRunning reports whether the loop is (still) allowed to run.
func (c *Controller) IsRunning() bool {
	return c.run.IsRunning()
}

// RequestStop asks the loop to stop at the next iteration or dwell.
func (c *Controller) RequestStop() {
	c.run.RequestStop()
}

// Speed returns the nominal straight-line speed.
func (c *Controller) Speed() int {
	return c.speed
}

// Dwell returns the recovery dwell time.
func (c *Controller) Dwell() time.Duration {
	return c.dwell
}

// Distance getters for the dashboard. They may return values older than the
// loop's last snapshot.
func (c *Controller) LeftDistance() int  { return c.platform.LeftDistance() }
func (c *Controller) FrontDistance() int { return c.platform.FrontDistance() }
func (c *Controller) RightDistance() int { return c.platform.RightDistance() }

func (c *Controller) log(format string, args ...any) {
	c.sink.Log(fmt.Sprintf(format, args...))
}

// Run executes the decision loop until a stop is requested, ctx is cancelled
// or the platform fails. It always ends with one stop command and ShutDown.
// The platform error is returned; a requested stop returns nil.
func (c *Controller) Run(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return fmt.Errorf("already running")
	}
	defer c.ShutDown()

	c.log("Controller started (speed %d, dwell %v)", c.speed, c.dwell)

	err := c.loop(ctx)
	c.run.RequestStop()
	if err != nil {
		c.log("%v", err)
	} else {
		c.log("Stop requested")
	}

	// The final stop goes out even when ctx is already cancelled.
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if stopErr := c.platform.DriveDirect(stopCtx, Stop.Left, Stop.Right); stopErr != nil {
		c.log("DEAD")
	}
	return err
}

func (c *Controller) loop(ctx context.Context) error {
	for {
		if !c.run.IsRunning() || ctx.Err() != nil {
			return nil
		}

		snap, err := c.platform.ReadSensors(ctx)
		if err != nil {
			// A stop that arrived mid-read may have closed the link under us.
			if ctx.Err() != nil || !c.run.IsRunning() {
				return nil
			}
			c.sendState(State{Snapshot: snap, Error: err, Timestamp: time.Now()})
			return fmt.Errorf("read sensors: %w", err)
		}

		cmd, phase := Decide(snap)

		// A stop may have arrived while the sensors were read.
		if !c.run.IsRunning() {
			return nil
		}
		if err := c.platform.DriveDirect(ctx, cmd.Left, cmd.Right); err != nil {
			if ctx.Err() != nil || !c.run.IsRunning() {
				return nil
			}
			c.sendState(State{Snapshot: snap, Command: cmd, Error: err, Timestamp: time.Now()})
			return fmt.Errorf("drive: %w", err)
		}

		c.sendState(State{
			Snapshot:  snap,
			Command:   cmd,
			Phase:     phase,
			Timestamp: time.Now(),
		})

		if phase == PhaseRecovering && !c.holdRecovery(ctx) {
			return nil
		}
	}
}

// holdRecovery holds the back-off command for the dwell time. It returns false if
// a stop arrived first.
func (c *Controller) holdRecovery(ctx context.Context) bool {
	timer := time.NewTimer(c.dwell)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-c.run.Done():
		return false
	case <-ctx.Done():
		return false
	}
}

func (c *Controller) sendState(s State) {
	select {
	case c.stateCh <- s:
	default:
		// Drop old state if channel full, replace with new
		select {
		case <-c.stateCh:
		default:
		}
		select {
		case c.stateCh <- s:
		default:
		}
	}
}

// ShutDown stops the loop and releases the platform. Only the first call
// does anything; later calls return the first result.
func (c *Controller) ShutDown() error {
	c.shutOnce.Do(func() {
		c.run.RequestStop()
		if err := c.platform.Close(); err != nil {
			c.shutErr = fmt.Errorf("close platform: %w", err)
		}
	})
	return c.shutErr
}
