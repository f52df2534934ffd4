// Package robot wires the Create base and the range finders into the
// hardware handle used by the drive loop, and stores their configuration.
package robot

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gwillem/iaroc/pkg/control"
	"github.com/gwillem/iaroc/pkg/create"
	"github.com/gwillem/iaroc/pkg/sonar"
)

// Base is the part of *create.Conn used by Robot.
type Base interface {
	DriveDirect(ctx context.Context, left, right int) error
	ReadSensors(ctx context.Context, group create.SensorGroup) error
	Sensors() create.Sensors
	Close() error
}

// Ranges is the part of *sonar.Array used by Robot.
type Ranges interface {
	LeftDistance() int
	FrontDistance() int
	RightDistance() int
	Close() error
}

// Robot is a Create base with three range finders.
type Robot struct {
	base   Base
	ranges Ranges

	closeOnce sync.Once
	closeErr  error
}

var _ control.Platform = (*Robot)(nil)

// Open connects to the base and starts polling the range finders.
func Open(ctx context.Context, cfg *Config) (*Robot, error) {
	base, err := create.Open(create.Config{
		Port:     cfg.Create.Port,
		BaudRate: cfg.Create.BaudRate,
		Mode:     cfg.Create.Mode,
	})
	if err != nil {
		return nil, fmt.Errorf("open create: %w", err)
	}

	array, err := sonar.Open(cfg.Sonar.Calibration, cfg.Sonar.PollInterval())
	if err != nil {
		base.Close()
		return nil, fmt.Errorf("open sonar: %w", err)
	}
	if err := array.Start(ctx); err != nil {
		array.Close()
		base.Close()
		return nil, fmt.Errorf("start sonar: %w", err)
	}

	return New(base, array), nil
}

// New creates a robot from an open base and range finder array.
func New(base Base, ranges Ranges) *Robot {
	return &Robot{base: base, ranges: ranges}
}

// DriveDirect sets the wheel velocities.
func (r *Robot) DriveDirect(ctx context.Context, left, right int) error {
	return r.base.DriveDirect(ctx, left, right)
}

// ReadSensors primes a full sensor read and returns the snapshot.
func (r *Robot) ReadSensors(ctx context.Context) (control.Snapshot, error) {
	if err := r.base.ReadSensors(ctx, create.GroupAll); err != nil {
		return control.Snapshot{}, err
	}
	s := r.base.Sensors()
	return control.Snapshot{
		BumpLeft:  s.BumpLeft,
		BumpRight: s.BumpRight,
		Infrared:  control.IRCode(s.Infrared),
		Left:      r.ranges.LeftDistance(),
		Front:     r.ranges.FrontDistance(),
		Right:     r.ranges.RightDistance(),
	}, nil
}

func (r *Robot) IsBumpLeft() bool  { return r.base.Sensors().BumpLeft }
func (r *Robot) IsBumpRight() bool { return r.base.Sensors().BumpRight }
func (r *Robot) InfraredByte() int { return int(r.base.Sensors().Infrared) }

func (r *Robot) LeftDistance() int  { return r.ranges.LeftDistance() }
func (r *Robot) FrontDistance() int { return r.ranges.FrontDistance() }
func (r *Robot) RightDistance() int { return r.ranges.RightDistance() }

// Close closes the base connection, then the range finders. Later calls
// return the first result.
func (r *Robot) Close() error {
	r.closeOnce.Do(func() {
		var errs []error
		if err := r.base.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close create: %w", err))
		}
		if err := r.ranges.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sonar: %w", err))
		}
		r.closeErr = errors.Join(errs...)
	})
	return r.closeErr
}
