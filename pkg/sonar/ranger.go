package sonar

import (
	"context"
	"errors"
	"time"

	"github.com/stianeikeland/go-rpio/v4"
)

// ErrNoEcho is returned when the echo pulse does not start or end in time.
var ErrNoEcho = errors.New("sonar: no echo")

// Ranger measures the width of one echo pulse.
type Ranger interface {
	Echo(ctx context.Context) (time.Duration, error)
}

// Pin is the subset of rpio.Pin used by PulseRanger.
type Pin interface {
	High()
	Low()
	Read() rpio.State
}

// PulseRanger triggers a trigger/echo range finder and times the echo pulse.
type PulseRanger struct {
	trigger Pin
	echo    Pin
	timeout time.Duration
}

// NewPulseRanger creates a ranger on the given pins.
func NewPulseRanger(trigger, echo Pin, timeout time.Duration) *PulseRanger {
	return &PulseRanger{trigger: trigger, echo: echo, timeout: timeout}
}

func newGPIORanger(rc RangeCalibration) *PulseRanger {
	trigger := rpio.Pin(rc.TriggerPin)
	trigger.Output()
	trigger.Low()

	echo := rpio.Pin(rc.EchoPin)
	echo.Input()
	echo.PullDown()

	return NewPulseRanger(trigger, echo, rc.Timeout())
}

// Echo sends a 10 µs trigger pulse and returns the echo pulse width.
func (r *PulseRanger) Echo(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.trigger.Low()
	time.Sleep(2 * time.Microsecond)
	r.trigger.High()
	time.Sleep(10 * time.Microsecond)
	r.trigger.Low()

	deadline := time.Now().Add(r.timeout)
	for r.echo.Read() == rpio.Low {
		if time.Now().After(deadline) {
			return 0, ErrNoEcho
		}
	}

	start := time.Now()
	for r.echo.Read() == rpio.High {
		if time.Now().After(deadline) {
			return 0, ErrNoEcho
		}
	}
	return time.Since(start), nil
}
