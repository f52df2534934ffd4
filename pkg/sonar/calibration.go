package sonar

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Speed of sound gives a round trip of about 5.8 µs per millimetre.
const defaultMicrosPerMM = 5.8

// RangeCalibration holds wiring and conversion data for a single range finder.
type RangeCalibration struct {
	TriggerPin  int     `json:"trigger_pin"`
	EchoPin     int     `json:"echo_pin"`
	MicrosPerMM float64 `json:"micros_per_mm"`
	OffsetMM    int     `json:"offset_mm"`
	RangeMin    int     `json:"range_min"`
	RangeMax    int     `json:"range_max"`
}

// Calibration holds calibration data for all range finders, keyed by side.
type Calibration map[Side]RangeCalibration

// DefaultCalibration returns HC-SR04 style defaults on the usual BCM pins.
func DefaultCalibration() Calibration {
	pins := map[Side][2]int{
		Left:  {23, 24},
		Front: {17, 27},
		Right: {5, 6},
	}
	cal := make(Calibration, len(pins))
	for side, p := range pins {
		cal[side] = RangeCalibration{
			TriggerPin:  p[0],
			EchoPin:     p[1],
			MicrosPerMM: defaultMicrosPerMM,
			RangeMin:    20,
			RangeMax:    4000,
		}
	}
	return cal
}

// LoadCalibration loads calibration data from a JSON file.
func LoadCalibration(path string) (Calibration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calibration file: %w", err)
	}

	var raw map[string]RangeCalibration
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse calibration JSON: %w", err)
	}

	cal := make(Calibration, len(raw))
	for name, rc := range raw {
		cal[Side(name)] = rc
	}

	return cal, nil
}

// Distance converts an echo pulse width to millimetres, clamped to [RangeMin, RangeMax].
func (c RangeCalibration) Distance(echo time.Duration) int {
	perMM := c.MicrosPerMM
	if perMM <= 0 {
		perMM = defaultMicrosPerMM
	}
	mm := int(float64(echo.Microseconds())/perMM) + c.OffsetMM
	if mm < c.RangeMin {
		return c.RangeMin
	}
	if c.RangeMax > 0 && mm > c.RangeMax {
		return c.RangeMax
	}
	return mm
}

// Timeout returns how long to wait for an echo covering RangeMax.
func (c RangeCalibration) Timeout() time.Duration {
	perMM := c.MicrosPerMM
	if perMM <= 0 {
		perMM = defaultMicrosPerMM
	}
	maxMM := c.RangeMax
	if maxMM <= 0 {
		maxMM = 4000
	}
	return time.Duration(float64(maxMM)*perMM*1.2) * time.Microsecond
}

// Pins returns the GPIO pins in use, ordered by AllSides.
func (c Calibration) Pins() []int {
	pins := make([]int, 0, 2*len(c))
	for _, side := range AllSides() {
		if rc, ok := c[side]; ok {
			pins = append(pins, rc.TriggerPin, rc.EchoPin)
		}
	}
	return pins
}

// BySide returns the calibration for a side and whether it is complete.
func (c Calibration) BySide(side Side) (RangeCalibration, bool) {
	rc, ok := c[side]
	if !ok || rc.TriggerPin == rc.EchoPin {
		return RangeCalibration{}, false
	}
	return rc, true
}
