package estop

import "time"

// DefaultSilence is how long a new level must wait after the last emitted one.
const DefaultSilence = 200 * time.Millisecond

// Debouncer filters contact bounce from a switch.
type Debouncer struct {
	Silence time.Duration
	Now     func() time.Time

	lastEmitTime  time.Time
	lastEmitLevel uint
}

func (d *Debouncer) update(newTime time.Time, newLevel uint) {
	d.lastEmitTime = newTime
	d.lastEmitLevel = newLevel
}

// Push reports whether level should be emitted: it is the first level seen, or
// it differs from the last emitted level and the silence window has passed.
func (d *Debouncer) Push(level uint) bool {
	now := time.Now()
	if d.Now != nil {
		now = d.Now()
	}
	if d.lastEmitTime.IsZero() {
		d.update(now, level)
		return true
	}

	if level == d.lastEmitLevel {
		return false
	}

	silence := d.Silence
	if silence == 0 {
		silence = DefaultSilence
	}
	if now.After(d.lastEmitTime.Add(silence)) {
		d.update(now, level)
		return true
	}

	return false
}
