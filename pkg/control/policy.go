package control

import "fmt"

// IRCode is the byte reported by the infrared receiver.
type IRCode byte

// Beacon codes the controller reacts to. Anything else drives straight.
const (
	IRGreenBuoy IRCode = 244
	IRRedBuoy   IRCode = 248
	IRAll       IRCode = 254
	IRNone      IRCode = 255
)

func (c IRCode) String() string {
	switch c {
	case IRNone:
		return "none"
	case IRGreenBuoy:
		return "green buoy"
	case IRRedBuoy:
		return "red buoy"
	case IRAll:
		return "all"
	default:
		return fmt.Sprintf("other(%d)", byte(c))
	}
}

// Command is a pair of wheel velocities in device units (mm/s on a Create).
type Command struct {
	Left  int
	Right int
}

// Stop is the all-zero command.
var Stop = Command{}

// Snapshot is one reading of the sensors.
type Snapshot struct {
	BumpLeft  bool
	BumpRight bool
	Infrared  IRCode
	Left      int // mm
	Front     int // mm
	Right     int // mm
}

// Bumped reports whether either bump switch is pressed.
func (s Snapshot) Bumped() bool {
	return s.BumpLeft || s.BumpRight
}

// Phase is the controller phase after a decision.
type Phase int

const (
	PhaseNormal Phase = iota
	// PhaseRecovering holds the back-off command for the dwell time.
	PhaseRecovering
)

func (p Phase) String() string {
	if p == PhaseRecovering {
		return "recovering"
	}
	return "normal"
}

// Commands issued by Decide.
var (
	BackOff   = Command{Left: -150, Right: -100}
	Search    = Command{Left: -100, Right: 100}
	VeerLeft  = Command{Left: 50, Right: 100}
	VeerRight = Command{Left: 100, Right: 50}
	FullSpeed = Command{Left: 500, Right: 500}
	Straight  = Command{Left: 100, Right: 100}
)

// Decide maps a snapshot to a command. A bump always wins over the infrared
// code and starts a recovery dwell.
func Decide(s Snapshot) (Command, Phase) {
	if s.Bumped() {
		return BackOff, PhaseRecovering
	}

	switch s.Infrared {
	case IRNone:
		return Search, PhaseNormal
	case IRGreenBuoy:
		return VeerLeft, PhaseNormal
	case IRRedBuoy:
		return VeerRight, PhaseNormal
	case IRAll:
		return FullSpeed, PhaseNormal
	default:
		return Straight, PhaseNormal
	}
}
