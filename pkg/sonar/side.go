// Package sonar reads the three ultrasonic range finders mounted on the robot.
package sonar

// Side identifies a range finder.
type Side string

// Range finder positions, looking forward.
const (
	Left  Side = "left"
	Front Side = "front"
	Right Side = "right"
)

// AllSides returns all sides in polling order.
func AllSides() []Side {
	return []Side{
		Left,
		Front,
		Right,
	}
}
