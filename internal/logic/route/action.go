// Package route maps route names to their post-pickup maneuver sequences and
// decides, intersection by intersection, what the robot does next.
package route

import "strings"

// Action is a maneuver executed at an intersection after the pickup stop.
type Action string

const (
	Left     Action = "left"
	Right    Action = "right"
	Straight Action = "straight"
	UTurn    Action = "u_turn"
	Pause    Action = "pause"
	Stop     Action = "stop"
)

// ParseAction normalizes a configured action symbol. Unknown symbols are
// kept as-is; they execute as Straight.
func ParseAction(s string) Action {
	return Action(strings.ToLower(strings.TrimSpace(s)))
}

// Known reports whether a is one of the defined actions.
func (a Action) Known() bool {
	switch a {
	case Left, Right, Straight, UTurn, Pause, Stop:
		return true
	}
	return false
}

// Label is the status text shown while the action runs.
func (a Action) Label() string {
	switch a {
	case Left:
		return "Turn left"
	case Right:
		return "Turn right"
	case UTurn:
		return "U-turn"
	case Pause:
		return "Pause"
	case Stop:
		return "Stop"
	default:
		return "Go straight"
	}
}
