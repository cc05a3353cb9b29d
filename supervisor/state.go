package supervisor

import "fmt"

type State uint32

const (
	StateIdle State = iota
	StateStarting
	StateScanning
	StateRestarting
	StateEndedUnexpectedly
	StateCooldown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateStarting:
		return "Starting"
	case StateScanning:
		return "Scanning"
	case StateRestarting:
		return "Restarting"
	case StateEndedUnexpectedly:
		return "EndedUnexpectedly"
	case StateCooldown:
		return "Cooldown"
	case StateStopped:
		return "Stopped"
	default:
		return fmt.Sprintf("State(%d)", uint32(s))
	}
}
