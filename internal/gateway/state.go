package gateway

// State is the supervisor's lifecycle state.
//
// Stopped -> Starting -> Running -> Stopping -> Stopped
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

var stateNames = []string{"stopped", "starting", "running", "stopping"}
