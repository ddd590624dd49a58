package detector

import "context"

// Liveness is the outcome of one probe. Unknown is distinct from Stopped:
// the probe could not tell, for example because it timed out.
type Liveness int

const (
	Unknown Liveness = iota
	Stopped
	Running
)

func (l Liveness) String() string {
	switch l {
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Detector is a strategy that determines whether a service is up.
// It must be safe for concurrent use.
type Detector interface {
	// Probe returns the observed liveness. The error explains Unknown results.
	Probe(ctx context.Context) (Liveness, error)
	// Describe returns a human-readable description of the detection method.
	Describe() string
}
