// File: internal/supervisor/state.go
package supervisor

import "fmt"

// Phase enumerates the supervisor's connection phases.
type Phase int

const (
	// PhaseHealthy means the last probe succeeded.
	PhaseHealthy Phase = iota
	// PhaseDegraded means one or more consecutive probes failed, but the
	// failure count is still below the reconnect threshold.
	PhaseDegraded
	// PhaseReconnecting means the failure threshold was crossed and a full
	// re-establishment of the backend session is in progress.
	PhaseReconnecting
)

func (p Phase) String() string {
	switch p {
	case PhaseHealthy:
		return "healthy"
	case PhaseDegraded:
		return "degraded"
	case PhaseReconnecting:
		return "reconnecting"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// HealthState is the supervisor's tagged connection state. Failures counts
// consecutive failed probes and is only meaningful outside PhaseHealthy.
type HealthState struct {
	Phase    Phase
	Failures int
}

func (s HealthState) String() string {
	if s.Phase == PhaseHealthy {
		return s.Phase.String()
	}
	return fmt.Sprintf("%s(%d)", s.Phase, s.Failures)
}

// observe is the total transition function for one probe outcome. A success
// from any state resets to healthy; a failure increments the consecutive
// counter and crosses into reconnecting once it reaches the threshold.
func (s HealthState) observe(ok bool, threshold int) HealthState {
	if ok {
		return HealthState{Phase: PhaseHealthy}
	}
	n := s.Failures + 1
	if n >= threshold {
		return HealthState{Phase: PhaseReconnecting, Failures: n}
	}
	return HealthState{Phase: PhaseDegraded, Failures: n}
}
