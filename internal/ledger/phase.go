// Package ledger - phase.go classifies spend pressure into operating phases.
package ledger

// Phase is the system's cost-pressure state, derived purely from the
// spent/budget ratio.
type Phase string

const (
	PhaseNormal     Phase = "normal"
	PhaseCautious   Phase = "cautious"
	PhaseRestricted Phase = "restricted"
	PhaseEmergency  Phase = "emergency"
)

// Phase ratio thresholds. Boundaries are half-open on the lower bound:
// a ratio of exactly 0.50 is Cautious, 0.75 is Restricted, 0.90 is Emergency.
const (
	cautiousThreshold   = 0.50
	restrictedThreshold = 0.75
	emergencyThreshold  = 0.90
)

// ClassifyPhase maps a spend ratio to a phase. Every ratio is classified;
// ratios above 1.0 remain Emergency.
func ClassifyPhase(ratio float64) Phase {
	switch {
	case ratio >= emergencyThreshold:
		return PhaseEmergency
	case ratio >= restrictedThreshold:
		return PhaseRestricted
	case ratio >= cautiousThreshold:
		return PhaseCautious
	default:
		return PhaseNormal
	}
}
