package scoring

import "github.com/dmitrijs2005/vaultkeeper/internal/server/models"

const (
	weightThreat   = 0.4
	weightGeo      = 0.35
	weightBehavior = 0.25
)

// Composite blends the three component scores into one 0–100 value.
func Composite(threat, geo, behavior float64) float64 {
	return clamp(threat*weightThreat + geo*weightGeo + behavior*weightBehavior)
}

// Evaluation is the full scoring result for one access history.
type Evaluation struct {
	Threat    models.ThreatAssessment
	Geo       float64
	Behavior  float64
	Composite float64
}

// Evaluate runs every scorer over events. The threat component enters the
// composite through its level score (low 20, medium 50, high 80).
func (s Scorer) Evaluate(events []models.AccessEvent, deletionPoints float64) Evaluation {
	threat := s.AssessThreat(events)
	geo := s.GeoRisk(chronological(events))
	behavior := s.BehaviorRisk(events, deletionPoints)
	return Evaluation{
		Threat:    threat,
		Geo:       geo,
		Behavior:  behavior,
		Composite: Composite(threat.Level.Score(), geo, behavior),
	}
}
