// Package scoring holds the pure risk scorers used by the decision engines.
// Every function works on an immutable snapshot of access events and never
// fails; callers load the events once and pass the same slice to each
// scorer.
package scoring

import (
	"math"
	"sort"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/server/config"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
)

const (
	earthRadiusKm = 6371.0

	geoPairPoints = 30.0
	rapidPoints   = 20.0
	maxScore      = 100.0

	threatRapidPoints    = 20.0
	threatNightPoints    = 15.0
	threatTravelPoints   = 25.0
	threatDeletionPoints = 30.0
	nightRatio           = 0.5

	// Deletion points differ per call site.
	DeletionPointsApproval    = 25.0
	DeletionPointsVaultThreat = 30.0

	FlagRapidAccess      = "rapid_access"
	FlagImpossibleTravel = "impossible_travel"
	FlagUnusualLocation  = "unusual_location"
)

// Scorer evaluates access histories against a fixed policy. The zero value
// is not useful; build one with New or Default.
type Scorer struct {
	policy config.Policy
	loc    *time.Location
}

// New returns a Scorer for policy p. Night hours are evaluated in loc;
// nil means UTC.
func New(p config.Policy, loc *time.Location) Scorer {
	if loc == nil {
		loc = time.UTC
	}
	return Scorer{policy: p, loc: loc}
}

// Default returns a Scorer with the stock policy in UTC.
func Default() Scorer {
	return New(config.DefaultPolicy(), time.UTC)
}

func (s Scorer) Policy() config.Policy { return s.policy }

// Haversine returns the great-circle distance in kilometres.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(maxScore, v))
}

// GeoRisk scores impossible travel between adjacent geotagged events, in
// the order given. Each pair closer in time than the travel window yet
// farther apart than the travel distance adds 30 points.
func (s Scorer) GeoRisk(events []models.AccessEvent) float64 {
	var prev *models.AccessEvent
	score := 0.0
	for i := range events {
		e := &events[i]
		if !e.HasLocation() {
			continue
		}
		if prev != nil {
			elapsed := e.Timestamp.Sub(prev.Timestamp)
			if elapsed < 0 {
				elapsed = -elapsed
			}
			dist := Haversine(*prev.Latitude, *prev.Longitude, *e.Latitude, *e.Longitude)
			if elapsed < s.policy.ImpossibleTravelWindow && dist > s.policy.ImpossibleTravelKm {
				score += geoPairPoints
			}
		}
		prev = e
	}
	return math.Min(score, maxScore)
}

// newestFirst returns a copy of events sorted by descending timestamp.
func newestFirst(events []models.AccessEvent) []models.AccessEvent {
	out := make([]models.AccessEvent, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

// rapidAccess reports whether the n most recent events span less than
// window. Fewer than n events never qualify.
func rapidAccess(events []models.AccessEvent, n int, window time.Duration) (bool, time.Duration) {
	if n < 2 || len(events) < n {
		return false, 0
	}
	recent := newestFirst(events)[:n]
	span := recent[0].Timestamp.Sub(recent[n-1].Timestamp)
	return span < window, span
}

func deletionRatio(events []models.AccessEvent) float64 {
	if len(events) == 0 {
		return 0
	}
	n := 0
	for _, e := range events {
		if e.EventType == models.EventDeleted {
			n++
		}
	}
	return float64(n) / float64(len(events))
}

// IsNight reports whether t falls inside the night window in the scorer's
// time zone.
func (s Scorer) IsNight(t time.Time) bool {
	h := t.In(s.loc).Hour()
	return h >= s.policy.NightStartHour || h < s.policy.NightEndHour
}

// BehaviorRisk scores rapid access (+20) and a high deletion ratio
// (+deletionPoints). Use DeletionPointsApproval or DeletionPointsVaultThreat.
func (s Scorer) BehaviorRisk(events []models.AccessEvent, deletionPoints float64) float64 {
	score := 0.0
	if ok, _ := rapidAccess(events, s.policy.RapidAccessCount, s.policy.RapidAccessWindow); ok {
		score += rapidPoints
	}
	if deletionRatio(events) > s.policy.DeletionRatio {
		score += deletionPoints
	}
	return math.Min(score, maxScore)
}

// AssessThreat computes the anomaly score, level and flags of a vault's
// access history.
func (s Scorer) AssessThreat(events []models.AccessEvent) models.ThreatAssessment {
	flags := []string{}
	score := 0.0

	if ok, _ := rapidAccess(events, s.policy.RapidAccessCount, s.policy.RapidAccessWindow); ok {
		score += threatRapidPoints
		flags = append(flags, FlagRapidAccess)
	}

	if len(events) > 0 {
		night := 0
		for _, e := range events {
			if s.IsNight(e.Timestamp) {
				night++
			}
		}
		if float64(night)/float64(len(events)) > nightRatio {
			score += threatNightPoints
		}
	}

	if s.GeoRisk(chronological(events)) > 0 {
		score += threatTravelPoints
		flags = append(flags, FlagImpossibleTravel)
	}

	if deletionRatio(events) > s.policy.DeletionRatio {
		score += threatDeletionPoints
	}

	level := models.ThreatLow
	switch {
	case score > 50 || len(flags) > 2:
		level = models.ThreatHigh
	case score > 25 || len(flags) >= 1:
		level = models.ThreatMedium
	}

	return models.ThreatAssessment{AnomalyScore: score, Level: level, Flags: flags}
}

func chronological(events []models.AccessEvent) []models.AccessEvent {
	out := make([]models.AccessEvent, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}
