package scoring

import (
	"fmt"
	"sort"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
)

const (
	detectRapidCount     = 5
	detectRapidWindow    = 30 * time.Second
	unusualLocationKm    = 1000.0
	unusualLocationPrior = 10

	dailyAccessWeight   = 0.5
	dailyNightWeight    = 5.0
	dailyDeletionWeight = 10.0
)

// DetectThreats lists the concrete threat patterns visible in events: a
// burst of five accesses within 30 seconds, and a latest access far from
// the average of the previous geotagged ones.
func (s Scorer) DetectThreats(events []models.AccessEvent, now time.Time) []models.DetectedThreat {
	out := []models.DetectedThreat{}
	recent := newestFirst(events)

	if ok, span := rapidAccess(recent, detectRapidCount, detectRapidWindow); ok {
		out = append(out, models.DetectedThreat{
			Type:        FlagRapidAccess,
			Severity:    models.ThreatHigh,
			Description: fmt.Sprintf("%d accesses in %d seconds", detectRapidCount, int(span.Seconds())),
			DetectedAt:  now,
		})
	}

	if len(recent) > 0 && recent[0].HasLocation() {
		var sumLat, sumLon float64
		n := 0
		prior := recent[1:]
		if len(prior) > unusualLocationPrior {
			prior = prior[:unusualLocationPrior]
		}
		for _, e := range prior {
			if e.HasLocation() {
				sumLat += *e.Latitude
				sumLon += *e.Longitude
				n++
			}
		}
		if n > 0 {
			d := Haversine(sumLat/float64(n), sumLon/float64(n), *recent[0].Latitude, *recent[0].Longitude)
			if d > unusualLocationKm {
				out = append(out, models.DetectedThreat{
					Type:        FlagUnusualLocation,
					Severity:    models.ThreatMedium,
					Description: fmt.Sprintf("access from unusual location (%d km away)", int(d)),
					DetectedAt:  now,
				})
			}
		}
	}
	return out
}

// DailyMetrics groups events by calendar day in the scorer's time zone and
// scores each day, capped at 100. Days are returned oldest first.
func (s Scorer) DailyMetrics(events []models.AccessEvent) []models.DailyThreatMetric {
	byDay := map[time.Time]*models.DailyThreatMetric{}
	for _, e := range events {
		t := e.Timestamp.In(s.loc)
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.loc)
		m, ok := byDay[day]
		if !ok {
			m = &models.DailyThreatMetric{Day: day}
			byDay[day] = m
		}
		m.AccessCount++
		if s.IsNight(e.Timestamp) {
			m.NightCount++
		}
		if e.EventType == models.EventDeleted {
			m.DeletionCount++
		}
	}

	out := make([]models.DailyThreatMetric, 0, len(byDay))
	for _, m := range byDay {
		m.Score = clamp(float64(m.AccessCount)*dailyAccessWeight +
			float64(m.NightCount)*dailyNightWeight +
			float64(m.DeletionCount)*dailyDeletionWeight)
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out
}
