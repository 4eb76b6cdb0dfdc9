package grpc

import (
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/services"
	"github.com/dmitrijs2005/vaultkeeper/internal/shared"
)

func accessEventToWire(e *models.AccessEvent) shared.AccessEvent {
	return shared.AccessEvent{
		ID:        e.ID,
		VaultID:   e.VaultID,
		UserID:    e.UserID,
		UserName:  e.UserName,
		EventType: string(e.EventType),
		Timestamp: e.Timestamp,
		Latitude:  e.Latitude,
		Longitude: e.Longitude,
	}
}

// ThreatReportToWire converts a threat report. It is shared with the HTTP
// surface so both return the same document.
func ThreatReportToWire(r *services.ThreatReport) shared.ThreatAssessmentResponse {
	out := shared.ThreatAssessmentResponse{
		VaultID:      r.VaultID,
		AnomalyScore: r.Evaluation.Threat.AnomalyScore,
		Level:        string(r.Evaluation.Threat.Level),
		Flags:        append([]string{}, r.Evaluation.Threat.Flags...),
		Geo:          r.Evaluation.Geo,
		Behavior:     r.Evaluation.Behavior,
		Composite:    r.Evaluation.Composite,
		Threats:      make([]shared.DetectedThreat, 0, len(r.Threats)),
		Daily:        make([]shared.DailyThreatMetric, 0, len(r.Daily)),
		Events:       make([]shared.ThreatEvent, 0, len(r.Events)),
	}
	for _, t := range r.Threats {
		out.Threats = append(out.Threats, shared.DetectedThreat{
			Type:        t.Type,
			Severity:    string(t.Severity),
			Description: t.Description,
			DetectedAt:  t.DetectedAt,
		})
	}
	for _, d := range r.Daily {
		out.Daily = append(out.Daily, shared.DailyThreatMetric{
			Day:           d.Day.Format("2006-01-02"),
			AccessCount:   d.AccessCount,
			NightCount:    d.NightCount,
			DeletionCount: d.DeletionCount,
			Score:         d.Score,
		})
	}
	for _, e := range r.Events {
		out.Events = append(out.Events, shared.ThreatEvent{
			ID:          e.ID,
			Type:        e.Type,
			Severity:    string(e.Severity),
			Score:       e.Score,
			Description: e.Description,
			CreatedAt:   e.CreatedAt,
		})
	}
	return out
}

func dualKeyToWire(r *models.DualKeyRequest) shared.DualKeyRequest {
	return shared.DualKeyRequest{
		ID:             r.ID,
		VaultID:        r.VaultID,
		RequesterID:    r.RequesterID,
		State:          string(r.State),
		MLScore:        r.MLScore,
		DecisionMethod: string(r.DecisionMethod),
		ApproverID:     r.ApproverID,
		CreatedAt:      r.CreatedAt,
	}
}

func transferToWire(r *models.VaultTransferRequest) shared.TransferRequest {
	return shared.TransferRequest{
		ID:             r.ID,
		VaultID:        r.VaultID,
		RequestedBy:    r.RequestedBy,
		NewOwnerName:   r.NewOwner.Name,
		NewOwnerEmail:  r.NewOwner.Email,
		Reason:         r.Reason,
		State:          string(r.State),
		MLScore:        r.MLScore,
		Recommendation: string(r.Recommendation),
		ThreatIndex:    r.ThreatIndex,
		NewOwnerID:     r.NewOwnerID,
		CreatedAt:      r.CreatedAt,
	}
}

func emergencyToWire(r *models.EmergencyAccessRequest) shared.EmergencyRequest {
	return shared.EmergencyRequest{
		ID:          r.ID,
		VaultID:     r.VaultID,
		RequesterID: r.RequesterID,
		Reason:      r.Reason,
		Urgency:     string(r.Urgency),
		State:       string(r.State),
		ApproverID:  r.ApproverID,
		ExpiresAt:   r.ExpiresAt,
		ConsumedAt:  r.ConsumedAt,
		CreatedAt:   r.CreatedAt,
	}
}

func nomineeToWire(n *models.Nominee) shared.Nominee {
	return shared.Nominee{
		ID:        n.ID,
		VaultID:   n.VaultID,
		UserID:    n.UserID,
		Name:      n.Name,
		Email:     n.Email,
		Status:    string(n.Status),
		CreatedAt: n.CreatedAt,
	}
}
