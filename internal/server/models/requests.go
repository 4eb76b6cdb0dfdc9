package models

import "time"

type DualKeyRequest struct {
	ID             string
	VaultID        string
	RequesterID    string
	State          RequestState
	MLScore        float64
	DecisionMethod DecisionMethod
	ApproverID     string
	CreatedAt      time.Time
	ApprovedAt     *time.Time
	DeniedAt       *time.Time
}

type NewOwner struct {
	Name  string
	Email string
	Phone string
}

// VaultTransferRequest asks to hand a vault to a new owner. The plaintext
// transfer token is only ever returned to the requester; TokenHash is what
// gets stored.
type VaultTransferRequest struct {
	ID             string
	VaultID        string
	RequestedBy    string
	NewOwner       NewOwner
	Reason         string
	State          RequestState
	MLScore        float64
	Recommendation Recommendation
	TokenHash      string
	ThreatIndex    float64
	NewOwnerID     string
	CreatedAt      time.Time
	CompletedAt    *time.Time
}

// EmergencyAccessRequest is a time-boxed access request. PassCodeHash is set
// on approval; the code itself is handed out once.
type EmergencyAccessRequest struct {
	ID           string
	VaultID      string
	RequesterID  string
	Reason       string
	Urgency      Urgency
	State        RequestState
	ApproverID   string
	PassCodeHash string
	ExpiresAt    *time.Time
	ConsumedAt   *time.Time
	DecidedAt    *time.Time
	CreatedAt    time.Time
}

// Usable reports whether the pass code of r may still be used at now.
func (r EmergencyAccessRequest) Usable(now time.Time) bool {
	return r.State == StateApproved &&
		r.ConsumedAt == nil &&
		r.ExpiresAt != nil &&
		now.Before(*r.ExpiresAt)
}

type Nominee struct {
	ID      string
	VaultID string
	// UserID is empty until the invitation is accepted.
	UserID          string
	Name            string
	Email           string
	InvitedByUserID string
	Status          NomineeStatus
	InviteTokenHash string
	CreatedAt       time.Time
}

type ThreatEvent struct {
	ID          string
	VaultID     string
	Type        string
	Severity    ThreatLevel
	Score       float64
	Description string
	CreatedAt   time.Time
}

// DecisionLog is the audit record of one engine decision.
type DecisionLog struct {
	ID         string
	RequestID  string
	VaultID    string
	Engine     string
	Outcome    string
	Score      float64
	Confidence float64
	Reason     string
	CreatedAt  time.Time
}
