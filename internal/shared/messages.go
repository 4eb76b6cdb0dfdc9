package shared

import "time"

// Empty is the request or response of calls that carry no data.
type Empty struct{}

type PingResponse struct {
	Status string `json:"status"`
}

type SignInRequest struct {
	ExternalID string `json:"external_id"`
	FullName   string `json:"full_name,omitempty"`
	Email      string `json:"email,omitempty"`
}

type SignInResponse struct {
	UserID        string `json:"user_id"`
	FullName      string `json:"full_name"`
	AccessToken   string `json:"access_token"`
	OrphansPurged int    `json:"orphans_purged"`
}

// VaultRequest addresses a single vault.
type VaultRequest struct {
	VaultID string `json:"vault_id"`
}

// RequestIDRequest addresses a single dual-key, transfer or emergency
// request.
type RequestIDRequest struct {
	RequestID string `json:"request_id"`
}

// TokenRequest carries a transfer or invitation token.
type TokenRequest struct {
	Token string `json:"token"`
}

type AccessEvent struct {
	ID        string    `json:"id,omitempty"`
	VaultID   string    `json:"vault_id"`
	UserID    string    `json:"user_id,omitempty"`
	UserName  string    `json:"user_name,omitempty"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	Latitude  *float64  `json:"latitude,omitempty"`
	Longitude *float64  `json:"longitude,omitempty"`
}

type RecordAccessEventRequest struct {
	VaultID   string     `json:"vault_id"`
	EventType string     `json:"event_type"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Latitude  *float64   `json:"latitude,omitempty"`
	Longitude *float64   `json:"longitude,omitempty"`
}

type DetectedThreat struct {
	Type        string    `json:"type"`
	Severity    string    `json:"severity"`
	Description string    `json:"description"`
	DetectedAt  time.Time `json:"detected_at"`
}

type DailyThreatMetric struct {
	Day           string  `json:"day"`
	AccessCount   int     `json:"access_count"`
	NightCount    int     `json:"night_count"`
	DeletionCount int     `json:"deletion_count"`
	Score         float64 `json:"score"`
}

type ThreatEvent struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Severity    string    `json:"severity"`
	Score       float64   `json:"score"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type ThreatAssessmentResponse struct {
	VaultID      string              `json:"vault_id"`
	AnomalyScore float64             `json:"anomaly_score"`
	Level        string              `json:"level"`
	Flags        []string            `json:"flags"`
	Geo          float64             `json:"geo"`
	Behavior     float64             `json:"behavior"`
	Composite    float64             `json:"composite"`
	Threats      []DetectedThreat    `json:"threats"`
	Daily        []DailyThreatMetric `json:"daily"`
	Events       []ThreatEvent       `json:"events"`
}

type DualKeyRequest struct {
	ID             string    `json:"id"`
	VaultID        string    `json:"vault_id"`
	RequesterID    string    `json:"requester_id"`
	State          string    `json:"state"`
	MLScore        float64   `json:"ml_score"`
	DecisionMethod string    `json:"decision_method,omitempty"`
	ApproverID     string    `json:"approver_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type ResolveDualKeyRequest struct {
	RequestID string `json:"request_id"`
	Approve   bool   `json:"approve"`
}

type DualKeyResponse struct {
	Request DualKeyRequest `json:"request"`
}

type DualKeyListResponse struct {
	Requests []DualKeyRequest `json:"requests"`
}

type RequestTransferRequest struct {
	VaultID       string `json:"vault_id"`
	NewOwnerName  string `json:"new_owner_name,omitempty"`
	NewOwnerEmail string `json:"new_owner_email,omitempty"`
	NewOwnerPhone string `json:"new_owner_phone,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

type TransferRequest struct {
	ID             string    `json:"id"`
	VaultID        string    `json:"vault_id"`
	RequestedBy    string    `json:"requested_by"`
	NewOwnerName   string    `json:"new_owner_name,omitempty"`
	NewOwnerEmail  string    `json:"new_owner_email,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	State          string    `json:"state"`
	MLScore        float64   `json:"ml_score"`
	Recommendation string    `json:"recommendation"`
	ThreatIndex    float64   `json:"threat_index"`
	NewOwnerID     string    `json:"new_owner_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// TransferResponse carries the acceptance token only in the reply to
// RequestTransfer.
type TransferResponse struct {
	Request TransferRequest `json:"request"`
	Token   string          `json:"token,omitempty"`
}

type RequestEmergencyRequest struct {
	VaultID string `json:"vault_id"`
	Reason  string `json:"reason"`
	Urgency string `json:"urgency"`
}

type EmergencyRequest struct {
	ID          string     `json:"id"`
	VaultID     string     `json:"vault_id"`
	RequesterID string     `json:"requester_id"`
	Reason      string     `json:"reason"`
	Urgency     string     `json:"urgency"`
	State       string     `json:"state"`
	ApproverID  string     `json:"approver_id,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	ConsumedAt  *time.Time `json:"consumed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// EmergencyResponse carries the pass code only in the reply to
// ApproveEmergency.
type EmergencyResponse struct {
	Request  EmergencyRequest `json:"request"`
	PassCode string           `json:"pass_code,omitempty"`
}

type EmergencyAssessmentResponse struct {
	RequestID      string   `json:"request_id"`
	Recommendation string   `json:"recommendation"`
	Confidence     float64  `json:"confidence"`
	Reasoning      string   `json:"reasoning"`
	RiskFactors    []string `json:"risk_factors"`
	CompositeRisk  float64  `json:"composite_risk"`
}

type PassCodeRequest struct {
	VaultID  string `json:"vault_id"`
	PassCode string `json:"pass_code"`
}

type InviteNomineeRequest struct {
	VaultID string `json:"vault_id"`
	Name    string `json:"name,omitempty"`
	Email   string `json:"email"`
}

type SetNomineeStatusRequest struct {
	NomineeID string `json:"nominee_id"`
	Status    string `json:"status"`
}

type Nominee struct {
	ID        string    `json:"id"`
	VaultID   string    `json:"vault_id"`
	UserID    string    `json:"user_id,omitempty"`
	Name      string    `json:"name,omitempty"`
	Email     string    `json:"email"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// NomineeResponse carries the invitation token only in the reply to
// InviteNominee.
type NomineeResponse struct {
	Nominee     Nominee `json:"nominee"`
	InviteToken string  `json:"invite_token,omitempty"`
}

type DeleteAccountResponse struct {
	UserID          string           `json:"user_id"`
	PurgedVaults    []string         `json:"purged_vaults"`
	LeftVaults      []string         `json:"left_vaults"`
	Rows            map[string]int64 `json:"rows"`
	AnnotatedEvents int64            `json:"annotated_events"`
}
