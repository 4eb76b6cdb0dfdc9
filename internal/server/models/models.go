// Package models defines server-side data models persisted in the database.
package models

import "time"

type User struct {
	ID string
	// ExternalID is the federated identity subject, trusted as presented.
	ExternalID string
	FullName   string
	Email      string
	CreatedAt  time.Time
}

type Vault struct {
	ID       string
	Name     string
	OwnerID  string
	IsSystem bool
	// CreatedAt is set by the database.
	CreatedAt time.Time
}

// Document is the server-side record of an encrypted blob; StorageKey is its
// object-storage key.
type Document struct {
	ID         string
	VaultID    string
	StorageKey string
}

type VaultSession struct {
	ID      string
	VaultID string
	UserID  string
}

type Role struct {
	UserID string
	Role   string
}

type ChatMessage struct {
	ID       string
	SenderID string
	Body     string
}

// AccessEvent is one recorded interaction with a vault. Events are
// immutable except for the UserName annotation written when the acting
// account is deleted.
type AccessEvent struct {
	ID        string
	VaultID   string
	UserID    string
	UserName  string
	EventType EventType
	Timestamp time.Time
	Latitude  *float64
	Longitude *float64
}

// HasLocation reports whether both coordinates are present.
func (e AccessEvent) HasLocation() bool {
	return e.Latitude != nil && e.Longitude != nil
}

type ThreatAssessment struct {
	AnomalyScore float64
	Level        ThreatLevel
	Flags        []string
}

// DetectedThreat is one entry of a vault's threat list.
type DetectedThreat struct {
	Type        string
	Severity    ThreatLevel
	Description string
	DetectedAt  time.Time
}

// DailyThreatMetric is the per-day threat score of a vault's access history.
type DailyThreatMetric struct {
	Day           time.Time
	AccessCount   int
	NightCount    int
	DeletionCount int
	Score         float64
}
