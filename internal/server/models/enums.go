package models

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
)

func parseEnum[T ~string](kind, s string, allowed ...T) (T, error) {
	v := T(strings.ToLower(strings.TrimSpace(s)))
	for _, a := range allowed {
		if v == a {
			return v, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("%w: unknown %s %q", common.ErrorValidation, kind, s)
}

// EventType classifies an access event.
type EventType string

const (
	EventOpened    EventType = "opened"
	EventViewed    EventType = "viewed"
	EventModified  EventType = "modified"
	EventDeleted   EventType = "deleted"
	EventShared    EventType = "shared"
	EventFailed    EventType = "failed"
	EventUploaded  EventType = "uploaded"
	EventDownload  EventType = "downloaded"
	EventUnlocked  EventType = "unlocked"
	EventEmergency EventType = "emergency_access"
)

func ParseEventType(s string) (EventType, error) {
	return parseEnum("event type", s,
		EventOpened, EventViewed, EventModified, EventDeleted, EventShared,
		EventFailed, EventUploaded, EventDownload, EventUnlocked, EventEmergency)
}

// ThreatLevel is both the level of an assessment and the severity of a
// threat event.
type ThreatLevel string

const (
	ThreatLow    ThreatLevel = "low"
	ThreatMedium ThreatLevel = "medium"
	ThreatHigh   ThreatLevel = "high"
)

func ParseThreatLevel(s string) (ThreatLevel, error) {
	return parseEnum("threat level", s, ThreatLow, ThreatMedium, ThreatHigh)
}

// Score maps a level onto the 0–100 scale used by the composite scorer.
func (l ThreatLevel) Score() float64 {
	switch l {
	case ThreatHigh:
		return 80
	case ThreatMedium:
		return 50
	default:
		return 20
	}
}

// RequestState is the lifecycle state shared by dual-key, transfer and
// emergency requests.
type RequestState string

const (
	StatePending   RequestState = "pending"
	StateApproved  RequestState = "approved"
	StateDenied    RequestState = "denied"
	StateCompleted RequestState = "completed"
)

func ParseRequestState(s string) (RequestState, error) {
	return parseEnum("request state", s, StatePending, StateApproved, StateDenied, StateCompleted)
}

// Terminal reports whether no further transition is allowed.
func (s RequestState) Terminal() bool {
	return s == StateDenied || s == StateCompleted
}

type DecisionMethod string

const (
	MethodNone   DecisionMethod = ""
	MethodMLAuto DecisionMethod = "ml_auto"
	MethodManual DecisionMethod = "manual"
)

func ParseDecisionMethod(s string) (DecisionMethod, error) {
	if strings.TrimSpace(s) == "" {
		return MethodNone, nil
	}
	return parseEnum("decision method", s, MethodMLAuto, MethodManual)
}

// Recommendation is the advisory outcome of the transfer and emergency
// engines.
type Recommendation string

const (
	RecommendApprove Recommendation = "approve"
	RecommendReview  Recommendation = "review"
	RecommendDeny    Recommendation = "deny"
)

func ParseRecommendation(s string) (Recommendation, error) {
	return parseEnum("recommendation", s, RecommendApprove, RecommendReview, RecommendDeny)
}

type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

func ParseUrgency(s string) (Urgency, error) {
	return parseEnum("urgency", s, UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical)
}

type NomineeStatus string

const (
	NomineePending  NomineeStatus = "pending"
	NomineeAccepted NomineeStatus = "accepted"
	NomineeActive   NomineeStatus = "active"
	NomineeInactive NomineeStatus = "inactive"
	NomineeRevoked  NomineeStatus = "revoked"
)

func ParseNomineeStatus(s string) (NomineeStatus, error) {
	return parseEnum("nominee status", s,
		NomineePending, NomineeAccepted, NomineeActive, NomineeInactive, NomineeRevoked)
}

var nomineeRank = map[NomineeStatus]int{
	NomineePending:  0,
	NomineeAccepted: 1,
	NomineeActive:   2,
	NomineeInactive: 2,
	NomineeRevoked:  3,
}

// CanTransition reports whether a nominee may move from s to next.
// Statuses only move forward along pending → accepted → active → revoked;
// the one sideways move allowed is active ↔ inactive. Accepted may also
// go straight to inactive.
func (s NomineeStatus) CanTransition(next NomineeStatus) bool {
	if s == next {
		return false
	}
	if (s == NomineeActive && next == NomineeInactive) || (s == NomineeInactive && next == NomineeActive) {
		return true
	}
	from, ok := nomineeRank[s]
	if !ok {
		return false
	}
	to, ok := nomineeRank[next]
	if !ok {
		return false
	}
	return to > from
}
