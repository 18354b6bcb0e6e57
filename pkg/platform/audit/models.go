package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose so sinks can
// apply different retention and routing.
type EventCategory string

const (
	// CategoryCompliance covers events that change the evidential record of a
	// candidate: outcomes, credentials.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers rejected proofs and replay attempts.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine pipeline activity.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key pipeline transitions. Keep
// it transport-agnostic so stores and relays can fan out.
type Event struct {
	Category       EventCategory
	Timestamp      time.Time
	CandidateID    string
	VerificationID string
	Action         string
	Decision       string
	Reason         string
	RequestID      string
	// Subject is a human readable reference (employer address, company) for
	// operators. Never the prover's nullifier.
	Subject string
}

type AuditEvent string

const (
	EventResumeIngested         AuditEvent = "resume_ingested"
	EventWorkHistoryEdited      AuditEvent = "work_history_edited"
	EventProfilesUpdated        AuditEvent = "profiles_updated"
	EventVerificationRequested  AuditEvent = "verification_requested"
	EventVerificationDispatched AuditEvent = "verification_dispatched"
	EventDispatchFailed         AuditEvent = "verification_dispatch_failed"
	EventVerificationResent     AuditEvent = "verification_resent"
	EventVerificationRecorded   AuditEvent = "verification_recorded"
	EventVerificationExpired    AuditEvent = "verification_request_expired"
	EventProofRejected          AuditEvent = "proof_rejected"
	EventReplayRejected         AuditEvent = "replay_rejected"
	EventTrustScoreComputed     AuditEvent = "trust_score_computed"
	EventCredentialIssued       AuditEvent = "credential_issued"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventVerificationRecorded: CategoryCompliance,
	EventCredentialIssued:     CategoryCompliance,
	EventTrustScoreComputed:   CategoryCompliance,

	EventProofRejected:  CategorySecurity,
	EventReplayRejected: CategorySecurity,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByCandidate(ctx context.Context, candidateID string) ([]Event, error)
}
