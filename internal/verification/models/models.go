package models

import (
	"net/mail"
	"strings"
	"time"

	"verihire/pkg/domain"
	dErrors "verihire/pkg/domain-errors"
)

// Status is the stored lifecycle state of a VerificationRequest. It only moves
// forward: pending, sent, completed.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusCompleted Status = "completed"
)

// DisplayExpired is a derived state for sent requests past their validity
// window. It is never stored.
const DisplayExpired = "expired"

var statusRank = map[Status]int{
	StatusPending:   0,
	StatusSent:      1,
	StatusCompleted: 2,
}

func (s Status) IsValid() bool {
	_, ok := statusRank[s]
	return ok
}

// CanAdvanceTo reports whether next is exactly one step forward.
func (s Status) CanAdvanceTo(next Status) bool {
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	return ok && to == from+1
}

// VerificationRequest asks one employer to attest one work-history claim.
// Company, position and dates are a snapshot of the entry at issue time.
type VerificationRequest struct {
	ID               domain.VerificationID `json:"id"`
	CandidateID      domain.CandidateID    `json:"candidate_id"`
	EntryID          domain.EntryID        `json:"entry_id"`
	Company          string                `json:"company"`
	Position         string                `json:"position"`
	StartDate        string                `json:"start_date"`
	EndDate          string                `json:"end_date"`
	EmployerEmail    string                `json:"employer_email"`
	TokenHash        string                `json:"-"`
	Status           Status                `json:"status"`
	ExpiresAt        time.Time             `json:"expires_at"`
	CreatedAt        time.Time             `json:"created_at"`
	SentAt           *time.Time            `json:"sent_at,omitempty"`
	CompletedAt      *time.Time            `json:"completed_at,omitempty"`
	ExpiryNotifiedAt *time.Time            `json:"expiry_notified_at,omitempty"`
	DispatchAttempts int                   `json:"dispatch_attempts"`
	DeliveryID       string                `json:"delivery_id,omitempty"`
	DispatchError    string                `json:"dispatch_error,omitempty"`
}

// Advance moves the request one step forward and stamps the transition time.
func (r *VerificationRequest) Advance(next Status, at time.Time) error {
	if !r.Status.CanAdvanceTo(next) {
		return dErrors.New(dErrors.CodeInvalidState, "verification request cannot move from "+string(r.Status)+" to "+string(next))
	}
	r.Status = next
	switch next {
	case StatusSent:
		r.SentAt = &at
	case StatusCompleted:
		r.CompletedAt = &at
	}
	return nil
}

// IsExpired reports whether the request's token validity window has elapsed.
func (r *VerificationRequest) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// DisplayState is the stored status, or "expired" for an elapsed sent request.
func (r *VerificationRequest) DisplayState(now time.Time) string {
	if r.Status == StatusSent && r.IsExpired(now) {
		return DisplayExpired
	}
	return string(r.Status)
}

// Reservation binds a prover's uniqueness token to one candidate. The pair
// (CandidateID, Nullifier) is unique at the storage layer.
type Reservation struct {
	CandidateID    domain.CandidateID
	Nullifier      string
	VerificationID domain.VerificationID
	ReservedAt     time.Time
}

// VerificationOutcome is the employer's attestation. Immutable once written.
type VerificationOutcome struct {
	ID             domain.OutcomeID      `json:"id"`
	VerificationID domain.VerificationID `json:"verification_id"`
	CandidateID    domain.CandidateID    `json:"candidate_id"`
	Nullifier      string                `json:"-"`
	Verified       bool                  `json:"verified"`
	Comments       string                `json:"comments,omitempty"`
	RecordedAt     time.Time             `json:"recorded_at"`
}

// Claim is what a request token asserts, shown to the prover before submitting.
type Claim struct {
	VerificationID domain.VerificationID `json:"verification_id"`
	CandidateID    domain.CandidateID    `json:"candidate_id"`
	CandidateName  string                `json:"candidate_name,omitempty"`
	Company        string                `json:"company"`
	Position       string                `json:"position"`
	StartDate      string                `json:"start_date"`
	EndDate        string                `json:"end_date"`
	EmployerEmail  string                `json:"employer_email"`
	ExpiresAt      time.Time             `json:"expires_at"`
}

// RequestView is a request as listed to the candidate.
type RequestView struct {
	VerificationRequest
	State   string               `json:"state"`
	Outcome *VerificationOutcome `json:"outcome,omitempty"`
}

func NewRequestView(r VerificationRequest, outcome *VerificationOutcome, now time.Time) RequestView {
	return RequestView{VerificationRequest: r, State: r.DisplayState(now), Outcome: outcome}
}

const maxBatchItems = 20

type IssueItem struct {
	EntryID       string `json:"entry_id"`
	EmployerEmail string `json:"employer_email"`
}

// BatchIssueRequest issues one verification request per item.
type BatchIssueRequest struct {
	Items []IssueItem `json:"items"`
}

func (r *BatchIssueRequest) Validate() error {
	if len(r.Items) == 0 {
		return dErrors.New(dErrors.CodeValidation, "items must not be empty")
	}
	if len(r.Items) > maxBatchItems {
		return dErrors.New(dErrors.CodeValidation, "too many items in one batch")
	}
	for i := range r.Items {
		r.Items[i].EntryID = strings.TrimSpace(r.Items[i].EntryID)
		r.Items[i].EmployerEmail = strings.TrimSpace(r.Items[i].EmployerEmail)
	}
	return nil
}

// NormalizeEmail validates an employer contact and returns its bare address.
func NormalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil || !strings.Contains(addr.Address, ".") {
		return "", dErrors.New(dErrors.CodeValidation, "invalid employer email")
	}
	return strings.ToLower(addr.Address), nil
}

// IssueResult is the per-item outcome of a batch issuance.
type IssueResult struct {
	EntryID        string `json:"entry_id"`
	EmployerEmail  string `json:"employer_email"`
	VerificationID string `json:"verification_id,omitempty"`
	Status         string `json:"status,omitempty"`
	Dispatched     bool   `json:"dispatched"`
	DeliveryID     string `json:"delivery_id,omitempty"`
	Error          string `json:"error,omitempty"`
}

// BatchIssueResult reports every item; partial success is not an error.
type BatchIssueResult struct {
	Results   []IssueResult `json:"results"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
}

// IdentityProof is the prover's zero-knowledge proof payload.
type IdentityProof struct {
	MerkleRoot        string `json:"merkle_root"`
	NullifierHash     string `json:"nullifier_hash"`
	Proof             string `json:"proof"`
	VerificationLevel string `json:"verification_level"`
}

// ProofResult is returned by the identity-proof collaborator.
type ProofResult struct {
	Success   bool
	Nullifier string
}

type Answer string

const (
	AnswerYes Answer = "yes"
	AnswerNo  Answer = "no"
)

// SubmitRequest is the prover's attestation for the claim in Token.
type SubmitRequest struct {
	Token    string         `json:"token"`
	Proof    *IdentityProof `json:"proof"`
	Answer   Answer         `json:"answer"`
	Comments string         `json:"comments,omitempty"`
}

func (r *SubmitRequest) Validate() error {
	r.Token = strings.TrimSpace(r.Token)
	r.Answer = Answer(strings.ToLower(strings.TrimSpace(string(r.Answer))))
	r.Comments = strings.TrimSpace(r.Comments)
	if r.Token == "" {
		return dErrors.New(dErrors.CodeValidation, "token is required")
	}
	if r.Answer != AnswerYes && r.Answer != AnswerNo {
		return dErrors.New(dErrors.CodeValidation, "answer must be yes or no")
	}
	if len(r.Comments) > 2000 {
		return dErrors.New(dErrors.CodeValidation, "comments too long")
	}
	if r.Proof == nil || strings.TrimSpace(r.Proof.Proof) == "" || strings.TrimSpace(r.Proof.NullifierHash) == "" {
		return dErrors.New(dErrors.CodeUnauthorized, "identity proof is required")
	}
	return nil
}

// SubmitResult is returned after a proof submission is recorded.
type SubmitResult struct {
	Outcome VerificationOutcome `json:"outcome"`
	Request RequestView         `json:"request"`
	// Replayed is set when an identical submission had already been recorded.
	Replayed bool `json:"replayed"`
}

// ReserveResult is the outcome of ReplayGuard.Reserve.
type ReserveResult int

const (
	Reserved ReserveResult = iota
	Conflict
)

func (r ReserveResult) String() string {
	if r == Reserved {
		return "reserved"
	}
	return "conflict"
}

// Resolution is what the prover sees when opening a request link.
type Resolution struct {
	Claim Claim  `json:"claim"`
	State string `json:"state"`
}

// Stats counts a candidate's requests by display state. Verified counts
// outcomes where the employer confirmed the claim.
type Stats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Sent      int `json:"sent"`
	Expired   int `json:"expired"`
	Completed int `json:"completed"`
	Verified  int `json:"verified"`
}

func Tally(views []RequestView) Stats {
	var s Stats
	for _, v := range views {
		s.Total++
		switch v.State {
		case string(StatusPending):
			s.Pending++
		case string(StatusSent):
			s.Sent++
		case DisplayExpired:
			s.Expired++
		case string(StatusCompleted):
			s.Completed++
		}
		if v.Outcome != nil && v.Outcome.Verified {
			s.Verified++
		}
	}
	return s
}
