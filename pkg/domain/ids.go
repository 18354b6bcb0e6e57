package domain

import (
	"strings"
	"unicode"

	"github.com/google/uuid"

	dErrors "verihire/pkg/domain-errors"
)

// CandidateID is the opaque subject identifier of a candidate. It is issued by
// the identity layer in front of this service, so it is not required to be a UUID.
type CandidateID string

// VerificationID identifies one VerificationRequest and is embedded in its token.
type VerificationID uuid.UUID

// OutcomeID identifies a persisted VerificationOutcome.
type OutcomeID uuid.UUID

// EntryID identifies a WorkHistoryEntry.
type EntryID uuid.UUID

// CredentialID identifies an issued Credential.
type CredentialID uuid.UUID

// ScoreID identifies one entry of the trust score history.
type ScoreID uuid.UUID

const maxCandidateIDLength = 128

// ParseCandidateID validates an opaque subject id at a trust boundary.
func ParseCandidateID(s string) (CandidateID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "candidate id is required")
	}
	if len(s) > maxCandidateIDLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "candidate id is too long")
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("-_.:", r)) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "candidate id contains invalid characters")
		}
	}
	return CandidateID(s), nil
}

func (c CandidateID) String() string { return string(c) }

func (c CandidateID) IsZero() bool { return c == "" }

func parseUUID(s, kind string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" must not be nil")
	}
	return u, nil
}

func ParseVerificationID(s string) (VerificationID, error) {
	u, err := parseUUID(s, "verification id")
	return VerificationID(u), err
}

func ParseEntryID(s string) (EntryID, error) {
	u, err := parseUUID(s, "entry id")
	return EntryID(u), err
}

func ParseCredentialID(s string) (CredentialID, error) {
	u, err := parseUUID(s, "credential id")
	return CredentialID(u), err
}

func NewVerificationID() VerificationID { return VerificationID(uuid.New()) }
func NewOutcomeID() OutcomeID           { return OutcomeID(uuid.New()) }
func NewEntryID() EntryID               { return EntryID(uuid.New()) }
func NewCredentialID() CredentialID     { return CredentialID(uuid.New()) }
func NewScoreID() ScoreID               { return ScoreID(uuid.New()) }

func (id VerificationID) String() string { return uuid.UUID(id).String() }
func (id OutcomeID) String() string      { return uuid.UUID(id).String() }
func (id EntryID) String() string        { return uuid.UUID(id).String() }
func (id CredentialID) String() string   { return uuid.UUID(id).String() }
func (id ScoreID) String() string        { return uuid.UUID(id).String() }

func (id VerificationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id EntryID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }

func (id VerificationID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id OutcomeID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }
func (id EntryID) MarshalText() ([]byte, error)        { return uuid.UUID(id).MarshalText() }
func (id CredentialID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id ScoreID) MarshalText() ([]byte, error)        { return uuid.UUID(id).MarshalText() }

func (id *VerificationID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *OutcomeID) UnmarshalText(b []byte) error      { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *EntryID) UnmarshalText(b []byte) error        { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *CredentialID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ScoreID) UnmarshalText(b []byte) error        { return (*uuid.UUID)(id).UnmarshalText(b) }
