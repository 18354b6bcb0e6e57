// Package providers holds the outbound collaborators: identity-proof
// verification, messaging, reasoning and ledger minting. Every failure is
// normalized into an *Error with a category callers can branch on.
package providers

import (
	"context"
	"errors"
	"fmt"
)

// Category is the normalized failure taxonomy for collaborators.
type Category string

const (
	// CategoryTimeout means the collaborator did not answer within its deadline.
	CategoryTimeout Category = "timeout"

	// CategoryOutage means the collaborator is unreachable or returned 5xx.
	CategoryOutage Category = "outage"

	// CategoryBadData means the collaborator answered with something unusable.
	CategoryBadData Category = "bad_data"

	// CategoryRejected means the collaborator understood the request and said no.
	CategoryRejected Category = "rejected"

	// CategoryNotConfigured means no endpoint or credentials are configured.
	CategoryNotConfigured Category = "not_configured"
)

// Error wraps a collaborator failure.
type Error struct {
	Category  Category
	Provider  string
	Message   string
	Err       error
	Retryable bool
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider %s [%s]: %s: %v", e.Provider, e.Category, e.Message, e.Err)
	}
	return fmt.Sprintf("provider %s [%s]: %s", e.Provider, e.Category, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a normalized error. Timeouts and outages are retryable.
func NewError(category Category, provider, message string, err error) *Error {
	return &Error{
		Category:  category,
		Provider:  provider,
		Message:   message,
		Err:       err,
		Retryable: category == CategoryTimeout || category == CategoryOutage,
	}
}

// FromTransport classifies a transport-level failure, distinguishing deadline
// expiry from everything else.
func FromTransport(provider string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(CategoryTimeout, provider, "request timed out", err)
	}
	var te interface{ Timeout() bool }
	if errors.As(err, &te) && te.Timeout() {
		return NewError(CategoryTimeout, provider, "request timed out", err)
	}
	return NewError(CategoryOutage, provider, "request failed", err)
}

// FromStatus classifies a non-2xx HTTP status.
func FromStatus(provider string, status int, body string) *Error {
	switch {
	case status == 408 || status == 504:
		return NewError(CategoryTimeout, provider, fmt.Sprintf("upstream status %d", status), nil)
	case status == 429 || status >= 500:
		return NewError(CategoryOutage, provider, fmt.Sprintf("upstream status %d", status), nil)
	default:
		return NewError(CategoryRejected, provider, fmt.Sprintf("upstream status %d: %s", status, body), nil)
	}
}

func IsRetryable(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// CategoryOf returns the category of err, or CategoryOutage for foreign errors.
func CategoryOf(err error) Category {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Category
	}
	return CategoryOutage
}
