// Package sentinel holds the storage facts shared by every store
// implementation. Services translate them into domain errors at their
// boundary; handlers never see them.
package sentinel

import "errors"

var (
	// ErrNotFound is returned when a candidate, verification, score or
	// credential row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyUsed is returned when a unique key is taken: a reserved
	// nullifier, a recorded outcome, or a candidate's minted credential.
	ErrAlreadyUsed = errors.New("already used")
)
