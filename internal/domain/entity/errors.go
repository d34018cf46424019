package entity

import (
	"errors"
	"fmt"
)

var (
	// ErrOfferAlreadyAccepted is the reason of a conflict on a second accept
	ErrOfferAlreadyAccepted = errors.New("offer has already been accepted")
	// ErrOfferExpired is the reason of a conflict on accepting a stale offer
	ErrOfferExpired = errors.New("offer has expired")
)

// ValidationError reports malformed or missing offer input
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NotFoundError reports an unknown offer id
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("could not find offer with id: %s", e.ID)
}

// ConflictError reports a transition the offer's current state does not allow
type ConflictError struct {
	ID     string
	Reason error
}

func (e *ConflictError) Error() string {
	if errors.Is(e.Reason, ErrOfferExpired) {
		return fmt.Sprintf("offer with id: %s has expired", e.ID)
	}
	return e.Reason.Error()
}

func (e *ConflictError) Unwrap() error {
	return e.Reason
}
