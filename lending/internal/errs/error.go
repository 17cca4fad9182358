package errs

import (
	"errors"
)

// Kinds. Handlers map them to status codes with errors.Is.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation error")
)

var (
	ErrItemNotFound       = New(ErrNotFound, "item not found")
	ErrLoanNotFound       = New(ErrNotFound, "loan not found")
	ErrUserNotFound       = New(ErrNotFound, "user not found")
	ErrItemNotAvailable   = New(ErrInvalidState, "item is not available")
	ErrItemNotBorrowed    = New(ErrInvalidState, "item is not borrowed")
	ErrItemNotApprovable  = New(ErrInvalidState, "item cannot be loaned in its current status")
	ErrLoanNotPending     = New(ErrInvalidState, "loan has already been decided")
	ErrLoanNotApproved    = New(ErrInvalidState, "loan is not approved")
	ErrOwnLoanWaitlist    = New(ErrInvalidState, "you already borrow this item")
	ErrItemStatusLocked   = New(ErrInvalidState, "status of a borrowed item is managed by loans")
	ErrActiveLoanExists   = New(ErrConflict, "item already has an active loan")
	ErrLoanAlreadyPending = New(ErrConflict, "loan request already pending")
	ErrAlreadyInWaitlist  = New(ErrConflict, "already in waitlist")
	ErrStatusChanged      = New(ErrConflict, "item status changed concurrently")
	ErrAdminOnly          = New(ErrUnauthorized, "admin role required")
	ErrNoIdentity         = New(ErrUnauthorized, "authentication required")
)

type kindError struct {
	kind error
	msg  string
}

// New returns an error of the given kind whose message is msg.
func New(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

type ValidationErrorResponse struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors"`
}
