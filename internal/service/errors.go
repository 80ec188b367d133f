package service

import (
	"errors"
	"fmt"

	"github.com/arfaar/swapfinity/internal/docstore"
	"github.com/arfaar/swapfinity/internal/identity"
)

var (
	ErrValidation       = errors.New("validation error")
	ErrNotFound         = errors.New("not found")
	ErrAuthRequired     = errors.New("authentication required")
	ErrForbidden        = errors.New("forbidden")
	ErrAlreadyResolved  = errors.New("already resolved")
	ErrDuplicateRequest = errors.New("duplicate request")
	ErrConflict         = errors.New("conflict")
	ErrTransient        = docstore.ErrTransient
)

// Error is a failure of a known kind with a message meant for the end user.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

var (
	errLoginRequired    = newError(ErrAuthRequired, "must be logged in")
	errAlreadyResolved  = newError(ErrAlreadyResolved, "swap request already resolved")
	errDuplicateRequest = newError(ErrDuplicateRequest, "a swap request for this item is already pending")
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("%s: %s", e.Errors[0].Field, e.Errors[0].Message)
	}
	return fmt.Sprintf("%d invalid fields", len(e.Errors))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Errors: []FieldError{{Field: field, Message: message}}}
}

// validator collects field errors in the order they were found.
type validator struct {
	errs []FieldError
}

func (v *validator) check(ok bool, field, message string) {
	if !ok {
		v.errs = append(v.errs, FieldError{Field: field, Message: message})
	}
}

func (v *validator) err() error {
	if len(v.errs) == 0 {
		return nil
	}
	return &ValidationError{Errors: v.errs}
}

// notFound turns a missing document into a user-facing not-found error and
// passes any other error through.
func notFound(err error, message string) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return newError(ErrNotFound, "%s", message)
	}
	return err
}

func identityErr(err error) error {
	switch {
	case errors.Is(err, identity.ErrEmailExists):
		return newError(ErrConflict, "email already in use")
	case errors.Is(err, identity.ErrInvalidCredentials), errors.Is(err, identity.ErrInvalidToken):
		return newError(ErrAuthRequired, "invalid email or password")
	case errors.Is(err, identity.ErrWeakPassword):
		return NewValidationError("password", "must be at least 6 characters")
	case errors.Is(err, identity.ErrUserNotFound):
		return newError(ErrNotFound, "user not found")
	}
	return err
}
