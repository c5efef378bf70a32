package domain

import (
	"errors"
)

// Error strings in this file are shown to users verbatim through notifications,
// so they are written as sentences.

var (
	ErrNotAuthenticated   = errors.New("Not logged in")
	ErrUsernameTaken      = errors.New("Username already exists")
	ErrEmailTaken         = errors.New("The email address is already in use by another account.")
	ErrInvalidCredentials = errors.New("The email or password is incorrect.")
	ErrUnknown            = errors.New("An unknown error occurred")
	ErrClosed             = errors.New("Session has been closed")
)

// MsgFillAllFields is reported when a required credential field is empty.
const MsgFillAllFields = "Please fill in all fields"

// ValidationError is raised locally, before any I/O, for bad input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError builds a ValidationError with the given message.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// StoreError wraps a failure reported by the document store, blob store or
// identity provider. Its message is the upstream message, unchanged.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	if e.Err == nil {
		return ErrUnknown.Error()
	}
	return e.Err.Error()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// WrapStore returns err wrapped in a StoreError tagged with op. Nil stays nil
// and errors that are already classified are returned as they are.
func WrapStore(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	var ve *ValidationError
	if errors.As(err, &se) || errors.As(err, &ve) || errors.Is(err, ErrNotAuthenticated) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// ErrorKind is the coarse classification of an error.
type ErrorKind string

const (
	KindNone             ErrorKind = ""
	KindValidation       ErrorKind = "validation"
	KindNotAuthenticated ErrorKind = "not_authenticated"
	KindStore            ErrorKind = "store"
	KindUnknown          ErrorKind = "unknown"
)

// KindOf classifies err.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var ve *ValidationError
	var se *StoreError
	switch {
	case errors.As(err, &ve):
		return KindValidation
	case errors.Is(err, ErrNotAuthenticated):
		return KindNotAuthenticated
	case errors.As(err, &se):
		return KindStore
	default:
		return KindUnknown
	}
}

// Message picks the text shown for a failure: the error's own message, then
// fallback, then the generic unknown-error text.
func Message(err error, fallback string) string {
	if err != nil {
		if msg := err.Error(); msg != "" {
			return msg
		}
	}
	if fallback != "" {
		return fallback
	}
	return ErrUnknown.Error()
}
