// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for the HTTP boundary and for retry decisions.
type Kind string

const (
	KindTransient       Kind = "transient"
	KindNotFound        Kind = "not_found"
	KindExternalFailure Kind = "external_failure"
	KindUnexpected      Kind = "unexpected"
	KindInvalidInput    Kind = "invalid_input"
)

// Error is the single error shape returned across entry points.
type Error struct {
	Kind    Kind
	Message string
	Details string
	// SubjectID echoes the id the caller asked about, when there is one.
	SubjectID any
	Err       error
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Details)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func detailsOf(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// NewSubmissionNotFound is returned when the id does not match a contact-form submission.
func NewSubmissionNotFound(id int64) error {
	return &Error{
		Kind:      KindNotFound,
		Message:   "Submission not found",
		Details:   fmt.Sprintf("no contact submission with id %d", id),
		SubjectID: id,
	}
}

// NewTransient wraps a send failure that survived every retry.
func NewTransient(op string, err error) error {
	return &Error{Kind: KindTransient, Message: fmt.Sprintf("failed to %s", op), Details: detailsOf(err), Err: err}
}

// NewExternalFailure wraps a failing dependency such as DNS or the datastore.
func NewExternalFailure(op string, err error) error {
	return &Error{Kind: KindExternalFailure, Message: fmt.Sprintf("failed to %s", op), Details: detailsOf(err), Err: err}
}

func NewUnexpected(err error) error {
	return &Error{Kind: KindUnexpected, Message: "Internal server error", Details: detailsOf(err), Err: err}
}

func NewInvalidInput(message string, err error) error {
	return &Error{Kind: KindInvalidInput, Message: message, Details: detailsOf(err), Err: err}
}

// As returns the *Error in err's chain, or wraps err as unexpected.
func As(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewUnexpected(err).(*Error)
}

// KindOf returns the kind of err; anything untyped is unexpected.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return As(err).Kind
}

func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}
