package poll

import (
	"errors"
	"fmt"
)

// Code identifies a failure class of the poll lifecycle
type Code string

const (
	CodeValidation      Code = "VALIDATION_ERROR"
	CodeUnauthenticated Code = "UNAUTHENTICATED"
	CodeUnauthorized    Code = "UNAUTHORIZED"
	CodeNotFound        Code = "NOT_FOUND"
	CodePollNotFound    Code = "POLL_NOT_FOUND"
	CodeAlreadyVoted    Code = "ALREADY_VOTED"
	CodePollExpired     Code = "POLL_EXPIRED"
	CodeCreationFailed  Code = "CREATION_FAILED"
	CodeDeletionFailed  Code = "DELETION_FAILED"
	CodeBackend         Code = "BACKEND_ERROR"
)

// Error is the typed failure returned by stores and use cases.
// Two errors match under errors.Is when their codes are equal.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Sentinels for errors.Is checks
var (
	ErrValidation      = &Error{Code: CodeValidation}
	ErrUnauthenticated = &Error{Code: CodeUnauthenticated}
	ErrUnauthorized    = &Error{Code: CodeUnauthorized}
	ErrNotFound        = &Error{Code: CodeNotFound}
	ErrPollNotFound    = &Error{Code: CodePollNotFound}
	ErrAlreadyVoted    = &Error{Code: CodeAlreadyVoted}
	ErrPollExpired     = &Error{Code: CodePollExpired}
	ErrCreationFailed  = &Error{Code: CodeCreationFailed}
	ErrDeletionFailed  = &Error{Code: CodeDeletionFailed}
	ErrBackend         = &Error{Code: CodeBackend}
)

// NewError builds a typed error
func NewError(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Validation reports user-correctable input problems
func Validation(message string) *Error {
	return NewError(CodeValidation, message, nil)
}

// Backend wraps a failure of the data store or another collaborator
func Backend(message string, err error) *Error {
	return NewError(CodeBackend, message, err)
}

// CodeOf extracts the code of a typed error, or CodeBackend for anything else
func CodeOf(err error) Code {
	var target *Error
	if errors.As(err, &target) {
		return target.Code
	}
	return CodeBackend
}
