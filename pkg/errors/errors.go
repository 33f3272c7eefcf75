package errors

import (
	"errors"
	"fmt"
)

// ErrorType defines different categories of errors
type ErrorType string

const (
	ErrorTypeValidation       ErrorType = "VALIDATION"
	ErrorTypeNotFound         ErrorType = "NOT_FOUND"
	ErrorTypeConflict         ErrorType = "CONFLICT"
	ErrorTypeStoreUnavailable ErrorType = "STORE_UNAVAILABLE"
	ErrorTypeSessionExpired   ErrorType = "SESSION_EXPIRED"
	ErrorTypeInternal         ErrorType = "INTERNAL"
)

// Specific error codes carried inside an AppError.
const (
	CodeInvalidInput     = "INVALID_INPUT"
	CodeEmptyName        = "EMPTY_NAME"
	CodeIllegalName      = "ILLEGAL_NAME"
	CodeNameTooLong      = "NAME_TOO_LONG"
	CodeEmptyCategory    = "EMPTY_CATEGORY"
	CodeCategoryTooLong  = "CATEGORY_TOO_LONG"
	CodeUnknownCategory  = "UNKNOWN_CATEGORY"
	CodeUnknownRoom      = "UNKNOWN_ROOM"
	CodeUnknownUser      = "UNKNOWN_USER"
	CodeNotAMember       = "NOT_A_MEMBER"
	CodeAlreadyMember    = "ALREADY_MEMBER"
	CodeStaleInvitation  = "STALE_INVITATION"
	CodeRoomFull         = "ROOM_FULL"
	CodeSelfInvite       = "SELF_INVITE"
	CodeAlreadyInvited   = "ALREADY_INVITED"
	CodeBlocked          = "BLOCKED"
	CodeDuplicateUser    = "DUPLICATE_USER"
	CodeDuplicateSession = "DUPLICATE_SESSION"
	CodeNoActiveSession  = "NO_ACTIVE_SESSION"
	CodeStoreFailure     = "STORE_FAILURE"
	CodeNoPublicRooms    = "NO_PUBLIC_ROOMS"
)

// storeUnavailableMessage is what clients see for any durable-store failure.
const storeUnavailableMessage = "Couldn't connect to the database. Try again."

// AppError is the custom error type for the application
type AppError struct {
	Type    ErrorType
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches another *AppError with the same type and code, so sentinel
// values such as ErrStaleInvitation work with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// Sentinels for the conditions callers most often branch on.
var (
	ErrUnknownRoom     = &AppError{Type: ErrorTypeNotFound, Code: CodeUnknownRoom, Message: "There is no channel with this id."}
	ErrUnknownCategory = &AppError{Type: ErrorTypeNotFound, Code: CodeUnknownCategory, Message: "Invalid category."}
	ErrUnknownUser     = &AppError{Type: ErrorTypeNotFound, Code: CodeUnknownUser, Message: "There is no user with this name."}
	ErrNotAMember      = &AppError{Type: ErrorTypeConflict, Code: CodeNotAMember, Message: "You are not a member of this channel."}
	ErrAlreadyMember   = &AppError{Type: ErrorTypeConflict, Code: CodeAlreadyMember, Message: "User is already a channel member."}
	ErrStaleInvitation = &AppError{Type: ErrorTypeConflict, Code: CodeStaleInvitation, Message: "This invitation is no longer valid."}
	ErrRoomFull        = &AppError{Type: ErrorTypeConflict, Code: CodeRoomFull, Message: "This channel is full."}
	ErrNoActiveSession = &AppError{Type: ErrorTypeSessionExpired, Code: CodeNoActiveSession, Message: "Session expired. Reload the page and try again."}
)

// Constructor functions for different error types

// NewValidation creates a validation error
func NewValidation(code, message string) error {
	return &AppError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
	}
}

// NewNotFound creates a not found error
func NewNotFound(code, message string) error {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Code:    code,
		Message: message,
	}
}

// NewConflict creates a conflict error
func NewConflict(code, message string) error {
	return &AppError{
		Type:    ErrorTypeConflict,
		Code:    code,
		Message: message,
	}
}

// NewStoreUnavailable wraps a failed durable-store call.
func NewStoreUnavailable(operation string, err error) error {
	return &AppError{
		Type:    ErrorTypeStoreUnavailable,
		Code:    CodeStoreFailure,
		Message: operation,
		Err:     err,
	}
}

// NewInternal creates an internal error
func NewInternal(message string, err error) error {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	// If it's already an AppError, preserve the type
	var appErr *AppError
	if errors.As(err, &appErr) {
		return &AppError{
			Type:    appErr.Type,
			Code:    appErr.Code,
			Message: fmt.Sprintf("%s: %s", message, appErr.Message),
			Err:     appErr.Err,
		}
	}

	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Type checking functions

func typeOf(err error) (ErrorType, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type, true
	}
	return "", false
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrorTypeValidation
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrorTypeNotFound
}

// IsConflict checks if an error is a conflict error
func IsConflict(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrorTypeConflict
}

// IsStoreUnavailable checks if an error came from a failed durable write or read
func IsStoreUnavailable(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrorTypeStoreUnavailable
}

// IsSessionExpired checks if an error reports a missing session
func IsSessionExpired(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrorTypeSessionExpired
}

// CodeOf returns the specific code of an AppError, or "" for other errors.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// UserMessage renders err as the human-readable reason sent back to clients.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return "Something went wrong. Try again."
	}
	switch appErr.Type {
	case ErrorTypeStoreUnavailable:
		return storeUnavailableMessage
	case ErrorTypeInternal:
		return "Something went wrong. Try again."
	default:
		return appErr.Message
	}
}
