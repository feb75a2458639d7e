package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrPreconditionFailed = New("PRECONDITION_FAILED", http.StatusPreconditionFailed, "precondition failed")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Timetable specific errors.
var (
	ErrInvalidGridCell     = New("INVALID_GRID_CELL", http.StatusBadRequest, "invalid day/slot/year cell")
	ErrMissingSkill        = New("MISSING_SKILL", http.StatusBadRequest, "select a required skill for this cell")
	ErrTeacherUnavailable  = New("TEACHER_UNAVAILABLE", http.StatusUnprocessableEntity, "selected teacher is not free in this time slot")
	ErrTeacherMissingSkill = New("TEACHER_MISSING_SKILL", http.StatusUnprocessableEntity, "selected teacher does not have the selected skill")
	ErrTeacherBusy         = New("TEACHER_BUSY", http.StatusConflict, "selected teacher is already allocated in this period")
	ErrSkillInUse          = New("SKILL_IN_USE", http.StatusConflict, "cannot delete a skill that is used by sessions")
	ErrDuplicateSkill      = New("DUPLICATE_SKILL", http.StatusConflict, "skill name must be unique")
	ErrInvalidUpload       = New("INVALID_UPLOAD", http.StatusBadRequest, "invalid upload")
	ErrNoSessions          = New("NO_SESSIONS", http.StatusPreconditionFailed, "no sessions to allocate")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
