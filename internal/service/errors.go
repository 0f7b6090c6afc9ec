package service

import "github.com/pkg/errors"

type ErrorCode string

const (
	ErrorCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	ErrorCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrorCodeForbidden       ErrorCode = "FORBIDDEN"
	ErrorCodeUnauthorized    ErrorCode = "UNAUTHORIZED"
	ErrorCodeUnauthenticated ErrorCode = "UNAUTHENTICATED"
	ErrorCodeQuotaExceeded   ErrorCode = "QUOTA_EXCEEDED"
	ErrorCodeTeamFull        ErrorCode = "TEAM_FULL"
	ErrorCodeAlreadyMember   ErrorCode = "ALREADY_MEMBER"
	ErrorCodeNotMember       ErrorCode = "NOT_MEMBER"
	ErrorCodeExpired         ErrorCode = "EXPIRED"
	ErrorCodeConflict        ErrorCode = "CONFLICT"
	ErrorCodeSystem          ErrorCode = "SYSTEM_ERROR"
)

type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

func (e *Error) Error() string {
	return e.Message
}

// asError extracts the *Error a unit of work failed with. Anything else is a system error.
func asError(err error) *Error {
	if err == nil {
		return nil
	}

	var res *Error
	if errors.As(err, &res) {
		return res
	}
	return NewError(ErrorCodeSystem, "internal error")
}
