package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func BadRequest(code string, err error) *Error { return New(http.StatusBadRequest, code, err) }
func NotFound(code string, err error) *Error   { return New(http.StatusNotFound, code, err) }

// StatusOf extracts status and code from err, falling back to def for plain errors.
func StatusOf(err error, defStatus int, defCode string) (int, string) {
	var ae *Error
	if errors.As(err, &ae) && ae != nil {
		status, code := ae.Status, ae.Code
		if status == 0 {
			status = defStatus
		}
		if code == "" {
			code = defCode
		}
		return status, code
	}
	return defStatus, defCode
}
