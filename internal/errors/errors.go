// Package errors defines the domain error taxonomy shared by services and handlers.
// Every DomainError carries the HTTP status it maps to and optional extra body fields,
// so handlers can render `{message, ...fields}` without inspecting error strings.
package errors

import (
	"errors"
	"net/http"
)

// Error codes
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeAuthentication    = "AUTHENTICATION_ERROR"
	CodeAuthorization     = "AUTHORIZATION_ERROR"
	CodeRateLimited       = "RATE_LIMITED"
	CodeInsufficientFunds = "INSUFFICIENT_BALANCE"
	CodeNotFound          = "NOT_FOUND"
	CodeConflict          = "CONFLICT"
	CodeInternal          = "INTERNAL_ERROR"
)

type DomainError struct {
	Code    string
	Message string
	Status  int
	// Fields are merged into the JSON error body (e.g. "banned", "requireCaptcha").
	Fields map[string]any
	cause  error
}

func (e *DomainError) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *DomainError) Unwrap() error { return e.cause }

// Is matches on Code so sentinel DomainErrors work with errors.Is.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && (t.Message == "" || e.Message == t.Message)
}

// With returns a copy of e carrying an additional body field.
func (e *DomainError) With(key string, value any) *DomainError {
	cp := *e
	cp.Fields = make(map[string]any, len(e.Fields)+1)
	for k, v := range e.Fields {
		cp.Fields[k] = v
	}
	cp.Fields[key] = value
	return &cp
}

func New(code, message string, status int) *DomainError {
	return &DomainError{Code: code, Message: message, Status: status}
}

// Wrap attaches cause to a new DomainError. The cause is never rendered to clients.
func Wrap(err error, code, message string, status int) *DomainError {
	return &DomainError{Code: code, Message: message, Status: status, cause: err}
}

func Validation(message string) *DomainError {
	return New(CodeValidation, message, http.StatusBadRequest)
}

func Authentication(message string) *DomainError {
	return New(CodeAuthentication, message, http.StatusBadRequest)
}

func Authorization(message string) *DomainError {
	return New(CodeAuthorization, message, http.StatusForbidden)
}

func RateLimited(message string) *DomainError {
	return New(CodeRateLimited, message, http.StatusTooManyRequests)
}

func NotFound(message string) *DomainError {
	return New(CodeNotFound, message, http.StatusNotFound)
}

func Internal(err error) *DomainError {
	return Wrap(err, CodeInternal, "Internal server error", http.StatusInternalServerError)
}

var ErrInsufficientBalance = New(CodeInsufficientFunds, "Insufficient balance", http.StatusBadRequest)

// As extracts a DomainError from err. Unknown errors become Internal.
func As(err error) *DomainError {
	if err == nil {
		return nil
	}
	var de *DomainError
	if errors.As(err, &de) {
		return de
	}
	return Internal(err)
}
