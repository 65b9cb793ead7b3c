package utils

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindRateLimited
	KindGateway
)

var kindStatus = map[Kind]int{
	KindInternal:     http.StatusInternalServerError,
	KindValidation:   http.StatusBadRequest,
	KindUnauthorized: http.StatusUnauthorized,
	KindForbidden:    http.StatusForbidden,
	KindNotFound:     http.StatusNotFound,
	KindConflict:     http.StatusConflict,
	KindRateLimited:  http.StatusTooManyRequests,
	// upstream failures surface as 500 with the upstream message attached
	KindGateway: http.StatusInternalServerError,
}

// AppError is an error with an HTTP-facing classification.
type AppError struct {
	Kind    Kind
	Message string
	Errors  []string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

func (e *AppError) Status() int { return kindStatus[e.Kind] }

func Validation(msg string, details ...string) *AppError {
	return &AppError{Kind: KindValidation, Message: msg, Errors: details}
}

func Unauthorized(msg string) *AppError {
	return &AppError{Kind: KindUnauthorized, Message: msg}
}

func Forbidden(msg string) *AppError {
	return &AppError{Kind: KindForbidden, Message: msg}
}

func NotFound(msg string) *AppError {
	return &AppError{Kind: KindNotFound, Message: msg}
}

func Conflict(msg string) *AppError {
	return &AppError{Kind: KindConflict, Message: msg}
}

func RateLimited(msg string) *AppError {
	return &AppError{Kind: KindRateLimited, Message: msg}
}

// Gateway wraps a failure reported by an upstream collaborator.
func Gateway(msg string, err error, details ...string) *AppError {
	return &AppError{Kind: KindGateway, Message: msg, Err: err, Errors: details}
}

func Internal(msg string, err error) *AppError {
	return &AppError{Kind: KindInternal, Message: msg, Err: err}
}

// StatusOf maps any error to its HTTP status; unclassified errors are 500.
func StatusOf(err error) int {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Status()
	}
	return http.StatusInternalServerError
}

// KindOf reports the classification of err, KindInternal when unclassified.
func KindOf(err error) Kind {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}
