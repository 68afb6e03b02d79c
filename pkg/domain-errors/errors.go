// Package domainerrors defines coded errors returned by services.
//
// Services return *Error values so transport layers can map them to a
// response without inspecting messages. Stores return sentinel errors
// (see pkg/platform/sentinel) which services translate into codes here.
package domainerrors

import (
	"errors"
	"net/http"
)

// Code classifies an error for callers and transports.
type Code string

// Generic codes.
const (
	CodeBadRequest         Code = "bad_request"
	CodeInvalidInput       Code = "invalid_input"
	CodeValidation         Code = "validation_error"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeInternal           Code = "internal_error"
	CodeTimeout            Code = "timeout"
	CodeUnavailable        Code = "unavailable"
	CodeRateLimited        Code = "rate_limited"
	CodeInvariantViolation Code = "invariant_violation"
)

// Ledger and distribution codes. Every rejected operation returns exactly one
// of these and leaves state unchanged.
const (
	CodeInvalidAmount         Code = "invalid_amount"
	CodeInsufficientSupply    Code = "insufficient_supply"
	CodeInsufficientBalance   Code = "insufficient_balance"
	CodeInsufficientLiquidity Code = "insufficient_liquidity"
	CodeNotAuthorized         Code = "not_authorized"
	CodeAssetInactive         Code = "asset_inactive"
	CodeDistributionNotFound  Code = "distribution_not_found"
	CodeAlreadyClaimed        Code = "already_claimed"
	CodeNoAllocation          Code = "no_allocation"
	CodePaused                Code = "paused"
)

// Error is a coded error with an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same code. A target with a message
// must also match the message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != e.Code {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

// New creates a coded error.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf returns the outermost code in the chain, or CodeInternal for
// uncoded errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether the outermost coded error in the chain has the code.
func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is shorthand for HasCode.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// HTTPStatus maps a code to a response status.
func HTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeInvalidInput, CodeValidation, CodeInvalidAmount:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden, CodeNotAuthorized:
		return http.StatusForbidden
	case CodeNotFound, CodeDistributionNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeAlreadyClaimed:
		return http.StatusConflict
	case CodeInsufficientSupply, CodeInsufficientBalance, CodeInsufficientLiquidity,
		CodeAssetInactive, CodeNoAllocation, CodeInvariantViolation:
		return http.StatusUnprocessableEntity
	case CodePaused, CodeUnavailable:
		return http.StatusServiceUnavailable
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
