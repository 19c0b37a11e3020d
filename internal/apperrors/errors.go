// Package apperrors defines the domain error taxonomy shared by services
// and mapped to HTTP status codes at the handler boundary.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a domain error for HTTP mapping and logging.
type Kind string

const (
	KindValidation           Kind = "validation"
	KindAuth                 Kind = "auth"
	KindInsufficientBalance  Kind = "insufficient_balance"
	KindDuplicateTransaction Kind = "duplicate_transaction"
	KindVerification         Kind = "verification"
	KindAmountMismatch       Kind = "amount_mismatch"
	KindNotFound             Kind = "not_found"
)

var kindStatus = map[Kind]int{
	KindValidation:           http.StatusBadRequest,
	KindAuth:                 http.StatusUnauthorized,
	KindInsufficientBalance:  http.StatusBadRequest,
	KindDuplicateTransaction: http.StatusConflict,
	KindVerification:         http.StatusBadRequest,
	KindAmountMismatch:       http.StatusBadRequest,
	KindNotFound:             http.StatusNotFound,
}

type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Status returns the HTTP status code for the error kind.
func (e *Error) Status() int {
	if s, ok := kindStatus[e.Kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func Auth(message string) *Error {
	return &Error{Kind: KindAuth, Message: message}
}

func InsufficientBalance(have, need int64) *Error {
	return &Error{Kind: KindInsufficientBalance, Message: fmt.Sprintf("insufficient balance: have %d, need %d", have, need)}
}

func DuplicateTransaction(txHash string) *Error {
	return &Error{Kind: KindDuplicateTransaction, Message: fmt.Sprintf("transaction %s already processed", txHash)}
}

func Verification(reason string) *Error {
	return &Error{Kind: KindVerification, Message: reason}
}

func AmountMismatch(claimed, verified float64) *Error {
	return &Error{Kind: KindAmountMismatch, Message: fmt.Sprintf("claimed amount %.6f ETH does not match on-chain amount %.6f ETH", claimed, verified)}
}

func NotFound(what string) *Error {
	return &Error{Kind: KindNotFound, Message: what + " not found"}
}

// IsKind reports whether err wraps an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

// StatusFor returns the HTTP status for any error, defaulting to 500.
func StatusFor(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Status()
	}
	return http.StatusInternalServerError
}
