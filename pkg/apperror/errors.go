package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// HasCode reports whether err is an AppError carrying the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// Codes shared between services and handlers.
const (
	CodeValidation         = "VAL_001"
	CodeInvalidAmount      = "VAL_002"
	CodeUnparsableRef      = "VAL_003"
	CodeConflict           = "CONFLICT_001"
	CodeIllegalTransition  = "CONFLICT_002"
	CodeAmountMismatch     = "CONFLICT_003"
	CodeInsufficientFunds  = "FUNDS_001"
	CodeWalletFrozen       = "FUNDS_002"
	CodeNotFound           = "NF_001"
	CodeForbidden          = "AUTH_004"
	CodeGatewayUnavailable = "SYS_004"
)

// ---- Security & Authentication (SEC) ----

func ErrMissingSignature() *AppError {
	return New("SEC_001", "Missing webhook signature headers", http.StatusUnauthorized)
}

func ErrInvalidSignature() *AppError {
	return New("SEC_002", "Invalid signature", http.StatusUnauthorized)
}

func ErrTimestampExpired() *AppError {
	return New("SEC_003", "Request timestamp expired", http.StatusForbidden)
}

func ErrNonceUsed() *AppError {
	return New("SEC_004", "Nonce has already been used", http.StatusForbidden)
}

// ---- Validation (VAL) ----

// Validation returns a generic input validation error.
func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}

func ErrInvalidAmount() *AppError {
	return New(CodeInvalidAmount, "Invalid amount", http.StatusBadRequest)
}

func ErrPayloadTooLarge(limit int64) *AppError {
	return New("VAL_004", fmt.Sprintf("Request body exceeds %d bytes", limit), http.StatusRequestEntityTooLarge)
}

func ErrUnparsableReference(text string) *AppError {
	return New(CodeUnparsableRef, fmt.Sprintf("Reference %q does not contain an order id", text), http.StatusBadRequest)
}

// ---- Conflicts (CONFLICT) ----

// Conflict reports a request that contradicts recorded state.
func Conflict(message string) *AppError {
	return New(CodeConflict, message, http.StatusConflict)
}

func ErrIllegalTransition(entity, from, to string) *AppError {
	return New(CodeIllegalTransition,
		fmt.Sprintf("%s cannot move from %s to %s", entity, from, to),
		http.StatusConflict)
}

func ErrAmountMismatch(expected, received int64) *AppError {
	return New(CodeAmountMismatch,
		fmt.Sprintf("Amount mismatch: expected %d, received %d", expected, received),
		http.StatusConflict)
}

// ---- Funds (FUNDS) ----

func ErrInsufficientFunds() *AppError {
	return New(CodeInsufficientFunds, "Insufficient balance in wallet", http.StatusPaymentRequired)
}

func ErrWalletFrozen() *AppError {
	return New(CodeWalletFrozen, "Wallet is frozen", http.StatusLocked)
}

// ---- Not found (NF) ----

func ErrNotFound(entity string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrForbidden() *AppError {
	return New(CodeForbidden, "Caller role is not allowed to perform this action", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

func ErrGatewayUnavailable(err error) *AppError {
	return Wrap(CodeGatewayUnavailable, "Payment provider unavailable", http.StatusBadGateway, err)
}
