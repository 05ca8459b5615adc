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

// Error codes. Exported so callers can branch on them without string literals.
const (
	CodeNotWorking            = "SES_001"
	CodeSettlementInProgress  = "SES_002"
	CodeSettlementTooSoon     = "SES_003"
	CodeInsufficientFunds     = "PAY_001"
	CodeInvalidAmount         = "PAY_002"
	CodeSettlementUnconfirmed = "PAY_003"
	CodeProviderUnavailable   = "PRV_001"
	CodeProviderError         = "PRV_002"
	CodeInternal              = "SYS_001"
	CodeLedgerWriteFailed     = "SYS_002"
	CodeRateLimitExceeded     = "RATE_001"
	CodeInvalidRequest        = "REQ_001"
)

// CodeOf returns the AppError code carried by err, or CodeInternal.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// IsCode reports whether err carries the given AppError code.
func IsCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// ---- Work session (SES) ----

func ErrNotWorking() *AppError {
	return New(CodeNotWorking, "User is not checked in", http.StatusConflict)
}

func ErrSettlementInProgress() *AppError {
	return New(CodeSettlementInProgress, "A settlement is already in progress for this session", http.StatusConflict)
}

func ErrSettlementTooSoon() *AppError {
	return New(CodeSettlementTooSoon, "Too soon for another payment", http.StatusTooManyRequests)
}

// ---- Settlement (PAY) ----

func ErrInsufficientFunds() *AppError {
	return New(CodeInsufficientFunds, "Insufficient payer wallet balance for payment", http.StatusPaymentRequired)
}

func ErrInvalidAmount() *AppError {
	return New(CodeInvalidAmount, "Payment amount must be greater than 0", http.StatusBadRequest)
}

func ErrSettlementUnconfirmed() *AppError {
	return New(CodeSettlementUnconfirmed, "Payment was not confirmed by the provider", http.StatusBadGateway)
}

// ---- Wallet provider (PRV) ----

func ErrProviderUnavailable(err error) *AppError {
	return Wrap(CodeProviderUnavailable, "Wallet provider unavailable", http.StatusServiceUnavailable, err)
}

// ErrProviderError carries the provider's own detail text in Message.
func ErrProviderError(status int, detail string) *AppError {
	if detail == "" {
		detail = http.StatusText(status)
	}
	return Wrap(CodeProviderError, "Wallet provider rejected request: "+detail, http.StatusBadGateway,
		fmt.Errorf("provider status %d", status))
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(CodeRateLimitExceeded, "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrLedgerWriteFailed(err error) *AppError {
	return Wrap(CodeLedgerWriteFailed, "Failed to record settlement in ledger", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a REQ_001 error for malformed input.
func Validation(message string) *AppError {
	return New(CodeInvalidRequest, message, http.StatusBadRequest)
}
