package apperror

import (
	"errors"
	"fmt"
)

// Stable error codes callers can branch on instead of parsing messages.
const (
	CodeValidation          = "VALIDATION"
	CodeNotFound            = "NOT_FOUND"
	CodeConflict            = "CONFLICT"
	CodeFeeUnavailable      = "FEE_UNAVAILABLE"
	CodeInvalidTransition   = "INVALID_TRANSITION"
	CodePaymentRequired     = "PAYMENT_REQUIRED"
	CodeAlreadySettled      = "ALREADY_SETTLED"
	CodeInsufficientFunds   = "INSUFFICIENT_FUNDS"
	CodeUnauthorizedPayment = "UNAUTHORIZED_PAYMENT"
	CodeBranchScope         = "BRANCH_SCOPE_VIOLATION"
)

// Error is a business-rule violation carrying a stable code plus the
// offending identifiers as structured data. Every rejected operation leaves
// the aggregate exactly as it was before the call.
type Error struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Meta    map[string]any `json:"meta,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New builds an Error with optional key/value metadata pairs.
func New(code, message string, kv ...any) *Error {
	e := &Error{Code: code, Message: message}
	if len(kv) > 0 {
		e.Meta = make(map[string]any, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			key, ok := kv[i].(string)
			if !ok {
				continue
			}
			e.Meta[key] = kv[i+1]
		}
	}
	return e
}

func Validation(message string, kv ...any) *Error {
	return New(CodeValidation, message, kv...)
}

func NotFound(message string, kv ...any) *Error {
	return New(CodeNotFound, message, kv...)
}

func FeeUnavailable(feeID string) *Error {
	return New(CodeFeeUnavailable, "fee is inactive or outside its validity window", "fee_id", feeID)
}

func InvalidTransition(requestID, from, to string) *Error {
	return New(CodeInvalidTransition, fmt.Sprintf("cannot transition from %s to %s", from, to),
		"request_id", requestID, "from", from, "to", to)
}

func PaymentRequired(requestID string) *Error {
	return New(CodePaymentRequired, "request cannot be approved while money is owed", "request_id", requestID)
}

func AlreadySettled(requestID string) *Error {
	return New(CodeAlreadySettled, "gateway amount is already fully paid", "request_id", requestID)
}

func InsufficientFunds(alumniID string) *Error {
	return New(CodeInsufficientFunds, "wallet balance does not cover the debit", "alumni_id", alumniID)
}

func UnauthorizedPayment(requestID string) *Error {
	return New(CodeUnauthorizedPayment, "actor may not record payments for this request", "request_id", requestID)
}

func BranchScope(requestID string) *Error {
	return New(CodeBranchScope, "request belongs to another branch", "request_id", requestID)
}

// CodeOf extracts the stable code from err, or empty when err is not an *Error.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Is allows errors.Is comparisons against code-only sentinel values.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}
