package apierror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
)

type ErrorCode string

const (
	ErrNotFound       ErrorCode = "NOT_FOUND"
	ErrConflict       ErrorCode = "CONFLICT"
	ErrPrecondition   ErrorCode = "PRECONDITION_FAILED"
	ErrBadRequest     ErrorCode = "BAD_REQUEST"
	ErrInvalidInput   ErrorCode = "INVALID_INPUT"
	ErrUnprocessable  ErrorCode = "UNPROCESSABLE"
	ErrInternalServer ErrorCode = "INTERNAL_SERVER_ERROR"
)

// Reason narrows an error code to one business failure. Every public
// operation of the settlement core fails with exactly one of these.
type Reason string

const (
	// Conflicts: caller should re-read state and retry or surface to a human.
	ReasonInvalidTransition      Reason = "INVALID_TRANSITION"
	ReasonInvalidWorkflowState   Reason = "INVALID_WORKFLOW_STATE"
	ReasonAlreadyVerified        Reason = "ALREADY_VERIFIED"
	ReasonSoldOut                Reason = "SOLD_OUT"
	ReasonSoldOutForPartner      Reason = "SOLD_OUT_FOR_PARTNER"
	ReasonConcurrentModification Reason = "CONCURRENT_MODIFICATION"
	ReasonNotSettled             Reason = "NOT_SETTLED"
	ReasonAlreadySettled         Reason = "ALREADY_SETTLED"
	ReasonDuplicateOrder         Reason = "DUPLICATE_ORDER"

	// Preconditions: business-rule gates, not bugs.
	ReasonOrderFrozen         Reason = "ORDER_FROZEN"
	ReasonPurchaseNotVerified Reason = "PURCHASE_NOT_VERIFIED"
	ReasonMissingProof        Reason = "MISSING_PROOF"
	ReasonNotRequired         Reason = "NOT_REQUIRED"
	ReasonFrozenDispute       Reason = "FROZEN_DISPUTE"
	ReasonCoolingPeriodActive Reason = "COOLING_PERIOD_ACTIVE"
	ReasonMediatorInactive    Reason = "MEDIATOR_INACTIVE"
	ReasonBuyerInactive       Reason = "BUYER_INACTIVE"
	ReasonCampaignLocked      Reason = "CAMPAIGN_LOCKED"

	// Economic integrity: must never be coerced; always hard-fail.
	ReasonInvalidEconomics  Reason = "INVALID_ECONOMICS"
	ReasonInsufficientFunds Reason = "INSUFFICIENT_FUNDS"
)

type APIError struct {
	Code    ErrorCode   `json:"code"`
	Reason  Reason      `json:"reason,omitempty"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s/%s: %s", e.Code, e.Reason, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAPIError(code ErrorCode, message string, details interface{}) APIError {
	if details != nil {
		logrus.Error(details)
	}
	return APIError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// Conflict builds a CONFLICT error carrying a typed business reason.
func Conflict(reason Reason, message string) APIError {
	return APIError{Code: ErrConflict, Reason: reason, Message: message}
}

// Precondition builds a PRECONDITION_FAILED error carrying a typed business
// reason.
func Precondition(reason Reason, message string) APIError {
	return APIError{Code: ErrPrecondition, Reason: reason, Message: message}
}

// Unprocessable builds an UNPROCESSABLE error for economic-integrity
// failures.
func Unprocessable(reason Reason, message string) APIError {
	return APIError{Code: ErrUnprocessable, Reason: reason, Message: message}
}

// NotFound builds a NOT_FOUND error for a missing entity reference.
func NotFound(message string) APIError {
	return APIError{Code: ErrNotFound, Message: message}
}

// HasReason reports whether err is an APIError with the given reason.
func HasReason(err error, reason Reason) bool {
	var apiErr APIError
	if errors.As(err, &apiErr) {
		return apiErr.Reason == reason
	}
	return false
}

func MapErrorToHTTPStatus(err error) int {
	var apiErr APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case ErrNotFound:
			return http.StatusNotFound
		case ErrConflict:
			return http.StatusConflict
		case ErrPrecondition:
			return http.StatusPreconditionFailed
		case ErrInvalidInput, ErrBadRequest:
			return http.StatusBadRequest
		case ErrUnprocessable:
			return http.StatusUnprocessableEntity
		case ErrInternalServer:
			return http.StatusInternalServerError
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}
