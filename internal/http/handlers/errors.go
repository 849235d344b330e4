// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case and stable; clients branch on them. Generic
// codes mirror HTTP status semantics, domain codes name a specific business
// rule that status alone cannot convey.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "request_not_pending",
//	  "message": "request already processed: status accepted"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-counsel-backend/internal/scoring"
	"github.com/tbourn/go-counsel-backend/internal/services"
)

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeUnavailable      = "upstream_unavailable"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeInvalidSelection   = "invalid_selection"
	ErrCodeUnknownKeyword     = "unknown_keyword"
	ErrCodeRequestNotPending  = "request_not_pending"
	ErrCodeCounselorBusy      = "counselor_unavailable"
	ErrCodeCapacityExceeded   = "capacity_exceeded"
	ErrCodeConsultationClosed = "consultation_closed"
	ErrCodeNotEnoughText      = "not_enough_text"
	ErrCodeCardIssued         = "card_already_issued"
)

// specificCodes overrides the per-kind default code for errors clients are
// expected to handle individually.
var specificCodes = []struct {
	err  error
	code string
}{
	{scoring.ErrUnknownKeyword, ErrCodeUnknownKeyword},
	{scoring.ErrNoSelections, ErrCodeInvalidSelection},
	{scoring.ErrEmptyCategory, ErrCodeInvalidSelection},
	{scoring.ErrTooManySelections, ErrCodeInvalidSelection},
	{scoring.ErrInvalidCategory, ErrCodeInvalidSelection},
	{scoring.ErrDuplicateKeyword, ErrCodeInvalidSelection},
	{services.ErrRequestNotPending, ErrCodeRequestNotPending},
	{services.ErrCounselorUnavailable, ErrCodeCounselorBusy},
	{services.ErrCapacityExceeded, ErrCodeCapacityExceeded},
	{services.ErrConsultationClosed, ErrCodeConsultationClosed},
	{services.ErrNotEnoughText, ErrCodeNotEnoughText},
	{services.ErrCardAlreadyIssued, ErrCodeCardIssued},
}

// statusFor maps a service error to an HTTP status and error code.
func statusFor(err error) (int, string) {
	kind := services.KindOf(err)
	status, code := http.StatusInternalServerError, ErrCodeInternal
	switch kind {
	case services.KindValidation:
		status, code = http.StatusBadRequest, ErrCodeBadRequest
	case services.KindNotFound:
		status, code = http.StatusNotFound, ErrCodeNotFound
	case services.KindForbidden:
		status, code = http.StatusForbidden, ErrCodeForbidden
	case services.KindConflict:
		status, code = http.StatusConflict, ErrCodeConflict
	case services.KindUnavailable:
		status, code = http.StatusBadGateway, ErrCodeUnavailable
	}
	if kind == services.KindInternal {
		return status, code
	}
	for _, sc := range specificCodes {
		if errors.Is(err, sc.err) {
			return status, sc.code
		}
	}
	return status, code
}

// failErr writes the error envelope for a service error. Internal errors
// never leak their message to the client.
func failErr(c *gin.Context, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		msg = "internal server error"
	}
	fail(c, status, code, msg)
}
