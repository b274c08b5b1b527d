package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"settlement/internal/repository"
	"settlement/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidBookingID),
		errors.Is(err, service.ErrInvalidCustomerRef),
		errors.Is(err, service.ErrInvalidInstrumentRef),
		errors.Is(err, service.ErrInvalidChargeAmount),
		errors.Is(err, service.ErrInvalidOriginalCharge),
		errors.Is(err, service.ErrWaivePercentOutOfRange),
		errors.Is(err, service.ErrInvalidStaffID),
		errors.Is(err, service.ErrNoAdjustmentItems),
		errors.Is(err, service.ErrInvalidResolutionAction),
		errors.Is(err, service.ErrInvalidRefundAmount),
		errors.Is(err, service.ErrInvalidRequestID),
		errors.Is(err, service.ErrInvalidHostID):
		return http.StatusBadRequest

	// Conflict errors - wrong state for the operation
	case errors.Is(err, service.ErrChargeAlreadySettled),
		errors.Is(err, service.ErrSettlementInProgress),
		errors.Is(err, service.ErrRefundNotPending),
		errors.Is(err, service.ErrRefundNotApproved):
		return http.StatusConflict

	// Invariant violations - Unprocessable
	case errors.Is(err, service.ErrNoCapturedPayment),
		errors.Is(err, service.ErrRefundExceedsRemaining):
		return http.StatusUnprocessableEntity

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}
