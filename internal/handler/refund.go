package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"settlement/internal/domain"
	"settlement/internal/service"
)

// RefundHandler handles HTTP requests for refund requests.
type RefundHandler struct {
	refundService *service.RefundService
}

// NewRefundHandler creates a new RefundHandler.
func NewRefundHandler(refundService *service.RefundService) *RefundHandler {
	return &RefundHandler{refundService: refundService}
}

// CreateRefundRequest is the HTTP request body for opening a refund request.
type CreateRefundRequest struct {
	BookingID     string  `json:"booking_id"`
	Amount        float64 `json:"amount"`
	Reason        string  `json:"reason"`
	RequestedBy   string  `json:"requested_by"`
	RequesterRole string  `json:"requester_role"`
}

// RefundResponse is a refund request in HTTP responses.
type RefundResponse struct {
	ID            string  `json:"id"`
	BookingID     string  `json:"booking_id"`
	Amount        float64 `json:"amount"`
	Reason        string  `json:"reason"`
	Status        string  `json:"status"`
	RequestedBy   string  `json:"requested_by"`
	ReviewedBy    string  `json:"reviewed_by,omitempty"`
	ReviewNotes   string  `json:"review_notes,omitempty"`
	RefundTxnID   string  `json:"refund_txn_id,omitempty"`
	ReversalTxnID string  `json:"reversal_txn_id,omitempty"`
	ReversalError string  `json:"reversal_error,omitempty"`
}

func toRefundResponse(r *domain.RefundRequest) RefundResponse {
	return RefundResponse{
		ID:            r.ID,
		BookingID:     r.BookingID,
		Amount:        r.Amount,
		Reason:        r.Reason,
		Status:        string(r.Status),
		RequestedBy:   r.RequestedBy,
		ReviewedBy:    r.ReviewedBy,
		ReviewNotes:   r.ReviewNotes,
		RefundTxnID:   r.RefundTxnID,
		ReversalTxnID: r.ReversalTxnID,
		ReversalError: r.ReversalError,
	}
}

// CreateRequest handles POST /v1/refunds
func (h *RefundHandler) CreateRequest(c *gin.Context) {
	var req CreateRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	request, err := h.refundService.CreateRequest(c.Request.Context(), service.CreateRefundRequest{
		BookingID:     req.BookingID,
		Amount:        req.Amount,
		Reason:        req.Reason,
		RequestedBy:   req.RequestedBy,
		RequesterRole: req.RequesterRole,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toRefundResponse(request))
}

// ReviewRequest is the HTTP request body for approving or rejecting.
type ReviewRequest struct {
	ReviewerID string `json:"reviewer_id"`
	Notes      string `json:"notes"`
}

// ApproveRequest handles POST /v1/refunds/:id/approve
func (h *RefundHandler) ApproveRequest(c *gin.Context) {
	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	request, err := h.refundService.ApproveRequest(c.Request.Context(), c.Param("id"), req.ReviewerID, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRefundResponse(request))
}

// RejectRequest handles POST /v1/refunds/:id/reject
func (h *RefundHandler) RejectRequest(c *gin.Context) {
	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	request, err := h.refundService.RejectRequest(c.Request.Context(), c.Param("id"), req.ReviewerID, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRefundResponse(request))
}

// ProcessRequestBody is the HTTP request body for processing a refund.
type ProcessRequestBody struct {
	ReverseTransfer bool `json:"reverse_transfer"`
}

// ProcessResponse is the HTTP response for a processed refund.
type ProcessResponse struct {
	Request RefundResponse `json:"request"`
	Status  StatusResponse `json:"status"`
}

// ProcessRequest handles POST /v1/refunds/:id/process
func (h *RefundHandler) ProcessRequest(c *gin.Context) {
	var req ProcessRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	result, err := h.refundService.ProcessRequest(c.Request.Context(), service.ProcessRefundRequest{
		RequestID:       c.Param("id"),
		ReverseTransfer: req.ReverseTransfer,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, ProcessResponse{
		Request: toRefundResponse(result.Request),
		Status:  toStatusResponse(result.Status),
	})
}

// GetRequest handles GET /v1/refunds/:id
func (h *RefundHandler) GetRequest(c *gin.Context) {
	request, err := h.refundService.GetRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRefundResponse(request))
}

// HostBalanceResponse is the API representation of a host's running balance.
type HostBalanceResponse struct {
	HostID  string  `json:"host_id"`
	Balance float64 `json:"balance"`
}

// GetHostBalance handles GET /v1/hosts/:hostID/balance
func (h *RefundHandler) GetHostBalance(c *gin.Context) {
	balance, err := h.refundService.GetHostBalance(c.Request.Context(), c.Param("hostID"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, HostBalanceResponse{
		HostID:  balance.HostID,
		Balance: balance.Balance,
	})
}

// ListByBooking handles GET /v1/refunds?booking_id=...
func (h *RefundHandler) ListByBooking(c *gin.Context) {
	requests, err := h.refundService.ListRequests(c.Request.Context(), c.Query("booking_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]RefundResponse, 0, len(requests))
	for _, request := range requests {
		response = append(response, toRefundResponse(request))
	}

	respondJSON(c, http.StatusOK, response)
}
