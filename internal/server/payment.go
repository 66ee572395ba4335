package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	paymentdomain "github.com/smallhaul/tradeledger/internal/payment/domain"
)

type recordPaymentRequest struct {
	InvoiceID string          `json:"invoice_id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	PaidDate  string          `json:"paid_date"`
	Notes     string          `json:"notes"`
	Reference string          `json:"reference"`
}

func (s *Server) RecordPayment(c *gin.Context) {
	var req recordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	paidDate, err := parseOptionalTime(req.PaidDate)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.paymentSvc.Record(c.Request.Context(), paymentdomain.RecordPaymentRequest{
		InvoiceID: req.InvoiceID,
		Amount:    req.Amount,
		Method:    req.Method,
		PaidDate:  paidDate,
		Notes:     req.Notes,
		Reference: req.Reference,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ReversePayment(c *gin.Context) {
	resp, err := s.paymentSvc.Reverse(c.Request.Context(), c.Param("id"), c.Query("reason"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}
