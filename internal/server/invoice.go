package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallhaul/tradeledger/internal/invoice/domain"
)

type createInvoiceRequest struct {
	CustomerID string           `json:"customer_id"`
	SaleIDs    []string         `json:"sale_ids"`
	TaxRate    *decimal.Decimal `json:"tax_rate"`
	DueDate    string           `json:"due_date"`
	Notes      string           `json:"notes"`
}

type issueInvoiceRequest struct {
	IssueDate string `json:"issue_date"`
	DueDays   *int   `json:"due_days"`
}

type cancelInvoiceRequest struct {
	Reason string `json:"reason"`
}

type addSaleRequest struct {
	SaleID string `json:"sale_id"`
}

func (s *Server) CreateInvoice(c *gin.Context) {
	var req createInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	dueDate, err := parseOptionalTime(req.DueDate)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.invoiceSvc.CreateFromSales(c.Request.Context(), invoicedomain.CreateInvoiceRequest{
		CustomerID: req.CustomerID,
		SaleIDs:    req.SaleIDs,
		TaxRate:    req.TaxRate,
		DueDate:    dueDate,
		Notes:      req.Notes,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListInvoices(c *gin.Context) {
	var query struct {
		CustomerID string `form:"customer_id"`
		Status     string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.invoiceSvc.List(c.Request.Context(), invoicedomain.ListInvoicesRequest{
		CustomerID: query.CustomerID,
		Status:     query.Status,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetInvoice(c *gin.Context) {
	resp, err := s.invoiceSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) IssueInvoice(c *gin.Context) {
	var req issueInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		AbortWithError(c, invalidRequestError())
		return
	}

	issueDate, err := parseOptionalTime(req.IssueDate)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.invoiceSvc.Issue(c.Request.Context(), invoicedomain.IssueRequest{
		ID:        c.Param("id"),
		IssueDate: issueDate,
		DueDays:   req.DueDays,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CancelInvoice(c *gin.Context) {
	var req cancelInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.invoiceSvc.Cancel(c.Request.Context(), invoicedomain.CancelRequest{
		ID:     c.Param("id"),
		Reason: req.Reason,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AddSaleToInvoice(c *gin.Context) {
	var req addSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.invoiceSvc.AddSaleToDraft(c.Request.Context(), c.Param("id"), req.SaleID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RemoveSaleFromInvoice(c *gin.Context) {
	resp, err := s.invoiceSvc.RemoveSaleFromDraft(c.Request.Context(), c.Param("id"), c.Param("saleID"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) InvoiceSummary(c *gin.Context) {
	resp, err := s.paymentSvc.SummarizeInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}
