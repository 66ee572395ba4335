package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	saledomain "github.com/smallhaul/tradeledger/internal/sale/domain"
)

type createSaleRequest struct {
	TruckID       string           `json:"truck_id"`
	ProductID     string           `json:"product_id"`
	CustomerID    string           `json:"customer_id"`
	Quantity      decimal.Decimal  `json:"quantity"`
	UnitPrice     *decimal.Decimal `json:"unit_price"`
	DiscountType  string           `json:"discount_type"`
	DiscountValue decimal.Decimal  `json:"discount_value"`
	SaleDate      string           `json:"sale_date"`
}

func (s *Server) CreateSale(c *gin.Context) {
	var req createSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	saleDate, err := parseOptionalTime(req.SaleDate)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.saleSvc.Create(c.Request.Context(), saledomain.CreateSaleRequest{
		TruckID:       req.TruckID,
		ProductID:     req.ProductID,
		CustomerID:    req.CustomerID,
		Quantity:      req.Quantity,
		UnitPrice:     req.UnitPrice,
		DiscountType:  req.DiscountType,
		DiscountValue: req.DiscountValue,
		SaleDate:      saleDate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListSales(c *gin.Context) {
	var query struct {
		CustomerID string `form:"customer_id"`
		TruckID    string `form:"truck_id"`
		Unbilled   bool   `form:"unbilled"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.saleSvc.List(c.Request.Context(), saledomain.ListSalesRequest{
		CustomerID: query.CustomerID,
		TruckID:    query.TruckID,
		Unbilled:   query.Unbilled,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetSale(c *gin.Context) {
	resp, err := s.saleSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func parseOptionalTime(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t, nil
		}
	}
	return nil, ErrInvalidRequest
}
