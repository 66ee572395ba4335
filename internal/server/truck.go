package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	truckdomain "github.com/smallhaul/tradeledger/internal/truck/domain"
)

type createTruckRequest struct {
	PlateNumber string `json:"plate_number"`
	DriverName  string `json:"driver_name"`
}

func (s *Server) CreateTruck(c *gin.Context) {
	var req createTruckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.truckSvc.Create(c.Request.Context(), truckdomain.CreateTruckRequest{
		PlateNumber: req.PlateNumber,
		DriverName:  req.DriverName,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListTrucks(c *gin.Context) {
	resp, err := s.truckSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetTruck(c *gin.Context) {
	resp, err := s.truckSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeactivateTruck(c *gin.Context) {
	if err := s.truckSvc.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"deactivated": true}})
}
