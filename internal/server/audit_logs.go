package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallhaul/tradeledger/internal/audit/domain"
	"github.com/smallhaul/tradeledger/pkg/db/pagination"
)

func (s *Server) ListAuditLogs(c *gin.Context) {
	var query struct {
		pagination.Pagination
		EntityType string `form:"entity_type"`
		EntityID   string `form:"entity_id"`
		Action     string `form:"action"`
		Since      string `form:"since"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	page := query.Clamp()

	since, err := parseOptionalTime(query.Since)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.auditSvc.Query(c.Request.Context(), auditdomain.QueryRequest{
		EntityType: query.EntityType,
		EntityID:   query.EntityID,
		Action:     query.Action,
		Since:      since,
		Limit:      page.Limit,
		Offset:     page.Offset,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}
