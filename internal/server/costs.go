package server

import (
	"github.com/gin-gonic/gin"
	costingdomain "github.com/railzwaylabs/recon/internal/costing/domain"
)

func (s *Server) ListCosts(c *gin.Context) {
	items, err := s.costingSvc.ListCosts(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, items)
}

func (s *Server) SetCost(c *gin.Context) {
	var req costingdomain.SetCostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	item, err := s.costingSvc.SetCost(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, item)
}

func (s *Server) SetCosts(c *gin.Context) {
	var req struct {
		Items []costingdomain.SetCostRequest `json:"items"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	result, err := s.costingSvc.SetCosts(c.Request.Context(), req.Items)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, result)
}

func (s *Server) DeleteCost(c *gin.Context) {
	if err := s.costingSvc.DeleteCost(c.Request.Context(), c.Param("sku")); err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, gin.H{"sku": c.Param("sku"), "deleted": true})
}

func (s *Server) RecalculateCosts(c *gin.Context) {
	id, ok := s.snapshotID(c)
	if !ok {
		return
	}
	result, err := s.costingSvc.Recalculate(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, result)
}
